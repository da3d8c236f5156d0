package server

import (
	"bufio"
	"log"
	"net"
	"regexp"
	"strconv"

	"github.com/zenchat/zenchat/pkg/protocol"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,14}$`)

// handler runs the protocol for one connection: it parses each line, routes
// it, and writes responses. A handler binds at most one username for its
// lifetime. Handlers never talk to each other directly; everything
// cross-connection goes through the registry or the game.
type handler struct {
	srv     *Server
	conn    net.Conn
	out     *lineWriter
	alive   *liveness
	session *Session
}

func newHandler(srv *Server, conn net.Conn) *handler {
	out := newLineWriter(conn)
	return &handler{
		srv:   srv,
		conn:  conn,
		out:   out,
		alive: newLiveness(conn, out, srv.cfg),
	}
}

func (h *handler) run() {
	log.Printf("New connection from %s", h.conn.RemoteAddr())
	defer h.teardown()

	h.out.Send(protocol.CmdWelcome, protocol.Welcome{Message: h.srv.cfg.WelcomeMessage})

	scanner := bufio.NewScanner(h.conn)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	for h.alive.Connected() && scanner.Scan() {
		if !h.dispatch(scanner.Text()) {
			return
		}
	}
}

// teardown releases the connection: the socket is closed, the bound
// username (if any) leaves the registry, and remaining users are told.
func (h *handler) teardown() {
	h.alive.Disconnect()

	if h.session == nil {
		return
	}

	name := h.session.Name
	h.srv.registry.Remove(name)
	for _, peer := range h.srv.registry.Snapshot() {
		peer.Send(protocol.CmdLeft, protocol.Username{Username: name})
	}
	log.Printf("User %s left", name)
}

// dispatch handles one line. It returns false when the connection should
// terminate: an explicit BYE, or a decode failure on an already-routed
// relay message, which is fatal to the connection but not the process.
func (h *handler) dispatch(line string) bool {
	cmd, body := protocol.Decode(line)

	switch cmd {
	case protocol.CmdLogin:
		h.handleLogin(body)
	case protocol.CmdBroadcastReq:
		h.handleBroadcast(body)
	case protocol.CmdPong:
		h.handlePong()
	case protocol.CmdBye:
		h.out.Send(protocol.CmdByeResp, protocol.OK())
		return false
	case protocol.CmdListUsersReq:
		h.handleListUsers()
	case protocol.CmdPrivateMessageReq:
		return h.handlePrivateMessage(body)
	case protocol.CmdNumberSetupReq:
		h.handleNumberSetup()
	case protocol.CmdNumberJoinReq:
		h.handleNumberJoin()
	case protocol.CmdNumberGuessReq:
		h.handleNumberGuess(body)
	case protocol.CmdFileTransferReq:
		return h.handleFileTransferRequest(body)
	case protocol.CmdFileTransferResp:
		return h.handleFileTransferResponse(body)
	case protocol.CmdPublicKey:
		return h.handleKeyRelay(protocol.CmdPublicKey, body)
	case protocol.CmdSessionKey:
		return h.handleKeyRelay(protocol.CmdSessionKey, body)
	case protocol.CmdEncryptedMessageReq:
		return h.handleEncryptedMessage(body)
	default:
		h.out.SendLine(protocol.CmdUnknownCommand)
	}
	return true
}

func (h *handler) handleLogin(body string) {
	if body == "" {
		h.out.Send(protocol.CmdLoginResp, protocol.Error(protocol.CodeInvalidUsername))
		return
	}

	var login protocol.Login
	if err := protocol.Unmarshal(body, &login); err != nil {
		h.out.SendLine(protocol.CmdParseError)
		return
	}

	switch {
	case !usernamePattern.MatchString(login.Username):
		h.out.Send(protocol.CmdLoginResp, protocol.Error(protocol.CodeInvalidUsername))
		return
	case h.session != nil:
		h.out.Send(protocol.CmdLoginResp, protocol.Error(protocol.CodeAlreadyLoggedIn))
		return
	}

	sess := NewSession(login.Username, h.out)
	if !h.srv.registry.Add(sess) {
		h.out.Send(protocol.CmdLoginResp, protocol.Error(protocol.CodeNameTaken))
		return
	}

	h.session = sess
	h.out.Send(protocol.CmdLoginResp, protocol.OK())
	for _, peer := range h.srv.registry.Snapshot() {
		if fold(peer.Name) != fold(sess.Name) {
			peer.Send(protocol.CmdJoined, protocol.Username{Username: sess.Name})
		}
	}

	h.alive.Start()
	log.Printf("User %s logged in from %s", sess.Name, h.conn.RemoteAddr())
}

func (h *handler) handleBroadcast(body string) {
	if h.session == nil {
		h.out.Send(protocol.CmdBroadcastResp, protocol.Error(protocol.CodeNotLoggedIn))
		return
	}

	var req protocol.ChatMessage
	if err := protocol.Unmarshal(body, &req); err != nil {
		h.out.SendLine(protocol.CmdParseError)
		return
	}

	broadcast := protocol.ChatMessage{Username: h.session.Name, Message: req.Message}
	for _, peer := range h.srv.registry.Snapshot() {
		if fold(peer.Name) != fold(h.session.Name) {
			peer.Send(protocol.CmdBroadcast, broadcast)
		}
	}
	h.out.Send(protocol.CmdBroadcastResp, protocol.OK())
}

func (h *handler) handlePong() {
	if !h.alive.AckProbe() {
		h.out.Send(protocol.CmdPongError, protocol.Code{Code: protocol.CodeUnsolicitedPong})
	}
}

func (h *handler) handleListUsers() {
	if h.session == nil {
		h.out.Send(protocol.CmdListUsersResp, protocol.Error(protocol.CodeNotLoggedIn))
		return
	}

	h.out.Send(protocol.CmdListUsersResp, protocol.UserList{
		UserList: h.srv.registry.Names(),
		Status:   protocol.StatusOK,
	})
}

func (h *handler) handlePrivateMessage(body string) bool {
	var req protocol.ChatMessage
	if err := protocol.Unmarshal(body, &req); err != nil {
		log.Printf("Undecodable private message from %s: %v", h.conn.RemoteAddr(), err)
		return false
	}

	if h.session == nil {
		h.out.Send(protocol.CmdPrivateMessageResp, protocol.Error(protocol.CodeNotLoggedIn))
		return true
	}

	recipient, ok := h.srv.registry.Get(req.Username)
	if !ok {
		h.out.Send(protocol.CmdPrivateMessageResp, protocol.Error(protocol.CodeUnknownUser))
		return true
	}

	recipient.Send(protocol.CmdPrivateMessage, protocol.ChatMessage{
		Username: h.session.Name,
		Message:  req.Message,
	})
	h.out.Send(protocol.CmdPrivateMessageResp, protocol.OK())
	return true
}

func (h *handler) handleNumberSetup() {
	if h.session == nil {
		h.out.Send(protocol.CmdNumberSetupResp, protocol.Error(protocol.CodeNotLoggedIn))
		return
	}

	if code := h.srv.game.Setup(h.session.Name, h.session); code != 0 {
		h.out.Send(protocol.CmdNumberSetupResp, protocol.Error(code))
		return
	}

	h.out.Send(protocol.CmdNumberSetupResp, protocol.OK())
	for _, peer := range h.srv.registry.Snapshot() {
		if fold(peer.Name) != fold(h.session.Name) {
			peer.Send(protocol.CmdNumberSetup, protocol.Username{Username: h.session.Name})
		}
	}
}

func (h *handler) handleNumberJoin() {
	if h.session == nil {
		h.out.Send(protocol.CmdNumberJoinResp, protocol.Error(protocol.CodeNotLoggedIn))
		return
	}

	if code := h.srv.game.Join(h.session.Name, h.session); code != 0 {
		h.out.Send(protocol.CmdNumberJoinResp, protocol.Error(code))
		return
	}
	h.out.Send(protocol.CmdNumberJoinResp, protocol.OK())
}

func (h *handler) handleNumberGuess(body string) {
	if h.session == nil {
		h.out.Send(protocol.CmdNumberGuessResp, protocol.Error(protocol.CodeNotLoggedIn))
		return
	}

	// Phase and membership are validated before the guess itself, so a
	// non-participant with a malformed guess sees the membership error.
	if code := h.srv.game.CheckGuess(h.session.Name); code != 0 {
		h.out.Send(protocol.CmdNumberGuessResp, protocol.Error(code))
		return
	}

	var req protocol.NumberGuess
	if err := protocol.Unmarshal(body, &req); err != nil {
		h.out.SendLine(protocol.CmdParseError)
		return
	}

	guess, err := strconv.Atoi(req.Number)
	if err != nil {
		h.out.Send(protocol.CmdNumberGuessResp, protocol.GuessResult{
			Status: protocol.StatusError,
			Code:   protocol.CodeNotANumber,
		})
		return
	}

	result, code := h.srv.game.Guess(h.session.Name, guess)
	if code != 0 {
		h.out.Send(protocol.CmdNumberGuessResp, protocol.Error(code))
		return
	}
	h.out.Send(protocol.CmdNumberGuessResp, protocol.GuessResult{
		Status: protocol.StatusOK,
		Code:   result,
	})
}

func (h *handler) handleFileTransferRequest(body string) bool {
	if h.session == nil {
		h.out.Send(protocol.CmdFileTransferResp, protocol.Error(protocol.CodeNotLoggedIn))
		return true
	}

	var req protocol.FileTransferRequest
	if err := protocol.Unmarshal(body, &req); err != nil {
		log.Printf("Undecodable transfer request from %s: %v", h.conn.RemoteAddr(), err)
		return false
	}

	recipient, ok := h.srv.registry.Get(req.Username)
	if !ok {
		h.out.Send(protocol.CmdFileTransferResp, protocol.Error(protocol.CodeUnknownUser))
		return true
	}

	// The sender field is rewritten to the authenticated username; clients
	// cannot spoof the origin of a transfer offer.
	recipient.Send(protocol.CmdFileTransferReq, protocol.FileTransferRequest{
		Username: h.session.Name,
		Filename: req.Filename,
		Filesize: req.Filesize,
		ID:       req.ID,
		Checksum: req.Checksum,
	})
	return true
}

func (h *handler) handleFileTransferResponse(body string) bool {
	var resp protocol.FileTransferResponse
	if err := protocol.Unmarshal(body, &resp); err != nil {
		log.Printf("Undecodable transfer response from %s: %v", h.conn.RemoteAddr(), err)
		return false
	}

	requester, ok := h.srv.registry.Get(resp.Username)
	if !ok {
		h.out.Send(protocol.CmdFileTransferResp, protocol.Error(protocol.CodePeerGone))
		return true
	}

	requester.Send(protocol.CmdFileTransferResp, protocol.FileTransferResponse{
		Status:   protocol.StatusOK,
		Username: h.username(),
		Code:     resp.Code,
	})
	return true
}

// handleKeyRelay forwards PUBLIC_KEY and SESSION_KEY messages between the
// two ends of a key exchange. The server never interprets the key material;
// it only rewrites the sender field.
func (h *handler) handleKeyRelay(cmd, body string) bool {
	if h.session == nil {
		h.out.Send(protocol.CmdKeyResp, protocol.Error(protocol.CodeNotLoggedIn))
		return true
	}

	var key protocol.Key
	if err := protocol.Unmarshal(body, &key); err != nil {
		log.Printf("Undecodable %s from %s: %v", cmd, h.conn.RemoteAddr(), err)
		return false
	}

	peer, ok := h.srv.registry.Get(key.Username)
	if !ok {
		h.out.Send(protocol.CmdKeyResp, protocol.Error(protocol.CodeUnknownUser))
		return true
	}

	peer.Send(cmd, protocol.Key{Username: h.session.Name, Key: key.Key})
	return true
}

func (h *handler) handleEncryptedMessage(body string) bool {
	var req protocol.Encrypted
	if err := protocol.Unmarshal(body, &req); err != nil {
		log.Printf("Undecodable encrypted message from %s: %v", h.conn.RemoteAddr(), err)
		return false
	}

	if h.session == nil {
		h.out.Send(protocol.CmdEncryptedMessageResp, protocol.Error(protocol.CodeNotLoggedIn))
		return true
	}

	peer, ok := h.srv.registry.Get(req.Username)
	if !ok {
		h.out.Send(protocol.CmdEncryptedMessageResp, protocol.Error(protocol.CodeUnknownUser))
		return true
	}

	peer.Send(protocol.CmdEncryptedMessage, protocol.Encrypted{
		Username: h.session.Name,
		Message:  req.Message,
	})
	h.out.Send(protocol.CmdEncryptedMessageResp, protocol.OK())
	return true
}

func (h *handler) username() string {
	if h.session == nil {
		return ""
	}
	return h.session.Name
}
