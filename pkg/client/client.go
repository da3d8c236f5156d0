// Package client implements the zenchat protocol client: the server-line
// dispatcher, the per-peer encrypted messaging handshake and the
// file-transfer workers that meet at the server's rendezvous endpoint.
package client

import (
	"bufio"
	"crypto/rsa"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/zenchat/zenchat/pkg/crypto"
	"github.com/zenchat/zenchat/pkg/protocol"
)

// Config holds client configuration.
type Config struct {
	// Addr is the chat server address.
	Addr string
	// TransferAddr is the server's file-transfer rendezvous address.
	TransferAddr string
	// DownloadDir is where received files land. Empty means the working
	// directory.
	DownloadDir string
	// Output receives human-readable renderings of server traffic.
	Output io.Writer
}

// Client is one connection to a zenchat server. Messages arriving from
// other users' handlers (keys, transfer requests) mutate per-peer state, so
// everything behind mu is accessed only under it.
type Client struct {
	cfg  *Config
	conn net.Conn
	out  io.Writer

	privateKey   *rsa.PrivateKey
	publicKeyDER []byte

	transfers *transferManager

	writeMu sync.Mutex

	mu           sync.Mutex
	sessionKeys  map[string][]byte
	pendingPlain map[string]string

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to a server, generates this client's RSA key pair and
// starts the reader goroutine.
func Dial(cfg *Config) (*Client, error) {
	privateKey, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}

	publicKeyDER, err := crypto.MarshalPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, err
	}

	conn, err := net.Dial("tcp", cfg.Addr)
	if err != nil {
		return nil, err
	}

	output := cfg.Output
	if output == nil {
		output = io.Discard
	}

	c := &Client{
		cfg:          cfg,
		conn:         conn,
		out:          &syncWriter{w: output},
		privateKey:   privateKey,
		publicKeyDER: publicKeyDER,
		sessionKeys:  make(map[string][]byte),
		pendingPlain: make(map[string]string),
		done:         make(chan struct{}),
	}
	c.transfers = newTransferManager(cfg.TransferAddr, cfg.DownloadDir, c.out)

	go c.readLoop()
	return c, nil
}

// Done is closed when the connection ends, either by a BYE_RESP, a DSCN or
// the server going away.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close tears the connection down.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Login requests the given username.
func (c *Client) Login(username string) error {
	return c.send(protocol.CmdLogin, protocol.Login{Username: username})
}

// Broadcast sends a message to every other logged-in user.
func (c *Client) Broadcast(message string) error {
	return c.send(protocol.CmdBroadcastReq, protocol.ChatMessage{Message: message})
}

// PrivateMessage sends a message to one user.
func (c *Client) PrivateMessage(username, message string) error {
	return c.send(protocol.CmdPrivateMessageReq, protocol.ChatMessage{
		Username: username,
		Message:  message,
	})
}

// ListUsers requests the current user list.
func (c *Client) ListUsers() error {
	return c.send(protocol.CmdListUsersReq, nil)
}

// NumberSetup opens a number-guessing round.
func (c *Client) NumberSetup() error {
	return c.send(protocol.CmdNumberSetupReq, nil)
}

// NumberJoin joins a round during its setup window.
func (c *Client) NumberJoin() error {
	return c.send(protocol.CmdNumberJoinReq, nil)
}

// NumberGuess submits a guess.
func (c *Client) NumberGuess(number string) error {
	return c.send(protocol.CmdNumberGuessReq, protocol.NumberGuess{Number: number})
}

// Logout asks the server to end the session.
func (c *Client) Logout() error {
	return c.send(protocol.CmdBye, nil)
}

// SendEncrypted sends an end-to-end encrypted message. With an established
// session key the message goes out immediately; otherwise the plaintext is
// stashed (one per peer) and the key exchange starts with our public key.
func (c *Client) SendEncrypted(username, message string) error {
	c.mu.Lock()
	key, keyed := c.sessionKeys[fold(username)]
	if !keyed {
		c.pendingPlain[fold(username)] = message
	}
	c.mu.Unlock()

	if !keyed {
		return c.send(protocol.CmdPublicKey, protocol.Key{
			Username: username,
			Key:      c.publicKeyDER,
		})
	}

	ciphertext, err := crypto.EncryptMessage(key, []byte(message))
	if err != nil {
		return err
	}
	return c.send(protocol.CmdEncryptedMessageReq, protocol.Encrypted{
		Username: username,
		Message:  ciphertext,
	})
}

// HasSessionKey reports whether a session key is established with a peer.
func (c *Client) HasSessionKey(username string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.sessionKeys[fold(username)]
	return ok
}

// OfferFile offers a file to another user: its checksum is computed, a
// fresh transfer token drawn, and the request sent through the server.
func (c *Client) OfferFile(username, path string) error {
	req, err := c.transfers.offer(username, path)
	if err != nil {
		return err
	}
	return c.send(protocol.CmdFileTransferReq, req)
}

// AcceptFile accepts a pending transfer offer from a user and starts the
// receiving worker.
func (c *Client) AcceptFile(username string) error {
	if !c.transfers.hasReceive(username) {
		return fmt.Errorf("no pending file transfer from %s", username)
	}

	if err := c.send(protocol.CmdFileTransferResp, protocol.FileTransferResponse{
		Username: username,
		Code:     protocol.TransferAccepted,
	}); err != nil {
		return err
	}

	go func() {
		if err := c.transfers.receiveFile(username); err != nil {
			c.printf("File transfer failed: %v", err)
		}
	}()
	return nil
}

// DeclineFile declines a pending transfer offer.
func (c *Client) DeclineFile(username string) error {
	if !c.transfers.hasReceive(username) {
		return fmt.Errorf("no pending file transfer from %s", username)
	}

	c.transfers.dropReceive(username)
	return c.send(protocol.CmdFileTransferResp, protocol.FileTransferResponse{
		Username: username,
		Code:     protocol.TransferDeclined,
	})
}

func (c *Client) send(cmd string, body any) error {
	line, err := protocol.Encode(cmd, body)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_, err = io.WriteString(c.conn, line+"\n")
	return err
}

func (c *Client) readLoop() {
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	for scanner.Scan() {
		if !c.handleLine(scanner.Text()) {
			break
		}
	}

	c.printf("Disconnected from server")
	c.Close()
}

func (c *Client) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format+"\n", args...)
}

// syncWriter serializes writes from the reader goroutine and the transfer
// workers onto one output stream.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (sw *syncWriter) Write(p []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.w.Write(p)
}
