package client

import (
	"strings"

	"github.com/zenchat/zenchat/pkg/crypto"
	"github.com/zenchat/zenchat/pkg/protocol"
)

func fold(name string) string {
	return strings.ToLower(name)
}

// handleLine dispatches one server line. It returns false when the session
// is over (BYE_RESP or DSCN).
func (c *Client) handleLine(line string) bool {
	cmd, body := protocol.Decode(line)

	switch cmd {
	case protocol.CmdWelcome:
		var welcome protocol.Welcome
		if protocol.Unmarshal(body, &welcome) == nil {
			c.printf("%s", welcome.Message)
		}

	case protocol.CmdLoginResp:
		c.printStatus(body, "Logged in successfully")

	case protocol.CmdJoined:
		var joined protocol.Username
		if protocol.Unmarshal(body, &joined) == nil {
			c.printf("%s has joined", joined.Username)
		}

	case protocol.CmdLeft:
		c.handleLeft(body)

	case protocol.CmdBroadcastResp:
		c.printStatus(body, "Message has been sent successfully")

	case protocol.CmdBroadcast:
		var msg protocol.ChatMessage
		if protocol.Unmarshal(body, &msg) == nil {
			c.printf("%s: %s", msg.Username, msg.Message)
		}

	case protocol.CmdPing:
		c.send(protocol.CmdPong, nil)

	case protocol.CmdPongError:
		var code protocol.Code
		if protocol.Unmarshal(body, &code) == nil {
			c.printf("%s", codeText(code.Code))
		}

	case protocol.CmdDisconnect:
		var code protocol.Code
		if protocol.Unmarshal(body, &code) == nil {
			c.printf("%s", codeText(code.Code))
		}
		return false

	case protocol.CmdByeResp:
		c.printf("Bye bye")
		return false

	case protocol.CmdListUsersResp:
		c.handleUserList(body)

	case protocol.CmdPrivateMessageResp:
		c.printStatus(body, "Message has been sent successfully")

	case protocol.CmdPrivateMessage:
		var msg protocol.ChatMessage
		if protocol.Unmarshal(body, &msg) == nil {
			c.printf("Whisper from %s: %s", msg.Username, msg.Message)
		}

	case protocol.CmdNumberSetupResp:
		c.printStatus(body, "Number guessing game set up successfully")

	case protocol.CmdNumberSetup:
		var setup protocol.Username
		if protocol.Unmarshal(body, &setup) == nil {
			c.printf("%s has started a number guessing game! Use the 'number_join' command to join", setup.Username)
		}

	case protocol.CmdNumberJoinResp:
		c.printStatus(body, "Number guessing game joined successfully")

	case protocol.CmdNumberStart:
		c.printf("The number guessing game has started! Use the 'number_guess <number>' command to guess a number")

	case protocol.CmdNumberCancel:
		c.printf("The number guessing game has been cancelled due to lack of participants")

	case protocol.CmdNumberGuessResp:
		c.handleGuessResponse(body)

	case protocol.CmdNumberResult:
		c.handleNumberResult(body)

	case protocol.CmdFileTransferReq:
		c.handleFileTransferRequest(body)

	case protocol.CmdFileTransferResp:
		c.handleFileTransferResponse(body)

	case protocol.CmdPublicKey:
		c.handlePublicKey(body)

	case protocol.CmdSessionKey:
		c.handleSessionKey(body)

	case protocol.CmdEncryptedMessage:
		c.handleEncryptedMessage(body)

	case protocol.CmdKeyResp:
		c.printStatus(body, "")

	case protocol.CmdEncryptedMessageResp:
		c.printStatus(body, "Encrypted private message sent successfully")

	case protocol.CmdUnknownCommand:
		c.printf("The server did not recognize that message")

	case protocol.CmdParseError:
		c.printf("The server could not parse that message")
	}

	return true
}

// handleLeft prints the departure and invalidates all per-peer state for
// the departed user: session key, stashed plaintext and pending transfers.
func (c *Client) handleLeft(body string) {
	var left protocol.Username
	if protocol.Unmarshal(body, &left) != nil {
		return
	}

	c.printf("%s has left", left.Username)

	c.mu.Lock()
	delete(c.sessionKeys, fold(left.Username))
	delete(c.pendingPlain, fold(left.Username))
	c.mu.Unlock()

	c.transfers.dropPeer(left.Username)
}

func (c *Client) handleUserList(body string) {
	var list protocol.UserList
	if protocol.Unmarshal(body, &list) != nil {
		return
	}

	if list.Status != protocol.StatusOK {
		c.printf("Could not list users")
		return
	}
	for _, user := range list.UserList {
		c.printf("%s", user)
	}
}

func (c *Client) handleGuessResponse(body string) {
	var resp protocol.GuessResult
	if protocol.Unmarshal(body, &resp) != nil {
		return
	}

	if resp.Status == protocol.StatusError {
		c.printf("%s", codeText(resp.Code))
		return
	}

	switch resp.Code {
	case protocol.GuessTooLow:
		c.printf("Your guess was too low.")
	case protocol.GuessTooHigh:
		c.printf("Your guess was too high.")
	case protocol.GuessCorrect:
		c.printf("Your guess was correct!")
	}
}

func (c *Client) handleNumberResult(body string) {
	var result protocol.NumberResults
	if protocol.Unmarshal(body, &result) != nil {
		return
	}

	if len(result.Results) == 0 {
		c.printf("The round is over. Nobody guessed the number.")
		return
	}
	for i, entry := range result.Results {
		c.printf("%d %s (%dms)", i+1, entry.Username, entry.MS)
	}
}

func (c *Client) handleFileTransferRequest(body string) {
	var req protocol.FileTransferRequest
	if protocol.Unmarshal(body, &req) != nil {
		return
	}

	c.transfers.addReceive(req.Username, req.ID, req.Checksum, req.Filename)
	c.printf("%s would like to send you a %d byte file named %s", req.Username, req.Filesize, req.Filename)
	c.printf("Use file_accept %s or file_decline %s to accept or decline.", req.Username, req.Username)
}

func (c *Client) handleFileTransferResponse(body string) {
	var resp protocol.FileTransferResponse
	if protocol.Unmarshal(body, &resp) != nil {
		return
	}

	if resp.Status == protocol.StatusError {
		c.printf("%s", codeText(resp.Code))
		return
	}

	switch resp.Code {
	case protocol.TransferDeclined:
		c.transfers.dropSend(resp.Username)
		c.printf("%s declined your file transfer request.", resp.Username)
	case protocol.TransferAccepted:
		c.printf("%s accepted your file transfer request.", resp.Username)
		go func() {
			if err := c.transfers.sendFile(resp.Username); err != nil {
				c.printf("File transfer failed: %v", err)
			}
		}()
	}
}

// handlePublicKey is step two of the key exchange: a peer wants to message
// us, so we mint a fresh session key, record it, and send it back wrapped
// under the peer's public key.
func (c *Client) handlePublicKey(body string) {
	var msg protocol.Key
	if protocol.Unmarshal(body, &msg) != nil {
		return
	}

	peerKey, err := crypto.ParsePublicKey(msg.Key)
	if err != nil {
		c.printf("Ignoring invalid public key from %s", msg.Username)
		return
	}

	sessionKey, err := crypto.NewSessionKey()
	if err != nil {
		return
	}

	wrapped, err := crypto.WrapSessionKey(peerKey, sessionKey)
	if err != nil {
		c.printf("Could not answer key exchange from %s", msg.Username)
		return
	}

	c.mu.Lock()
	c.sessionKeys[fold(msg.Username)] = sessionKey
	c.mu.Unlock()

	c.send(protocol.CmdSessionKey, protocol.Key{Username: msg.Username, Key: wrapped})
}

// handleSessionKey is the final step of the key exchange we initiated: the
// wrapped session key comes back, we unwrap it with our private key, and
// the stashed plaintext that started all this goes out encrypted.
func (c *Client) handleSessionKey(body string) {
	var msg protocol.Key
	if protocol.Unmarshal(body, &msg) != nil {
		return
	}

	sessionKey, err := crypto.UnwrapSessionKey(c.privateKey, msg.Key)
	if err != nil {
		c.printf("Could not unwrap session key from %s", msg.Username)
		return
	}

	c.mu.Lock()
	c.sessionKeys[fold(msg.Username)] = sessionKey
	plaintext, pending := c.pendingPlain[fold(msg.Username)]
	delete(c.pendingPlain, fold(msg.Username))
	c.mu.Unlock()

	if !pending {
		return
	}

	ciphertext, err := crypto.EncryptMessage(sessionKey, []byte(plaintext))
	if err != nil {
		return
	}
	c.send(protocol.CmdEncryptedMessageReq, protocol.Encrypted{
		Username: msg.Username,
		Message:  ciphertext,
	})
}

func (c *Client) handleEncryptedMessage(body string) {
	var msg protocol.Encrypted
	if protocol.Unmarshal(body, &msg) != nil {
		return
	}

	c.mu.Lock()
	key, ok := c.sessionKeys[fold(msg.Username)]
	c.mu.Unlock()

	if !ok {
		c.printf("Encrypted message from %s but no session key established", msg.Username)
		return
	}

	plaintext, err := crypto.DecryptMessage(key, msg.Message)
	if err != nil {
		c.printf("Could not decrypt message from %s", msg.Username)
		return
	}
	c.printf("Encrypted whisper from %s: %s", msg.Username, plaintext)
}

// printStatus renders a generic OK/ERROR response body.
func (c *Client) printStatus(body, okText string) {
	var status protocol.Status
	if protocol.Unmarshal(body, &status) != nil {
		return
	}

	if status.Status == protocol.StatusOK {
		if okText != "" {
			c.printf("%s", okText)
		}
		return
	}
	c.printf("%s", codeText(status.Code))
}

// codeText maps protocol error codes to user-facing text.
func codeText(code int) string {
	switch code {
	case protocol.CodeNameTaken:
		return "This username has already been taken"
	case protocol.CodeInvalidUsername:
		return "Invalid username"
	case protocol.CodeAlreadyLoggedIn:
		return "You are already logged in"
	case protocol.CodeNotLoggedIn:
		return "You are not logged in"
	case protocol.CodeTimedOut:
		return "Connection timed out"
	case protocol.CodeUnsolicitedPong:
		return "Pong sent without ping"
	case protocol.CodeUnknownUser:
		return "Invalid recipient provided"
	case protocol.CodeGameSetUp:
		return "Game has already been set up"
	case protocol.CodeGameRunning:
		return "Game has already started"
	case protocol.CodeNoGame:
		return "No game is going on"
	case protocol.CodeAlreadyJoined:
		return "You are already a participant"
	case protocol.CodeNotParticipant:
		return "You are not a participant"
	case protocol.CodeNotANumber:
		return "Not a number"
	case protocol.CodeAlreadyGuessed:
		return "You have already guessed the number"
	case protocol.CodePeerGone:
		return "Sender has disconnected"
	default:
		return "Unknown error"
	}
}
