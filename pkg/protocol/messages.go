package protocol

// Welcome is the greeting pushed to every new connection.
type Welcome struct {
	Message string `json:"message"`
}

// Login is the LOGIN request body.
type Login struct {
	Username string `json:"username"`
}

// Status is the generic OK/ERROR response body. Code is present only on
// errors.
type Status struct {
	Status string `json:"status"`
	Code   int    `json:"code,omitempty"`
}

// OK returns an OK status body.
func OK() Status {
	return Status{Status: StatusOK}
}

// Error returns an ERROR status body carrying the given code.
func Error(code int) Status {
	return Status{Status: StatusError, Code: code}
}

// Username carries a bare username (JOINED, LEFT, NUMBER_SETUP).
type Username struct {
	Username string `json:"username"`
}

// ChatMessage carries chat text. The username field names the sender on
// deliveries and the recipient on PRIVATE_MESSAGE_REQ; BROADCAST_REQ leaves
// it empty.
type ChatMessage struct {
	Username string `json:"username,omitempty"`
	Message  string `json:"message"`
}

// UserList is the LIST_USERS_RESP body.
type UserList struct {
	UserList []string `json:"userList"`
	Status   string   `json:"status"`
}

// Code carries a bare numeric code (DSCN, PONG_ERROR).
type Code struct {
	Code int `json:"code"`
}

// NumberGuess is the NUMBER_GUESS_REQ body. The number travels as a string;
// a non-numeric value is a 6005 at the game engine, not a parse error.
type NumberGuess struct {
	Number string `json:"number"`
}

// GuessResult is the NUMBER_GUESS_RESP body. Unlike Status, the code field
// is always serialized: 0 means a correct guess, not absence.
type GuessResult struct {
	Status string `json:"status"`
	Code   int    `json:"code"`
}

// GameResult is one entry of a NUMBER_RESULT list.
type GameResult struct {
	Username string `json:"username"`
	MS       int64  `json:"ms"`
}

// NumberResults is the NUMBER_RESULT body, ordered by guess time.
type NumberResults struct {
	Results []GameResult `json:"results"`
}

// FileTransferRequest announces an offered file. ID is the rendezvous token
// both sides present to the transfer endpoint; Checksum is the hex digest of
// the file contents.
type FileTransferRequest struct {
	Username string `json:"username"`
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
	ID       string `json:"id"`
	Checksum string `json:"checksum"`
}

// FileTransferResponse answers a transfer request. Clients send
// {username, code}; the server relays it with status set and the username
// rewritten to the answering user.
type FileTransferResponse struct {
	Status   string `json:"status,omitempty"`
	Username string `json:"username"`
	Code     int    `json:"code"`
}

// Key carries a public key or a wrapped session key between two users. The
// username field names the peer on requests and is rewritten to the sender
// by the relaying server.
type Key struct {
	Username string `json:"username"`
	Key      []byte `json:"key"`
}

// Encrypted carries an end-to-end encrypted chat message.
type Encrypted struct {
	Username string `json:"username"`
	Message  []byte `json:"message"`
}
