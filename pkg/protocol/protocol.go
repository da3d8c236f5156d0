// Package protocol defines the line-oriented wire protocol spoken between
// the zenchat server and its clients.
//
// Every message is a single UTF-8 line of the form "COMMAND" or
// "COMMAND <json-body>". Lines may be terminated by either \n or \r\n.
// Byte-slice fields (keys, ciphertexts) ride inside the JSON body as
// base64 strings, which is encoding/json's native []byte representation.
package protocol

// Commands sent by clients.
const (
	CmdLogin               = "LOGIN"
	CmdBroadcastReq        = "BROADCAST_REQ"
	CmdPong                = "PONG"
	CmdBye                 = "BYE"
	CmdListUsersReq        = "LIST_USERS_REQ"
	CmdPrivateMessageReq   = "PRIVATE_MESSAGE_REQ"
	CmdNumberSetupReq      = "NUMBER_SETUP_REQ"
	CmdNumberJoinReq       = "NUMBER_JOIN_REQ"
	CmdNumberGuessReq      = "NUMBER_GUESS_REQ"
	CmdFileTransferReq     = "FILE_TRANSFER_REQ"
	CmdFileTransferResp    = "FILE_TRANSFER_RESP"
	CmdPublicKey           = "PUBLIC_KEY"
	CmdSessionKey          = "SESSION_KEY"
	CmdEncryptedMessageReq = "ENCRYPTED_MESSAGE_REQ"
)

// Commands sent by the server.
const (
	CmdWelcome              = "WELCOME"
	CmdLoginResp            = "LOGIN_RESP"
	CmdJoined               = "JOINED"
	CmdLeft                 = "LEFT"
	CmdBroadcastResp        = "BROADCAST_RESP"
	CmdBroadcast            = "BROADCAST"
	CmdPing                 = "PING"
	CmdPongError            = "PONG_ERROR"
	CmdByeResp              = "BYE_RESP"
	CmdDisconnect           = "DSCN"
	CmdListUsersResp        = "LIST_USERS_RESP"
	CmdPrivateMessageResp   = "PRIVATE_MESSAGE_RESP"
	CmdPrivateMessage       = "PRIVATE_MESSAGE"
	CmdNumberSetupResp      = "NUMBER_SETUP_RESP"
	CmdNumberSetup          = "NUMBER_SETUP"
	CmdNumberJoinResp       = "NUMBER_JOIN_RESP"
	CmdNumberStart          = "NUMBER_START"
	CmdNumberCancel         = "NUMBER_CANCEL"
	CmdNumberGuessResp      = "NUMBER_GUESS_RESP"
	CmdNumberResult         = "NUMBER_RESULT"
	CmdKeyResp              = "KEY_RESP"
	CmdEncryptedMessage     = "ENCRYPTED_MESSAGE"
	CmdEncryptedMessageResp = "ENCRYPTED_MESSAGE_RESP"
	CmdUnknownCommand       = "UNKNOWN_COMMAND"
	CmdParseError           = "PARSE_ERROR"
)

// Error codes carried in ERROR responses.
const (
	CodeNameTaken       = 1000
	CodeInvalidUsername = 1001
	CodeAlreadyLoggedIn = 1002
	CodeNotLoggedIn     = 2000
	CodeTimedOut        = 3000
	CodeUnsolicitedPong = 4000
	CodeUnknownUser     = 5000
	CodeGameSetUp       = 6000
	CodeGameRunning     = 6001
	CodeNoGame          = 6002
	CodeAlreadyJoined   = 6003
	CodeNotParticipant  = 6004
	CodeNotANumber      = 6005
	CodeAlreadyGuessed  = 6006
	CodePeerGone        = 7000
)

// Guess outcomes carried in NUMBER_GUESS_RESP when status is OK.
const (
	GuessTooLow  = -1
	GuessCorrect = 0
	GuessTooHigh = 1
)

// File transfer answer codes carried in FILE_TRANSFER_RESP.
const (
	TransferDeclined = 0
	TransferAccepted = 1
)

// Rendezvous transport constants. Each connection to the transfer endpoint
// sends exactly one role byte followed by a fixed-width token.
const (
	RoleReader  = 'r'
	RoleWriter  = 'w'
	TokenLength = 36
)

// StatusOK and StatusError are the two values of the "status" field.
const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)
