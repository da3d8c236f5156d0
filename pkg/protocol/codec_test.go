package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeBareCommand(t *testing.T) {
	line, err := Encode(CmdListUsersReq, nil)
	assert.NoError(t, err)
	assert.Equal(t, "LIST_USERS_REQ", line)
}

func TestEncodeWithBody(t *testing.T) {
	line, err := Encode(CmdLogin, Login{Username: "alice"})
	assert.NoError(t, err)
	assert.Equal(t, `LOGIN {"username":"alice"}`, line)
}

func TestDecode(t *testing.T) {
	cmd, body := Decode(`BROADCAST_REQ {"message":"hi there"}`)
	assert.Equal(t, CmdBroadcastReq, cmd)
	assert.Equal(t, `{"message":"hi there"}`, body)
}

func TestDecodeBareCommand(t *testing.T) {
	cmd, body := Decode("PONG")
	assert.Equal(t, CmdPong, cmd)
	assert.Empty(t, body)
}

func TestDecodeStripsCarriageReturn(t *testing.T) {
	cmd, body := Decode("PONG\r")
	assert.Equal(t, CmdPong, cmd)
	assert.Empty(t, body)

	cmd, body = Decode("LOGIN {\"username\":\"bob\"}\r")
	assert.Equal(t, CmdLogin, cmd)

	var login Login
	assert.NoError(t, Unmarshal(body, &login))
	assert.Equal(t, "bob", login.Username)
}

func TestStatusCodeOmittedWhenOK(t *testing.T) {
	line, err := Encode(CmdLoginResp, OK())
	assert.NoError(t, err)
	assert.Equal(t, `LOGIN_RESP {"status":"OK"}`, line)

	line, err = Encode(CmdLoginResp, Error(CodeInvalidUsername))
	assert.NoError(t, err)
	assert.Equal(t, `LOGIN_RESP {"status":"ERROR","code":1001}`, line)
}

func TestGuessResultAlwaysCarriesCode(t *testing.T) {
	line, err := Encode(CmdNumberGuessResp, GuessResult{Status: StatusOK, Code: GuessCorrect})
	assert.NoError(t, err)
	assert.Equal(t, `NUMBER_GUESS_RESP {"status":"OK","code":0}`, line)
}

func TestKeyBytesRideBase64(t *testing.T) {
	line, err := Encode(CmdPublicKey, Key{Username: "bob", Key: []byte{0x01, 0x02, 0x03}})
	assert.NoError(t, err)
	assert.Equal(t, `PUBLIC_KEY {"username":"bob","key":"AQID"}`, line)

	_, body := Decode(line)
	var key Key
	assert.NoError(t, Unmarshal(body, &key))
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, key.Key)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	var login Login
	assert.Error(t, Unmarshal(`{"`, &login))
}
