package protocol

import (
	"encoding/json"
	"strings"
)

// Encode renders a protocol line. A nil body yields the bare command.
func Encode(cmd string, body any) (string, error) {
	if body == nil {
		return cmd, nil
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	return cmd + " " + string(data), nil
}

// Decode splits a line into its command and raw body. The body is empty for
// bare commands. A trailing \r from CRLF line endings is stripped.
func Decode(line string) (cmd, body string) {
	line = strings.TrimSuffix(line, "\r")
	cmd, body, _ = strings.Cut(line, " ")
	return cmd, body
}

// Unmarshal decodes a raw JSON body into v.
func Unmarshal(body string, v any) error {
	return json.Unmarshal([]byte(body), v)
}
