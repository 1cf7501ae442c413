package jsonrpc2

import (
	"bytes"
	"encoding/json"
)

// Helpers for JSON parsing

// isArray returns true if the message is a JSON array (starts
// with '[', spaces skipped).
func isArray(raw json.RawMessage) bool {
	for _, b := range raw {
		if isSpace(b) {
			continue
		}
		return b == '['
	}
	return false
}

// isNull returns true if the message is the JSON literal null.
func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimFunc(raw, isSpaceRune)) == "null"
}

// isSpace returns true if the byte is considered a space in JSON syntax.
func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func isSpaceRune(r rune) bool {
	return r < 0x80 && isSpace(byte(r))
}

// idKey returns the correlation key of a raw id token. Insignificant
// whitespace is dropped so that the peer's re-encoding still matches.
func idKey(id json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, id); err != nil {
		return string(id)
	}
	return buf.String()
}
