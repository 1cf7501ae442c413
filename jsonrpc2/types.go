package jsonrpc2

import (
	"encoding/json"
	"fmt"
)

const Version = "2.0"

const (
	ErrCodeParse          = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
	ErrCodeServer         = -32000
)

// Error codes raised locally by a Remote. They complete local calls or go to
// the error sink and are never sent to the peer.
const (
	ErrCodeNotConnected      = -32001
	ErrCodeConnectionClosed  = -32002
	ErrCodeUnmatchedResponse = -32003
	ErrCodeTimeout           = -32004
	ErrCodeTransport         = -32005
	ErrCodeEvicted           = -32006
)

// Request is an inbound or outbound call. A Request without an ID is a
// notification.
type Request struct {
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Version string          `json:"jsonrpc"`
}

// IsNotification returns true if the peer does not expect a response.
func (req *Request) IsNotification() bool {
	return len(req.ID) == 0
}

// Response is either a success (Result) or a failure (Error) for the request
// with the same ID.
type Response struct {
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrResponse    `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
	Version string          `json:"jsonrpc"`
}

// UnmarshalResult decodes the result into v. The error record is returned
// instead if the response failed. Empty and null results leave v untouched.
func (resp *Response) UnmarshalResult(v interface{}) error {
	if resp.Error != nil {
		return resp.Error
	}
	return unmarshalResult(resp.Result, v)
}

func unmarshalResult(result json.RawMessage, v interface{}) error {
	if v == nil || len(result) == 0 || isNull(result) {
		return nil
	}
	return json.Unmarshal(result, v)
}

// ErrResponse is the error record of a failed call. It is produced locally
// (malformed frames, unknown methods, transport failures) or relayed from the
// peer's error response.
type ErrResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (err *ErrResponse) Error() string {
	return fmt.Sprintf("%d: %s", err.Code, err.Message)
}

// ErrorCode returns the numeric JSON-RPC error code.
func (err *ErrResponse) ErrorCode() int {
	return err.Code
}

// Errorf returns an error record with a formatted message.
func Errorf(code int, format string, args ...interface{}) *ErrResponse {
	return &ErrResponse{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}
