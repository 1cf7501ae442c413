package jsonrpc2

import (
	"bytes"
	"encoding/json"
)

// Kind is the shape of a decoded frame.
type Kind int

const (
	KindMalformed Kind = iota
	KindRequest
	KindResponse
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindError:
		return "error"
	}
	return "malformed"
}

// Decoded is the result of decoding one inbound frame. Request is set for
// KindRequest, Response for KindResponse and KindError, and Err carries the
// diagnostic for KindMalformed.
type Decoded struct {
	Kind     Kind
	Request  *Request
	Response *Response
	Err      *ErrResponse
}

// EncodeRequest builds a call frame. A nil id builds a notification.
func EncodeRequest(method string, params interface{}, id json.RawMessage) ([]byte, error) {
	raw, err := rawValue(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Request{
		Method:  method,
		Params:  raw,
		ID:      id,
		Version: Version,
	})
}

// EncodeResponse builds a success frame for the request with the given id.
func EncodeResponse(id json.RawMessage, result interface{}) ([]byte, error) {
	raw, err := marshalResult(result)
	if err != nil {
		return nil, err
	}
	return encodeResponse(&Response{ID: id, Result: raw})
}

// EncodeError builds an error frame. A nil id is encoded as null, which is how
// a peer is told that its frame could not be read at all.
func EncodeError(id json.RawMessage, code int, message string, data interface{}) ([]byte, error) {
	raw, err := rawValue(data)
	if err != nil {
		return nil, err
	}
	return encodeResponse(&Response{
		ID: id,
		Error: &ErrResponse{
			Code:    code,
			Message: message,
			Data:    raw,
		},
	})
}

func encodeResponse(resp *Response) ([]byte, error) {
	resp.Version = Version
	if resp.Error == nil && len(resp.Result) == 0 {
		resp.Result = json.RawMessage("null")
	}
	return json.Marshal(resp)
}

// Decode classifies an inbound frame. A frame with a "method" member is a
// request or notification; a frame with an id and a result or error member is
// a response. Anything else decodes as KindMalformed.
func Decode(frame []byte) Decoded {
	frame = bytes.TrimFunc(frame, isSpaceRune)
	if len(frame) == 0 || !json.Valid(frame) {
		return malformed(ErrCodeParse, "frame is not valid JSON")
	}
	if isArray(frame) {
		return malformed(ErrCodeInvalidRequest, "batch frames are not supported")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(frame, &fields); err != nil || fields == nil {
		return malformed(ErrCodeInvalidRequest, "frame is not a JSON object")
	}

	var version string
	if raw, ok := fields["jsonrpc"]; ok {
		if err := json.Unmarshal(raw, &version); err != nil {
			return malformed(ErrCodeInvalidRequest, "jsonrpc member must be a string")
		}
	}
	id := fields["id"]
	if isNull(id) {
		id = nil
	}

	if raw, ok := fields["method"]; ok {
		var method string
		if err := json.Unmarshal(raw, &method); err != nil || method == "" {
			return malformed(ErrCodeInvalidRequest, "method must be a non-empty string")
		}
		params := fields["params"]
		if isNull(params) {
			params = nil
		}
		return Decoded{
			Kind: KindRequest,
			Request: &Request{
				Method:  method,
				Params:  params,
				ID:      id,
				Version: version,
			},
		}
	}

	result, hasResult := fields["result"]
	rawErr, hasError := fields["error"]
	switch {
	case hasResult && hasError:
		return malformed(ErrCodeInvalidRequest, "response carries both result and error")
	case hasError:
		e, ok := decodeErrorObject(rawErr)
		if !ok {
			return malformed(ErrCodeInvalidRequest, "error member must be an object with a code and a message")
		}
		return Decoded{
			Kind:     KindError,
			Response: &Response{ID: id, Error: e, Version: version},
		}
	case hasResult:
		if id == nil {
			return malformed(ErrCodeInvalidRequest, "response is missing an id")
		}
		return Decoded{
			Kind:     KindResponse,
			Response: &Response{ID: id, Result: result, Version: version},
		}
	}
	return malformed(ErrCodeInvalidRequest, "frame is neither a request nor a response")
}

func decodeErrorObject(raw json.RawMessage) (*ErrResponse, bool) {
	var obj struct {
		Code    *int            `json:"code"`
		Message *string         `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil || obj.Code == nil || obj.Message == nil {
		return nil, false
	}
	e := &ErrResponse{Code: *obj.Code, Message: *obj.Message}
	if len(obj.Data) > 0 && !isNull(obj.Data) {
		e.Data = obj.Data
	}
	return e, true
}

func malformed(code int, message string) Decoded {
	return Decoded{
		Kind: KindMalformed,
		Err:  &ErrResponse{Code: code, Message: message},
	}
}

// rawValue marshals v unless it is already encoded. Nil values stay nil so
// that optional members are omitted.
func rawValue(v interface{}) (json.RawMessage, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		if len(v) == 0 {
			return nil, nil
		}
		return v, nil
	}
	return json.Marshal(v)
}

// marshalResult is rawValue, except that an absent result encodes as null.
func marshalResult(v interface{}) (json.RawMessage, error) {
	raw, err := rawValue(v)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return json.RawMessage("null"), nil
	}
	return raw, nil
}
