package jsonrpc2

import (
	"encoding/json"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator allocates correlation ids for outbound calls. Implementations
// must be safe for concurrent use and must not hand out an id twice.
type IDGenerator interface {
	NextID() json.RawMessage
}

var _ IDGenerator = &Client{}

// Client allocates monotonically increasing numeric ids, starting at 1.
type Client struct {
	id uint64
}

func (c *Client) NextID() json.RawMessage {
	return strconv.AppendUint(nil, atomic.AddUint64(&c.id, 1), 10)
}

// Request builds a call with a fresh id.
func (c *Client) Request(method string, params interface{}) (*Request, error) {
	raw, err := rawValue(params)
	if err != nil {
		return nil, err
	}
	return &Request{
		Method:  method,
		Params:  raw,
		ID:      c.NextID(),
		Version: Version,
	}, nil
}

var _ IDGenerator = UUIDGenerator{}

// UUIDGenerator allocates random version 4 UUIDs, encoded as JSON strings.
type UUIDGenerator struct{}

func (UUIDGenerator) NextID() json.RawMessage {
	return json.RawMessage(strconv.Quote(uuid.NewString()))
}
