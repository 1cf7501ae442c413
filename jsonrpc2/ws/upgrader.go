package ws

import (
	"context"
	"net/http"

	"github.com/anthillplatform/onlinelib/jsonrpc2"
)

// Upgrader takes an HTTP request, upgrades it to a websocket server and
// returns a frame connection. This allows switching between different
// websocket implementations.
type Upgrader interface {
	Upgrade(*http.Request, http.ResponseWriter, http.Header) (jsonrpc2.Conn, error)
}

// Dialer opens a client websocket connection to url.
type Dialer interface {
	Dial(ctx context.Context, url string) (jsonrpc2.Conn, error)
}
