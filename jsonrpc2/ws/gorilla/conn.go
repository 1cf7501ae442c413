// Package gorilla is a websocket transport using Gorilla's Websocket library.
package gorilla

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anthillplatform/onlinelib/jsonrpc2"
	"github.com/gorilla/websocket"
)

const closeTimeout = time.Second

var _ jsonrpc2.Conn = &Conn{}

// Conn exchanges one frame per websocket text message.
type Conn struct {
	muWrite sync.Mutex
	muRead  sync.Mutex
	conn    *websocket.Conn
	closed  int32
}

// NewConn wraps an established websocket connection.
func NewConn(conn *websocket.Conn) *Conn {
	return &Conn{conn: conn}
}

// ReadFrame returns the next message. A clean close by either side is
// reported as io.EOF.
func (c *Conn) ReadFrame() ([]byte, error) {
	c.muRead.Lock()
	defer c.muRead.Unlock()
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if atomic.LoadInt32(&c.closed) == 1 || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

func (c *Conn) Send(frame []byte) error {
	c.muWrite.Lock()
	defer c.muWrite.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// Close sends a close message and closes the underlying connection.
func (c *Conn) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout))
	return c.conn.Close()
}

var _ interface {
	Dial(context.Context, string) (jsonrpc2.Conn, error)
} = &Dialer{}

// Dialer opens client connections. The zero value uses
// websocket.DefaultDialer.
type Dialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

func (d *Dialer) Dial(ctx context.Context, url string) (jsonrpc2.Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, url, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial %s: %w (status %s)", url, err, resp.Status)
		}
		return nil, err
	}
	return NewConn(conn), nil
}

// Upgrader upgrades an HTTP request to a WebSocket request and returns the
// connection.
type Upgrader struct {
	Upgrader websocket.Upgrader
}

func (u *Upgrader) Upgrade(r *http.Request, w http.ResponseWriter, h http.Header) (jsonrpc2.Conn, error) {
	conn, err := u.Upgrader.Upgrade(w, r, h)
	if err != nil {
		return nil, err
	}
	return NewConn(conn), nil
}
