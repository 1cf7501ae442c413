// Package gobwas is a websocket transport using github.com/gobwas/ws.
package gobwas

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/anthillplatform/onlinelib/jsonrpc2"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

var _ jsonrpc2.Conn = &Conn{}

// Conn exchanges one frame per websocket text message. Control frames are
// answered while reading.
type Conn struct {
	muRead  sync.Mutex
	muWrite sync.Mutex
	conn    net.Conn
	state   ws.State
	r       *wsutil.Reader
	control wsutil.FrameHandlerFunc
	closed  int32
}

func newConn(conn net.Conn, state ws.State) *Conn {
	c := &Conn{
		conn:  conn,
		state: state,
	}
	c.control = wsutil.ControlFrameHandler(lockedWriter{c}, state)
	c.r = &wsutil.Reader{
		Source:         conn,
		State:          state,
		OnIntermediate: c.control,
	}
	return c
}

// ClientConn wraps the client side of an established websocket connection.
func ClientConn(conn net.Conn) *Conn {
	return newConn(conn, ws.StateClientSide)
}

// ServerConn wraps the server side of an established websocket connection.
func ServerConn(conn net.Conn) *Conn {
	return newConn(conn, ws.StateServerSide)
}

type lockedWriter struct {
	c *Conn
}

func (w lockedWriter) Write(p []byte) (int, error) {
	w.c.muWrite.Lock()
	defer w.c.muWrite.Unlock()
	return w.c.conn.Write(p)
}

// ReadFrame returns the payload of the next data message. A clean close by
// either side is reported as io.EOF.
func (c *Conn) ReadFrame() ([]byte, error) {
	c.muRead.Lock()
	defer c.muRead.Unlock()
	for {
		hdr, err := c.r.NextFrame()
		if err != nil {
			return nil, c.readErr(err)
		}
		if hdr.OpCode.IsControl() {
			if hdr.OpCode == ws.OpClose {
				// The peer may already be gone, the reply is best effort.
				_ = c.control(hdr, c.r)
				return nil, io.EOF
			}
			if err := c.control(hdr, c.r); err != nil {
				return nil, c.readErr(err)
			}
			continue
		}
		if hdr.OpCode&(ws.OpText|ws.OpBinary) == 0 {
			if err := c.r.Discard(); err != nil {
				return nil, c.readErr(err)
			}
			continue
		}
		data, err := io.ReadAll(c.r)
		if err != nil {
			return nil, c.readErr(err)
		}
		return data, nil
	}
}

func (c *Conn) readErr(err error) error {
	var closed wsutil.ClosedError
	if atomic.LoadInt32(&c.closed) == 1 || errors.As(err, &closed) || err == io.ErrUnexpectedEOF {
		return io.EOF
	}
	return err
}

func (c *Conn) Send(frame []byte) error {
	c.muWrite.Lock()
	defer c.muWrite.Unlock()
	return wsutil.WriteMessage(c.conn, c.state, ws.OpText, frame)
}

// Close sends a close frame and closes the underlying connection.
func (c *Conn) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	c.muWrite.Lock()
	_ = wsutil.WriteMessage(c.conn, c.state, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
	c.muWrite.Unlock()
	return c.conn.Close()
}

// Dialer opens client connections. The zero value is usable.
type Dialer struct {
	Dialer ws.Dialer
}

func (d *Dialer) Dial(ctx context.Context, url string) (jsonrpc2.Conn, error) {
	conn, br, _, err := d.Dialer.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	c := ClientConn(conn)
	if br != nil {
		// Frames the server sent right after the handshake are buffered.
		c.r.Source = io.MultiReader(io.LimitReader(br, int64(br.Buffered())), conn)
	}
	return c, nil
}

// Upgrader upgrades an HTTP request to a WebSocket request and returns the
// connection.
type Upgrader struct {
	Upgrader ws.HTTPUpgrader
}

func (u *Upgrader) Upgrade(r *http.Request, w http.ResponseWriter, h http.Header) (jsonrpc2.Conn, error) {
	upgrader := u.Upgrader
	if h != nil {
		upgrader.Header = h
	}
	conn, _, _, err := upgrader.Upgrade(r, w)
	if err != nil {
		return nil, err
	}
	return ServerConn(conn), nil
}
