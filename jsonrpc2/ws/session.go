package ws

import (
	"context"
	"io"

	"github.com/anthillplatform/onlinelib/jsonrpc2"
)

// Session is a client connection with a Remote bound to it. Every frame read
// from the connection is fed to the Remote until the connection ends.
type Session struct {
	*jsonrpc2.Remote

	conn jsonrpc2.Conn
	done chan struct{}
	err  error
}

// Connect dials url and starts a Session on the new connection. Protocol
// errors are reported to sink, which may be nil.
func Connect(ctx context.Context, dialer Dialer, url string, sink jsonrpc2.ErrorSink, opts ...jsonrpc2.Option) (*Session, error) {
	conn, err := dialer.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	logger.Debugf("connected to %s", url)
	return NewSession(conn, sink, opts...), nil
}

// NewSession starts serving an established connection.
func NewSession(conn jsonrpc2.Conn, sink jsonrpc2.ErrorSink, opts ...jsonrpc2.Option) *Session {
	s := &Session{
		Remote: jsonrpc2.NewRemote(conn, sink, opts...),
		conn:   conn,
		done:   make(chan struct{}),
	}
	s.Remote.OnConnected()
	go s.serve()
	return s
}

func (s *Session) serve() {
	err := s.Remote.Serve(s.conn)
	s.conn.Close()
	if err == io.EOF {
		err = nil
	}
	if err != nil {
		logger.Warningf("session ended: %s", err)
	}
	s.err = err
	close(s.done)
}

// Done is closed once the connection has ended and every pending call has
// failed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the connection ends. It returns nil if it was closed
// cleanly by either side.
func (s *Session) Wait() error {
	<-s.done
	return s.err
}

// Close closes the connection and waits for the session to end.
func (s *Session) Close() error {
	err := s.Remote.Close()
	<-s.done
	return err
}
