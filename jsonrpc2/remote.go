package jsonrpc2

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"sync"
	"time"

	"github.com/anthillplatform/onlinelib/internal/pretty"
)

// Transport sends one fully encoded frame to the peer. Frames passed to Send
// must be delivered in order, at most once.
type Transport interface {
	Send(frame []byte) error
}

// ErrorSink receives protocol errors that cannot be attributed to a single
// call: malformed frames, unmatched responses, method-not-found replies from
// the peer and failures to send responses.
type ErrorSink func(code int, message string, data json.RawMessage)

// State is the lifecycle state of a Remote's connection.
type State int

const (
	Disconnected State = iota
	Connected
	Closing
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Closing:
		return "closing"
	}
	return "disconnected"
}

type serviceContext string

var ctxService serviceContext = "service"

// CtxService returns a Service associated with this request from a context
// used within a call. This is useful for initiating bidirectional calls.
func CtxService(ctx context.Context) (Service, error) {
	s, ok := ctx.Value(ctxService).(Service)
	if !ok {
		return nil, ErrContextMissingValue{ctxService}
	}
	return s, nil
}

// Service represents a remote service that can be called.
type Service interface {
	Call(ctx context.Context, result interface{}, method string, params interface{}) error
}

var _ Service = &Remote{}

// Option configures a Remote.
type Option func(*Remote)

// WithServer sets the method registry used for inbound requests. A Server can
// be shared by many Remotes.
func WithServer(s *Server) Option {
	return func(r *Remote) {
		if s != nil {
			r.server = s
		}
	}
}

// WithIDGenerator overrides the default numeric id counter.
func WithIDGenerator(ids IDGenerator) Option {
	return func(r *Remote) {
		if ids != nil {
			r.ids = ids
		}
	}
}

// WithPendingLimit bounds the number of pending calls. When the limit is
// reached, the discard oldest calls fail with ErrCodeEvicted.
func WithPendingLimit(limit, discard int) Option {
	return func(r *Remote) {
		r.pending.Limit = limit
		r.pending.Discard = discard
	}
}

// WithObserver reports call and dispatch events, e.g. to a metrics collector.
func WithObserver(o Observer) Option {
	return func(r *Remote) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithAsyncHandlers runs each inbound request on its own goroutine instead of
// the receive path. Handlers that call back into the peer and wait need this,
// because their response can only arrive on the receive path.
func WithAsyncHandlers() Option {
	return func(r *Remote) {
		r.async = true
	}
}

// Remote is the RPC engine bound to one connection. It is a client and a
// server at the same time: outbound calls are correlated with their
// responses by id, and inbound requests are dispatched to its Server.
type Remote struct {
	transport Transport
	sink      ErrorSink
	server    *Server
	ids       IDGenerator
	observer  Observer
	async     bool

	pending Registry

	mu    sync.RWMutex
	state State
}

// NewRemote returns a disconnected Remote that writes frames to t and
// reports protocol errors to sink. The sink may be nil.
func NewRemote(t Transport, sink ErrorSink, opts ...Option) *Remote {
	r := &Remote{
		transport: t,
		sink:      sink,
		server:    &Server{},
		ids:       &Client{},
		observer:  nopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Server returns the method registry for inbound requests.
func (r *Remote) Server() *Server {
	return r.server
}

// AddHandler installs the handler for an inbound method.
func (r *Remote) AddHandler(method string, h Handler) {
	r.server.AddHandler(method, h)
}

// State returns the connection state.
func (r *Remote) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Pending returns the number of calls awaiting a response.
func (r *Remote) Pending() int {
	return r.pending.Len()
}

// OnConnected marks the connection as live. Calls fail with
// ErrCodeNotConnected until then.
func (r *Remote) OnConnected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Disconnected {
		r.state = Connected
	}
}

// OnConnectionClosed fails every pending call with ErrCodeConnectionClosed.
// Calling it again is a no-op.
func (r *Remote) OnConnectionClosed() {
	r.mu.Lock()
	r.state = Disconnected
	r.mu.Unlock()

	n := r.pending.DrainAll(Errorf(ErrCodeConnectionClosed, "connection closed"))
	if n > 0 {
		logger.Infof("connection closed with %d pending calls", n)
	}
}

// Close starts closing the connection. Pending calls fail once the transport
// reports the closed connection through OnConnectionClosed. Transports that
// are not an io.Closer are treated as closed immediately.
func (r *Remote) Close() error {
	r.mu.Lock()
	if r.state != Connected {
		r.mu.Unlock()
		return nil
	}
	r.state = Closing
	r.mu.Unlock()

	if c, ok := r.transport.(io.Closer); ok {
		return c.Close()
	}
	r.OnConnectionClosed()
	return nil
}

// Go issues a call and returns immediately. The Future completes with the
// peer's result or error, or with a local error if the Remote is not
// connected, the frame cannot be sent or the connection closes first.
func (r *Remote) Go(method string, params interface{}) *Future {
	id := r.ids.NextID()
	frame, err := EncodeRequest(method, params, id)
	if err != nil {
		return failedFuture(method, Errorf(ErrCodeInvalidParams, "failed to encode params: %s", err))
	}

	f := newFuture(method)
	f.id = id
	f.cancel = func(err error) bool {
		return r.pending.Cancel(id, err)
	}

	start := time.Now()
	complete := func(result json.RawMessage, err error) {
		r.observer.CallCompleted(method, time.Since(start), err)
		f.complete(result, err)
	}

	// The read lock keeps registration and the connected check atomic with
	// respect to OnConnectionClosed, so no call can slip in after a drain.
	r.mu.RLock()
	if r.state != Connected {
		r.mu.RUnlock()
		f.complete(nil, Errorf(ErrCodeNotConnected, "not connected: cannot call %q", method))
		return f
	}
	err = r.pending.Register(id, complete)
	r.mu.RUnlock()
	if err != nil {
		f.complete(nil, err)
		return f
	}

	r.observer.CallStarted(method)
	if err := r.transport.Send(frame); err != nil {
		r.pending.Cancel(id, Errorf(ErrCodeTransport, "failed to send %q: %s", method, err))
	}
	return f
}

// Call handles sending an RPC and receiving the corresponding response
// synchronously. If ctx ends first, the pending call is abandoned with
// ErrCodeTimeout.
func (r *Remote) Call(ctx context.Context, result interface{}, method string, params interface{}) error {
	return r.Go(method, params).Decode(ctx, result)
}

// Notify sends a notification. No response is expected and none is reported.
func (r *Remote) Notify(method string, params interface{}) error {
	if r.State() != Connected {
		return Errorf(ErrCodeNotConnected, "not connected: cannot notify %q", method)
	}
	frame, err := EncodeRequest(method, params, nil)
	if err != nil {
		return Errorf(ErrCodeInvalidParams, "failed to encode params: %s", err)
	}
	if err := r.transport.Send(frame); err != nil {
		return Errorf(ErrCodeTransport, "failed to send %q: %s", method, err)
	}
	return nil
}

// OnMessageReceived routes one inbound frame: responses complete their
// pending call, requests are dispatched to the Server, and anything else is
// reported to the error sink. The connection is never torn down here.
func (r *Remote) OnMessageReceived(frame []byte) {
	msg := Decode(frame)
	switch msg.Kind {
	case KindRequest:
		if r.async {
			go r.handleRequest(msg.Request)
		} else {
			r.handleRequest(msg.Request)
		}
	case KindResponse:
		r.resolve(msg.Response.ID, msg.Response.Result, nil)
	case KindError:
		e := msg.Response.Error
		if len(msg.Response.ID) == 0 {
			// The peer could not read one of our frames
			r.protocolError(e.Code, e.Message, e.Data)
			return
		}
		if e.Code == ErrCodeMethodNotFound {
			r.protocolError(e.Code, e.Message, e.Data)
		}
		r.resolve(msg.Response.ID, nil, e)
	default:
		logger.Warningf("dropping malformed frame %s: %s", pretty.Abbrev(string(frame)), msg.Err)
		r.protocolError(msg.Err.Code, msg.Err.Message, nil)
	}
}

func (r *Remote) resolve(id json.RawMessage, result json.RawMessage, err error) {
	if !r.pending.Resolve(id, result, err) {
		r.protocolError(ErrCodeUnmatchedResponse, "response does not match a pending call", id)
	}
}

func (r *Remote) handleRequest(req *Request) {
	ctx := context.WithValue(context.Background(), ctxService, r)
	start := time.Now()
	resp := r.server.Dispatch(ctx, req)
	var err error
	if resp != nil && resp.Error != nil {
		err = resp.Error
	}
	r.observer.RequestHandled(req.Method, time.Since(start), err)
	if resp == nil {
		return
	}

	frame, err := encodeResponse(resp)
	if err != nil {
		r.protocolError(ErrCodeServer, "failed to encode response: "+err.Error(), req.ID)
		return
	}
	if err := r.transport.Send(frame); err != nil {
		r.protocolError(ErrCodeTransport, "failed to send response: "+err.Error(), req.ID)
	}
}

func (r *Remote) protocolError(code int, message string, data json.RawMessage) {
	r.observer.ProtocolError(code)
	if r.sink != nil {
		r.sink(code, message, data)
	}
}

// FrameReader reads one inbound frame at a time.
type FrameReader interface {
	ReadFrame() ([]byte, error)
}

// Conn is a duplex frame connection, as provided by a transport adapter.
type Conn interface {
	Transport
	FrameReader
	io.Closer
}

// Serve marks the Remote connected and feeds it every frame read from conn
// until reading fails. The Remote is then disconnected and the read error is
// returned; io.EOF means the peer closed cleanly.
func (r *Remote) Serve(conn FrameReader) error {
	r.OnConnected()
	defer r.OnConnectionClosed()
	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			return err
		}
		r.OnMessageReceived(frame)
	}
}

// ServePipe sets up symmetric remotes over a net.Pipe() and starts both in
// goroutines. Useful for testing. Handlers still need to be registered.
func ServePipe(opts ...Option) (*Remote, *Remote) {
	c1, c2 := net.Pipe()
	conn1, conn2 := IOConn(c1), IOConn(c2)
	opts = append([]Option{WithAsyncHandlers()}, opts...)
	r1 := NewRemote(conn1, nil, opts...)
	r2 := NewRemote(conn2, nil, opts...)
	r1.OnConnected()
	r2.OnConnected()
	go r1.Serve(conn1)
	go r2.Serve(conn2)
	return r1, r2
}
