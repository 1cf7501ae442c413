package jsonrpc2

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"unicode"
)

// Handler processes the params of an inbound request. The returned value is
// encoded as the result. Returning an *ErrResponse relays its code, message
// and data to the peer; any other error is reported as ErrCodeInternal.
type Handler interface {
	ServeRPC(ctx context.Context, params json.RawMessage) (interface{}, error)
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

func (fn HandlerFunc) ServeRPC(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return fn(ctx, params)
}

// Server contains the method registry. It is safe for concurrent use, and one
// Server can be shared by many Remotes.
type Server struct {
	mu         sync.RWMutex
	registry   map[string]Handler
	middleware []Middleware
}

// AddHandler installs the handler for a method name, replacing any previous
// one.
func (s *Server) AddHandler(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registry == nil {
		s.registry = map[string]Handler{}
	}
	s.registry[method] = h
}

// HandleFunc is AddHandler for a plain function.
func (s *Server) HandleFunc(method string, fn func(ctx context.Context, params json.RawMessage) (interface{}, error)) {
	s.AddHandler(method, HandlerFunc(fn))
}

// Use appends middleware that wraps every dispatched request, in order.
func (s *Server) Use(middleware ...Middleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.middleware = append(s.middleware, middleware...)
}

// Register adds valid methods from the receiver to the registry with the given
// prefix. Method names are lowercased.
func (s *Server) Register(prefix string, receiver interface{}) error {
	methods, err := Methods(receiver)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	for name, m := range methods {
		buf.WriteString(prefix)
		buf.WriteRune(unicode.ToLower(rune(name[0])))
		buf.WriteString(name[1:])
		s.AddHandler(buf.String(), m)
		buf.Reset()
	}
	return nil
}

// RegisterMethod adds a single method of the receiver under the given name.
func (s *Server) RegisterMethod(name string, receiver interface{}, methodName string) error {
	m, err := MethodByName(receiver, methodName)
	if err != nil {
		return err
	}
	s.AddHandler(name, m)
	return nil
}

// Methods returns the sorted names of all registered methods.
func (s *Server) Methods() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.registry))
	for name := range s.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) handler(method string) (Handler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.registry[method]
	return h, ok
}

func (s *Server) call(ctx context.Context, req *Request) (interface{}, error) {
	h, ok := s.handler(req.Method)
	if !ok {
		return nil, Errorf(ErrCodeMethodNotFound, "method not found: %s", req.Method)
	}
	return h.ServeRPC(ctx, req.Params)
}

// Dispatch runs the handler for req and returns the response to send back,
// or nil for a notification. Handler errors and panics are converted into
// error responses and never escape.
func (s *Server) Dispatch(ctx context.Context, req *Request) *Response {
	s.mu.RLock()
	chain := Chain(s.middleware...)
	s.mu.RUnlock()

	res, err := invoke(ctx, req, chain(s.call))
	if req.IsNotification() {
		if err != nil {
			logger.Warningf("notification %q failed: %s", req.Method, err)
		}
		return nil
	}

	r := &Response{
		ID:      req.ID,
		Version: Version,
	}
	if err != nil {
		r.Error = asErrResponse(err)
		return r
	}
	if r.Result, err = marshalResult(res); err != nil {
		r.Error = Errorf(ErrCodeServer, "failed to encode response: %s", err)
	}
	return r
}

func invoke(ctx context.Context, req *Request, fn DispatchFunc) (res interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			logger.Errorf("handler for %q panicked: %v", req.Method, p)
			res, err = nil, Errorf(ErrCodeInternal, "handler panic: %v", p)
		}
	}()
	return fn(ctx, req)
}

func asErrResponse(err error) *ErrResponse {
	var e *ErrResponse
	if errors.As(err, &e) {
		return e
	}
	return &ErrResponse{
		Code:    ErrCodeInternal,
		Message: err.Error(),
	}
}

// ErrContextMissingValue is returned when a context is missing an expected value.
type ErrContextMissingValue struct {
	Key serviceContext
}

func (err ErrContextMissingValue) Error() string {
	return fmt.Sprintf("context missing value: %s", err.Key)
}
