// Package fakepeer provides an in-memory transport and error sink that record
// everything an RPC engine emits, for tests.
package fakepeer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("fakepeer: transport closed")

// Transport records every frame sent through it.
type Transport struct {
	mu      sync.Mutex
	frames  [][]byte
	sendErr error
	closed  bool
	notify  chan struct{}

	// OnClose is called by Close, if set. Tests use it to emulate the
	// adapter reporting the closed connection.
	OnClose func()
}

// New returns an empty Transport.
func New() *Transport {
	return &Transport{
		notify: make(chan struct{}, 1),
	}
}

// Send records the frame, or fails with the error set by FailWith.
func (t *Transport) Send(frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if t.sendErr != nil {
		return t.sendErr
	}
	t.frames = append(t.frames, append([]byte(nil), frame...))
	select {
	case t.notify <- struct{}{}:
	default:
	}
	return nil
}

// Close marks the transport closed and runs OnClose.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	onClose := t.OnClose
	t.mu.Unlock()
	if onClose != nil {
		onClose()
	}
	return nil
}

// FailWith makes subsequent sends fail with err. A nil err restores them.
func (t *Transport) FailWith(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendErr = err
}

// Frames returns a copy of all frames sent so far.
func (t *Transport) Frames() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]byte(nil), t.frames...)
}

// Len returns the number of frames sent so far.
func (t *Transport) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.frames)
}

// WaitFor blocks until at least n frames were sent and returns the nth one
// (1-based).
func (t *Transport) WaitFor(ctx context.Context, n int) ([]byte, error) {
	for {
		t.mu.Lock()
		if len(t.frames) >= n {
			frame := t.frames[n-1]
			t.mu.Unlock()
			return frame, nil
		}
		t.mu.Unlock()

		select {
		case <-t.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Record is one error reported to a Sink.
type Record struct {
	Code    int
	Message string
	Data    json.RawMessage
}

// Sink records protocol errors. Its Report method has the signature of an
// engine error sink.
type Sink struct {
	mu      sync.Mutex
	records []Record
}

// Report records one error.
func (s *Sink) Report(code int, message string, data json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, Record{code, message, data})
}

// Records returns a copy of the recorded errors.
func (s *Sink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

// Codes returns the codes of the recorded errors, in order.
func (s *Sink) Codes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes := make([]int, 0, len(s.records))
	for _, r := range s.records {
		codes = append(codes, r.Code)
	}
	return codes
}
