package jsonrpc2

import "time"

// Observer is notified of call and dispatch events on a Remote. Methods are
// called synchronously and must not block.
type Observer interface {
	// CallStarted is called once an outbound call is pending.
	CallStarted(method string)
	// CallCompleted is called exactly once for every started call.
	CallCompleted(method string, took time.Duration, err error)
	// RequestHandled is called after an inbound request or notification was
	// dispatched. err is the error sent back, if any.
	RequestHandled(method string, took time.Duration, err error)
	// ProtocolError is called for everything reported to the error sink.
	ProtocolError(code int)
}

type nopObserver struct{}

func (nopObserver) CallStarted(string)                          {}
func (nopObserver) CallCompleted(string, time.Duration, error)  {}
func (nopObserver) RequestHandled(string, time.Duration, error) {}
func (nopObserver) ProtocolError(int)                           {}

// ErrorCode returns the JSON-RPC code carried by err, ErrCodeInternal for
// other errors and 0 for nil.
func ErrorCode(err error) int {
	if err == nil {
		return 0
	}
	return asErrResponse(err).Code
}
