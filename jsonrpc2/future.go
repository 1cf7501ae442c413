package jsonrpc2

import (
	"context"
	"encoding/json"
	"sync"
)

// Future is the pending outcome of an outbound call. It completes exactly
// once, with either a raw result or an error. All methods are safe for
// concurrent use.
type Future struct {
	method string
	id     json.RawMessage
	cancel func(error) bool

	once      sync.Once
	mu        sync.Mutex
	done      chan struct{}
	result    json.RawMessage
	err       error
	callbacks []CompletionFunc
}

func newFuture(method string) *Future {
	return &Future{
		method: method,
		done:   make(chan struct{}),
	}
}

// failedFuture returns a Future that is already completed with err.
func failedFuture(method string, err error) *Future {
	f := newFuture(method)
	f.complete(nil, err)
	return f
}

func (f *Future) complete(result json.RawMessage, err error) {
	f.once.Do(func() {
		f.mu.Lock()
		f.result, f.err = result, err
		callbacks := f.callbacks
		f.callbacks = nil
		close(f.done)
		f.mu.Unlock()

		for _, fn := range callbacks {
			fn(result, err)
		}
	})
}

// Method returns the method name of the call.
func (f *Future) Method() string {
	return f.method
}

// ID returns the correlation id, or nil if the call was never sent.
func (f *Future) ID() json.RawMessage {
	return f.id
}

// Done returns a channel that is closed once the call completes.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// OnComplete registers fn to run when the call completes, on the goroutine
// that completes it. If the call is already complete, fn runs immediately.
func (f *Future) OnComplete(fn CompletionFunc) {
	f.mu.Lock()
	select {
	case <-f.done:
		result, err := f.result, f.err
		f.mu.Unlock()
		fn(result, err)
		return
	default:
	}
	f.callbacks = append(f.callbacks, fn)
	f.mu.Unlock()
}

// Wait blocks until the call completes or ctx is done. When ctx ends first,
// the call is completed with an ErrCodeTimeout error and its pending slot is
// released, so a late response is reported as unmatched. If the slot was
// already taken by a response, Wait returns that response instead.
func (f *Future) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		err := Errorf(ErrCodeTimeout, "call %q abandoned: %s", f.method, ctx.Err())
		if f.cancel == nil {
			f.complete(nil, err)
		} else {
			// Cancel fails when a response has already taken the slot, in
			// which case that response completes the call.
			f.cancel(err)
		}
		<-f.done
	}
	return f.result, f.err
}

// Result returns the raw result, or nil while the call is pending or if it
// failed.
func (f *Future) Result() json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

// Err returns the error of a completed call, or nil.
func (f *Future) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Unmarshal decodes the result of a completed call into v. It does not block.
func (f *Future) Unmarshal(v interface{}) error {
	select {
	case <-f.done:
	default:
		return Errorf(ErrCodeInternal, "call %q is still pending", f.method)
	}
	if err := f.Err(); err != nil {
		return err
	}
	return unmarshalResult(f.Result(), v)
}

// Decode waits for the call and decodes its result into v. Null results
// leave v untouched.
func (f *Future) Decode(ctx context.Context, v interface{}) error {
	result, err := f.Wait(ctx)
	if err != nil {
		return err
	}
	return unmarshalResult(result, v)
}

// TypedFuture is a Future whose result decodes into T.
type TypedFuture[T any] struct {
	*Future
}

// CallAsync issues a call on r whose result decodes into T.
func CallAsync[T any](r *Remote, method string, params interface{}) TypedFuture[T] {
	return TypedFuture[T]{r.Go(method, params)}
}

// Wait blocks until the call completes and returns the decoded result.
func (f TypedFuture[T]) Wait(ctx context.Context) (T, error) {
	var v T
	err := f.Future.Decode(ctx, &v)
	return v, err
}

// Then registers fn to receive the decoded result once the call completes.
func (f TypedFuture[T]) Then(fn func(T, error)) {
	f.Future.OnComplete(func(result json.RawMessage, err error) {
		var v T
		if err == nil {
			err = unmarshalResult(result, &v)
		}
		fn(v, err)
	})
}
