package jsonrpc2

import (
	"context"
	"time"

	"github.com/alexcesaro/log/golog"
	"golang.org/x/time/rate"
)

// DispatchFunc handles one inbound request and returns its result.
type DispatchFunc func(ctx context.Context, req *Request) (interface{}, error)

// Middleware wraps a DispatchFunc.
type Middleware func(next DispatchFunc) DispatchFunc

// Chain combines middlewares into one, the first being the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next DispatchFunc) DispatchFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Logging logs every dispatched request and its duration at debug level, and
// failed requests as warnings.
func Logging(l *golog.Logger) Middleware {
	return func(next DispatchFunc) DispatchFunc {
		return func(ctx context.Context, req *Request) (interface{}, error) {
			start := time.Now()
			res, err := next(ctx, req)
			l.Debugf("rpc %s id=%s took %s", req.Method, req.ID, time.Since(start))
			if err != nil {
				l.Warningf("rpc %s failed: %s", req.Method, err)
			}
			return res, err
		}
	}
}

// RateLimit rejects requests beyond r per second, with the given burst, using
// a token bucket shared by everything dispatched through the Server.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next DispatchFunc) DispatchFunc {
		return func(ctx context.Context, req *Request) (interface{}, error) {
			if !limiter.Allow() {
				return nil, Errorf(ErrCodeServer, "rate limit exceeded")
			}
			return next(ctx, req)
		}
	}
}

// Timeout bounds the time a handler may run. The handler's context is
// cancelled at the deadline and the request fails with ErrCodeServer.
func Timeout(timeout time.Duration) Middleware {
	return func(next DispatchFunc) DispatchFunc {
		return func(ctx context.Context, req *Request) (interface{}, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			type outcome struct {
				res interface{}
				err error
			}
			done := make(chan outcome, 1)
			go func() {
				res, err := invoke(ctx, req, next)
				done <- outcome{res, err}
			}()

			select {
			case out := <-done:
				return out.res, out.err
			case <-ctx.Done():
				return nil, Errorf(ErrCodeServer, "handler for %q timed out after %s", req.Method, timeout)
			}
		}
	}
}
