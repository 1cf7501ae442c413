package jsonrpc2

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestServer(t *testing.T) {
	service := &FruitService{}
	s := Server{}
	if err := s.Register("foo_", service); err != nil {
		t.Error(err)
	}

	resp := s.Dispatch(context.Background(), &Request{
		ID:      json.RawMessage([]byte("1")),
		Version: Version,
		Method:  "foo_apple",
	})
	if resp.Error != nil {
		t.Errorf("unexpected error: %v", resp.Error)
	}

	if string(resp.Result) != `"Apple"` {
		t.Errorf("unexpected result: %q", resp.Result)
	}

	resp = s.Dispatch(context.Background(), &Request{
		ID:      json.RawMessage([]byte("2")),
		Version: Version,
		Method:  "foo_banana",
	})
	if resp.Error != nil {
		t.Errorf("unexpected error: %v", resp.Error)
	}

	if string(resp.Result) != `null` {
		t.Errorf("unexpected result: %q", resp.Result)
	}

	if got, want := s.Methods(), []string{"foo_apple", "foo_banana", "foo_cherry", "foo_durian", "foo_elderberry"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got: %q; want %q", got, want)
	}
}

func TestServerErrors(t *testing.T) {
	s := Server{}
	if err := s.Register("", &FruitService{}); err != nil {
		t.Fatal(err)
	}
	s.HandleFunc("explode", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		panic("boom")
	})

	testcases := []struct {
		Method string
		Code   int
	}{
		{"unknown", ErrCodeMethodNotFound},
		{"durian", ErrCodeInternal},
		{"elderberry", 42},
		{"explode", ErrCodeInternal},
	}
	for _, tc := range testcases {
		resp := s.Dispatch(context.Background(), &Request{ID: json.RawMessage("9"), Method: tc.Method})
		if resp == nil || resp.Error == nil {
			t.Errorf("%s: expected error response, got: %+v", tc.Method, resp)
			continue
		}
		if resp.Error.Code != tc.Code {
			t.Errorf("%s: got code %d; want %d", tc.Method, resp.Error.Code, tc.Code)
		}
		if string(resp.ID) != "9" {
			t.Errorf("%s: response id not echoed: %s", tc.Method, resp.ID)
		}
	}

	// Notifications never produce a response, even when they fail
	for _, tc := range testcases {
		if resp := s.Dispatch(context.Background(), &Request{Method: tc.Method}); resp != nil {
			t.Errorf("%s: notification produced a response: %+v", tc.Method, resp)
		}
	}
}

func TestServerAddHandlerReplaces(t *testing.T) {
	s := Server{}
	s.HandleFunc("ping", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return "first", nil
	})
	s.HandleFunc("ping", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return "second", nil
	})

	resp := s.Dispatch(context.Background(), &Request{ID: json.RawMessage("1"), Method: "ping"})
	if got, want := string(resp.Result), `"second"`; got != want {
		t.Errorf("got: %s; want %s", got, want)
	}
	if got := s.Methods(); len(got) != 1 {
		t.Errorf("expected a single method, got: %q", got)
	}
}

func TestServerRawResult(t *testing.T) {
	s := Server{}
	s.HandleFunc("echo", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return params, nil
	})
	s.HandleFunc("unencodable", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return make(chan int), nil
	})

	resp := s.Dispatch(context.Background(), &Request{ID: json.RawMessage("1"), Method: "echo", Params: json.RawMessage(`{"a":[1,2]}`)})
	if got, want := string(resp.Result), `{"a":[1,2]}`; got != want {
		t.Errorf("got: %s; want %s", got, want)
	}

	resp = s.Dispatch(context.Background(), &Request{ID: json.RawMessage("2"), Method: "unencodable"})
	if resp.Error == nil || resp.Error.Code != ErrCodeServer {
		t.Errorf("expected encoding failure, got: %+v", resp)
	}
}

func TestAsErrResponse(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), Errorf(ErrCodeInvalidParams, "bad"))
	if got := asErrResponse(wrapped).Code; got != ErrCodeInvalidParams {
		t.Errorf("got code %d; want %d", got, ErrCodeInvalidParams)
	}
	if got := ErrorCode(errors.New("plain")); got != ErrCodeInternal {
		t.Errorf("got code %d; want %d", got, ErrCodeInternal)
	}
	if got := ErrorCode(nil); got != 0 {
		t.Errorf("got code %d; want 0", got)
	}
}

func TestServerRegisterMethod(t *testing.T) {
	s := Server{}
	if err := s.RegisterMethod("greet", &SomeType{}, "Optional"); err != nil {
		t.Fatal(err)
	}
	if err := s.RegisterMethod("missing", &SomeType{}, "Nope"); err == nil {
		t.Error("expected error for a missing method")
	}

	resp := s.Dispatch(context.Background(), &Request{ID: json.RawMessage("1"), Method: "greet", Params: json.RawMessage(`["x", {"foo": "y"}]`)})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	if got, want := string(resp.Result), `"xy"`; got != want {
		t.Errorf("got: %s; want %s", got, want)
	}
	if got, want := s.Methods(), []string{"greet"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got: %q; want %q", got, want)
	}
}

func TestServerTimeoutMiddleware(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	s := Server{}
	s.Use(Timeout(10 * time.Millisecond))
	s.HandleFunc("slow", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		<-release
		return nil, nil
	})
	s.HandleFunc("fast", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return true, nil
	})

	resp := s.Dispatch(context.Background(), &Request{ID: json.RawMessage("1"), Method: "slow"})
	if resp.Error == nil || resp.Error.Code != ErrCodeServer {
		t.Errorf("got: %+v; want code %d", resp.Error, ErrCodeServer)
	}

	resp = s.Dispatch(context.Background(), &Request{ID: json.RawMessage("2"), Method: "fast"})
	if resp.Error != nil || string(resp.Result) != "true" {
		t.Errorf("unexpected response: %+v", resp)
	}
}
