package gorilla

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestConn(t *testing.T) {
	upgrader := &Upgrader{}
	serverErr := make(chan error, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(r, w, nil)
		if err != nil {
			serverErr <- err
			return
		}
		defer conn.Close()
		for {
			frame, err := conn.ReadFrame()
			if err != nil {
				serverErr <- err
				return
			}
			if err := conn.Send(frame); err != nil {
				serverErr <- err
				return
			}
		}
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dialer := &Dialer{}
	conn, err := dialer.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http"))
	if err != nil {
		t.Fatal(err)
	}

	want := `{"jsonrpc":"2.0","method":"foo","params":["bar"]}`
	if err := conn.Send([]byte(want)); err != nil {
		t.Fatal(err)
	}
	frame, err := conn.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	if got := string(frame); got != want {
		t.Errorf("got: %s; want %s", got, want)
	}

	if err := conn.Close(); err != nil {
		t.Error(err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second close: %s", err)
	}
	if _, err := conn.ReadFrame(); err != io.EOF {
		t.Errorf("read after close: got %v; want io.EOF", err)
	}

	select {
	case err := <-serverErr:
		if err != io.EOF {
			t.Errorf("server: got %v; want io.EOF", err)
		}
	case <-ctx.Done():
		t.Fatal("server did not see the close")
	}
}

func TestDialFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	dialer := &Dialer{}
	if _, err := dialer.Dial(context.Background(), "ws"+strings.TrimPrefix(ts.URL, "http")); err == nil {
		t.Error("expected dial to fail")
	}
}
