package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/anthillplatform/onlinelib/jsonrpc2"
	"github.com/anthillplatform/onlinelib/jsonrpc2/ws"
	"github.com/anthillplatform/onlinelib/jsonrpc2/ws/gobwas"
	"github.com/anthillplatform/onlinelib/jsonrpc2/ws/gorilla"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newTestServer(t *testing.T, options Options) *httptest.Server {
	t.Helper()
	s, err := newServer(options, nil)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return ts
}

func TestServerHTTP(t *testing.T) {
	ts := newTestServer(t, Options{})
	rpc := jsonrpc2.HTTPService{Endpoint: ts.URL}

	var pong Pong
	if err := rpc.Call(testContext(t), &pong, "ping", nil); err != nil {
		t.Fatal(err)
	}
	if !pong.Pong {
		t.Errorf("got: %+v", pong)
	}

	var methods []string
	if err := rpc.Call(testContext(t), &methods, "methods", nil); err != nil {
		t.Fatal(err)
	}
	if want := []string{"echo", "methods", "ping"}; !reflect.DeepEqual(methods, want) {
		t.Errorf("got: %q; want %q", methods, want)
	}

	var echoed []interface{}
	if err := rpc.Call(testContext(t), &echoed, "echo", []interface{}{"a", 1}); err != nil {
		t.Fatal(err)
	}
	if want := []interface{}{"a", 1.0}; !reflect.DeepEqual(echoed, want) {
		t.Errorf("got: %v; want %v", echoed, want)
	}

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("plain GET: got status %d; want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestServerWebsocket(t *testing.T) {
	testcases := []struct {
		Transport string
		Dialer    ws.Dialer
	}{
		{"gorilla", &gobwas.Dialer{}},
		{"gobwas", &gorilla.Dialer{}},
	}
	for _, tc := range testcases {
		t.Run(tc.Transport, func(t *testing.T) {
			options := Options{}
			options.Serve.Transport = tc.Transport
			ts := newTestServer(t, options)

			session, err := ws.Connect(testContext(t), tc.Dialer, "ws"+strings.TrimPrefix(ts.URL, "http"), nil)
			if err != nil {
				t.Fatal(err)
			}
			defer session.Close()

			pong, err := jsonrpc2.CallAsync[Pong](session.Remote, "ping", nil).Wait(testContext(t))
			if err != nil {
				t.Fatal(err)
			}
			if !pong.Pong {
				t.Errorf("got: %+v", pong)
			}
		})
	}
}

func TestServerOrigin(t *testing.T) {
	options := Options{}
	options.Serve.AllowOrigin = []string{"https://app.example.com"}
	ts := newTestServer(t, options)

	upgrade := func(origin string) int {
		req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Connection", "Upgrade")
		req.Header.Set("Upgrade", "websocket")
		req.Header.Set("Origin", origin)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}
	if got, want := upgrade("https://evil.example.com"), http.StatusForbidden; got != want {
		t.Errorf("got status %d; want %d", got, want)
	}
	// Allowed origins get past the origin check, and fail the incomplete
	// handshake instead.
	if got := upgrade("https://app.example.com"); got == http.StatusForbidden {
		t.Errorf("allowed origin was rejected")
	}

	req, err := http.NewRequest(http.MethodOptions, ts.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got, want := resp.Header.Get("Access-Control-Allow-Origin"), "https://app.example.com"; got != want {
		t.Errorf("got allowed origin %q; want %q", got, want)
	}
}

func TestServerRateLimit(t *testing.T) {
	options := Options{}
	options.Serve.Rate = 0.001
	options.Serve.Burst = 1
	ts := newTestServer(t, options)
	rpc := jsonrpc2.HTTPService{Endpoint: ts.URL}

	if err := rpc.Call(testContext(t), nil, "ping", nil); err != nil {
		t.Fatal(err)
	}
	err := rpc.Call(testContext(t), nil, "ping", nil)
	if got, want := jsonrpc2.ErrorCode(err), jsonrpc2.ErrCodeServer; got != want {
		t.Errorf("got code %d (%v); want %d", got, err, want)
	}
}

func TestRunCall(t *testing.T) {
	ts := newTestServer(t, Options{})

	for _, endpoint := range []string{ts.URL, "ws" + strings.TrimPrefix(ts.URL, "http")} {
		options := Options{}
		options.Call.URL = endpoint
		options.Call.Timeout = 5 * time.Second
		options.Call.Args.Method = "echo"
		options.Call.Args.Params = `{"groupId": "g1"}`

		var out bytes.Buffer
		if err := runCall(options, &out); err != nil {
			t.Fatalf("%s: %s", endpoint, err)
		}
		var got map[string]string
		if err := json.Unmarshal(out.Bytes(), &got); err != nil {
			t.Fatalf("%s: invalid output %q: %s", endpoint, out.String(), err)
		}
		if got["groupId"] != "g1" {
			t.Errorf("%s: got: %v", endpoint, got)
		}
	}

	options := Options{}
	options.Call.URL = ts.URL
	options.Call.Args.Method = "echo"
	options.Call.Args.Params = `{not json`
	var explained ErrExplain
	if err := runCall(options, &bytes.Buffer{}); !errors.As(err, &explained) {
		t.Errorf("expected an explained error, got: %v", err)
	}

	options.Call.URL = "ftp://example.com"
	options.Call.Args.Params = ""
	if err := runCall(options, &bytes.Buffer{}); !errors.As(err, &explained) {
		t.Errorf("expected an explained error, got: %v", err)
	}
}

func TestRunNotify(t *testing.T) {
	ts := newTestServer(t, Options{})

	for _, endpoint := range []string{ts.URL, "ws" + strings.TrimPrefix(ts.URL, "http")} {
		options := Options{}
		options.Notify.URL = endpoint
		options.Notify.Transport = "gobwas"
		options.Notify.Args.Method = "ping"
		if err := runNotify(options); err != nil {
			t.Errorf("%s: %s", endpoint, err)
		}
	}
}

func TestServe(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() {
		errChan <- serve(ctx, l, http.NotFoundHandler())
	}()

	resp, err := http.Get("http://" + l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("got status %d; want %d", resp.StatusCode, http.StatusNotFound)
	}

	cancel()
	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("unclean shutdown: %s", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestExplain(t *testing.T) {
	testcases := []struct {
		Err  error
		Want string
	}{
		{jsonrpc2.Errorf(jsonrpc2.ErrCodeMethodNotFound, "method not found: foo"), "does not provide this method"},
		{jsonrpc2.Errorf(jsonrpc2.ErrCodeTimeout, "abandoned"), "--timeout"},
		{jsonrpc2.Errorf(42, "custom"), "code 42"},
		{ErrExplain{errors.New("already"), "explained"}, "explained"},
		{errors.New("mystery"), "missing an explanation"},
	}
	for _, tc := range testcases {
		if got := explain(tc.Err).Error(); !strings.Contains(got, tc.Want) {
			t.Errorf("%v: got %q; want it to contain %q", tc.Err, got, tc.Want)
		}
	}
}
