package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/anthillplatform/onlinelib/internal/pretty"
	"github.com/anthillplatform/onlinelib/jsonrpc2"
	"github.com/anthillplatform/onlinelib/jsonrpc2/ws"
	"github.com/anthillplatform/onlinelib/jsonrpc2/ws/gobwas"
	"github.com/anthillplatform/onlinelib/jsonrpc2/ws/gorilla"
)

func findDialer(transport string) (ws.Dialer, error) {
	switch transport {
	case "", "gorilla":
		return &gorilla.Dialer{}, nil
	case "gobwas":
		return &gobwas.Dialer{}, nil
	}
	return nil, fmt.Errorf("unknown websocket transport: %s", transport)
}

func parseParams(params string) (json.RawMessage, error) {
	if params == "" {
		return nil, nil
	}
	if !json.Valid([]byte(params)) {
		return nil, ErrExplain{
			fmt.Errorf("invalid params: %q", params),
			`Params must be valid JSON, such as '["a", 1]' or '{"id": 1}'. Remember to quote them for your shell.`,
		}
	}
	return json.RawMessage(params), nil
}

// interruptContext returns a context that is cancelled on ctrl+c.
func interruptContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	if timeout <= 0 {
		return ctx, cancel
	}
	ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancelTimeout()
		cancel()
	}
}

// connect opens a session for websocket URLs, or returns an HTTP service for
// http URLs. Exactly one of the two is non-nil on success.
func connect(ctx context.Context, endpoint string, transport string) (*ws.Session, *jsonrpc2.HTTPService, error) {
	uri, err := url.Parse(endpoint)
	if err != nil {
		return nil, nil, ErrExplain{err, "The --url value is not a valid URL."}
	}

	switch uri.Scheme {
	case "ws", "wss":
		dialer, err := findDialer(transport)
		if err != nil {
			return nil, nil, err
		}
		logger.Infof("Connecting to %s (%s)", uri, transport)
		session, err := ws.Connect(ctx, dialer, uri.String(), logProtocolError)
		if err != nil {
			return nil, nil, ErrExplain{err, "Failed to connect to the websocket RPC API."}
		}
		return session, nil, nil
	case "http", "https":
		return nil, &jsonrpc2.HTTPService{Endpoint: uri.String()}, nil
	}
	return nil, nil, ErrExplain{
		fmt.Errorf("unsupported url scheme: %q", uri.Scheme),
		"Use a ws://, wss://, http:// or https:// URL.",
	}
}

func logProtocolError(code int, message string, data json.RawMessage) {
	logger.Warningf("Protocol error from server: %d: %s %s", code, message, data)
}

func runCall(options Options, out io.Writer) error {
	params, err := parseParams(options.Call.Args.Params)
	if err != nil {
		return err
	}

	ctx, cancel := interruptContext(options.Call.Timeout)
	defer cancel()

	session, httpService, err := connect(ctx, options.Call.URL, options.Call.Transport)
	if err != nil {
		return err
	}
	var service jsonrpc2.Service = httpService
	if session != nil {
		defer session.Close()
		service = session
	}

	method := options.Call.Args.Method
	logger.Debugf("Calling %s with params: %s", method, pretty.Abbrev(string(params)))
	var result json.RawMessage
	if err := service.Call(ctx, &result, method, params); err != nil {
		return err
	}
	if result == nil {
		result = json.RawMessage("null")
	}
	_, err = fmt.Fprintf(out, "%s\n", result)
	return err
}

func runNotify(options Options) error {
	params, err := parseParams(options.Notify.Args.Params)
	if err != nil {
		return err
	}

	ctx, cancel := interruptContext(options.Notify.Timeout)
	defer cancel()

	session, httpService, err := connect(ctx, options.Notify.URL, options.Notify.Transport)
	if err != nil {
		return err
	}

	method := options.Notify.Args.Method
	if session == nil {
		return httpService.Notify(ctx, method, params)
	}
	defer session.Close()
	if err := session.Notify(method, params); err != nil {
		return err
	}
	logger.Infof("Sent %s notification.", method)
	return nil
}
