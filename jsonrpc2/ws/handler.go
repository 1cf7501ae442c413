package ws

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/anthillplatform/onlinelib/jsonrpc2"
)

// Pending call limits for remotes created by Handler.
const (
	DefaultPendingLimit   = 50
	DefaultPendingDiscard = 10
)

var _ http.Handler = &Handler{}

// Handler upgrades each request to a websocket and serves a Remote on it
// until the connection ends. All remotes share Server.
type Handler struct {
	Upgrader Upgrader
	Server   *jsonrpc2.Server

	// Options are applied to every Remote after the defaults.
	Options []jsonrpc2.Option

	// Fallback serves requests that are not websocket upgrades (optional).
	Fallback http.Handler

	// OnConnect is called with each Remote before it starts serving
	// (optional).
	OnConnect func(r *http.Request, remote *jsonrpc2.Remote)

	// OnProtocolError receives the protocol errors of every connection. By
	// default they are logged.
	OnProtocolError func(r *http.Request, code int, message string, data json.RawMessage)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Fallback != nil && !isUpgrade(r) {
		h.Fallback.ServeHTTP(w, r)
		return
	}

	conn, err := h.Upgrader.Upgrade(r, w, nil)
	if err != nil {
		logger.Warningf("websocket upgrade error from %s: %s", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	sink := func(code int, message string, data json.RawMessage) {
		logger.Warningf("protocol error from %s: %d: %s", r.RemoteAddr, code, message)
	}
	if h.OnProtocolError != nil {
		sink = func(code int, message string, data json.RawMessage) {
			h.OnProtocolError(r, code, message, data)
		}
	}

	opts := []jsonrpc2.Option{
		jsonrpc2.WithServer(h.Server),
		jsonrpc2.WithAsyncHandlers(),
		jsonrpc2.WithPendingLimit(DefaultPendingLimit, DefaultPendingDiscard),
	}
	remote := jsonrpc2.NewRemote(conn, sink, append(opts, h.Options...)...)
	if h.OnConnect != nil {
		h.OnConnect(r, remote)
	}

	logger.Debugf("serving websocket from %s", r.RemoteAddr)
	if err := remote.Serve(conn); err != nil && err != io.EOF {
		logger.Warningf("websocket from %s ended: %s", r.RemoteAddr, err)
	}
}

func isUpgrade(r *http.Request) bool {
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return false
	}
	for _, v := range r.Header.Values("Connection") {
		for _, token := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(token), "upgrade") {
				return true
			}
		}
	}
	return false
}
