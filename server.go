package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gobwas/ws"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/anthillplatform/onlinelib/jsonrpc2"
	jsonws "github.com/anthillplatform/onlinelib/jsonrpc2/ws"
	"github.com/anthillplatform/onlinelib/jsonrpc2/ws/gobwas"
	"github.com/anthillplatform/onlinelib/jsonrpc2/ws/gorilla"
)

// Pong is the result of the ping method.
type Pong struct {
	Pong bool `json:"pong"`
}

// DemoService contains the methods served by the serve command.
type DemoService struct {
	server *jsonrpc2.Server
}

// Ping answers with a pong.
func (s *DemoService) Ping() Pong {
	return Pong{Pong: true}
}

// Methods lists the methods of the server.
func (s *DemoService) Methods() []string {
	return s.server.Methods()
}

func echo(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return params, nil
}

type server struct {
	jsonrpc2.HTTPServer
	wsHandler   jsonws.Handler
	cors        *cors.Cors
	allowOrigin []string
}

func newServer(options Options, observer jsonrpc2.Observer) (*server, error) {
	s := &server{
		allowOrigin: options.Serve.AllowOrigin,
	}
	s.HTTPServer.MaxContentLength = 1 << 20

	s.Use(jsonrpc2.Logging(logger))
	if options.Serve.Rate > 0 {
		s.Use(jsonrpc2.RateLimit(options.Serve.Rate, options.Serve.Burst))
	}
	if options.Serve.HandlerTimeout > 0 {
		s.Use(jsonrpc2.Timeout(options.Serve.HandlerTimeout))
	}

	if err := s.Register("", &DemoService{server: &s.HTTPServer.Server}); err != nil {
		return nil, err
	}
	s.HandleFunc("echo", echo)

	var upgrader jsonws.Upgrader
	switch options.Serve.Transport {
	case "", "gorilla":
		upgrader = &gorilla.Upgrader{
			Upgrader: websocket.Upgrader{
				// Origins are checked before upgrading
				CheckOrigin: func(r *http.Request) bool { return true },
			},
		}
	case "gobwas":
		upgrader = &gobwas.Upgrader{
			Upgrader: ws.HTTPUpgrader{},
		}
	default:
		return nil, fmt.Errorf("unknown websocket transport: %s", options.Serve.Transport)
	}

	s.wsHandler = jsonws.Handler{
		Upgrader: upgrader,
		Server:   &s.HTTPServer.Server,
		Options:  []jsonrpc2.Option{jsonrpc2.WithObserver(observer)},
		OnConnect: func(r *http.Request, remote *jsonrpc2.Remote) {
			logger.Infof("Websocket connected: %s", r.RemoteAddr)
		},
		OnProtocolError: func(r *http.Request, code int, message string, data json.RawMessage) {
			logger.Warningf("Protocol error from %s: %d: %s", r.RemoteAddr, code, message)
		},
	}

	if len(s.allowOrigin) > 0 {
		s.cors = cors.New(cors.Options{
			AllowedOrigins: s.allowOrigin,
			AllowedMethods: []string{http.MethodPost},
			AllowedHeaders: []string{"Content-Type"},
		})
	}
	return s, nil
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost, http.MethodOptions:
		// Assume RPC over HTTP
		if s.cors == nil {
			if r.Method == http.MethodOptions {
				http.Error(w, "cross-origin requests are not allowed", http.StatusMethodNotAllowed)
				return
			}
			s.HTTPServer.ServeHTTP(w, r)
			return
		}
		s.cors.ServeHTTP(w, r, s.HTTPServer.ServeHTTP)
	case http.MethodGet:
		if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			http.Error(w, "incorrect api handshake, expected a websocket upgrade", http.StatusBadRequest)
			return
		}
		if !s.checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}
		// Assume WebSocket upgrade request
		s.wsHandler.ServeHTTP(w, r)
	default:
		http.Error(w, "unsupported method", http.StatusMethodNotAllowed)
	}
}

// checkOrigin allows requests without an Origin header, same-origin requests
// and the origins given with --allow-origin.
func (s *server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.allowOrigin {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
