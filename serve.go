package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/sync/errgroup"

	"github.com/anthillplatform/onlinelib/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

func listen(options Options) (net.Listener, error) {
	if options.Serve.TLSHost != "" {
		if !strings.HasSuffix(options.Serve.Bind, ":443") {
			logger.Warningf("Ignoring --bind value (%q) because it's not 443 and --tlshost is set.", options.Serve.Bind)
		}
		logger.Infof("Starting server (version %s), acquiring ACME certificate and listening on: https://%s", Version, options.Serve.TLSHost)
		return autocert.NewListener(options.Serve.TLSHost), nil
	}
	l, err := net.Listen("tcp", options.Serve.Bind)
	if err != nil {
		if strings.HasSuffix(err.Error(), "bind: permission denied") {
			err = ErrExplain{err, "Binding on low-numbered ports requires the CAP_NET_BIND_SERVICE capability. Try a --bind port above 1024."}
		}
		return nil, err
	}
	logger.Infof("Starting server (version %s), listening on: %s", Version, l.Addr())
	return l, nil
}

func runServe(options Options) error {
	collector, err := metrics.New("onlinelib", prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	handler, err := newServer(options, collector)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler)

	l, err := listen(options)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, l, mux)
}

// serve runs the HTTP server on l until it fails or ctx is done.
func serve(ctx context.Context, l net.Listener, handler http.Handler) error {
	httpServer := &http.Server{Handler: handler}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.Serve(l); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
