// Package server is the HTTP boundary of hotserve. Every request is served
// from the snapshot current when it arrives; rebuilds swap snapshots
// underneath without interrupting requests in flight.
package server

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"

	"github.com/conneroisu/hotserve/internal/build"
	"github.com/conneroisu/hotserve/internal/config"
	"github.com/conneroisu/hotserve/internal/errors"
	"github.com/conneroisu/hotserve/internal/logging"
	"github.com/conneroisu/hotserve/internal/snapshot"
)

const (
	// MetricsPath serves Prometheus metrics.
	MetricsPath = "/__hotserve/metrics"

	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// StatusSource exposes the most recent build. *build.Pipeline implements it.
type StatusSource interface {
	LastOutcome() (build.Outcome, bool)
}

// Options configures a Server.
type Options struct {
	Store  *snapshot.Store
	Status StatusSource
	Logger logging.Logger
	// Registry receives the request metrics and is served at MetricsPath.
	// A nil Registry gets a private one.
	Registry *prometheus.Registry
}

// Server dispatches requests against the current snapshot and pushes
// reload notifications to connected pages.
type Server struct {
	store    *snapshot.Store
	status   StatusSource
	logger   logging.Logger
	registry *prometheus.Registry
	metrics  *requestMetrics
	hub      *Hub
	router   chi.Router

	mu     sync.Mutex
	listen *config.ServerConfig
}

// New creates a server reading from opts.Store.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	s := &Server{
		store:    opts.Store,
		status:   opts.Status,
		logger:   logger.WithComponent("server"),
		registry: registry,
		metrics:  newRequestMetrics(registry),
		hub:      NewHub(logger),
	}
	s.router = s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get(HealthPath, s.handleHealth)
	r.Handle(MetricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Handle(LiveReloadPath, s.hub)
	r.Handle("/*", http.HandlerFunc(s.dispatch))

	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the live-reload hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Serve listens on the address and TLS settings of cfg, which stay fixed for
// the life of the call, and serves until ctx is cancelled. It then shuts
// down gracefully and returns nil.
func (s *Server) Serve(ctx context.Context, cfg *config.Config) error {
	ln, err := net.Listen("tcp", cfg.Server.Host)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Server.Host, err)
	}
	return s.ServeListener(ctx, ln, cfg)
}

// ServeListener is Serve on an existing listener. ln is closed on return.
// A Server serves at most once.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener, cfg *config.Config) error {
	listen := cfg.Server
	s.mu.Lock()
	s.listen = &listen
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          s.errorLog(),
	}

	tlsEnabled := cfg.Server.TLS.Enable
	if tlsEnabled {
		if err := http2.ConfigureServer(srv, &http2.Server{}); err != nil {
			ln.Close()
			return fmt.Errorf("configuring HTTP/2: %w", err)
		}
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		if tlsEnabled {
			errCh <- srv.ServeTLS(ln, cfg.Resolve(cfg.Server.TLS.Cert), cfg.Resolve(cfg.Server.TLS.Key))
			return
		}
		errCh <- srv.Serve(ln)
	}()

	scheme := "http"
	if tlsEnabled {
		scheme = "https"
	}
	s.logger.Info(ctx, "Your server is up and running", "url", scheme+"://"+ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		_ = ln.Close()
		return fmt.Errorf("serving: %w", err)

	case <-ctx.Done():
		stopHub()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		s.logger.Info(ctx, "Server stopped")
		return nil
	}
}

// errorLog sends the http.Server's own errors, such as TLS handshake
// failures, through the structured logger when it exposes a slog handler.
func (s *Server) errorLog() *log.Logger {
	sl, ok := s.logger.(interface{ Slog() *slog.Logger })
	if !ok {
		return nil
	}
	return slog.NewLogLogger(sl.Slog().Handler(), slog.LevelWarn)
}

// Report implements build.Reporter. After a successful rebuild it tells
// connected pages to reload, and warns when the new config asks for a
// listener change that only takes effect after a restart.
func (s *Server) Report(ctx context.Context, out build.Outcome) {
	if !out.Succeeded() || out.Snapshot == nil {
		return
	}
	cfg := out.Snapshot.Config

	s.mu.Lock()
	listen := s.listen
	s.mu.Unlock()

	if listen != nil && *listen != cfg.Server {
		s.logger.Warn(ctx, nil, "Listener settings changed, restart to apply them",
			"serving", listen.Host,
			"configured", cfg.Server.Host,
			"tls", cfg.Server.TLS.Enable)
	}

	if out.Trigger != build.TriggerStartup && cfg.Runtime.EnableHotReload {
		s.hub.Reload(out.Snapshot.Generation, out.ID)
	}
}
