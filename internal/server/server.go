// Package server provides the HTTP API editors use to run snippets.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/replsnip/internal/cli/config"
	"github.com/leapstack-labs/replsnip/internal/repl"
	"github.com/leapstack-labs/replsnip/internal/snippet"
	"golang.org/x/sync/errgroup"
)

// DefaultShutdownTimeout bounds graceful shutdown when none is configured.
const DefaultShutdownTimeout = 5 * time.Second

// Config holds configuration for the API server.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration

	Targets *repl.Targets
	// Journal is optional.
	Journal repl.Journal
	Scopes  snippet.Scopes
	Session repl.SessionState

	// WatchFiles are watched when Reload is set; Reload supplies the new scopes.
	WatchFiles []string
	Reload     func() (snippet.Scopes, error)

	Logger *slog.Logger
}

// Server is the snippet API server.
type Server struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.RWMutex
	scopes snippet.Scopes
}

// NewServer creates a new API server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	return &Server{cfg: cfg, logger: logger, scopes: cfg.Scopes}
}

// Scopes returns the snippet scopes currently served.
func (s *Server) Scopes() snippet.Scopes {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scopes
}

// SetScopes replaces the snippet scopes served.
func (s *Server) SetScopes(scopes snippet.Scopes) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopes = scopes
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
	)
	setupRoutes(r, s)
	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until the context is cancelled.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting API server", "addr", "http://"+ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start config watcher if reloading is possible
	if s.cfg.Reload != nil && len(s.cfg.WatchFiles) > 0 {
		eg.Go(func() error {
			return config.Watch(egctx, s.cfg.WatchFiles, s.reload, s.logger)
		})
	}

	// Start HTTP server
	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) reload() {
	scopes, err := s.cfg.Reload()
	if err != nil {
		s.logger.Error("config reload failed", "error", err)
		return
	}
	s.SetScopes(scopes)
	s.logger.Info("configuration reloaded")
}
