// Package server provides HTTP server wiring and lifecycle management.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/MahdiBaghbani/huddle-go/internal/frameworks/service"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/config"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/deps"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/logutil"
)

var ErrMissingSharedDeps = errors.New("shared deps not initialized: call deps.SetDeps() before server.New()")

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	logger     *slog.Logger
	services   map[string]service.Service // keyed by service name

	// mountedServices tracks services for lifecycle management (Close on shutdown).
	// Stored in mount order; closed in reverse order during shutdown.
	mountedServices []service.Service

	// afterShutdown runs once in-flight requests have finished.
	afterShutdown []func()
}

// New creates a new Server with the given configuration.
// Services are passed as a name->service map; nil entries are safe (skipped at mount time).
// All dependencies are obtained from deps.GetDeps() (SharedDeps).
// Returns an error if SharedDeps is not initialized.
func New(cfg *config.Config, logger *slog.Logger, services map[string]service.Service) (*Server, error) {
	logger = logutil.NoopIfNil(logger)

	if deps.GetDeps() == nil {
		return nil, ErrMissingSharedDeps
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		services: services,
	}

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

// Handler returns the root router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens on the configured address and serves until Shutdown.
// It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting server", "addr", ln.Addr().String(), "mode", s.cfg.Mode)
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// AfterShutdown registers fn to run during Shutdown, after in-flight
// requests have completed and mounted services are closed. Hooks run in
// registration order. Not safe to call concurrently with Shutdown.
func (s *Server) AfterShutdown(fn func()) {
	s.afterShutdown = append(s.afterShutdown, fn)
}

// Shutdown gracefully shuts down the server and all mounted services.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	httpErr := s.httpServer.Shutdown(ctx)
	defer func() {
		for _, fn := range s.afterShutdown {
			fn()
		}
	}()

	// Close services in reverse mount order (last mounted = first closed)
	var closeErrs []error
	for i := len(s.mountedServices) - 1; i >= 0; i-- {
		svc := s.mountedServices[i]
		if err := svc.Close(); err != nil {
			s.logger.Warn("service close error", "service", svc.Prefix(), "error", err)
			closeErrs = append(closeErrs, err)
			continue
		}
		s.logger.Debug("service closed", "service", svc.Prefix())
	}

	return errors.Join(append([]error{httpErr}, closeErrs...)...)
}
