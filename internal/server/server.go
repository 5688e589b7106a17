// Package server provides the JSON HTTP API for formula evaluation, manifest
// standardization and template management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/manifestkit/internal/metrics"
	"github.com/leapstack-labs/manifestkit/internal/state"
	"golang.org/x/sync/errgroup"
)

// Config holds configuration for the API server.
type Config struct {
	Store             state.Store
	Logger            *slog.Logger
	Metrics           *metrics.Registry
	Addr              string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	MaxBodyBytes      int64
	Workers           int
	PreviewRows       int
	// TemplatesDir, when set, is watched for template files that are
	// imported into the store as they change.
	TemplatesDir string
}

// Server is the API server.
type Server struct {
	store        state.Store
	logger       *slog.Logger
	metrics      *metrics.Registry
	addr         string
	readTimeout  time.Duration
	stopTimeout  time.Duration
	maxBody      int64
	workers      int
	previewRows  int
	templatesDir string
}

// New creates a server. Zero values in cfg fall back to defaults.
func New(cfg Config) *Server {
	s := &Server{
		store:        cfg.Store,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		addr:         cfg.Addr,
		readTimeout:  cfg.ReadHeaderTimeout,
		stopTimeout:  cfg.ShutdownTimeout,
		maxBody:      cfg.MaxBodyBytes,
		workers:      cfg.Workers,
		previewRows:  cfg.PreviewRows,
		templatesDir: cfg.TemplatesDir,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewRegistry()
	}
	if s.readTimeout <= 0 {
		s.readTimeout = 10 * time.Second
	}
	if s.stopTimeout <= 0 {
		s.stopTimeout = 5 * time.Second
	}
	if s.maxBody <= 0 {
		s.maxBody = 32 << 20
	}
	if s.workers < 1 {
		s.workers = 1
	}
	return s
}

// Handler returns the API routes with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.requestLogger,
		middleware.Recoverer,
	)
	s.routes(r)
	return r
}

// Serve starts the server and blocks until ctx is cancelled or the server
// fails.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting API server", slog.String("addr", ln.Addr().String()))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: s.readTimeout,
	}

	if s.templatesDir != "" {
		eg.Go(func() error {
			return s.watchTemplates(egctx, s.templatesDir)
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
		defer cancel()

		s.logger.Debug("shutting down API server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
