// Package server exposes a status endpoint for long-running commands:
// health probes backed by a health.ProbeManager and, optionally, Prometheus
// metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/nauru-yvy/nauru/internal/health"
	"github.com/nauru-yvy/nauru/internal/log"
)

// Config holds server configuration. Zero durations select defaults.
type Config struct {
	// Address is the listen address, e.g. "127.0.0.1:9464".
	Address string

	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler

	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration

	Logger *log.Logger
}

// Server serves /health/live, /health/ready, /health/startup, /healthz and
// optionally /metrics.
type Server struct {
	httpServer      *http.Server
	probeManager    *health.ProbeManager
	logger          *log.Logger
	shutdownTimeout time.Duration
	inShutdown      atomic.Bool
	addr            atomic.Value
}

// New creates a Server.
func New(pm *health.ProbeManager, cfg Config) *Server {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.DefaultLogger()
	}

	s := &Server{
		probeManager:    pm,
		logger:          cfg.Logger.With("component", "status-server"),
		shutdownTimeout: cfg.ShutdownTimeout,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", s.probe(pm.CheckLiveness, http.StatusOK))
	mux.HandleFunc("GET /health/ready", s.probe(pm.CheckReadiness, http.StatusServiceUnavailable))
	mux.HandleFunc("GET /health/startup", s.probe(pm.CheckStartup, http.StatusServiceUnavailable))
	mux.HandleFunc("GET /healthz", s.probe(pm.CheckReadiness, http.StatusServiceUnavailable))
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the bound address once Run is listening.
func (s *Server) Addr() string {
	if v, ok := s.addr.Load().(string); ok {
		return v
	}
	return s.httpServer.Addr
}

// Run listens and serves until ctx is done, then shuts down gracefully.
// ready, when non-nil, is closed once the listener is bound.
func (s *Server) Run(ctx context.Context, ready chan<- struct{}) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	s.addr.Store(ln.Addr().String())
	s.probeManager.MarkInitialized()
	s.logger.Info("status endpoint listening", "addr", ln.Addr().String())
	if ready != nil {
		close(ready)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown fails readiness, stops accepting requests and drains open ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)
	s.probeManager.MarkShutdown()
	s.httpServer.SetKeepAlivesEnabled(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// IsShuttingDown reports whether Shutdown has been called.
func (s *Server) IsShuttingDown() bool {
	return s.inShutdown.Load()
}

func (s *Server) probe(check func(context.Context) *health.ProbeResult, unhealthyStatus int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if result.Status == health.StatusUnhealthy {
			w.WriteHeader(unhealthyStatus)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		if err := json.NewEncoder(w).Encode(result); err != nil {
			s.logger.Warn("failed to encode probe response", "error", err)
		}
	}
}
