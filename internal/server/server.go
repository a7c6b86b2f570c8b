package server

import (
	"context"
	"fmt"
	"net/http"

	"log/slog"

	"github.com/gorilla/mux"

	"github.com/printworks/platform/internal/config"
	"github.com/printworks/platform/internal/metrics"
)

// Server wraps the HTTP server and related dependencies.
type Server struct {
	cfg    config.Config
	logger *slog.Logger
	server *http.Server
	router *mux.Router
}

// New constructs a server with base routes and middleware wiring. API routes
// are attached to Router by the caller.
func New(cfg config.Config, logger *slog.Logger, m *metrics.Metrics) *Server {
	router := mux.NewRouter()
	router.Use(m.Instrument)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	limiter := newRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           requestID(loggingMiddleware(logger, limiter.Handler(router))),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	return &Server{
		cfg:    cfg,
		logger: logger,
		server: srv,
		router: router,
	}
}

// Run starts the HTTP server and blocks until it exits or errors.
func (s *Server) Run() error {
	s.logger.Info("api server listening", "addr", s.server.Addr, "env", s.cfg.Env)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server within the provided context timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// Handler returns the fully wrapped handler, as served by Run.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Router exposes the underlying router for route registration by other packages.
func (s *Server) Router() *mux.Router {
	return s.router
}
