package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/me/schedsim/internal/config"
	"github.com/me/schedsim/internal/logging"
	"github.com/me/schedsim/internal/metrics"
	"github.com/me/schedsim/internal/store"
	"github.com/me/schedsim/internal/ui"
)

// Server is the schedsim REST API server. It stores run requests and
// executes each simulation on its own goroutine.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	store     store.Store

	registry *prometheus.Registry
	metrics  *metrics.Collectors

	sseInterval time.Duration

	// Background runs.
	ctx    context.Context
	cancel context.CancelFunc
	slots  chan struct{}
	runs   sync.WaitGroup
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithRegistry sets the Prometheus registry served at /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// WithSSEInterval sets how often run streams poll the store.
func WithSSEInterval(d time.Duration) Option {
	return func(s *Server) {
		s.sseInterval = d
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, st store.Store, logger *slog.Logger, opts ...Option) *Server {
	logger = logging.OrDiscard(logger)
	s := &Server{
		router:      chi.NewRouter(),
		logger:      logger.With("component", "server"),
		config:      cfg,
		startTime:   time.Now(),
		store:       st,
		sseInterval: time.Second,
		slots:       make(chan struct{}, max(cfg.MaxConcurrentRuns, 1)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = metrics.NewRegistry()
	}
	s.metrics = metrics.New(s.registry)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Shutdown cancels running simulations and waits for them to record their
// outcome, or for ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Handle("/metrics", metrics.Handler(s.registry))

	// HTML dashboard
	dash := ui.New(s.store, s.logger, ui.Config{Base: "/ui"})
	r.Route("/ui", dash.RegisterRoutes)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusFound)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Discovery
		r.Get("/", s.handleDiscovery)

		// Health
		r.Get("/health", s.handleHealth)

		// Registered policies and components
		r.Get("/policies", s.handlePolicies)

		// Runs
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Post("/", s.handleCreateRun)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRun)
				r.Get("/jobs", s.handleListRunJobs)
			})
		})

		// SSE endpoints for run progress
		r.Route("/sse", func(r chi.Router) {
			r.Get("/runs/{id}", s.handleSSERun)
		})
	})
}
