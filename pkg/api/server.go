package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rmax-ai/spawnlord/pkg/engine"
	"github.com/rmax-ai/spawnlord/pkg/store"
)

// DriverInterface is the part of the engine driver the API needs.
type DriverInterface interface {
	World() string
	Snapshots() []engine.Snapshot
	Snapshot(id string) (engine.Snapshot, error)
	SetSpawning(ctx context.Context, id string, enabled bool) error
	Toggle(ctx context.Context, id string) (bool, error)
}

type StoreInterface interface {
	QueryEvents(ctx context.Context, filter store.EventFilter) ([]*store.Event, error)
}

type ElectionManagerInterface interface {
	IsLeader() bool
	GetLeader(ctx context.Context) (string, bool, error)
	Epoch() int64
}

// Server encapsulates the HTTP API server
type Server struct {
	driver   DriverInterface
	store    StoreInterface
	hub      *Hub
	election ElectionManagerInterface
	logger   *slog.Logger

	router chi.Router
	server *http.Server
}

// NewServer wires the router. Store and hub may be nil; their endpoints then
// answer 503.
func NewServer(driver DriverInterface, st StoreInterface, hub *Hub, addr string) *Server {
	if addr == "" {
		addr = ":8090"
	}
	s := &Server{
		driver: driver,
		store:  st,
		hub:    hub,
		logger: slog.Default(),
	}
	s.server = &http.Server{
		Addr:        addr,
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 15 * time.Second,
	}
	s.buildRouter()
	return s
}

// SetLogger replaces the logger and rebuilds the middleware chain.
func (s *Server) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
		s.buildRouter()
	}
}

// SetElectionManager enables follower redirects for writes.
func (s *Server) SetElectionManager(em ElectionManagerInterface) {
	s.election = em
}

func (s *Server) buildRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(func(next http.Handler) http.Handler { return withLogging(s.logger, next) })
	r.Use(func(next http.Handler) http.Handler { return withRecovery(s.logger, next) })
	r.Use(withSecureHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Trace-ID"},
		ExposedHeaders: []string{"X-Trace-ID"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/health", s.handleHealth)
		v1.Get("/schedulers", s.handleListSchedulers)
		v1.Get("/schedulers/{id}", s.handleGetScheduler)
		v1.Post("/schedulers/{id}/enable", s.withLeaderCheck(s.handleSetSpawning(true)))
		v1.Post("/schedulers/{id}/disable", s.withLeaderCheck(s.handleSetSpawning(false)))
		v1.Post("/schedulers/{id}/toggle", s.withLeaderCheck(s.handleToggle))
		v1.Get("/events", s.handleEvents)
		v1.Get("/reports", s.handleReports)
		v1.Get("/stream", s.handleStream)
	})

	s.router = r
	s.server.Handler = r
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server (blocking)
func (s *Server) Start() error {
	s.logger.Info("server_starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("server_stopping")
	return s.server.Shutdown(ctx)
}
