// Package httpapi exposes the query engine and store status over
// HTTP: POST /query, GET /health, GET /status. Grounded on the pack's
// chi-based documentation server, adapted from a multi-feature router
// plus CORS/logging/recovery middleware to this daemon's three routes.
package httpapi

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"contextd/internal/query"
	"contextd/internal/store"
)

// Config configures a Server.
type Config struct {
	Host          string
	Port          int
	AllowAllCORS  bool // dev mode: permit any origin
	ModelName     string
	ModelDim      int
	RequestBudget time.Duration // per-request timeout, default 5s
}

// Server serves the daemon's HTTP query surface.
type Server struct {
	cfg        Config
	engine     *query.Engine
	st         store.Store
	router     chi.Router
	httpServer *http.Server
	ready      atomic.Bool
}

// New builds a Server. The embedder is assumed not ready until
// SetReady(true) is called, matching the startup sequence where the
// ONNX session loads before the HTTP listener starts accepting query
// traffic.
func New(cfg Config, engine *query.Engine, st store.Store) *Server {
	if cfg.RequestBudget <= 0 {
		cfg.RequestBudget = 5 * time.Second
	}
	s := &Server{cfg: cfg, engine: engine, st: st}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestBudget))

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAllCORS {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Post("/query", s.handleQuery)

	return r
}

// Router exposes the chi router with every route and middleware
// attached, so handlers can be served without starting a listener.
func (s *Server) Router() chi.Router { return s.router }

// SetReady flips whether /query accepts traffic. Called false before
// the embedder's ONNX session finishes loading, and true once it has.
func (s *Server) SetReady(ready bool) { s.ready.Store(ready) }

// Start listens and serves until Shutdown is called or the listener
// errors.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.RequestBudget + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.Printf("contextd: http api listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
