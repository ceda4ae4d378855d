// Package httpapi exposes the orchestrator's HTTP surface: the ask
// endpoints, the trace inspector, and Asset CRUD, each wired onto a
// gorilla/mux Router with the shared middleware stack (spec §6).
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ops-intel/orchestrator/infrastructure/metrics"
	"github.com/ops-intel/orchestrator/infrastructure/middleware"
	"github.com/ops-intel/orchestrator/internal/app"
)

// Server owns the router and the Services it dispatches into.
type Server struct {
	services *app.Services
	metrics  *metrics.Metrics
	router   *mux.Router
}

// NewServer builds a Server and registers every route.
func NewServer(services *app.Services, m *metrics.Metrics, cors middleware.CORSConfig) *Server {
	s := &Server{services: services, metrics: m, router: mux.NewRouter()}
	s.router.Use(middleware.RecoveryMiddleware(services.Logger))
	s.router.Use(middleware.LoggingMiddleware(services.Logger))
	s.router.Use(middleware.TenantMiddleware())
	s.router.Use(middleware.MetricsMiddleware(m, "orchestrator"))
	s.router.Use(middleware.NewCORSMiddleware(cors).Handler)
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/ops/ask", s.handleAsk).Methods(http.MethodPost)
	s.router.HandleFunc("/ops/ask/stream", s.handleAskStream).Methods(http.MethodPost)

	s.router.HandleFunc("/inspector/traces", s.handleSearchTraces).Methods(http.MethodGet)
	s.router.HandleFunc("/inspector/traces/{trace_id}", s.handleGetTrace).Methods(http.MethodGet)

	s.router.HandleFunc("/assets/{type}", s.handleListAssets).Methods(http.MethodGet)
	s.router.HandleFunc("/assets/{type}", s.handleCreateDraft).Methods(http.MethodPost)
	s.router.HandleFunc("/assets/{type}/{scope}/{name}/drafts/{asset_id}", s.handleUpdateDraft).Methods(http.MethodPatch)
	s.router.HandleFunc("/assets/{type}/{scope}/{name}/drafts/{asset_id}/publish", s.handlePublish).Methods(http.MethodPost)
	s.router.HandleFunc("/assets/{type}/{scope}/{name}/rollback/{asset_id}", s.handleRollback).Methods(http.MethodPost)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
}

// Router returns the wired http.Handler, for cmd/orchestrator to serve.
func (s *Server) Router() http.Handler {
	return s.router
}
