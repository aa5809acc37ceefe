package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/envlink/pkg/httputil"
	"github.com/platinummonkey/envlink/pkg/observability"
	"github.com/platinummonkey/envlink/pkg/resolver/cache"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Server represents our API server
type Server struct {
	storage      Storage
	router       *mux.Router
	resolveCache *cache.ResultCache
	metrics      *observability.Metrics
	logger       *observability.Logger
	handler      http.Handler
}

// Option configures optional server collaborators.
type Option func(*Server)

// WithMetrics wires prometheus HTTP metrics into the middleware chain and
// resolution counters into the handlers.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Server) { s.metrics = metrics }
}

// WithLogger sets the request logger.
func WithLogger(logger *observability.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithResolveCache sets the resolution result cache. Without one, every
// resolve request recomputes from a fresh snapshot.
func WithResolveCache(c *cache.ResultCache) Option {
	return func(s *Server) { s.resolveCache = c }
}

// NewServer creates a new API server
func NewServer(storage Storage, opts ...Option) *Server {
	s := &Server{
		storage: storage,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()

	for _, opt := range opts {
		opt(s)
	}

	if s.resolveCache == nil {
		s.resolveCache = cache.New(nil)
	}

	// Middleware order: request ID first so logging and recovery can tag
	// their output; metrics and tracing wrap the whole chain.
	s.handler = httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware,
		httputil.LoggingMiddleware,
		httputil.CORSMiddleware([]string{"*"}),
	)(s.router)

	if s.metrics != nil {
		s.handler = observability.HTTPMetricsMiddleware(s.metrics)(s.handler)
	}

	return s
}

// EnableTracing wraps the handler chain in otelhttp instrumentation. Call
// after NewServer, before serving.
func (s *Server) EnableTracing(serviceName string) {
	s.handler = otelhttp.NewHandler(s.handler, serviceName)
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	// Project routes
	s.router.HandleFunc("/api/v1/projects", s.createProject).Methods("POST")
	s.router.HandleFunc("/api/v1/projects", s.listProjects).Methods("GET")
	s.router.HandleFunc("/api/v1/projects/{name}", s.getProject).Methods("GET")
	s.router.HandleFunc("/api/v1/projects/{name}", s.updateProject).Methods("PUT")
	s.router.HandleFunc("/api/v1/projects/{name}", s.deleteProject).Methods("DELETE")

	// Variable routes
	s.router.HandleFunc("/api/v1/projects/{project}/variables", s.createEnvVar).Methods("POST")
	s.router.HandleFunc("/api/v1/projects/{project}/variables", s.listEnvVars).Methods("GET")
	s.router.HandleFunc("/api/v1/projects/{project}/variables/{name}", s.getEnvVar).Methods("GET")
	s.router.HandleFunc("/api/v1/projects/{project}/variables/{name}", s.updateEnvVar).Methods("PUT")
	s.router.HandleFunc("/api/v1/projects/{project}/variables/{name}", s.deleteEnvVar).Methods("DELETE")
	s.router.HandleFunc("/api/v1/projects/{project}/variables/{name}/linkable", s.listLinkable).Methods("GET")

	// Resolution routes
	s.router.HandleFunc("/api/v1/resolve", s.resolve).Methods("POST")
	s.router.HandleFunc("/api/v1/projects/{project}/resolve", s.resolveProject).Methods("GET")

	// Impact routes
	s.router.HandleFunc("/api/v1/projects/{project}/variables/{name}/impact", s.getImpact).Methods("GET")
	s.router.HandleFunc("/api/v1/projects/{project}/variables/{name}/affected-exports", s.getAffectedExports).Methods("GET")

	// Export routes
	s.router.HandleFunc("/api/v1/projects/{project}/exports", s.createExport).Methods("POST")
	s.router.HandleFunc("/api/v1/projects/{project}/exports", s.listExports).Methods("GET")
	s.router.HandleFunc("/api/v1/exports/check-updates", s.checkExportUpdates).Methods("GET")
	s.router.HandleFunc("/api/v1/exports/{id}", s.getExport).Methods("GET")
	s.router.HandleFunc("/api/v1/exports/{id}", s.deleteExport).Methods("DELETE")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.router)
}

func (s *Server) logError(msg string, err error) {
	if s.logger != nil {
		s.logger.WithError(err).Error(msg)
	}
}
