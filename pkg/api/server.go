package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/somcheck/pkg/checker"
	"github.com/platinummonkey/somcheck/pkg/httputil"
	"github.com/platinummonkey/somcheck/pkg/observability"
	"github.com/platinummonkey/somcheck/pkg/progress"
	"github.com/platinummonkey/somcheck/pkg/storage"
)

// maxBodyBytes bounds POST bodies.
const maxBodyBytes = 1 << 20

// Runner controls check runs. *checker.Scheduler implements it.
type Runner interface {
	Start(ctx context.Context, req checker.Request) (string, error)
	Abort() bool
	Current() (*checker.Report, bool)
	Progress() (progress.Snapshot, map[progress.Phase]progress.Snapshot)
}

// Server serves the issue query API and run control.
type Server struct {
	router    *mux.Router
	store     storage.IssueReader
	runner    Runner
	health    *observability.HealthChecker
	metrics   *observability.Metrics
	registry  *prometheus.Registry
	logger    logrus.FieldLogger
	modelRoot string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics instruments the routes and serves registry on /metrics.
func WithMetrics(metrics *observability.Metrics, registry *prometheus.Registry) Option {
	return func(s *Server) {
		s.metrics = metrics
		s.registry = registry
	}
}

// WithHealth serves /healthz and /readyz.
func WithHealth(h *observability.HealthChecker) Option {
	return func(s *Server) { s.health = h }
}

// WithModelRoot restricts POST /api/v1/checks to files below dir and
// resolves relative paths against it.
func WithModelRoot(dir string) Option {
	return func(s *Server) { s.modelRoot = dir }
}

// NewServer creates the API. runner may be nil for a read-only server.
func NewServer(store storage.IssueReader, runner Runner, opts ...Option) *Server {
	s := &Server{
		router: mux.NewRouter(),
		store:  store,
		runner: runner,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/issues", s.listIssues).Methods(http.MethodGet)
	v1.HandleFunc("/issues/counts", s.issueCounts).Methods(http.MethodGet)
	v1.HandleFunc("/issue-types", s.listIssueTypes).Methods(http.MethodGet)
	v1.HandleFunc("/entities", s.listEntities).Methods(http.MethodGet)

	if s.runner != nil {
		v1.HandleFunc("/checks", s.startCheck).Methods(http.MethodPost)
		v1.HandleFunc("/checks/current", s.currentCheck).Methods(http.MethodGet)
		v1.HandleFunc("/checks/current/abort", s.abortCheck).Methods(http.MethodPost)
	}

	if s.health != nil {
		s.router.HandleFunc("/healthz", s.health.Liveness).Methods(http.MethodGet)
		s.router.HandleFunc("/readyz", s.health.Readiness).Methods(http.MethodGet)
	}
	if s.registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.registry)).Methods(http.MethodGet)
	}
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics, routeTemplate))
	}
}

// routeTemplate labels metrics by route, never by raw path.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// Handler returns the router wrapped in the middleware stack.
func (s *Server) Handler() http.Handler {
	chain := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(s.logger),
		httputil.LoggingMiddleware(s.logger),
		httputil.ContentTypeMiddleware,
		httputil.MaxBytesMiddleware(maxBodyBytes),
	)
	return otelhttp.NewHandler(chain(s.router), "somcheck-api")
}

// ServeHTTP implements http.Handler without the middleware stack
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
