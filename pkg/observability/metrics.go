package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. The Observe/Add helpers are safe on
// a nil *Metrics so callers can run without instrumentation.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Check run metrics
	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	RunsActive       prometheus.Gauge
	FilesTotal       *prometheus.CounterVec
	FileDuration     *prometheus.HistogramVec
	InstancesChecked prometheus.Counter
	IssuesTotal      *prometheus.CounterVec

	// Store metrics
	StoreWriteDuration prometheus.Histogram
	StoreRowsFailed    prometheus.Counter

	// Database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBWaitCount        prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "somcheck_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "somcheck_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "somcheck_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "somcheck_runs_total",
				Help: "Check runs by final state",
			},
			[]string{"status"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "somcheck_run_duration_seconds",
				Help:    "Duration of whole check runs",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
			},
		),
		RunsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "somcheck_runs_active",
				Help: "1 while a check run is in progress",
			},
		),
		FilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "somcheck_files_total",
				Help: "Model files processed per phase and outcome",
			},
			[]string{"phase", "status"},
		),
		FileDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "somcheck_file_duration_seconds",
				Help:    "Time spent on one model file per phase",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
			},
			[]string{"phase"},
		),
		InstancesChecked: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "somcheck_instances_checked_total",
				Help: "Model instances run through the validator",
			},
		),
		IssuesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "somcheck_issues_total",
				Help: "Issues recorded by type",
			},
			[]string{"issue_type"},
		),

		StoreWriteDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "somcheck_store_write_duration_seconds",
				Help:    "Duration of one file's store transaction",
				Buckets: prometheus.DefBuckets,
			},
		),
		StoreRowsFailed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "somcheck_store_rows_failed_total",
				Help: "Entity and issue rows skipped after an insert error",
			},
		),

		DBConnectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "somcheck_db_connections_open",
				Help: "Open database connections",
			},
		),
		DBConnectionsInUse: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "somcheck_db_connections_in_use",
				Help: "Database connections in use",
			},
		),
		DBWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "somcheck_db_wait_count",
				Help: "Total number of waits for a database connection",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.RunsTotal,
		m.RunDuration,
		m.RunsActive,
		m.FilesTotal,
		m.FileDuration,
		m.InstancesChecked,
		m.IssuesTotal,
		m.StoreWriteDuration,
		m.StoreRowsFailed,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBWaitCount,
	)

	return m
}

// RunStarted marks a run as active.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.RunsActive.Set(1)
}

// RunFinished records the final state of a run.
func (m *Metrics) RunFinished(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsActive.Set(0)
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(d.Seconds())
}

// ObserveFile records one file passing a phase.
func (m *Metrics) ObserveFile(phase, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.FilesTotal.WithLabelValues(phase, status).Inc()
	m.FileDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// AddInstances counts checked instances.
func (m *Metrics) AddInstances(n int) {
	if m == nil {
		return
	}
	m.InstancesChecked.Add(float64(n))
}

// AddIssue counts one issue of the named type.
func (m *Metrics) AddIssue(issueType string) {
	if m == nil {
		return
	}
	m.IssuesTotal.WithLabelValues(issueType).Inc()
}

// ObserveStoreWrite records a store transaction and its skipped rows.
func (m *Metrics) ObserveStoreWrite(d time.Duration, failedRows int) {
	if m == nil {
		return
	}
	m.StoreWriteDuration.Observe(d.Seconds())
	m.StoreRowsFailed.Add(float64(failedRows))
}

// ObserveDBStats copies connection pool statistics into the gauges.
func (m *Metrics) ObserveDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
	m.DBWaitCount.Set(float64(stats.WaitCount))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests. pathLabel maps a request
// to a low-cardinality label such as the route template; nil uses the URL
// path.
func HTTPMetricsMiddleware(metrics *Metrics, pathLabel func(*http.Request) string) func(http.Handler) http.Handler {
	if pathLabel == nil {
		pathLabel = func(r *http.Request) string { return r.URL.Path }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			path := pathLabel(r)
			status := strconv.Itoa(rw.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, path).Observe(float64(rw.bytesWritten))
		})
	}
}

// MetricsHandler serves the registry in the Prometheus text format.
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
