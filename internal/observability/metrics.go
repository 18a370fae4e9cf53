package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the engine.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	journalsPosted  *prometheus.CounterVec
	movements       *prometheus.CounterVec
	txRetries       prometheus.Counter
}

// NewMetrics initialises the registry and the base metric set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vitabu_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vitabu_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	journals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vitabu_journals_posted_total",
		Help: "Journals posted by source module.",
	}, []string{"source"})
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vitabu_stock_movements_total",
		Help: "Stock movements applied by direction and reason.",
	}, []string{"direction", "reason"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vitabu_tx_serialization_retries_total",
		Help: "Serializable transactions retried after a conflict.",
	})
	registry.MustRegister(requests, duration, journals, movements, retries)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		journalsPosted:  journals,
		movements:       movements,
		txRetries:       retries,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// JournalPosted counts a posted journal by source module.
func (m *Metrics) JournalPosted(source string) {
	if m == nil {
		return
	}
	m.journalsPosted.WithLabelValues(source).Inc()
}

// MovementApplied counts an applied stock movement.
func (m *Metrics) MovementApplied(direction, reason string) {
	if m == nil {
		return
	}
	m.movements.WithLabelValues(direction, reason).Inc()
}

// TxRetry counts one serializable transaction retry.
func (m *Metrics) TxRetry() {
	if m == nil {
		return
	}
	m.txRetries.Inc()
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
