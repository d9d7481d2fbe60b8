package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/duckmesh/askhr/internal/modelclient"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askhr_http_requests_total",
			Help: "Total number of HTTP requests by method, route pattern and status.",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askhr_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path", "status"},
	)
	httpRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "askhr_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		},
	)

	routeDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askhr_route_decisions_total",
			Help: "Total number of routing decisions by route and strategy.",
		},
		[]string{"route", "strategy"},
	)
	modelCallLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askhr_model_call_latency_ms",
			Help:    "Model call latency in milliseconds by purpose, provider and model.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000},
		},
		[]string{"purpose", "provider", "model"},
	)
	modelErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askhr_model_errors_total",
			Help: "Total number of failed model call attempts.",
		},
		[]string{"purpose", "provider"},
	)
	modelFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askhr_model_fallbacks_total",
			Help: "Total number of fallbacks from one model candidate to the next.",
		},
		[]string{"from", "to", "reason"},
	)
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askhr_queries_total",
			Help: "Total number of executed structured queries.",
		},
		[]string{"entity", "operation", "success", "error_code"},
	)
	queryDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askhr_query_duration_ms",
			Help:    "Structured query execution latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 30000},
		},
		[]string{"entity", "operation"},
	)
	chatRepliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askhr_chat_replies_total",
			Help: "Total number of chat replies by route and outcome.",
		},
		[]string{"route", "outcome"},
	)
	authFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askhr_auth_failures_total",
			Help: "Total number of rejected API credentials by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		httpRequestsInFlight,
		routeDecisionsTotal,
		modelCallLatencyMs,
		modelErrorsTotal,
		modelFallbacksTotal,
		queriesTotal,
		queryDurationMs,
		chatRepliesTotal,
		authFailuresTotal,
	)
}

func ObserveRoute(route, strategy string) {
	routeDecisionsTotal.WithLabelValues(route, strategy).Inc()
}

func ObserveQuery(entity, operation string, success bool, errorCode string, elapsed time.Duration) {
	queriesTotal.WithLabelValues(entity, operation, strconv.FormatBool(success), errorCode).Inc()
	queryDurationMs.WithLabelValues(entity, operation).Observe(float64(elapsed.Milliseconds()))
}

func ObserveChatReply(route, outcome string) {
	chatRepliesTotal.WithLabelValues(route, outcome).Inc()
}

func ObserveAuthFailure(reason string) {
	authFailuresTotal.WithLabelValues(reason).Inc()
}

// ModelMetrics records model client events in the process registry.
type ModelMetrics struct{}

var _ modelclient.Metrics = ModelMetrics{}

func (ModelMetrics) ObserveModelLatency(purpose modelclient.Purpose, provider, model string, elapsed time.Duration) {
	modelCallLatencyMs.WithLabelValues(string(purpose), provider, model).Observe(float64(elapsed.Milliseconds()))
}

func (ModelMetrics) IncrementModelError(purpose modelclient.Purpose, provider string) {
	modelErrorsTotal.WithLabelValues(string(purpose), provider).Inc()
}

func (ModelMetrics) IncrementFallback(from, to, reason string) {
	modelFallbacksTotal.WithLabelValues(from, to, reason).Inc()
}
