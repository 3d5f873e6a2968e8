// Package metrics provides Prometheus metrics for the courseboard gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager holds all Prometheus metrics for the gateway.
type Manager struct {
	namespace string
	registry  *prometheus.Registry

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Identity and session
	signIns        *prometheus.CounterVec
	tokenRefreshes *prometheus.CounterVec
	authRetries    prometheus.Counter

	// Submission pipeline
	submissions     *prometheus.CounterVec
	uploadDuration  prometheus.Histogram
	scoringDuration prometheus.Histogram

	// Leaderboard poller
	polls               *prometheus.CounterVec
	leaderboardRows     prometheus.Gauge
	leaderboardLastUnix prometheus.Gauge
}

// NewManager creates a Manager with its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "courseboard",
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	factory := promauto.With(m.registry)

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method and status code.",
	}, []string{"endpoint", "method", "status"})

	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"endpoint", "method"})

	m.signIns = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "sign_ins_total",
		Help:      "Sign-in attempts by result (allowed, denied_domain, error).",
	}, []string{"result"})

	m.tokenRefreshes = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "token_refreshes_total",
		Help:      "Session token refreshes by result (ok, error).",
	}, []string{"result"})

	m.authRetries = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "auth_retries_total",
		Help:      "Requests re-issued after a 401 with a refreshed token.",
	})

	m.submissions = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "submissions_total",
		Help:      "Submission attempts by outcome.",
	}, []string{"outcome"})

	m.uploadDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "upload_duration_ms",
		Help:      "Object storage upload latency in milliseconds.",
		Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	})

	m.scoringDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "scoring_duration_ms",
		Help:      "Remote scoring call latency in milliseconds.",
		Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	})

	m.polls = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "leaderboard_polls_total",
		Help:      "Record store poll ticks by result (ok, error).",
	}, []string{"result"})

	m.leaderboardRows = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "leaderboard_rows",
		Help:      "Rows in the last good leaderboard snapshot.",
	})

	m.leaderboardLastUnix = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "leaderboard_last_fetch_unix",
		Help:      "Unix time of the last successful record store fetch.",
	})

	return m
}

// Registry returns the manager's Prometheus registry.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

var defaultManager = NewManager()

// GetRegistry returns the default registry served on /healthz.
func GetRegistry() *prometheus.Registry {
	return defaultManager.Registry()
}

// Package-level helpers against the default manager.

func RecordHTTPRequest(endpoint, method, status string) {
	defaultManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func RecordHTTPRequestDuration(endpoint, method string, ms float64) {
	defaultManager.httpRequestDuration.WithLabelValues(endpoint, method).Observe(ms)
}

func RecordSignIn(result string) {
	defaultManager.signIns.WithLabelValues(result).Inc()
}

func RecordTokenRefresh(result string) {
	defaultManager.tokenRefreshes.WithLabelValues(result).Inc()
}

func RecordAuthRetry() {
	defaultManager.authRetries.Inc()
}

func RecordSubmission(outcome string) {
	defaultManager.submissions.WithLabelValues(outcome).Inc()
}

func RecordUploadDuration(ms float64) {
	defaultManager.uploadDuration.Observe(ms)
}

func RecordScoringDuration(ms float64) {
	defaultManager.scoringDuration.Observe(ms)
}

func RecordPoll(result string) {
	defaultManager.polls.WithLabelValues(result).Inc()
}

func UpdateLeaderboardRows(n int) {
	defaultManager.leaderboardRows.Set(float64(n))
}

func UpdateLeaderboardLastFetch(unix int64) {
	defaultManager.leaderboardLastUnix.Set(float64(unix))
}
