// Package metrics exposes Prometheus counters for the scoreboard.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "arcade"

type Metrics struct {
	registry *prometheus.Registry

	requests            *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	scoresSubmitted     prometheus.Counter
	submissionsRejected *prometheus.CounterVec
	achievementsAwarded *prometheus.CounterVec
	webhookDeliveries   *prometheus.CounterVec
	tournamentsLocked   prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		scoresSubmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scores_submitted_total",
			Help:      "Accepted score submissions.",
		}),
		submissionsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "score_submissions_rejected_total",
			Help:      "Rejected score submissions by reason.",
		}, []string{"reason"}),
		achievementsAwarded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "achievements_awarded_total",
			Help:      "Achievements awarded by rule type.",
		}, []string{"rule_type"}),
		webhookDeliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Chat webhook deliveries by platform and outcome.",
		}, []string{"platform", "outcome"}),
		tournamentsLocked: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tournaments_auto_locked_total",
			Help:      "Tournaments locked by the scheduled job after their end time.",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) ScoreSubmitted() {
	if m == nil {
		return
	}
	m.scoresSubmitted.Inc()
}

func (m *Metrics) SubmissionRejected(reason string) {
	if m == nil {
		return
	}
	m.submissionsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) AchievementAwarded(ruleType string) {
	if m == nil {
		return
	}
	m.achievementsAwarded.WithLabelValues(ruleType).Inc()
}

func (m *Metrics) WebhookDelivered(platform string, ok bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	m.webhookDeliveries.WithLabelValues(platform, outcome).Inc()
}

func (m *Metrics) TournamentsLocked(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.tournamentsLocked.Add(float64(n))
}
