package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "homehelper"

var (
	once sync.Once

	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Backend API requests by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	apiDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Backend API request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	expirations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "local_expirations_total",
			Help:      "Pending records expired locally by their countdown.",
		},
		[]string{"request_type"},
	)

	actions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Lifecycle actions by kind and result.",
		},
		[]string{"action", "result"},
	)

	polls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Poll cycles by result.",
		},
		[]string{"result"},
	)

	activeCountdowns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_countdowns",
			Help:      "Countdowns currently running.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(apiRequests, apiDuration, expirations, actions, polls, activeCountdowns)
	})
}

// ObserveAPI records one backend call.
func ObserveAPI(endpoint, outcome string, took time.Duration) {
	apiRequests.WithLabelValues(endpoint, outcome).Inc()
	apiDuration.WithLabelValues(endpoint).Observe(took.Seconds())
}

func IncExpiration(requestType string) {
	expirations.WithLabelValues(requestType).Inc()
}

func IncAction(action, result string) {
	actions.WithLabelValues(action, result).Inc()
}

func IncPoll(result string) {
	polls.WithLabelValues(result).Inc()
}

func SetActiveCountdowns(n int) {
	activeCountdowns.Set(float64(n))
}
