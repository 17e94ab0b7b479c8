package climit

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricLimit = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "deltasnap_climit_limit",
			Help: "Configured maximum number of tokens that can be active at once",
		},
		[]string{"replicator", "limit_name"},
	)
	metricWaiting = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "deltasnap_climit_waiting",
			Help: "Number of tasks waiting to acquire the token",
		},
		[]string{"replicator", "limit_name"},
	)
	metricActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "deltasnap_climit_active",
			Help: "Number of tasks currently active with the token",
		},
		[]string{"replicator", "limit_name"},
	)
	metricAcquiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deltasnap_climit_acquired_total",
			Help: "Total number of times the token has been acquired",
		},
		[]string{"replicator", "limit_name"},
	)
	metricActiveSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "deltasnap_climit_active_seconds",
			Help: "Histogram of how long tasks held the token",
		},
		[]string{"replicator", "limit_name"},
	)
	metricWaitingSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "deltasnap_climit_waiting_seconds",
			Help: "Histogram of how long tasks have had to wait for the token",
		},
		[]string{"replicator", "limit_name"},
	)
)

func init() {
	prometheus.MustRegister(metricLimit)
	prometheus.MustRegister(metricWaiting)
	prometheus.MustRegister(metricActive)
	prometheus.MustRegister(metricAcquiredTotal)
	prometheus.MustRegister(metricActiveSeconds)
	prometheus.MustRegister(metricWaitingSeconds)
}
