package replicator

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "deltasnap_replicator_connections",
			Help: "Number of connected peers",
		},
		[]string{"replicator"},
	)
	metricTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deltasnap_replicator_ticks_total",
			Help: "Number of ticks",
		},
		[]string{"replicator"},
	)
	metricTickFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deltasnap_replicator_tick_failures_total",
			Help: "Number of ticks with at least one failed frame",
		},
		[]string{"replicator"},
	)
	metricTickSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "deltasnap_replicator_tick_seconds",
			Help: "Histogram of tick durations",
		},
		[]string{"replicator"},
	)
	metricSendSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "deltasnap_replicator_send_seconds",
			Help: "Histogram of single frame send durations",
		},
		[]string{"replicator"},
	)
	metricFramesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deltasnap_replicator_frames_sent_total",
			Help: "Number of frames sent successfully",
		},
		[]string{"replicator", "kind"},
	)
	metricFramesFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deltasnap_replicator_frames_failed_total",
			Help: "Number of frames that failed to send",
		},
		[]string{"replicator"},
	)
	metricBytesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deltasnap_replicator_sent_bytes_total",
			Help: "Number of frame bytes sent successfully",
		},
		[]string{"replicator"},
	)
	metricCheckpointsStored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deltasnap_replicator_checkpoints_stored_total",
			Help: "Number of checkpoints stored",
		},
		[]string{"replicator"},
	)
	metricCheckpointsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deltasnap_replicator_checkpoints_failed_total",
			Help: "Number of failed checkpoint store attempts",
		},
		[]string{"replicator"},
	)
	metricCheckpointLastSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "deltasnap_replicator_checkpoint_last_size_bytes",
			Help: "Size of the last stored checkpoint in bytes",
		},
		[]string{"replicator"},
	)
	metricCheckpointLastTimestamp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "deltasnap_replicator_checkpoint_last_unix_seconds",
			Help: "UNIX timestamp of the last stored checkpoint",
		},
		[]string{"replicator"},
	)
)

func init() {
	prometheus.MustRegister(metricConnections)
	prometheus.MustRegister(metricTicks)
	prometheus.MustRegister(metricTickFailures)
	prometheus.MustRegister(metricTickSeconds)
	prometheus.MustRegister(metricSendSeconds)
	prometheus.MustRegister(metricFramesSent)
	prometheus.MustRegister(metricFramesFailed)
	prometheus.MustRegister(metricBytesSent)
	prometheus.MustRegister(metricCheckpointsStored)
	prometheus.MustRegister(metricCheckpointsFailed)
	prometheus.MustRegister(metricCheckpointLastSize)
	prometheus.MustRegister(metricCheckpointLastTimestamp)
}
