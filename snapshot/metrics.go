package snapshot

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deltasnap_snapshot_writes_total",
			Help: "Number of slot writes by result",
		},
		[]string{"result"},
	)
	metricUnsaltedWrites = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "deltasnap_snapshot_unsalted_writes_total",
			Help: "Number of writes that requested parent salting while no parent was set",
		},
	)
	metricConnectionRemovals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "deltasnap_snapshot_connection_removals_total",
			Help: "Number of times a connection was removed from a State",
		},
	)

	// Resolved once, these are on the hot path
	metricWritesAdded     = metricWrites.WithLabelValues(Added.String())
	metricWritesUpdated   = metricWrites.WithLabelValues(Updated.String())
	metricWritesUnchanged = metricWrites.WithLabelValues(Unchanged.String())
)

func init() {
	prometheus.MustRegister(metricWrites)
	prometheus.MustRegister(metricUnsaltedWrites)
	prometheus.MustRegister(metricConnectionRemovals)
}
