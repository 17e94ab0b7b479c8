package valuecache

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "deltasnap_valuecache_hits_total",
			Help: "Number of values served from an earlier serialization",
		},
	)
	metricMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "deltasnap_valuecache_misses_total",
			Help: "Number of values that had to be serialized",
		},
	)
)

func init() {
	prometheus.MustRegister(metricHits)
	prometheus.MustRegister(metricMisses)
}
