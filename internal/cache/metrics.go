package cache

import "github.com/prometheus/client_golang/prometheus"

var (
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "cache",
		Name:      "activity_hits_total",
		Help:      "Daily activity lookups served from Redis.",
	})
	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "cache",
		Name:      "activity_misses_total",
		Help:      "Daily activity lookups that fell through to the backend.",
	})
)

func init() {
	prometheus.MustRegister(cacheHits, cacheMisses)
}
