package completion

import "github.com/prometheus/client_golang/prometheus"

var (
	cacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "assistd",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total response cache hits",
	})

	cacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "assistd",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total response cache misses",
	})

	cacheEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "assistd",
		Subsystem: "cache",
		Name:      "evictions_total",
		Help:      "Total LRU evictions from the response cache",
	})

	remoteAttemptsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "assistd",
		Subsystem: "completion",
		Name:      "remote_attempts_total",
		Help:      "Total remote completion attempts, including retries",
	})

	retriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "assistd",
		Subsystem: "completion",
		Name:      "retries_total",
		Help:      "Total retried completion attempts",
	})

	offlineTransitionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "assistd",
		Subsystem: "completion",
		Name:      "offline_transitions_total",
		Help:      "Total automatic transitions to offline mode",
	})

	offlineMode = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "assistd",
		Subsystem: "completion",
		Name:      "offline_mode",
		Help:      "1 while the service is offline, 0 while online",
	})
)

func init() {
	prometheus.MustRegister(
		cacheHitsTotal,
		cacheMissesTotal,
		cacheEvictionsTotal,
		remoteAttemptsTotal,
		retriesTotal,
		offlineTransitionsTotal,
		offlineMode,
	)
}
