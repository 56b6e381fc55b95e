package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the dedicated prometheus registry for coordinator metrics,
// following the retrieval pack's pattern of a package-local registry
// rather than registering onto the global default one.
var Registry = prometheus.NewRegistry()

var (
	cacheHits = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: "fstratbt",
		Subsystem: "coordinator",
		Name:      "indicator_cache_hits_total",
		Help:      "Indicator cache fingerprint hits across all evaluations.",
	})

	cacheMisses = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: "fstratbt",
		Subsystem: "coordinator",
		Name:      "indicator_cache_misses_total",
		Help:      "Indicator cache fingerprint misses (fresh compute) across all evaluations.",
	})

	activeWorkers = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Namespace: "fstratbt",
		Subsystem: "coordinator",
		Name:      "active_workers",
		Help:      "Number of strategy evaluations currently running.",
	})

	tradeLimitAborts = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: "fstratbt",
		Subsystem: "coordinator",
		Name:      "trade_limit_aborts_total",
		Help:      "Evaluations aborted for exceeding limit_trade_count.",
	})

	evaluationDuration = promauto.With(Registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: "fstratbt",
		Subsystem: "coordinator",
		Name:      "evaluation_duration_seconds",
		Help:      "Wall-clock duration of one strategy evaluation.",
		Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
	})
)
