// Package metrics exposes Prometheus collectors for comparison runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/csvcompare/internal/core"
)

const namespace = "csvcompare"

// Pair outcomes used as the "result" label.
const (
	ResultMatch    = "match"
	ResultMismatch = "mismatch"
	ResultError    = "error"
)

var (
	// PairsCompared counts compared file pairs by comparator kind and result.
	PairsCompared = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pairs_compared_total",
		Help:      "File pairs compared, by comparator kind and result.",
	}, []string{"kind", "result"})

	// Differences counts reported differences by diff kind.
	Differences = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "differences_total",
		Help:      "Differences reported, by difference kind.",
	}, []string{"kind"})

	// PairDuration observes how long one pair comparison takes.
	PairDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pair_duration_seconds",
		Help:      "Duration of one file pair comparison.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"kind"})

	// BytesRead counts raw input bytes parsed.
	BytesRead = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bytes_read_total",
		Help:      "Raw bytes read from compared files.",
	})

	// ActiveComparisons is the number of comparisons holding a limiter slot.
	ActiveComparisons = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_comparisons",
		Help:      "Comparisons currently running.",
	})

	// Runs counts finished runs by result.
	Runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Comparison runs finished, by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(PairsCompared, Differences, PairDuration, BytesRead, ActiveComparisons, Runs)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePair records one finished pair.
func ObservePair(kind, result string, d time.Duration, bytesRead int64) {
	PairsCompared.WithLabelValues(kind, result).Inc()
	PairDuration.WithLabelValues(kind).Observe(d.Seconds())
	if bytesRead > 0 {
		BytesRead.Add(float64(bytesRead))
	}
}

// ObserveDiffs counts diffs by kind.
func ObserveDiffs(diffs []core.DiffType) {
	for _, d := range diffs {
		Differences.WithLabelValues(string(d.Kind())).Inc()
	}
}

// ObserveRun records a finished run.
func ObserveRun(allOkay bool) {
	if allOkay {
		Runs.WithLabelValues(ResultMatch).Inc()
		return
	}
	Runs.WithLabelValues(ResultMismatch).Inc()
}

// ResultOf classifies a pair outcome for the result label.
func ResultOf(err error, isError bool) string {
	switch {
	case err != nil:
		return ResultError
	case isError:
		return ResultMismatch
	default:
		return ResultMatch
	}
}
