// Package metrics holds the Prometheus instruments for the persistence core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Save results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	// StoreSaves counts bulk saves by result.
	StoreSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloc_store_saves_total",
		Help: "Bulk collection saves by result.",
	}, []string{"result"})

	// StoreSaveDuration observes the wall time of one bulk save transaction.
	StoreSaveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bloc_store_save_duration_seconds",
		Help:    "Duration of bulk save transactions.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	// StoreLoads counts bulk loads by result.
	StoreLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloc_store_loads_total",
		Help: "Bulk collection loads by result.",
	}, []string{"result"})

	// DebouncedMutations counts edits that went through the autosave debounce.
	DebouncedMutations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bloc_notes_debounced_mutations_total",
		Help: "Title and content edits scheduled through the autosave debounce.",
	})

	// NotesCount tracks the size of the in-memory collection.
	NotesCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bloc_notes_count",
		Help: "Number of notes in the in-memory collection.",
	})
)

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
