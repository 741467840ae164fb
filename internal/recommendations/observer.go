package recommendations

import (
	"time"

	"github.com/charlesng35/longevity/pkg/metrics"
)

// LookupResult classifies a cache lookup.
type LookupResult string

const (
	LookupHit   LookupResult = "hit"
	LookupMiss  LookupResult = "miss"
	LookupStale LookupResult = "stale"
	LookupError LookupResult = "error"
)

// Observer receives instrumentation events from a Controller.
type Observer interface {
	CacheLookup(kind Kind, result LookupResult)
	GenerationFinished(kind Kind, elapsed time.Duration, err error)
	ReconcileFinished(kind Kind, outcome Outcome)
}

type nopObserver struct{}

func (nopObserver) CacheLookup(Kind, LookupResult)                {}
func (nopObserver) GenerationFinished(Kind, time.Duration, error) {}
func (nopObserver) ReconcileFinished(Kind, Outcome)               {}

// PrometheusObserver records controller events in the process metrics registry.
type PrometheusObserver struct{}

// CacheLookup implements Observer.
func (PrometheusObserver) CacheLookup(kind Kind, result LookupResult) {
	metrics.RecommendationCacheLookups.WithLabelValues(string(kind), string(result)).Inc()
}

// GenerationFinished implements Observer.
func (PrometheusObserver) GenerationFinished(kind Kind, elapsed time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.RecommendationGeneration.WithLabelValues(string(kind), result).Observe(elapsed.Seconds())
}

// ReconcileFinished implements Observer.
func (PrometheusObserver) ReconcileFinished(kind Kind, outcome Outcome) {
	metrics.RecommendationReconciles.WithLabelValues(string(kind), string(outcome)).Inc()
}
