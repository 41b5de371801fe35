package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	conditionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "automation",
		Subsystem: "engine",
		Name:      "conditions_total",
		Help:      "Number of evaluated conditions grouped by property family and outcome.",
	}, []string{"family", "outcome"})

	conditionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "automation",
		Subsystem: "engine",
		Name:      "condition_duration_seconds",
		Help:      "Time spent evaluating a single condition.",
		Buckets:   []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
	}, []string{"family"})

	lookupFailureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "automation",
		Subsystem: "engine",
		Name:      "lookup_failures_total",
		Help:      "Number of external lookups that failed and resolved to a non-match.",
	}, []string{"source"})

	recipeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "automation",
		Subsystem: "engine",
		Name:      "recipes_total",
		Help:      "Number of recipe evaluations grouped by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(conditionCounter, conditionDuration, lookupFailureCounter, recipeCounter)
}

func observeCondition(family string, verdict bool, err error, elapsed time.Duration) {
	outcome := "no_match"
	switch {
	case err != nil:
		outcome = "error"
	case verdict:
		outcome = "match"
	}
	conditionCounter.WithLabelValues(family, outcome).Inc()
	conditionDuration.WithLabelValues(family).Observe(elapsed.Seconds())
}

func recordLookupFailure(source string) {
	lookupFailureCounter.WithLabelValues(source).Inc()
}

func recordRecipe(outcome string) {
	recipeCounter.WithLabelValues(outcome).Inc()
}
