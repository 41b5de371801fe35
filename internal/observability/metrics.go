package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activitySavedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "automation",
		Subsystem: "history",
		Name:      "last_activity_saved_timestamp_seconds",
		Help:      "Unix start timestamp of the most recent activity saved to Postgres.",
	})
	recipeUsersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "automation",
		Subsystem: "rules",
		Name:      "users_with_recipes",
		Help:      "Number of users with at least one recipe defined.",
	})
	recipesLoadedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "automation",
		Subsystem: "rules",
		Name:      "recipes_loaded",
		Help:      "Number of recipe definitions loaded from the rules file.",
	})
)

func init() {
	prometheus.MustRegister(activitySavedGauge, recipeUsersGauge, recipesLoadedGauge)
}

// RecordActivitySaved updates the history watermark gauge.
func RecordActivitySaved(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activitySavedGauge.Set(float64(ts.Unix()))
}

// RecordRecipesLoaded publishes the size of the loaded rule set.
func RecordRecipesLoaded(users, recipes int) {
	recipeUsersGauge.Set(float64(users))
	recipesLoadedGauge.Set(float64(recipes))
}
