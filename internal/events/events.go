// Package events defines the cross-service event payloads exchanged over
// Kafka by the automation platform.
package events

import "time"

// Topics and schema subjects owned by or consumed from the platform streams.
const (
	TopicActivityEvents   = "activity_events"
	TopicAutomationEvents = "automation_events"

	TypeActivityProcessed = "activity.processed"
	TypeRecipeEvaluated   = "recipe.evaluated"

	SubjectActivityProcessed = "activity_events-value"
	SubjectRecipeEvaluated   = "automation_events-value"
)

// LatLon is a coordinate pair in decimal degrees as carried on the wire.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ActivityProcessed is emitted by the ingestion pipeline once an activity is
// enriched and ready for automation. Metric units are fixed: kilometres,
// metres, km/h, seconds and seconds per kilometre.
type ActivityProcessed struct {
	ActivityID     int64     `json:"activity_id"`
	UserID         string    `json:"user_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	SportType      string    `json:"sport_type"`
	Gear           string    `json:"gear,omitempty"`
	Commute        bool      `json:"commute"`
	Trainer        bool      `json:"trainer"`
	DistanceKm     float64   `json:"distance_km"`
	ElevationGainM float64   `json:"elevation_gain_m"`
	SpeedAvgKmh    float64   `json:"speed_avg_kmh"`
	SpeedMaxKmh    float64   `json:"speed_max_kmh"`
	PaceAvgSec     float64   `json:"pace_avg_sec"`
	PaceMaxSec     float64   `json:"pace_max_sec"`
	WattsAvg       float64   `json:"watts_avg,omitempty"`
	WattsMax       float64   `json:"watts_max,omitempty"`
	HeartrateAvg   float64   `json:"hr_avg,omitempty"`
	HeartrateMax   float64   `json:"hr_max,omitempty"`
	CadenceAvg     float64   `json:"cadence_avg,omitempty"`
	Calories       float64   `json:"calories,omitempty"`
	MovingTimeSec  float64   `json:"moving_time_sec"`
	TotalTimeSec   float64   `json:"total_time_sec"`
	DateStart      time.Time `json:"date_start"`
	DateEnd        time.Time `json:"date_end"`
	UTCStartOffset int       `json:"utc_start_offset_min"`
	LocationStart  *LatLon   `json:"location_start,omitempty"`
	LocationEnd    *LatLon   `json:"location_end,omitempty"`
	Polyline       string    `json:"polyline,omitempty"`
	NewRecords     []string  `json:"new_records,omitempty"`
}

// RecipeEvaluated is the verdict published for every enabled recipe after an
// activity is evaluated. Downstream action runners key off Matched.
type RecipeEvaluated struct {
	ActivityID  int64     `json:"activity_id"`
	UserID      string    `json:"user_id"`
	RecipeID    string    `json:"recipe_id"`
	RecipeTitle string    `json:"recipe_title,omitempty"`
	Matched     bool      `json:"matched"`
	Conditions  int       `json:"conditions"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}
