// Package domain defines the core records shared across the evaluation pipeline.
package domain

import "time"

// Activity is the canonical workout record evaluated against recipe conditions.
// Metric fields use fixed native units: distances in kilometres, elevation in
// metres, speeds in km/h, pace in seconds per kilometre and durations in seconds.
type Activity struct {
	ID            int64
	UserID        string
	Name          string
	Description   string
	SportType     string
	Gear          string
	Commute       bool
	Trainer       bool
	Distance      float64
	ElevationGain float64
	SpeedAvg      float64
	SpeedMax      float64
	PaceAvg       float64
	PaceMax       float64
	WattsAvg      float64
	WattsMax      float64
	HeartrateAvg  float64
	HeartrateMax  float64
	CadenceAvg    float64
	Calories      float64
	MovingTime    float64
	TotalTime     float64
	DateStart     time.Time
	DateEnd       time.Time
	// UTCStartOffset is the minute offset between the athlete's local clock
	// and UTC at the moment the activity started.
	UTCStartOffset int
	LocationStart  *Coordinates
	LocationEnd    *Coordinates
	Polyline       string
	NewRecords     []string
}

// Coordinates is a WGS84 point in decimal degrees.
type Coordinates struct {
	Lat float64
	Lon float64
}

// HasLocation reports whether the activity carries a usable start coordinate.
func (a *Activity) HasLocation() bool {
	return a.LocationStart != nil && (a.LocationStart.Lat != 0 || a.LocationStart.Lon != 0)
}

// LocalStart returns the activity start shifted into the athlete's local clock.
func (a *Activity) LocalStart() time.Time {
	return a.DateStart.Add(time.Duration(a.UTCStartOffset) * time.Minute)
}
