package domain

import "time"

// UnitSystem selects how distances and speeds are rendered for the athlete.
// Stored metrics stay metric regardless.
type UnitSystem string

const (
	UnitsMetric   UnitSystem = "metric"
	UnitsImperial UnitSystem = "imperial"
)

// MusicAccount links an athlete to a streaming provider used for
// played-track lookups.
type MusicAccount struct {
	Provider    string
	ExternalID  string
	AccessToken string
}

// UserPreferences holds the per-athlete settings that influence evaluation.
type UserPreferences struct {
	Units UnitSystem
}

// UserData is the athlete profile the engine consults during evaluation.
// LastActivityAt tracks the start of the most recent previously processed
// activity and anchors first-of-day short-circuiting.
type UserData struct {
	ID             string
	Preferences    UserPreferences
	Music          *MusicAccount
	LastActivityAt time.Time
}

// HasMusic reports whether the athlete linked a streaming account.
func (u *UserData) HasMusic() bool {
	return u != nil && u.Music != nil && u.Music.Provider != ""
}
