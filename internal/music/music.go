// Package music looks up the tracks an athlete played while recording an
// activity, using the streaming account linked to their profile.
package music

import "time"

// Track is a single play reported by the streaming provider.
type Track struct {
	Title    string    `json:"title"`
	Artist   string    `json:"artist"`
	PlayedAt time.Time `json:"played_at"`
}
