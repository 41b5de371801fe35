// Package history stores evaluated activities and athlete profiles, and
// answers the same-day queries behind first-of-day conditions.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/nieko-nera/core/internal/domain"
	"github.com/nieko-nera/core/internal/events"
)

// ErrDuplicateActivity indicates the activity was already recorded; the
// consumer treats it as an idempotent replay.
var ErrDuplicateActivity = errors.New("activity already recorded")

// Store is the persistence surface shared by the consumer, the engine and
// the API.
type Store interface {
	// SaveActivity records the activity together with its verdict events,
	// which the outbox dispatcher later delivers, and advances the user's
	// last-activity anchor, all in one transaction.
	SaveActivity(ctx context.Context, activity *domain.Activity, verdicts []events.RecipeEvaluated) error
	GetActivity(ctx context.Context, id int64) (*domain.Activity, error)
	// ListRange returns the user's activities with starts inside [from, to),
	// ordered by start time ascending. A nil upper bound means "up to now".
	ListRange(ctx context.Context, userID string, from time.Time, to *time.Time) ([]domain.Activity, error)
	// GetUser returns nil without error when the profile does not exist.
	GetUser(ctx context.Context, id string) (*domain.UserData, error)
	SaveUser(ctx context.Context, user domain.UserData) error
}
