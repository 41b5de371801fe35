// Package engine decides whether recipe conditions hold for an activity.
//
// A dispatcher routes each condition by property name to a family checker:
// text, boolean, number, location, timestamp, category, records and weekday
// run synchronously over the activity record, while weather, music and
// first-of-day consult external services. External results are memoised per
// activity so several conditions and recipes share one fetch.
package engine

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/nieko-nera/core/internal/domain"
	"github.com/nieko-nera/core/internal/music"
	"github.com/nieko-nera/core/internal/weather"
)

// WeatherService returns the weather summary bracketing an activity, or nil
// when no sample is available.
type WeatherService interface {
	ActivityWeather(ctx context.Context, user *domain.UserData, activity *domain.Activity) (*weather.Summary, error)
}

// MusicService returns the tracks played during an activity's time window.
type MusicService interface {
	RecentTracks(ctx context.Context, user *domain.UserData, activity *domain.Activity) ([]music.Track, error)
}

// HistoryService lists a user's stored activities with starts inside
// [from, to), ordered by start time ascending. A nil upper bound means
// "up to now".
type HistoryService interface {
	ListRange(ctx context.Context, userID string, from time.Time, to *time.Time) ([]domain.Activity, error)
}

// Engine wires the family checkers to their external dependencies. Any
// dependency may be nil; conditions needing it then resolve to a logged
// non-match instead of an error.
type Engine struct {
	weather WeatherService
	music   MusicService
	history HistoryService
	logger  *log.Logger
	now     func() time.Time
}

// Option customises the Engine.
type Option func(*Engine)

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the time source used to decide whether an activity's
// calendar day is still in progress.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New constructs an Engine.
func New(weatherSvc WeatherService, musicSvc MusicService, historySvc HistoryService, opts ...Option) *Engine {
	e := &Engine{
		weather: weatherSvc,
		music:   musicSvc,
		history: historySvc,
		logger:  log.New(log.Writer(), "[engine] ", log.LstdFlags),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CheckCondition evaluates a single condition without cross-condition
// memoisation. Callers with several conditions against one activity should
// go through NewEvaluation instead.
func (e *Engine) CheckCondition(ctx context.Context, user *domain.UserData, activity *domain.Activity, cond domain.Condition) (bool, error) {
	return e.NewEvaluation(user, activity).CheckCondition(ctx, cond)
}

// ValidateCondition checks a condition at authoring time: the property must
// be known, the operator legal for its family and the value parseable into
// the shape the family compares. Evaluation repeats these checks, but
// catching them before a recipe is stored beats a non-match in production.
func ValidateCondition(cond domain.Condition) error {
	acc, _, err := accessorFor(cond.Property)
	if err != nil {
		return err
	}
	if !acc.allows(cond.Operator) {
		return operatorError(cond)
	}
	switch acc.family {
	case familyNumber, familyTimestamp, familyWeather:
		if _, ok := asFloat(cond.Value); !ok {
			return valueError(cond, "numeric value required")
		}
	case familyBoolean, familyFirstOfDay:
		if _, ok := asBool(cond.Value); !ok {
			return valueError(cond, "boolean value required")
		}
	case familyLocation:
		if _, _, err := parseCoordinates(asString(cond.Value)); err != nil {
			return valueError(cond, "coordinate pair required")
		}
	case familyRecords:
		if _, ok := asBool(cond.Value); ok {
			if cond.Operator != domain.OperatorEqual {
				return operatorError(cond)
			}
		} else if _, ok := asFloat(cond.Value); !ok {
			return valueError(cond, "boolean or numeric value required")
		}
	case familyWeekday:
		days := splitList(asString(cond.Value))
		if len(days) == 0 {
			return valueError(cond, "weekday list required")
		}
		for _, d := range days {
			n, err := strconv.Atoi(d)
			if err != nil || n < 0 || n > 6 {
				return valueError(cond, "weekday numbers run 0 (Sunday) to 6")
			}
		}
	}
	return nil
}
