package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nieko-nera/core/internal/domain"
	"github.com/nieko-nera/core/internal/music"
	"github.com/nieko-nera/core/internal/weather"
)

// Evaluation scopes condition checks to one (user, activity) pair and
// memoises the external lookups so weather, play history and same-day
// history are fetched at most once per activity regardless of how many
// conditions or recipes reference them.
type Evaluation struct {
	eng      *Engine
	user     *domain.UserData
	activity *domain.Activity

	weatherOnce sync.Once
	weatherSum  *weather.Summary
	weatherErr  error

	tracksOnce sync.Once
	tracks     []music.Track
	tracksErr  error

	dayOnce sync.Once
	day     []domain.Activity
	dayErr  error
}

// NewEvaluation starts an evaluation scope for one activity.
func (e *Engine) NewEvaluation(user *domain.UserData, activity *domain.Activity) *Evaluation {
	return &Evaluation{eng: e, user: user, activity: activity}
}

// CheckCondition evaluates one condition. Missing activity data and failed
// external lookups resolve to false; unknown properties, illegal operators
// and unparseable values surface as errors so rule-authoring mistakes are
// never silently swallowed.
func (ev *Evaluation) CheckCondition(ctx context.Context, cond domain.Condition) (bool, error) {
	start := time.Now()
	verdict, fam, err := ev.dispatch(ctx, cond)
	observeCondition(fam, verdict, err, time.Since(start))
	return verdict, err
}

// MatchRecipe reports whether every condition of an enabled recipe holds.
// Conditions run concurrently; the first configuration error cancels the
// rest and fails the match.
func (ev *Evaluation) MatchRecipe(ctx context.Context, recipe *domain.Recipe) (bool, error) {
	if recipe == nil || recipe.Disabled || len(recipe.Conditions) == 0 {
		return false, nil
	}
	verdicts := make([]bool, len(recipe.Conditions))
	g, gctx := errgroup.WithContext(ctx)
	for i, cond := range recipe.Conditions {
		i, cond := i, cond
		g.Go(func() error {
			ok, err := ev.CheckCondition(gctx, cond)
			if err != nil {
				return fmt.Errorf("recipe %s: %w", recipe.ID, err)
			}
			verdicts[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		recordRecipe("error")
		return false, err
	}
	for _, ok := range verdicts {
		if !ok {
			recordRecipe("no_match")
			return false, nil
		}
	}
	recordRecipe("match")
	return true, nil
}

func (ev *Evaluation) dispatch(ctx context.Context, cond domain.Condition) (bool, string, error) {
	acc, attribute, err := accessorFor(cond.Property)
	if err != nil {
		return false, "unknown", err
	}
	fam := acc.family.String()
	if !acc.allows(cond.Operator) {
		return false, fam, operatorError(cond)
	}

	switch acc.family {
	case familyWeather:
		verdict, err := ev.checkWeather(ctx, cond, attribute)
		return verdict, fam, err
	case familyMusic:
		verdict, err := ev.checkMusic(ctx, cond)
		return verdict, fam, err
	case familyFirstOfDay:
		verdict, err := ev.checkFirstOfDay(ctx, cond, strings.HasSuffix(cond.Property, ".sameSport"))
		return verdict, fam, err
	case familyWeekday:
		verdict, err := checkWeekday(ev.activity, cond)
		return verdict, fam, err
	}

	raw, present := acc.value(ev.activity)
	switch acc.family {
	case familyCategory:
		verdict, err := checkCategory(raw.(string), cond)
		return verdict, fam, err
	case familyRecords:
		verdict, err := checkRecords(raw.([]string), cond)
		return verdict, fam, err
	}
	if !present {
		return false, fam, nil
	}
	switch acc.family {
	case familyText:
		verdict, err := checkText(raw.(string), cond)
		return verdict, fam, err
	case familyBoolean:
		verdict, err := checkBoolean(raw.(bool), cond)
		return verdict, fam, err
	case familyNumber:
		verdict, err := checkNumber(raw.(float64), cond)
		return verdict, fam, err
	case familyLocation:
		verdict, err := checkLocation(raw.([]domain.Coordinates), cond)
		return verdict, fam, err
	case familyTimestamp:
		verdict, err := checkTimestamp(raw.(float64), acc.kind, cond)
		return verdict, fam, err
	}
	return false, fam, fmt.Errorf("property %q: %w", cond.Property, ErrUnknownProperty)
}

// checkWeather compares a weather attribute from the summary bracketing the
// activity. Start and end samples are checked with the same tolerance
// window and OR-combined; samples missing the attribute are skipped.
func (ev *Evaluation) checkWeather(ctx context.Context, cond domain.Condition, attribute string) (bool, error) {
	if !ev.activity.HasLocation() {
		return false, nil
	}
	target, ok := asFloat(cond.Value)
	if !ok {
		return false, valueError(cond, "numeric value required")
	}
	summary, err := ev.weatherSummary(ctx)
	if err != nil {
		ev.lookupFailed("weather", cond, err)
		return false, nil
	}
	if summary.Empty() {
		return false, nil
	}
	for _, point := range []weather.Point{summary.Start, summary.End} {
		raw, ok := point.Attribute(attribute)
		if !ok {
			continue
		}
		observed, ok := attributeNumber(raw)
		if !ok {
			continue
		}
		matched := false
		switch cond.Operator {
		case domain.OperatorEqual:
			matched = roundedEqual(observed, target)
		case domain.OperatorApproximate:
			matched = withinPercent(observed, target, approxTolerance)
		case domain.OperatorLike:
			matched = withinPercent(observed, target, likeTolerance)
		case domain.OperatorGreater:
			matched = observed > target
		case domain.OperatorLess:
			matched = observed < target
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

// attributeNumber coerces a weather attribute value, stripping unit
// suffixes like "°C" or "%" from provider strings.
func attributeNumber(raw any) (float64, bool) {
	if s, ok := raw.(string); ok {
		return asFloat(stripUnits(s))
	}
	return asFloat(raw)
}

// checkMusic matches the condition value against the titles played during
// the activity. Without a linked account the only satisfiable condition is
// NotLike with an empty value, which is vacuously true.
func (ev *Evaluation) checkMusic(ctx context.Context, cond domain.Condition) (bool, error) {
	want := strings.ToLower(strings.TrimSpace(asString(cond.Value)))
	if !ev.user.HasMusic() {
		return cond.Operator == domain.OperatorNotLike && want == "", nil
	}
	tracks, err := ev.recentTracks(ctx)
	if err != nil {
		ev.lookupFailed("music", cond, err)
		return false, nil
	}
	switch cond.Operator {
	case domain.OperatorEqual:
		for _, track := range tracks {
			if strings.ToLower(strings.TrimSpace(track.Title)) == want {
				return true, nil
			}
		}
		return false, nil
	case domain.OperatorLike:
		for _, track := range tracks {
			if strings.Contains(strings.ToLower(track.Title), want) {
				return true, nil
			}
		}
		return false, nil
	case domain.OperatorNotLike:
		for _, track := range tracks {
			if strings.Contains(strings.ToLower(track.Title), want) {
				return false, nil
			}
		}
		return true, nil
	default:
		return false, operatorError(cond)
	}
}

// checkFirstOfDay decides whether the activity is the user's first of its
// calendar day, optionally counting only the same sport.
func (ev *Evaluation) checkFirstOfDay(ctx context.Context, cond domain.Condition, sameSport bool) (bool, error) {
	want, ok := asBool(cond.Value)
	if !ok {
		return false, valueError(cond, "boolean value required")
	}
	if ev.activity.DateStart.IsZero() {
		return false, nil
	}
	isFirst, err := ev.isFirstOfDay(ctx, sameSport)
	if err != nil {
		ev.lookupFailed("history", cond, err)
		return false, nil
	}
	switch cond.Operator {
	case domain.OperatorEqual:
		return isFirst == want, nil
	case domain.OperatorNotEqual:
		return !isFirst && !want, nil
	default:
		return false, operatorError(cond)
	}
}

func (ev *Evaluation) isFirstOfDay(ctx context.Context, sameSport bool) (bool, error) {
	if !sameSport && ev.laterThanLastKnown() {
		return true, nil
	}
	sameDay, err := ev.sameDayActivities(ctx)
	if err != nil {
		return false, err
	}
	for _, candidate := range sameDay {
		if sameSport && !strings.EqualFold(candidate.SportType, ev.activity.SportType) {
			continue
		}
		// Earliest surviving candidate; the list is ordered by start time.
		return candidate.ID == ev.activity.ID, nil
	}
	return true, nil
}

// laterThanLastKnown is the fast path: an activity on a later calendar day
// than the user's last known one is trivially the first of its day.
func (ev *Evaluation) laterThanLastKnown() bool {
	if ev.user == nil || ev.user.LastActivityAt.IsZero() {
		return true
	}
	s := ev.activity.DateStart.UTC()
	last := ev.user.LastActivityAt.UTC()
	return s.Year() > last.Year() || (s.Year() == last.Year() && s.YearDay() > last.YearDay())
}

func (ev *Evaluation) weatherSummary(ctx context.Context) (*weather.Summary, error) {
	ev.weatherOnce.Do(func() {
		if ev.eng.weather == nil {
			ev.weatherErr = fmt.Errorf("weather service not configured")
			return
		}
		ev.weatherSum, ev.weatherErr = ev.eng.weather.ActivityWeather(ctx, ev.user, ev.activity)
	})
	return ev.weatherSum, ev.weatherErr
}

func (ev *Evaluation) recentTracks(ctx context.Context) ([]music.Track, error) {
	ev.tracksOnce.Do(func() {
		if ev.eng.music == nil {
			ev.tracksErr = fmt.Errorf("music service not configured")
			return
		}
		ev.tracks, ev.tracksErr = ev.eng.music.RecentTracks(ctx, ev.user, ev.activity)
	})
	return ev.tracks, ev.tracksErr
}

// sameDayActivities fetches the user's activities for the activity's UTC
// calendar day, leaving the upper bound open while the day is in progress.
func (ev *Evaluation) sameDayActivities(ctx context.Context) ([]domain.Activity, error) {
	ev.dayOnce.Do(func() {
		if ev.eng.history == nil {
			ev.dayErr = fmt.Errorf("history service not configured")
			return
		}
		day := ev.activity.DateStart.UTC()
		from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
		end := from.Add(24 * time.Hour)
		var to *time.Time
		if !ev.eng.now().UTC().Before(end) {
			to = &end
		}
		ev.day, ev.dayErr = ev.eng.history.ListRange(ctx, ev.userID(), from, to)
	})
	return ev.day, ev.dayErr
}

func (ev *Evaluation) userID() string {
	if ev.user != nil && ev.user.ID != "" {
		return ev.user.ID
	}
	return ev.activity.UserID
}

func (ev *Evaluation) lookupFailed(source string, cond domain.Condition, err error) {
	recordLookupFailure(source)
	ev.eng.logger.Printf("%s lookup failed: activity=%d user=%s property=%s: %v", source, ev.activity.ID, ev.userID(), cond.Property, err)
}
