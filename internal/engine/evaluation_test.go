package engine

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nieko-nera/core/internal/domain"
	"github.com/nieko-nera/core/internal/music"
	"github.com/nieko-nera/core/internal/weather"
)

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

type stubWeather struct {
	summary *weather.Summary
	err     error
	calls   atomic.Int32
}

func (s *stubWeather) ActivityWeather(ctx context.Context, user *domain.UserData, activity *domain.Activity) (*weather.Summary, error) {
	s.calls.Add(1)
	return s.summary, s.err
}

type stubMusic struct {
	tracks []music.Track
	err    error
	calls  atomic.Int32
}

func (s *stubMusic) RecentTracks(ctx context.Context, user *domain.UserData, activity *domain.Activity) ([]music.Track, error) {
	s.calls.Add(1)
	return s.tracks, s.err
}

type stubHistory struct {
	activities []domain.Activity
	err        error
	calls      atomic.Int32
	lastFrom   time.Time
	lastTo     *time.Time
}

func (s *stubHistory) ListRange(ctx context.Context, userID string, from time.Time, to *time.Time) ([]domain.Activity, error) {
	s.calls.Add(1)
	s.lastFrom = from
	s.lastTo = to
	return s.activities, s.err
}

func testEngine(t *testing.T, w *stubWeather, m *stubMusic, h *stubHistory, opts ...Option) *Engine {
	t.Helper()
	var ws WeatherService
	var ms MusicService
	var hs HistoryService
	if w != nil {
		ws = w
	}
	if m != nil {
		ms = m
	}
	if h != nil {
		hs = h
	}
	opts = append([]Option{WithLogger(log.New(testWriter{t}, "", 0))}, opts...)
	return New(ws, ms, hs, opts...)
}

func rideActivity() *domain.Activity {
	return &domain.Activity{
		ID:            42,
		UserID:        "user-1",
		Name:          "Morning Ride",
		SportType:     "Ride",
		Distance:      32.5,
		LocationStart: &domain.Coordinates{Lat: 45.07, Lon: 7.68},
		DateStart:     time.Date(2024, 6, 2, 6, 1, 0, 0, time.UTC),
		DateEnd:       time.Date(2024, 6, 2, 7, 30, 0, 0, time.UTC),
	}
}

func TestCheckConditionUnknownProperty(t *testing.T) {
	eng := testEngine(t, nil, nil, nil)
	_, err := eng.CheckCondition(context.Background(), nil, rideActivity(), domain.Condition{Property: "aura", Operator: domain.OperatorEqual, Value: "x"})
	require.ErrorIs(t, err, ErrUnknownProperty)
}

func TestCheckConditionUnsupportedOperator(t *testing.T) {
	eng := testEngine(t, nil, nil, nil)
	_, err := eng.CheckCondition(context.Background(), nil, rideActivity(), domain.Condition{Property: "name", Operator: domain.OperatorGreater, Value: "x"})
	require.ErrorIs(t, err, ErrUnsupportedOperator)
}

func TestCheckConditionMissingDataIsNoMatch(t *testing.T) {
	eng := testEngine(t, nil, nil, nil)
	verdict, err := eng.CheckCondition(context.Background(), nil, rideActivity(), domain.Condition{Property: "wattsAvg", Operator: domain.OperatorGreater, Value: 200})
	require.NoError(t, err)
	require.False(t, verdict)
}

func TestCheckConditionSynchronousFamilies(t *testing.T) {
	eng := testEngine(t, nil, nil, nil)
	activity := rideActivity()
	ctx := context.Background()

	verdict, err := eng.CheckCondition(ctx, nil, activity, domain.Condition{Property: "name", Operator: domain.OperatorLike, Value: "morning"})
	require.NoError(t, err)
	require.True(t, verdict)

	verdict, err = eng.CheckCondition(ctx, nil, activity, domain.Condition{Property: "distance", Operator: domain.OperatorApproximate, Value: 32})
	require.NoError(t, err)
	require.True(t, verdict)

	verdict, err = eng.CheckCondition(ctx, nil, activity, domain.Condition{Property: "sportType", Operator: domain.OperatorEqual, Value: "Ride,VirtualRide"})
	require.NoError(t, err)
	require.True(t, verdict)

	verdict, err = eng.CheckCondition(ctx, nil, activity, domain.Condition{Property: "locationStart", Operator: domain.OperatorEqual, Value: "45.0701,7.6801"})
	require.NoError(t, err)
	require.True(t, verdict)

	verdict, err = eng.CheckCondition(ctx, nil, activity, domain.Condition{Property: "weekday", Operator: domain.OperatorEqual, Value: "0"})
	require.NoError(t, err)
	require.True(t, verdict)
}

func TestWeatherRequiresLocation(t *testing.T) {
	w := &stubWeather{summary: &weather.Summary{Start: weather.Point{"temperature": 22.0}}}
	eng := testEngine(t, w, nil, nil)
	activity := rideActivity()
	activity.LocationStart = nil

	verdict, err := eng.CheckCondition(context.Background(), nil, activity, domain.Condition{Property: "weather.temperature", Operator: domain.OperatorEqual, Value: 22})
	require.NoError(t, err)
	require.False(t, verdict)
	require.Equal(t, int32(0), w.calls.Load(), "no lookup without coordinates")
}

func TestWeatherMatchesEitherSample(t *testing.T) {
	w := &stubWeather{summary: &weather.Summary{
		Start: weather.Point{"temperature": "18°C"},
		End:   weather.Point{"temperature": "22°C", "humidity": 40.0},
	}}
	eng := testEngine(t, w, nil, nil)
	activity := rideActivity()
	ctx := context.Background()

	// Only the end sample matches; OR across samples satisfies the condition.
	verdict, err := eng.CheckCondition(ctx, nil, activity, domain.Condition{Property: "weather.temperature", Operator: domain.OperatorEqual, Value: 22})
	require.NoError(t, err)
	require.True(t, verdict)

	// The attribute is missing from the start sample, which is skipped.
	verdict, err = eng.CheckCondition(ctx, nil, activity, domain.Condition{Property: "weather.humidity", Operator: domain.OperatorLess, Value: 50})
	require.NoError(t, err)
	require.True(t, verdict)

	verdict, err = eng.CheckCondition(ctx, nil, activity, domain.Condition{Property: "weather.temperature", Operator: domain.OperatorGreater, Value: 25})
	require.NoError(t, err)
	require.False(t, verdict)
}

func TestWeatherToleranceWindows(t *testing.T) {
	w := &stubWeather{summary: &weather.Summary{Start: weather.Point{"temperature": 21.0}}}
	eng := testEngine(t, w, nil, nil)
	activity := rideActivity()
	ctx := context.Background()

	verdict, err := eng.CheckCondition(ctx, nil, activity, domain.Condition{Property: "weather.temperature", Operator: domain.OperatorApproximate, Value: 21.5})
	require.NoError(t, err)
	require.True(t, verdict)

	verdict, err = eng.CheckCondition(ctx, nil, activity, domain.Condition{Property: "weather.temperature", Operator: domain.OperatorLike, Value: 23})
	require.NoError(t, err)
	require.True(t, verdict)

	verdict, err = eng.CheckCondition(ctx, nil, activity, domain.Condition{Property: "weather.temperature", Operator: domain.OperatorApproximate, Value: 23})
	require.NoError(t, err)
	require.False(t, verdict)
}

func TestWeatherLookupFailureIsNoMatch(t *testing.T) {
	w := &stubWeather{err: errors.New("upstream down")}
	eng := testEngine(t, w, nil, nil)

	verdict, err := eng.CheckCondition(context.Background(), nil, rideActivity(), domain.Condition{Property: "weather.temperature", Operator: domain.OperatorEqual, Value: 20})
	require.NoError(t, err)
	require.False(t, verdict)
}

func TestWeatherFetchMemoised(t *testing.T) {
	w := &stubWeather{summary: &weather.Summary{Start: weather.Point{"temperature": 20.0, "humidity": 60.0}}}
	eng := testEngine(t, w, nil, nil)
	ev := eng.NewEvaluation(nil, rideActivity())
	ctx := context.Background()

	for _, cond := range []domain.Condition{
		{Property: "weather.temperature", Operator: domain.OperatorEqual, Value: 20},
		{Property: "weather.humidity", Operator: domain.OperatorGreater, Value: 50},
		{Property: "weather.temperature", Operator: domain.OperatorLess, Value: 30},
	} {
		_, err := ev.CheckCondition(ctx, cond)
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), w.calls.Load(), "one fetch per activity evaluation")
}

func TestMusicWithoutLinkedAccount(t *testing.T) {
	m := &stubMusic{}
	eng := testEngine(t, nil, m, nil)
	activity := rideActivity()
	ctx := context.Background()

	verdict, err := eng.CheckCondition(ctx, nil, activity, domain.Condition{Property: "music.track", Operator: domain.OperatorEqual, Value: "Thunderstruck"})
	require.NoError(t, err)
	require.False(t, verdict)

	// NotLike with nothing to look for is vacuously true.
	verdict, err = eng.CheckCondition(ctx, nil, activity, domain.Condition{Property: "music.track", Operator: domain.OperatorNotLike, Value: ""})
	require.NoError(t, err)
	require.True(t, verdict)

	require.Equal(t, int32(0), m.calls.Load())
}

func TestMusicComparesTitlesAgainstConditionValue(t *testing.T) {
	m := &stubMusic{tracks: []music.Track{
		{Title: "Thunderstruck", Artist: "AC/DC"},
		{Title: "Highway to Hell", Artist: "AC/DC"},
	}}
	eng := testEngine(t, nil, m, nil)
	user := &domain.UserData{ID: "user-1", Music: &domain.MusicAccount{Provider: "spotify", ExternalID: "u1"}}
	activity := rideActivity()
	ctx := context.Background()

	verdict, err := eng.CheckCondition(ctx, user, activity, domain.Condition{Property: "music.track", Operator: domain.OperatorEqual, Value: "thunderstruck"})
	require.NoError(t, err)
	require.True(t, verdict)

	verdict, err = eng.CheckCondition(ctx, user, activity, domain.Condition{Property: "music.track", Operator: domain.OperatorLike, Value: "highway"})
	require.NoError(t, err)
	require.True(t, verdict)

	verdict, err = eng.CheckCondition(ctx, user, activity, domain.Condition{Property: "music.track", Operator: domain.OperatorLike, Value: "stairway"})
	require.NoError(t, err)
	require.False(t, verdict)

	verdict, err = eng.CheckCondition(ctx, user, activity, domain.Condition{Property: "music.track", Operator: domain.OperatorNotLike, Value: "stairway"})
	require.NoError(t, err)
	require.True(t, verdict)

	verdict, err = eng.CheckCondition(ctx, user, activity, domain.Condition{Property: "music.track", Operator: domain.OperatorNotLike, Value: "hell"})
	require.NoError(t, err)
	require.False(t, verdict)
}

func TestFirstOfDayFastPathSkipsHistory(t *testing.T) {
	h := &stubHistory{}
	eng := testEngine(t, nil, nil, h)
	user := &domain.UserData{ID: "user-1", LastActivityAt: time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)}
	activity := rideActivity()

	verdict, err := eng.CheckCondition(context.Background(), user, activity, domain.Condition{Property: "firstOfDay", Operator: domain.OperatorEqual, Value: true})
	require.NoError(t, err)
	require.True(t, verdict)
	require.Equal(t, int32(0), h.calls.Load(), "later calendar day needs no history query")
}

func TestFirstOfDayEarliestWins(t *testing.T) {
	activity := rideActivity()
	earlier := *rideActivity()
	earlier.ID = 41
	earlier.DateStart = activity.DateStart.Add(-2 * time.Hour)

	h := &stubHistory{activities: []domain.Activity{earlier, *activity}}
	eng := testEngine(t, nil, nil, h)
	// Last known activity is later the same day, so the fast path is off.
	user := &domain.UserData{ID: "user-1", LastActivityAt: time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)}
	ctx := context.Background()

	verdict, err := eng.CheckCondition(ctx, user, activity, domain.Condition{Property: "firstOfDay", Operator: domain.OperatorEqual, Value: true})
	require.NoError(t, err)
	require.False(t, verdict, "an earlier activity exists the same day")

	verdict, err = eng.CheckCondition(ctx, user, &earlier, domain.Condition{Property: "firstOfDay", Operator: domain.OperatorEqual, Value: true})
	require.NoError(t, err)
	require.True(t, verdict, "the earliest activity is first")
}

func TestFirstOfDaySameSportFilter(t *testing.T) {
	activity := rideActivity()
	run := *rideActivity()
	run.ID = 40
	run.SportType = "Run"
	run.DateStart = activity.DateStart.Add(-3 * time.Hour)

	h := &stubHistory{activities: []domain.Activity{run, *activity}}
	eng := testEngine(t, nil, nil, h)
	user := &domain.UserData{ID: "user-1", LastActivityAt: time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)}
	ctx := context.Background()

	// An earlier run does not stop this being the first ride of the day.
	verdict, err := eng.CheckCondition(ctx, user, activity, domain.Condition{Property: "firstOfDay.sameSport", Operator: domain.OperatorEqual, Value: true})
	require.NoError(t, err)
	require.True(t, verdict)

	verdict, err = eng.CheckCondition(ctx, user, activity, domain.Condition{Property: "firstOfDay", Operator: domain.OperatorEqual, Value: true})
	require.NoError(t, err)
	require.False(t, verdict)
}

func TestFirstOfDayDayBounds(t *testing.T) {
	activity := rideActivity()
	user := &domain.UserData{ID: "user-1", LastActivityAt: time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)}

	// Evaluating while the activity's day is still in progress leaves the
	// upper bound open.
	h := &stubHistory{activities: []domain.Activity{*activity}}
	eng := testEngine(t, nil, nil, h, WithClock(func() time.Time {
		return time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)
	}))
	_, err := eng.CheckCondition(context.Background(), user, activity, domain.Condition{Property: "firstOfDay", Operator: domain.OperatorEqual, Value: true})
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), h.lastFrom)
	require.Nil(t, h.lastTo)

	// Backfilled evaluation days later closes the interval.
	h2 := &stubHistory{activities: []domain.Activity{*activity}}
	eng = testEngine(t, nil, nil, h2, WithClock(func() time.Time {
		return time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	}))
	_, err = eng.CheckCondition(context.Background(), user, activity, domain.Condition{Property: "firstOfDay", Operator: domain.OperatorEqual, Value: true})
	require.NoError(t, err)
	require.NotNil(t, h2.lastTo)
	require.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), *h2.lastTo)
}

func TestFirstOfDayNotEqual(t *testing.T) {
	activity := rideActivity()
	earlier := *rideActivity()
	earlier.ID = 41
	earlier.DateStart = activity.DateStart.Add(-2 * time.Hour)
	user := &domain.UserData{ID: "user-1", LastActivityAt: time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)}
	ctx := context.Background()

	h := &stubHistory{activities: []domain.Activity{earlier, *activity}}
	eng := testEngine(t, nil, nil, h)

	// Not first and not asked to be first.
	verdict, err := eng.CheckCondition(ctx, user, activity, domain.Condition{Property: "firstOfDay", Operator: domain.OperatorNotEqual, Value: false})
	require.NoError(t, err)
	require.True(t, verdict)

	verdict, err = eng.CheckCondition(ctx, user, activity, domain.Condition{Property: "firstOfDay", Operator: domain.OperatorNotEqual, Value: true})
	require.NoError(t, err)
	require.False(t, verdict)
}

func TestFirstOfDayLookupFailureIsNoMatch(t *testing.T) {
	h := &stubHistory{err: errors.New("history offline")}
	eng := testEngine(t, nil, nil, h)
	user := &domain.UserData{ID: "user-1", LastActivityAt: time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)}

	verdict, err := eng.CheckCondition(context.Background(), user, rideActivity(), domain.Condition{Property: "firstOfDay", Operator: domain.OperatorEqual, Value: true})
	require.NoError(t, err)
	require.False(t, verdict)
}

func TestMatchRecipeAllConditionsMustHold(t *testing.T) {
	eng := testEngine(t, nil, nil, nil)
	ev := eng.NewEvaluation(nil, rideActivity())
	ctx := context.Background()

	recipe := &domain.Recipe{
		ID:    "recipe-1",
		Title: "Tag morning rides",
		Conditions: []domain.Condition{
			{Property: "name", Operator: domain.OperatorLike, Value: "morning"},
			{Property: "sportType", Operator: domain.OperatorEqual, Value: "Ride"},
		},
	}
	matched, err := ev.MatchRecipe(ctx, recipe)
	require.NoError(t, err)
	require.True(t, matched)

	recipe.Conditions = append(recipe.Conditions, domain.Condition{Property: "distance", Operator: domain.OperatorGreater, Value: 100})
	matched, err = ev.MatchRecipe(ctx, recipe)
	require.NoError(t, err)
	require.False(t, matched)
}

func TestMatchRecipeDisabledOrEmpty(t *testing.T) {
	eng := testEngine(t, nil, nil, nil)
	ev := eng.NewEvaluation(nil, rideActivity())
	ctx := context.Background()

	matched, err := ev.MatchRecipe(ctx, &domain.Recipe{ID: "r", Disabled: true, Conditions: []domain.Condition{{Property: "name", Operator: domain.OperatorLike, Value: "morning"}}})
	require.NoError(t, err)
	require.False(t, matched)

	matched, err = ev.MatchRecipe(ctx, &domain.Recipe{ID: "r"})
	require.NoError(t, err)
	require.False(t, matched)
}

func TestMatchRecipePropagatesConfigurationErrors(t *testing.T) {
	eng := testEngine(t, nil, nil, nil)
	ev := eng.NewEvaluation(nil, rideActivity())

	recipe := &domain.Recipe{
		ID: "recipe-2",
		Conditions: []domain.Condition{
			{Property: "name", Operator: domain.OperatorLike, Value: "morning"},
			{Property: "name", Operator: domain.OperatorGreater, Value: "morning"},
		},
	}
	matched, err := ev.MatchRecipe(context.Background(), recipe)
	require.ErrorIs(t, err, ErrUnsupportedOperator)
	require.False(t, matched)
}

func TestCheckConditionIdempotent(t *testing.T) {
	eng := testEngine(t, nil, nil, nil)
	activity := rideActivity()
	cond := domain.Condition{Property: "distance", Operator: domain.OperatorLike, Value: 30}
	ctx := context.Background()

	first, err := eng.CheckCondition(ctx, nil, activity, cond)
	require.NoError(t, err)
	second, err := eng.CheckCondition(ctx, nil, activity, cond)
	require.NoError(t, err)
	require.Equal(t, first, second)
}
