package consumer

import (
	"context"
	"encoding/json"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nieko-nera/core/internal/domain"
	"github.com/nieko-nera/core/internal/engine"
	"github.com/nieko-nera/core/internal/events"
	"github.com/nieko-nera/core/internal/history"
)

type stubSource struct {
	recipes []domain.Recipe
	err     error
}

func (s *stubSource) RecipesFor(context.Context, string) ([]domain.Recipe, error) {
	return s.recipes, s.err
}

func processedEvent() events.ActivityProcessed {
	return events.ActivityProcessed{
		ActivityID:    9001,
		UserID:        "user-1",
		Name:          "Morning Ride",
		SportType:     "Ride",
		DistanceKm:    32.5,
		MovingTimeSec: 5340,
		TotalTimeSec:  5460,
		DateStart:     time.Date(2024, 6, 2, 6, 1, 0, 0, time.UTC),
		DateEnd:       time.Date(2024, 6, 2, 7, 30, 0, 0, time.UTC),
		LocationStart: &events.LatLon{Lat: 45.07, Lon: 7.68},
	}
}

func eventMessage(t *testing.T, evt events.ActivityProcessed) Message {
	t.Helper()
	payload, err := json.Marshal(evt)
	require.NoError(t, err)
	return Message{
		Topic:     events.TopicActivityEvents,
		EventType: events.TypeActivityProcessed,
		UserID:    evt.UserID,
		Timestamp: evt.DateEnd,
		Payload:   payload,
	}
}

func newTestHandler(t *testing.T, store *history.InMemoryStore, recipes []domain.Recipe) *EvaluationHandler {
	t.Helper()
	logger := log.New(testWriter{t}, "", 0)
	eng := engine.New(nil, nil, store, engine.WithLogger(logger))
	return NewEvaluationHandler(store, &stubSource{recipes: recipes}, eng,
		WithHandlerLogger(logger),
		WithHandlerClock(func() time.Time { return time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC) }),
	)
}

func TestHandlerEvaluatesAndStoresVerdicts(t *testing.T) {
	store := history.NewInMemoryStore()
	recipes := []domain.Recipe{
		{
			ID:    "recipe-ride",
			Title: "Tag rides",
			Conditions: []domain.Condition{
				{Property: "sportType", Operator: domain.OperatorEqual, Value: "Ride"},
			},
		},
		{
			ID:    "recipe-century",
			Title: "Century alert",
			Conditions: []domain.Condition{
				{Property: "distance", Operator: domain.OperatorGreater, Value: 100},
			},
		},
		{
			ID:       "recipe-paused",
			Title:    "Paused",
			Disabled: true,
			Conditions: []domain.Condition{
				{Property: "sportType", Operator: domain.OperatorEqual, Value: "Ride"},
			},
		},
	}
	handler := newTestHandler(t, store, recipes)

	require.NoError(t, handler.Handle(context.Background(), eventMessage(t, processedEvent())))

	stored, err := store.GetActivity(context.Background(), 9001)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, "Morning Ride", stored.Name)
	require.NotNil(t, stored.LocationStart)

	verdicts := store.Verdicts(9001)
	require.Len(t, verdicts, 2, "disabled recipes produce no verdict")
	require.Equal(t, "recipe-ride", verdicts[0].RecipeID)
	require.True(t, verdicts[0].Matched)
	require.Equal(t, 1, verdicts[0].Conditions)
	require.Equal(t, "recipe-century", verdicts[1].RecipeID)
	require.False(t, verdicts[1].Matched)
	require.Equal(t, time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC), verdicts[0].EvaluatedAt)

	user, err := store.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, user)
	require.Equal(t, time.Date(2024, 6, 2, 6, 1, 0, 0, time.UTC), user.LastActivityAt)
}

func TestHandlerIgnoresForeignEventTypes(t *testing.T) {
	store := history.NewInMemoryStore()
	handler := newTestHandler(t, store, nil)

	msg := eventMessage(t, processedEvent())
	msg.EventType = "activity.deleted"

	require.NoError(t, handler.Handle(context.Background(), msg))

	stored, err := store.GetActivity(context.Background(), 9001)
	require.NoError(t, err)
	require.Nil(t, stored)
}

func TestHandlerTreatsReplayAsSuccess(t *testing.T) {
	store := history.NewInMemoryStore()
	recipes := []domain.Recipe{
		{
			ID:    "recipe-ride",
			Title: "Tag rides",
			Conditions: []domain.Condition{
				{Property: "sportType", Operator: domain.OperatorEqual, Value: "Ride"},
			},
		},
	}
	handler := newTestHandler(t, store, recipes)

	msg := eventMessage(t, processedEvent())
	require.NoError(t, handler.Handle(context.Background(), msg))
	require.NoError(t, handler.Handle(context.Background(), msg), "replays commit without re-staging verdicts")

	require.Len(t, store.Verdicts(9001), 1)
}

func TestHandlerRejectsMalformedPayloads(t *testing.T) {
	store := history.NewInMemoryStore()
	handler := newTestHandler(t, store, nil)

	msg := Message{
		Topic:     events.TopicActivityEvents,
		EventType: events.TypeActivityProcessed,
		Payload:   []byte(`{"activity_id":`),
	}
	require.Error(t, handler.Handle(context.Background(), msg))

	missingIdentity := eventMessage(t, events.ActivityProcessed{ActivityID: 9001})
	require.ErrorContains(t, handler.Handle(context.Background(), missingIdentity), "missing identity")
}

func TestHandlerReportsErroredRecipeAsUnmatched(t *testing.T) {
	store := history.NewInMemoryStore()
	recipes := []domain.Recipe{
		{
			ID:    "recipe-broken",
			Title: "Broken",
			Conditions: []domain.Condition{
				{Property: "winded", Operator: domain.OperatorEqual, Value: true},
			},
		},
	}
	handler := newTestHandler(t, store, recipes)

	require.NoError(t, handler.Handle(context.Background(), eventMessage(t, processedEvent())))

	verdicts := store.Verdicts(9001)
	require.Len(t, verdicts, 1)
	require.False(t, verdicts[0].Matched)
}

func TestHandlerAppliesFirstOfDayAgainstPriorHistory(t *testing.T) {
	store := history.NewInMemoryStore()

	earlier := domain.Activity{
		ID:        8000,
		UserID:    "user-1",
		SportType: "Run",
		DateStart: time.Date(2024, 6, 2, 5, 0, 0, 0, time.UTC),
		DateEnd:   time.Date(2024, 6, 2, 5, 45, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveActivity(context.Background(), &earlier, nil))

	recipes := []domain.Recipe{
		{
			ID:    "recipe-first",
			Title: "First of day",
			Conditions: []domain.Condition{
				{Property: "firstOfDay", Operator: domain.OperatorEqual, Value: true},
			},
		},
	}
	handler := newTestHandler(t, store, recipes)

	require.NoError(t, handler.Handle(context.Background(), eventMessage(t, processedEvent())))

	verdicts := store.Verdicts(9001)
	require.Len(t, verdicts, 1)
	require.False(t, verdicts[0].Matched, "an earlier activity on the same day beats the incoming one")
}
