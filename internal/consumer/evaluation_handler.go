package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nieko-nera/core/internal/domain"
	"github.com/nieko-nera/core/internal/engine"
	"github.com/nieko-nera/core/internal/events"
	"github.com/nieko-nera/core/internal/history"
)

// HistoryStore is the slice of the history store the handler needs.
type HistoryStore interface {
	GetUser(ctx context.Context, id string) (*domain.UserData, error)
	SaveActivity(ctx context.Context, activity *domain.Activity, verdicts []events.RecipeEvaluated) error
}

// RecipeSource supplies the recipes defined for a user.
type RecipeSource interface {
	RecipesFor(ctx context.Context, userID string) ([]domain.Recipe, error)
}

// EvaluationHandler evaluates every enabled recipe against an incoming
// activity and stages the verdicts for delivery.
//
// The history lookup the engine performs for first-of-day conditions must see
// only activities that arrived before this one, so evaluation runs before the
// activity is saved. The save then records the activity, its verdicts and the
// last-activity anchor in a single transaction.
type EvaluationHandler struct {
	store   HistoryStore
	recipes RecipeSource
	engine  *engine.Engine
	logger  *log.Logger
	now     func() time.Time
}

// NewEvaluationHandler constructs the handler.
func NewEvaluationHandler(store HistoryStore, recipes RecipeSource, eng *engine.Engine, opts ...HandlerOption) *EvaluationHandler {
	h := &EvaluationHandler{
		store:   store,
		recipes: recipes,
		engine:  eng,
		logger:  log.New(log.Writer(), "[evaluation] ", log.LstdFlags),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandlerOption configures optional handler behaviour.
type HandlerOption func(*EvaluationHandler)

// WithHandlerLogger overrides the handler logger.
func WithHandlerLogger(logger *log.Logger) HandlerOption {
	return func(h *EvaluationHandler) { h.logger = logger }
}

// WithHandlerClock overrides the verdict timestamp source.
func WithHandlerClock(now func() time.Time) HandlerOption {
	return func(h *EvaluationHandler) { h.now = now }
}

// Handle evaluates an activity.processed event. Events of any other type are
// ignored without error.
func (h *EvaluationHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != events.TypeActivityProcessed {
		return nil
	}

	var evt events.ActivityProcessed
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		return fmt.Errorf("decoding activity payload: %w", err)
	}
	if evt.ActivityID == 0 || evt.UserID == "" {
		return fmt.Errorf("activity event missing identity: activity_id=%d user_id=%q", evt.ActivityID, evt.UserID)
	}

	activity := evt.ToActivity()

	user, err := h.store.GetUser(ctx, evt.UserID)
	if err != nil {
		return fmt.Errorf("loading user %s: %w", evt.UserID, err)
	}

	recipes, err := h.recipes.RecipesFor(ctx, evt.UserID)
	if err != nil {
		return fmt.Errorf("loading recipes for %s: %w", evt.UserID, err)
	}

	verdicts := h.evaluate(ctx, user, &activity, recipes)

	if err := h.store.SaveActivity(ctx, &activity, verdicts); err != nil {
		if errors.Is(err, history.ErrDuplicateActivity) {
			h.logger.Printf("activity %d for user %s already recorded, skipping replay", activity.ID, activity.UserID)
			return nil
		}
		return fmt.Errorf("saving activity %d: %w", activity.ID, err)
	}

	return nil
}

// evaluate returns one verdict per enabled recipe. A recipe whose evaluation
// errors is reported as unmatched; the error is logged, never re-queued.
func (h *EvaluationHandler) evaluate(ctx context.Context, user *domain.UserData, activity *domain.Activity, recipes []domain.Recipe) []events.RecipeEvaluated {
	if len(recipes) == 0 {
		return nil
	}

	evaluation := h.engine.NewEvaluation(user, activity)
	verdicts := make([]events.RecipeEvaluated, 0, len(recipes))
	for i := range recipes {
		recipe := &recipes[i]
		if recipe.Disabled {
			continue
		}

		matched, err := evaluation.MatchRecipe(ctx, recipe)
		if err != nil {
			h.logger.Printf("activity %d: %v", activity.ID, err)
		}
		verdicts = append(verdicts, events.RecipeEvaluated{
			ActivityID:  activity.ID,
			UserID:      activity.UserID,
			RecipeID:    recipe.ID,
			RecipeTitle: recipe.Title,
			Matched:     matched,
			Conditions:  len(recipe.Conditions),
			EvaluatedAt: h.now().UTC(),
		})
	}
	return verdicts
}
