package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nieko-nera/core/internal/domain"
	"github.com/nieko-nera/core/internal/events"
)

// InMemoryStore keeps activities and users in memory for local development
// and tests.
type InMemoryStore struct {
	mu         sync.RWMutex
	activities map[int64]domain.Activity
	users      map[string]domain.UserData
	verdicts   map[int64][]events.RecipeEvaluated
}

// NewInMemoryStore constructs an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		activities: make(map[int64]domain.Activity),
		users:      make(map[string]domain.UserData),
		verdicts:   make(map[int64][]events.RecipeEvaluated),
	}
}

// SaveActivity implements Store.
func (s *InMemoryStore) SaveActivity(ctx context.Context, activity *domain.Activity, verdicts []events.RecipeEvaluated) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.activities[activity.ID]; exists {
		return ErrDuplicateActivity
	}
	s.activities[activity.ID] = *activity
	if len(verdicts) > 0 {
		s.verdicts[activity.ID] = append([]events.RecipeEvaluated(nil), verdicts...)
	}

	user := s.users[activity.UserID]
	if user.ID == "" {
		user.ID = activity.UserID
	}
	if activity.DateStart.After(user.LastActivityAt) {
		user.LastActivityAt = activity.DateStart
	}
	s.users[user.ID] = user
	return nil
}

// GetActivity implements Store.
func (s *InMemoryStore) GetActivity(ctx context.Context, id int64) (*domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	activity, ok := s.activities[id]
	if !ok {
		return nil, nil
	}
	return &activity, nil
}

// ListRange implements Store.
func (s *InMemoryStore) ListRange(ctx context.Context, userID string, from time.Time, to *time.Time) ([]domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]domain.Activity, 0)
	for _, activity := range s.activities {
		if activity.UserID != userID {
			continue
		}
		if activity.DateStart.Before(from) {
			continue
		}
		if to != nil && !activity.DateStart.Before(*to) {
			continue
		}
		results = append(results, activity)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].DateStart.Equal(results[j].DateStart) {
			return results[i].ID < results[j].ID
		}
		return results[i].DateStart.Before(results[j].DateStart)
	})
	return results, nil
}

// GetUser implements Store.
func (s *InMemoryStore) GetUser(ctx context.Context, id string) (*domain.UserData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// SaveUser implements Store.
func (s *InMemoryStore) SaveUser(ctx context.Context, user domain.UserData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[user.ID] = user
	return nil
}

// Verdicts returns the recorded verdict events for an activity. Test helper;
// the Postgres store delivers these through the outbox instead.
func (s *InMemoryStore) Verdicts(activityID int64) []events.RecipeEvaluated {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]events.RecipeEvaluated(nil), s.verdicts[activityID]...)
}
