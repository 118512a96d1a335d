package attempt

import (
	"context"
	"sort"
	"sync"

	"workguard/internal/auth/models"
)

// InMemoryStore keeps login attempts in insertion order.
type InMemoryStore struct {
	mu       sync.RWMutex
	attempts []models.LoginAttempt
}

func New() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, attempt *models.LoginAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, *attempt)
	return nil
}

// List returns matching attempts newest first. Ties on CreatedAt keep the
// later append first.
func (s *InMemoryStore) List(_ context.Context, filter models.AttemptFilter) ([]models.LoginAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.EffectiveLimit()
	email := models.NormalizeEmail(filter.Email)
	out := make([]models.LoginAttempt, 0, min(limit, len(s.attempts)))
	for i := len(s.attempts) - 1; i >= 0; i-- {
		a := s.attempts[i]
		if filter.UserID != nil && (a.UserID == nil || *a.UserID != *filter.UserID) {
			continue
		}
		if email != "" && models.NormalizeEmail(a.Email) != email {
			continue
		}
		out = append(out, a)
	}
	sortNewestFirst(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortNewestFirst(attempts []models.LoginAttempt) {
	sort.SliceStable(attempts, func(i, j int) bool {
		return attempts[i].CreatedAt.After(attempts[j].CreatedAt)
	})
}
