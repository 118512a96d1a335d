package user

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"workguard/internal/auth/models"
	id "workguard/pkg/domain"
	"workguard/pkg/platform/sentinel"
)

// InMemoryUserStore is the in-memory employee directory used by tests and dev.
type InMemoryUserStore struct {
	mu      sync.RWMutex
	users   map[id.UserID]*models.User
	byEmail map[string]id.UserID
}

func New() *InMemoryUserStore {
	return &InMemoryUserStore{
		users:   make(map[id.UserID]*models.User),
		byEmail: make(map[string]id.UserID),
	}
}

// Save inserts or replaces a user. Emails are unique case-insensitively.
func (s *InMemoryUserStore) Save(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := models.NormalizeEmail(user.Email)
	if owner, ok := s.byEmail[email]; ok && owner != user.ID {
		return fmt.Errorf("user email %s: %w", email, sentinel.ErrConflict)
	}
	if prev, ok := s.users[user.ID]; ok {
		delete(s.byEmail, models.NormalizeEmail(prev.Email))
	}
	c := *user
	s.users[user.ID] = &c
	s.byEmail[email] = user.ID
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[userID]; ok {
		c := *u
		return &c, nil
	}
	return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if uid, ok := s.byEmail[models.NormalizeEmail(email)]; ok {
		c := *s.users[uid]
		return &c, nil
	}
	return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
}

// ListIDsByRole returns ids of every user with role, in a stable order.
func (s *InMemoryUserStore) ListIDsByRole(_ context.Context, role models.Role) ([]id.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []id.UserID
	for _, u := range s.users {
		if u.Role == role {
			out = append(out, u.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (s *InMemoryUserStore) SetOnline(_ context.Context, userID id.UserID, online bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	u.IsOnline = online
	u.LastActivity = &at
	return nil
}
