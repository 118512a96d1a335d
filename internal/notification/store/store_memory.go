package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"workguard/internal/notification/models"
	id "workguard/pkg/domain"
	"workguard/pkg/platform/sentinel"
)

// Error Contract:
// - ErrNotFound when the notification does not exist or belongs to another admin
// - ErrConflict when a batch repeats an existing id; nothing from the batch is stored

// InMemoryStore keeps notifications in memory for tests and single-node dev.
type InMemoryStore struct {
	mu   sync.RWMutex
	rows map[id.NotificationID]*models.Notification
}

func New() *InMemoryStore {
	return &InMemoryStore{rows: make(map[id.NotificationID]*models.Notification)}
}

func (s *InMemoryStore) InsertMany(_ context.Context, batch []*models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range batch {
		if _, ok := s.rows[n.ID]; ok {
			return fmt.Errorf("notification %s: %w", n.ID, sentinel.ErrConflict)
		}
	}
	for _, n := range batch {
		cp := *n
		s.rows[n.ID] = &cp
	}
	return nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID, filter models.ListFilter) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Notification
	for _, n := range s.rows {
		if n.UserID != userID || (filter.UnreadOnly && n.IsRead) {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit := filter.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) CountUnread(_ context.Context, userID id.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, row := range s.rows {
		if row.UserID == userID && !row.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) MarkRead(_ context.Context, userID id.UserID, notificationID id.NotificationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[notificationID]
	if !ok || row.UserID != userID {
		return fmt.Errorf("notification not found: %w", sentinel.ErrNotFound)
	}
	row.IsRead = true
	return nil
}

func (s *InMemoryStore) MarkAllRead(_ context.Context, userID id.UserID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.rows {
		if row.UserID == userID && !row.IsRead {
			row.IsRead = true
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) Delete(_ context.Context, userID id.UserID, notificationID id.NotificationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[notificationID]
	if !ok || row.UserID != userID {
		return fmt.Errorf("notification not found: %w", sentinel.ErrNotFound)
	}
	delete(s.rows, notificationID)
	return nil
}
