package session

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

// Error Contract:
// - ErrNotFound when no session matches
// - ErrConflict when a token hash is already stored
// - ErrInvalidState when a conditional transition finds the row not ACTIVE
//
// Sessions are copied on the way in and out so callers never alias store state.

// InMemorySessionStore stores sessions in memory for tests and single-node dev.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*models.Session
	byToken  map[string]id.SessionID
}

func New() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions: make(map[id.SessionID]*models.Session),
		byToken:  make(map[string]id.SessionID),
	}
}

func (s *InMemorySessionStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return fmt.Errorf("session %s: %w", session.ID, sentinel.ErrConflict)
	}
	if _, ok := s.byToken[session.TokenHash]; ok {
		return fmt.Errorf("session token hash: %w", sentinel.ErrConflict)
	}
	s.sessions[session.ID] = clone(session)
	s.byToken[session.TokenHash] = session.ID
	return nil
}

func (s *InMemorySessionStore) FindByID(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if session, ok := s.sessions[sessionID]; ok {
		return clone(session), nil
	}
	return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
}

func (s *InMemorySessionStore) FindByTokenHash(_ context.Context, tokenHash string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sid, ok := s.byToken[tokenHash]; ok {
		return clone(s.sessions[sid]), nil
	}
	return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
}

// ListActiveByUser returns the user's ACTIVE sessions, most recent login first.
// Equal login times fall back to descending ID, matching the Postgres order.
func (s *InMemorySessionStore) ListActiveByUser(_ context.Context, userID id.UserID) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Session
	for _, session := range s.sessions {
		if session.UserID == userID && session.IsActive() {
			out = append(out, clone(session))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LoginTime.Equal(out[j].LoginTime) {
			return out[i].LoginTime.After(out[j].LoginTime)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return out, nil
}

func (s *InMemorySessionStore) CountActiveByUser(ctx context.Context, userID id.UserID) (int, error) {
	active, err := s.ListActiveByUser(ctx, userID)
	return len(active), err
}

// CloseIfActive transitions an ACTIVE session to status. The check and the
// write happen under one lock so two racing closers cannot both succeed.
func (s *InMemorySessionStore) CloseIfActive(_ context.Context, sessionID id.SessionID, status models.SessionStatus, reason string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	if err := session.Close(status, reason); err != nil {
		return nil, err
	}
	return clone(session), nil
}

// TouchActivity refreshes LastActivityTime on an ACTIVE session. Timestamps
// never move backwards.
func (s *InMemorySessionStore) TouchActivity(_ context.Context, sessionID id.SessionID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	if !session.IsActive() {
		return sentinel.ErrInvalidState
	}
	if at.After(session.LastActivityTime) {
		session.LastActivityTime = at
	}
	return nil
}

func clone(s *models.Session) *models.Session {
	c := *s
	if s.Reason != nil {
		r := *s.Reason
		c.Reason = &r
	}
	return &c
}
