package presence

import (
	"context"
	"sync"
	"time"

	id "workguard/pkg/domain"
)

// InMemoryStore mirrors RedisStore's expiry semantics for tests and
// single-node dev.
type InMemoryStore struct {
	mu      sync.Mutex
	expires map[id.UserID]time.Time
	ttl     time.Duration
	now     func() time.Time
}

type Option func(*InMemoryStore)

func WithClock(now func() time.Time) Option {
	return func(s *InMemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func New(ttl time.Duration, opts ...Option) *InMemoryStore {
	s := &InMemoryStore{
		expires: make(map[id.UserID]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Touch(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expires[userID] = s.now().Add(s.ttl)
	return nil
}

func (s *InMemoryStore) SetOffline(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.expires, userID)
	return nil
}

func (s *InMemoryStore) IsOnline(_ context.Context, userID id.UserID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.expires[userID]
	if !ok {
		return false, nil
	}
	if !s.now().Before(exp) {
		delete(s.expires, userID)
		return false, nil
	}
	return true, nil
}
