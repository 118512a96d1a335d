package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	id "workguard/pkg/domain"
)

var touchDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "workguard_presence_touch_duration_ms",
	Help:    "Latency of presence heartbeat writes in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const presenceKeyPrefix = "presence:user:"

// RedisStore tracks online users as expiring keys so presence survives
// restarts and is shared across instances. A user is online while the key exists.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Touch marks the user online for another TTL window.
func (s *RedisStore) Touch(ctx context.Context, userID id.UserID) error {
	start := time.Now()
	defer func() {
		touchDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()
	if err := s.client.Set(ctx, presenceKeyPrefix+userID.String(), "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("touch presence: %w", err)
	}
	return nil
}

func (s *RedisStore) SetOffline(ctx context.Context, userID id.UserID) error {
	if err := s.client.Del(ctx, presenceKeyPrefix+userID.String()).Err(); err != nil {
		return fmt.Errorf("clear presence: %w", err)
	}
	return nil
}

func (s *RedisStore) IsOnline(ctx context.Context, userID id.UserID) (bool, error) {
	n, err := s.client.Exists(ctx, presenceKeyPrefix+userID.String()).Result()
	if err != nil {
		return false, fmt.Errorf("check presence: %w", err)
	}
	return n == 1, nil
}
