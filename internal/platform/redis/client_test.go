package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workguard/internal/platform/config"
)

func TestOpenWithoutURL(t *testing.T) {
	client, err := Open(context.Background(), config.RedisConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, client)

	t.Run("nil client is safe to use", func(t *testing.T) {
		assert.ErrorIs(t, client.Health(context.Background()), ErrNotConfigured)
		assert.NoError(t, client.Close())
		assert.Empty(t, client.Addr())
	})
}

func TestOpenRejectsBadURL(t *testing.T) {
	_, err := Open(context.Background(), config.RedisConfig{URL: "http://not-redis"}, nil)
	assert.ErrorContains(t, err, "parse redis URL")
}

func TestClientOptions(t *testing.T) {
	t.Run("config overrides the URL defaults", func(t *testing.T) {
		opts, err := clientOptions(config.RedisConfig{
			URL:          "redis://presence.internal:6380/2",
			PoolSize:     20,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, "presence.internal:6380", opts.Addr)
		assert.Equal(t, 2, opts.DB)
		assert.Equal(t, 20, opts.PoolSize)
		assert.Equal(t, 2, opts.MinIdleConns)
		assert.Equal(t, 5*time.Second, opts.DialTimeout)
		assert.Equal(t, 3*time.Second, opts.ReadTimeout)
	})

	t.Run("zero values keep what the URL parsed", func(t *testing.T) {
		opts, err := clientOptions(config.RedisConfig{URL: "redis://localhost:6379/0?pool_size=7&dial_timeout=2s"})
		require.NoError(t, err)
		assert.Equal(t, 7, opts.PoolSize)
		assert.Equal(t, 2*time.Second, opts.DialTimeout)
	})
}

func TestOpenUnreachable(t *testing.T) {
	start := time.Now()
	_, err := Open(context.Background(), config.RedisConfig{
		URL:         "redis://127.0.0.1:1/0",
		DialTimeout: 200 * time.Millisecond,
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis at 127.0.0.1:1")
	assert.Less(t, time.Since(start), 5*time.Second)
}
