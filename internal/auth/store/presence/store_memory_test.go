package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "workguard/pkg/domain"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := New(5*time.Minute, WithClock(func() time.Time { return now }))
	userID := id.NewUserID()

	online, err := store.IsOnline(ctx, userID)
	require.NoError(t, err)
	assert.False(t, online)

	require.NoError(t, store.Touch(ctx, userID))
	online, _ = store.IsOnline(ctx, userID)
	assert.True(t, online)

	now = now.Add(5 * time.Minute)
	online, _ = store.IsOnline(ctx, userID)
	assert.False(t, online, "presence expires after the ttl")

	require.NoError(t, store.Touch(ctx, userID))
	require.NoError(t, store.SetOffline(ctx, userID))
	online, _ = store.IsOnline(ctx, userID)
	assert.False(t, online)
}
