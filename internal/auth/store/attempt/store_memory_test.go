package attempt

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workguard/internal/auth/models"
	id "workguard/pkg/domain"
)

func TestInMemoryStore_List(t *testing.T) {
	ctx := context.Background()
	store := New()
	bob := id.NewUserID()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := range 5 {
		uid := bob
		require.NoError(t, store.Append(ctx, &models.LoginAttempt{
			ID:        id.NewAttemptID(),
			UserID:    &uid,
			Email:     "bob@co.com",
			Success:   i%2 == 0,
			Reason:    fmt.Sprintf("attempt-%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, store.Append(ctx, &models.LoginAttempt{
		ID:        id.NewAttemptID(),
		Email:     "ghost@co.com",
		Reason:    models.AttemptReasonUserNotFound,
		CreatedAt: base.Add(10 * time.Minute),
	}))

	t.Run("newest first across all users", func(t *testing.T) {
		all, err := store.List(ctx, models.AttemptFilter{})
		require.NoError(t, err)
		require.Len(t, all, 6)
		assert.Equal(t, "ghost@co.com", all[0].Email)
		assert.Nil(t, all[0].UserID)
		assert.Equal(t, "attempt-4", all[1].Reason)
	})

	t.Run("filters by user", func(t *testing.T) {
		got, err := store.List(ctx, models.AttemptFilter{UserID: &bob})
		require.NoError(t, err)
		assert.Len(t, got, 5)
	})

	t.Run("filters by email case-insensitively", func(t *testing.T) {
		got, err := store.List(ctx, models.AttemptFilter{Email: "GHOST@co.com"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, models.AttemptReasonUserNotFound, got[0].Reason)
	})

	t.Run("honours limit", func(t *testing.T) {
		got, err := store.List(ctx, models.AttemptFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}
