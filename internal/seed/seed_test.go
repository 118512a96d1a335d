package seed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"workguard/internal/auth/models"
	"workguard/internal/auth/password"
	userstore "workguard/internal/auth/store/user"
)

type failingHasher struct{}

func (failingHasher) Hash(string) (string, error) { return "", errors.New("boom") }

func newHasher(t *testing.T) *password.Hasher {
	t.Helper()
	h, err := password.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hasher := newHasher(t)

	t.Run("creates demo accounts then skips them", func(t *testing.T) {
		users := userstore.New()

		res, err := Run(ctx, users, hasher, DemoAccounts, DemoPassword, logger)
		require.NoError(t, err)
		assert.Equal(t, Result{Created: 3}, res)

		admin, err := users.FindByEmail(ctx, "ADMIN@demo.com")
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, admin.Role)
		assert.Equal(t, "Management", admin.Department)
		assert.NoError(t, hasher.Compare(admin.PasswordHash, DemoPassword))

		res, err = Run(ctx, users, hasher, DemoAccounts, DemoPassword, logger)
		require.NoError(t, err)
		assert.Equal(t, Result{Skipped: 3}, res)
	})

	t.Run("derives missing names from email", func(t *testing.T) {
		users := userstore.New()
		_, err := Run(ctx, users, hasher, []Account{{Email: "mary.jones@co.com", Role: models.RoleEmployee}}, DemoPassword, logger)
		require.NoError(t, err)

		u, err := users.FindByEmail(ctx, "mary.jones@co.com")
		require.NoError(t, err)
		assert.Equal(t, "Mary Jones", u.Name)
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := Run(ctx, userstore.New(), hasher, DemoAccounts, "", logger)
		require.Error(t, err)
	})

	t.Run("propagates hash failure", func(t *testing.T) {
		_, err := Run(ctx, userstore.New(), failingHasher{}, DemoAccounts, DemoPassword, logger)
		require.ErrorContains(t, err, "hash seed password")
	})
}
