// Package seed creates the demo accounts used by local runs and cmd/seed.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"workguard/internal/auth/models"
	id "workguard/pkg/domain"
	"workguard/pkg/email"
	"workguard/pkg/platform/sentinel"
)

// DemoPassword is shared by every demo account.
const DemoPassword = "demo123"

// Account describes one account to create. Name may be empty, in which case
// it is derived from the email.
type Account struct {
	Email      string
	Name       string
	Role       models.Role
	Department string
}

// DemoAccounts are the three accounts a fresh install ships with.
var DemoAccounts = []Account{
	{Email: "admin@demo.com", Name: "Admin User", Role: models.RoleAdmin, Department: "Management"},
	{Email: "employee@demo.com", Name: "John Smith", Role: models.RoleEmployee, Department: "Engineering"},
	{Email: "sarah@demo.com", Name: "Sarah Johnson", Role: models.RoleEmployee, Department: "Design"},
}

type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Save(ctx context.Context, user *models.User) error
}

type Hasher interface {
	Hash(password string) (string, error)
}

// Result counts what Run did.
type Result struct {
	Created int
	Skipped int
}

// Run creates every account that does not exist yet. Existing emails are
// left untouched, so running it twice is harmless.
func Run(ctx context.Context, users UserStore, hasher Hasher, accounts []Account, password string, logger *slog.Logger) (Result, error) {
	var res Result
	if password == "" {
		return res, errors.New("seed password is required")
	}
	hash, err := hasher.Hash(password)
	if err != nil {
		return res, fmt.Errorf("hash seed password: %w", err)
	}

	for _, acc := range accounts {
		addr := models.NormalizeEmail(acc.Email)
		_, err := users.FindByEmail(ctx, addr)
		switch {
		case err == nil:
			res.Skipped++
			logger.InfoContext(ctx, "seed account exists, skipping", "email", addr)
			continue
		case !errors.Is(err, sentinel.ErrNotFound):
			return res, fmt.Errorf("look up %s: %w", addr, err)
		}

		name := acc.Name
		if name == "" {
			name = email.DisplayName(addr)
		}
		user := &models.User{
			ID:           id.NewUserID(),
			Name:         name,
			Email:        addr,
			PasswordHash: hash,
			Role:         acc.Role,
			Department:   acc.Department,
		}
		if err := users.Save(ctx, user); err != nil {
			return res, fmt.Errorf("save %s: %w", addr, err)
		}
		res.Created++
		logger.InfoContext(ctx, "seed account created", "email", addr, "role", string(acc.Role))
	}
	return res, nil
}
