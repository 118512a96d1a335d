package httptransport

import (
	"context"

	"workguard/internal/auth/models"
	"workguard/pkg/platform/middleware/auth"
)

// SessionGate is the auth service's per-request check.
type SessionGate interface {
	Authenticate(ctx context.Context, token string) (*models.Principal, error)
}

// Authenticator adapts the session gate to the auth middleware.
type Authenticator struct {
	gate SessionGate
}

func NewAuthenticator(gate SessionGate) *Authenticator {
	return &Authenticator{gate: gate}
}

func (a *Authenticator) Authenticate(ctx context.Context, token string) (*auth.Principal, error) {
	p, err := a.gate.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	return &auth.Principal{
		UserID:    p.UserID,
		SessionID: p.SessionID,
		Role:      string(p.Role),
	}, nil
}
