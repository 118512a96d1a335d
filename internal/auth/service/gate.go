package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"workguard/internal/auth/models"
	"workguard/internal/jwttoken"
	dErrors "workguard/pkg/domain-errors"
	"workguard/pkg/platform/sentinel"
	"workguard/pkg/requestcontext"
)

const sessionInvalidatedMessage = "Your session has been invalidated. Please log in again."

// Gate rejection reasons.
const (
	RejectInvalidToken       = "invalid_token"
	RejectSessionInvalidated = "session_invalidated"
	RejectSessionMismatch    = "session_mismatch"
)

// Authenticate admits a bearer token only while its session row is ACTIVE.
// A verified signature never overrides the row: a token whose session was
// invalidated or expired gets CodeSessionInvalidated.
func (s *Service) Authenticate(ctx context.Context, token string) (principal *models.Principal, err error) {
	ctx, span := s.startSpan(ctx, "auth.Authenticate")
	defer func() { endSpan(span, err) }()

	claims, err := s.tokens.Validate(token)
	if err != nil {
		s.gateRejected(ctx, RejectInvalidToken)
		return nil, err
	}
	userID, sessionID, err := claims.ParsedIDs()
	if err != nil {
		s.gateRejected(ctx, RejectInvalidToken)
		return nil, err
	}
	span.SetAttributes(attribute.String("workguard.session_id", sessionID.String()))

	session, err := s.sessions.FindByTokenHash(ctx, jwttoken.Hash(token))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.gateRejected(ctx, RejectSessionInvalidated, "session_id", sessionID.String())
			return nil, dErrors.New(dErrors.CodeSessionInvalidated, sessionInvalidatedMessage)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	if session.ID != sessionID || session.UserID != userID {
		s.gateRejected(ctx, RejectSessionMismatch, "session_id", sessionID.String())
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !session.IsActive() {
		s.gateRejected(ctx, RejectSessionInvalidated,
			"session_id", session.ID.String(),
			"status", session.Status.String(),
		)
		return nil, dErrors.New(dErrors.CodeSessionInvalidated, sessionInvalidatedMessage)
	}

	if err := s.sessions.TouchActivity(ctx, session.ID, requestcontext.Now(ctx)); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			s.gateRejected(ctx, RejectSessionInvalidated, "session_id", session.ID.String())
			return nil, dErrors.New(dErrors.CodeSessionInvalidated, sessionInvalidatedMessage)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to refresh session activity")
	}
	if s.presence != nil {
		if err := s.presence.Touch(ctx, session.UserID); err != nil {
			s.logger.WarnContext(ctx, "failed to refresh presence",
				"error", err,
				"user_id", session.UserID.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}

	return &models.Principal{
		UserID:    session.UserID,
		SessionID: session.ID,
		Role:      models.Role(claims.Role),
	}, nil
}
