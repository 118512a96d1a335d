package service

import (
	"context"
	"errors"

	"workguard/internal/auth/models"
	id "workguard/pkg/domain"
	dErrors "workguard/pkg/domain-errors"
	"workguard/pkg/platform/sentinel"
	"workguard/pkg/requestcontext"
)

// ListSessions returns the caller's ACTIVE sessions newest first, flagging
// the one behind the current request.
func (s *Service) ListSessions(ctx context.Context, userID id.UserID, current id.SessionID) ([]models.SessionSummary, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "user ID required")
	}
	sessions, err := s.sessions.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sessions")
	}
	out := make([]models.SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, session.Summary(current))
	}
	return out, nil
}

// LogoutDevice expires one of the caller's ACTIVE sessions. A session that
// is missing, owned by someone else or already closed is CodeNotFound, so a
// repeated call never transitions a row twice.
func (s *Service) LogoutDevice(ctx context.Context, userID id.UserID, sessionID id.SessionID) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "user ID required")
	}
	if sessionID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "session ID required")
	}

	return s.tx.RunInTx(ctx, userID, func(txCtx context.Context) error {
		session, err := s.sessions.FindByID(txCtx, sessionID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return sessionNotFound()
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
		}
		if session.UserID != userID || !session.IsActive() {
			return sessionNotFound()
		}
		if _, err := s.sessions.CloseIfActive(txCtx, sessionID, models.SessionStatusExpired, models.ReasonLoggedOutDevice); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) || errors.Is(err, sentinel.ErrNotFound) {
				return sessionNotFound()
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to log out device")
		}
		if s.metrics != nil {
			s.metrics.IncSessionsClosed("device")
		}
		s.logger.InfoContext(txCtx, "device logged out",
			"user_id", userID.String(),
			"session_id", sessionID.String(),
			"request_id", requestcontext.RequestID(txCtx),
		)
		return s.clearOnlineIfNoSessions(txCtx, userID)
	})
}

// Logout expires the caller's current session. A session that is already
// closed is not an error.
func (s *Service) Logout(ctx context.Context, userID id.UserID, sessionID id.SessionID) error {
	if userID.IsNil() || sessionID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "user ID required")
	}

	return s.tx.RunInTx(ctx, userID, func(txCtx context.Context) error {
		session, err := s.sessions.FindByID(txCtx, sessionID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return sessionNotFound()
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
		}
		if session.UserID != userID {
			return sessionNotFound()
		}
		_, err = s.sessions.CloseIfActive(txCtx, sessionID, models.SessionStatusExpired, models.ReasonLoggedOut)
		switch {
		case err == nil:
			if s.metrics != nil {
				s.metrics.IncSessionsClosed("current")
			}
		case errors.Is(err, sentinel.ErrInvalidState):
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to log out")
		}
		s.logger.InfoContext(txCtx, "user logged out",
			"user_id", userID.String(),
			"session_id", sessionID.String(),
			"request_id", requestcontext.RequestID(txCtx),
		)
		return s.clearOnlineIfNoSessions(txCtx, userID)
	})
}

func (s *Service) clearOnlineIfNoSessions(ctx context.Context, userID id.UserID) error {
	remaining, err := s.sessions.CountActiveByUser(ctx, userID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count sessions")
	}
	if remaining > 0 {
		return nil
	}
	if err := s.users.SetOnline(ctx, userID, false, requestcontext.Now(ctx)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update user status")
	}
	if s.presence != nil {
		if err := s.presence.SetOffline(ctx, userID); err != nil {
			s.logger.WarnContext(ctx, "failed to clear presence",
				"error", err,
				"user_id", userID.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}
	return nil
}

// ListLoginAttempts is the admin audit read, newest first.
func (s *Service) ListLoginAttempts(ctx context.Context, filter models.AttemptFilter) ([]models.LoginAttempt, error) {
	filter.Email = models.NormalizeEmail(filter.Email)
	attempts, err := s.attempts.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list login attempts")
	}
	if attempts == nil {
		attempts = []models.LoginAttempt{}
	}
	return attempts, nil
}

// UserPresence reports whether userID is online. The presence registry is
// authoritative when configured; the users table flag is the fallback.
func (s *Service) UserPresence(ctx context.Context, userID id.UserID) (*models.UserPresence, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "User not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	active, err := s.sessions.CountActiveByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count sessions")
	}

	online := user.IsOnline
	if s.presence != nil {
		registered, err := s.presence.IsOnline(ctx, userID)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to read presence",
				"error", err,
				"user_id", userID.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
		} else {
			online = registered
		}
	}
	return &models.UserPresence{
		UserID:         userID,
		Online:         online && active > 0,
		ActiveSessions: active,
		LastActivity:   user.LastActivity,
	}, nil
}

func sessionNotFound() error {
	return dErrors.New(dErrors.CodeNotFound, "Session not found or already logged out")
}
