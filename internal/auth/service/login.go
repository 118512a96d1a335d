package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	authmetrics "workguard/internal/auth/metrics"
	"workguard/internal/auth/models"
	"workguard/internal/auth/password"
	"workguard/internal/auth/policy"
	"workguard/internal/device"
	"workguard/internal/jwttoken"
	notificationmodels "workguard/internal/notification/models"
	id "workguard/pkg/domain"
	dErrors "workguard/pkg/domain-errors"
	"workguard/pkg/platform/sentinel"
	"workguard/pkg/requestcontext"
)

const (
	invalidCredentialsMessage = "Invalid credentials"
	mobileRestrictedMessage   = "Mobile login is not allowed for employees. Please use a desktop or laptop computer."
)

// Login runs the pipeline: credentials, mobile restriction, multi-device
// conflict, issuance. It stops at the first failure and writes exactly one
// LoginAttempt per call.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (result *models.LoginResult, err error) {
	start := time.Now()
	outcome := authmetrics.OutcomeError
	ctx, span := s.startSpan(ctx, "auth.Login")
	defer func() {
		s.observeLogin(outcome, start)
		endSpan(span, err)
	}()

	email := models.NormalizeEmail(req.Email)
	dev := device.Resolve(req.UserAgent, req.IPAddress)
	now := requestcontext.Now(ctx)
	attempt := &models.LoginAttempt{
		ID:                id.NewAttemptID(),
		Email:             email,
		DeviceFingerprint: dev.Fingerprint,
		IPAddress:         device.Clean(req.IPAddress),
		UserAgent:         device.Clean(req.UserAgent),
		IsMobile:          dev.IsMobile,
		CreatedAt:         now,
	}

	user, err := s.checkCredentials(ctx, email, req.Password, attempt)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidCredentials) {
			outcome = authmetrics.OutcomeInvalidCredentials
		}
		return nil, err
	}
	span.SetAttributes(
		attribute.String("workguard.user_id", user.ID.String()),
		attribute.String("workguard.role", string(user.Role)),
	)

	if s.policy.MobileRestricted(ctx, policy.Input{Role: user.Role, UserAgent: req.UserAgent}) {
		outcome = authmetrics.OutcomeMobileRestricted
		return nil, s.rejectMobile(ctx, user, dev, attempt)
	}

	result, displaced, err := s.issue(ctx, user, dev, attempt)
	if err != nil {
		return nil, err
	}
	outcome = authmetrics.OutcomeSuccess

	if s.presence != nil {
		if err := s.presence.Touch(ctx, user.ID); err != nil {
			s.logger.WarnContext(ctx, "failed to mark user present",
				"error", err,
				"user_id", user.ID.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}
	if displaced != nil {
		if s.metrics != nil {
			s.metrics.IncSessionsInvalidated()
		}
		s.notifyAdmins(ctx, multipleLoginDraft(user, displaced, dev, attempt.IPAddress, result))
	}

	s.logger.InfoContext(ctx, "login succeeded",
		"user_id", user.ID.String(),
		"email", email,
		"session_id", result.SessionID.String(),
		"device", dev.DeviceName,
		"displaced_session", displaced != nil,
		"request_id", requestcontext.RequestID(ctx),
	)
	return result, nil
}

// checkCredentials returns the same external error for an unknown email and
// a wrong password. Both branches pay for one bcrypt comparison.
func (s *Service) checkCredentials(ctx context.Context, email, plaintext string, attempt *models.LoginAttempt) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
		}
		s.hasher.CompareDummy(plaintext)
		if err := s.recordFailure(ctx, attempt, models.AttemptReasonUserNotFound); err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "login rejected",
			"email", email,
			"reason", models.AttemptReasonUserNotFound,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.New(dErrors.CodeInvalidCredentials, invalidCredentialsMessage)
	}

	attempt.UserID = &user.ID
	if err := s.hasher.Compare(user.PasswordHash, plaintext); err != nil {
		if !errors.Is(err, password.ErrMismatch) {
			s.logger.ErrorContext(ctx, "stored password hash is unusable",
				"error", err,
				"user_id", user.ID.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		if err := s.recordFailure(ctx, attempt, models.AttemptReasonInvalidPassword); err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "login rejected",
			"email", email,
			"reason", models.AttemptReasonInvalidPassword,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.New(dErrors.CodeInvalidCredentials, invalidCredentialsMessage)
	}
	return user, nil
}

func (s *Service) rejectMobile(ctx context.Context, user *models.User, dev device.Info, attempt *models.LoginAttempt) error {
	if err := s.recordFailure(ctx, attempt, models.AttemptReasonMobileRestricted); err != nil {
		return err
	}
	s.logger.WarnContext(ctx, "mobile login restricted",
		"user_id", user.ID.String(),
		"email", user.Email,
		"device", dev.DeviceName,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.notifyAdmins(ctx, notificationmodels.Draft{
		Type:           notificationmodels.TypeMobileLoginRestricted,
		Priority:       notificationmodels.PriorityHigh,
		ActionRequired: true,
		Title:          "Mobile Login Attempt Blocked",
		Message: fmt.Sprintf("%s (%s) tried to log in from a mobile device (%s) at %s",
			user.Name, user.Email, dev.DeviceName, attempt.IPAddress),
		RelatedData: notificationmodels.MobileLoginRestrictedData{
			Employee:    employeeOf(user),
			Device:      deviceOf(dev, attempt.IPAddress),
			UserAgent:   attempt.UserAgent,
			AttemptedAt: attempt.CreatedAt,
		},
	})
	return dErrors.New(dErrors.CodeMobileRestricted, mobileRestrictedMessage)
}

// issue runs under the per-user transaction so two concurrent logins cannot
// both see themselves as the only device. Only the newest ACTIVE session is
// compared against the incoming device.
func (s *Service) issue(ctx context.Context, user *models.User, dev device.Info, attempt *models.LoginAttempt) (*models.LoginResult, *models.Session, error) {
	var (
		result    *models.LoginResult
		displaced *models.Session
	)
	err := s.tx.RunInTx(ctx, user.ID, func(txCtx context.Context) error {
		displaced = nil
		active, err := s.sessions.ListActiveByUser(txCtx, user.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sessions")
		}
		attempt.Reason = models.AttemptReasonSuccess
		if len(active) > 0 && !device.Matches(active[0].DeviceFingerprint, dev.Fingerprint) {
			closed, err := s.sessions.CloseIfActive(txCtx, active[0].ID, models.SessionStatusInvalidated,
				models.NewLoginReason(dev.OSName, dev.BrowserName))
			switch {
			case err == nil:
				displaced = closed
				attempt.Reason = models.PreviousSessionInvalidatedReason(dev.OSName, dev.BrowserName)
			case errors.Is(err, sentinel.ErrInvalidState), errors.Is(err, sentinel.ErrNotFound):
				// closed by a logout between the list and the update
			default:
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to invalidate previous session")
			}
		}

		now := requestcontext.Now(txCtx)
		sessionID := id.NewSessionID()
		token, err := s.tokens.Issue(user.ID, sessionID, string(user.Role))
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
		}
		session := &models.Session{
			ID:                sessionID,
			UserID:            user.ID,
			TokenHash:         jwttoken.Hash(token),
			DeviceFingerprint: dev.Fingerprint,
			DeviceName:        dev.DeviceName,
			BrowserName:       dev.BrowserName,
			OSName:            dev.OSName,
			IPAddress:         attempt.IPAddress,
			IsMobile:          dev.IsMobile,
			IsTablet:          dev.IsTablet,
			LoginTime:         now,
			LastActivityTime:  now,
			Status:            models.SessionStatusActive,
		}
		if err := s.sessions.Create(txCtx, session); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create session")
		}
		if err := s.users.SetOnline(txCtx, user.ID, true, now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update user status")
		}
		attempt.Success = true
		if err := s.attempts.Append(txCtx, attempt); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record login attempt")
		}

		summary := user.Summary()
		summary.IsOnline = true
		result = &models.LoginResult{
			Token:     token,
			SessionID: sessionID,
			User:      summary,
			SessionInfo: models.SessionInfo{
				DeviceName:  dev.DeviceName,
				OSName:      dev.OSName,
				BrowserName: dev.BrowserName,
				LoginTime:   now,
			},
		}
		if displaced != nil {
			result.InvalidatedSessionID = &displaced.ID
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, displaced, nil
}

func (s *Service) recordFailure(ctx context.Context, attempt *models.LoginAttempt, reason string) error {
	attempt.Success = false
	attempt.Reason = reason
	if err := s.attempts.Append(ctx, attempt); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record login attempt")
	}
	return nil
}

func multipleLoginDraft(user *models.User, previous *models.Session, dev device.Info, ip string, result *models.LoginResult) notificationmodels.Draft {
	return notificationmodels.Draft{
		Type:     notificationmodels.TypeMultipleLoginAttempt,
		Priority: notificationmodels.PriorityMedium,
		Title:    "Multiple Login Detected",
		Message: fmt.Sprintf("%s (%s) logged in from %s. The session on %s was logged out.",
			user.Name, user.Email, dev.DeviceName, previous.DeviceName),
		RelatedData: notificationmodels.MultipleLoginData{
			Employee:          employeeOf(user),
			PreviousSessionID: previous.ID,
			PreviousDevice: notificationmodels.Device{
				DeviceName:  previous.DeviceName,
				BrowserName: previous.BrowserName,
				OSName:      previous.OSName,
				IPAddress:   previous.IPAddress,
				IsMobile:    previous.IsMobile,
				IsTablet:    previous.IsTablet,
			},
			PreviousLoginTime: previous.LoginTime,
			NewSessionID:      result.SessionID,
			NewDevice:         deviceOf(dev, ip),
			LoginTime:         result.SessionInfo.LoginTime,
		},
	}
}

func employeeOf(user *models.User) notificationmodels.Employee {
	return notificationmodels.Employee{
		EmployeeID:    user.ID,
		EmployeeName:  user.Name,
		EmployeeEmail: user.Email,
	}
}

func deviceOf(dev device.Info, ip string) notificationmodels.Device {
	return notificationmodels.Device{
		DeviceName:  dev.DeviceName,
		BrowserName: dev.BrowserName,
		OSName:      dev.OSName,
		IPAddress:   ip,
		IsMobile:    dev.IsMobile,
		IsTablet:    dev.IsTablet,
	}
}
