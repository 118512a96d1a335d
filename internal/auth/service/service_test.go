package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"workguard/internal/auth/models"
	"workguard/internal/auth/password"
	"workguard/internal/auth/policy"
	"workguard/internal/auth/service/mocks"
	"workguard/internal/device"
	"workguard/internal/jwttoken"
	notificationmodels "workguard/internal/notification/models"
	id "workguard/pkg/domain"
	dErrors "workguard/pkg/domain-errors"
	"workguard/pkg/platform/sentinel"
)

// ServiceSuite covers the failure branches that the in-memory stores cannot
// produce on demand.
type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	ctrl     *gomock.Controller
	users    *mocks.MockUserStore
	sessions *mocks.MockSessionStore
	attempts *mocks.MockAttemptStore
	presence *mocks.MockPresenceStore
	tokens   *mocks.MockTokenIssuer
	hasher   *mocks.MockPasswordHasher
	policy   *mocks.MockLoginPolicy
	notifier *mocks.MockNotifier
	service  *Service

	user *models.User
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.users = mocks.NewMockUserStore(s.ctrl)
	s.sessions = mocks.NewMockSessionStore(s.ctrl)
	s.attempts = mocks.NewMockAttemptStore(s.ctrl)
	s.presence = mocks.NewMockPresenceStore(s.ctrl)
	s.tokens = mocks.NewMockTokenIssuer(s.ctrl)
	s.hasher = mocks.NewMockPasswordHasher(s.ctrl)
	s.policy = mocks.NewMockLoginPolicy(s.ctrl)
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.service = New(s.users, s.sessions, s.attempts, s.tokens, s.hasher,
		WithPresence(s.presence),
		WithPolicy(s.policy),
		WithNotifier(s.notifier),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.user = &models.User{
		ID:           id.NewUserID(),
		Name:         "Bob",
		Email:        "bob@co.com",
		PasswordHash: "hash",
		Role:         models.RoleEmployee,
	}
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) request() models.LoginRequest {
	return models.LoginRequest{
		Email:     "bob@co.com",
		Password:  "pw",
		UserAgent: chromeWindows,
		IPAddress: officeIP,
	}
}

func (s *ServiceSuite) activeSession(ua string) *models.Session {
	return &models.Session{
		ID:                id.NewSessionID(),
		UserID:            s.user.ID,
		DeviceFingerprint: device.Fingerprint(ua, officeIP),
		DeviceName:        "Windows 10 - Chrome",
		BrowserName:       "Chrome",
		OSName:            "Windows 10",
		LoginTime:         time.Now().Add(-time.Hour),
		LastActivityTime:  time.Now().Add(-time.Minute),
		Status:            models.SessionStatusActive,
	}
}

func (s *ServiceSuite) TestLogin() {
	s.Run("unknown email pays for a dummy compare", func() {
		s.users.EXPECT().FindByEmail(gomock.Any(), "bob@co.com").Return(nil, sentinel.ErrNotFound)
		s.hasher.EXPECT().CompareDummy("pw")
		s.attempts.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, a *models.LoginAttempt) error {
				s.False(a.Success)
				s.Equal(models.AttemptReasonUserNotFound, a.Reason)
				return nil
			})

		_, err := s.service.Login(s.ctx, s.request())
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
	})

	s.Run("user lookup failure is internal and records nothing", func() {
		s.users.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))

		_, err := s.service.Login(s.ctx, s.request())
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("wrong password", func() {
		s.users.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(s.user, nil)
		s.hasher.EXPECT().Compare("hash", "pw").Return(password.ErrMismatch)
		s.attempts.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, a *models.LoginAttempt) error {
				s.Equal(models.AttemptReasonInvalidPassword, a.Reason)
				s.Require().NotNil(a.UserID)
				s.Equal(s.user.ID, *a.UserID)
				return nil
			})

		_, err := s.service.Login(s.ctx, s.request())
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
	})

	s.Run("attempt write failure surfaces as internal", func() {
		s.users.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(s.user, nil)
		s.hasher.EXPECT().Compare(gomock.Any(), gomock.Any()).Return(password.ErrMismatch)
		s.attempts.EXPECT().Append(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

		_, err := s.service.Login(s.ctx, s.request())
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("mobile restricted fans out and does not issue", func() {
		s.users.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(s.user, nil)
		s.hasher.EXPECT().Compare(gomock.Any(), gomock.Any()).Return(nil)
		s.policy.EXPECT().MobileRestricted(gomock.Any(), policy.Input{Role: models.RoleEmployee, UserAgent: safariIPhone}).Return(true)
		s.attempts.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)
		s.notifier.EXPECT().FanOut(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, d notificationmodels.Draft) ([]*notificationmodels.Notification, error) {
				s.Equal(notificationmodels.TypeMobileLoginRestricted, d.Type)
				s.Equal(notificationmodels.PriorityHigh, d.Priority)
				s.True(d.ActionRequired)
				s.NoError(d.Validate())
				return nil, nil
			})

		req := s.request()
		req.UserAgent = safariIPhone
		_, err := s.service.Login(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeMobileRestricted))
	})

	s.Run("notifier failure does not change the outcome", func() {
		s.users.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(s.user, nil)
		s.hasher.EXPECT().Compare(gomock.Any(), gomock.Any()).Return(nil)
		s.policy.EXPECT().MobileRestricted(gomock.Any(), gomock.Any()).Return(true)
		s.attempts.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)
		s.notifier.EXPECT().FanOut(gomock.Any(), gomock.Any()).Return(nil, errors.New("broker down"))

		_, err := s.service.Login(s.ctx, s.request())
		s.True(dErrors.HasCode(err, dErrors.CodeMobileRestricted))
	})

	s.Run("token failure creates no session", func() {
		s.users.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(s.user, nil)
		s.hasher.EXPECT().Compare(gomock.Any(), gomock.Any()).Return(nil)
		s.policy.EXPECT().MobileRestricted(gomock.Any(), gomock.Any()).Return(false)
		s.sessions.EXPECT().ListActiveByUser(gomock.Any(), s.user.ID).Return(nil, nil)
		s.tokens.EXPECT().Issue(s.user.ID, gomock.Any(), "EMPLOYEE").Return("", errors.New("no key"))

		_, err := s.service.Login(s.ctx, s.request())
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("previous session closed concurrently is not a displacement", func() {
		prev := s.activeSession(firefoxWindows)
		s.users.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(s.user, nil)
		s.hasher.EXPECT().Compare(gomock.Any(), gomock.Any()).Return(nil)
		s.policy.EXPECT().MobileRestricted(gomock.Any(), gomock.Any()).Return(false)
		s.sessions.EXPECT().ListActiveByUser(gomock.Any(), s.user.ID).Return([]*models.Session{prev}, nil)
		s.sessions.EXPECT().CloseIfActive(gomock.Any(), prev.ID, models.SessionStatusInvalidated, gomock.Any()).
			Return(nil, sentinel.ErrInvalidState)
		s.tokens.EXPECT().Issue(gomock.Any(), gomock.Any(), gomock.Any()).Return("tok", nil)
		s.sessions.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, session *models.Session) error {
				s.Equal(jwttoken.Hash("tok"), session.TokenHash)
				s.Equal(models.SessionStatusActive, session.Status)
				return nil
			})
		s.users.EXPECT().SetOnline(gomock.Any(), s.user.ID, true, gomock.Any()).Return(nil)
		s.attempts.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, a *models.LoginAttempt) error {
				s.True(a.Success)
				s.Equal(models.AttemptReasonSuccess, a.Reason)
				return nil
			})
		s.presence.EXPECT().Touch(gomock.Any(), s.user.ID).Return(errors.New("redis down"))

		result, err := s.service.Login(s.ctx, s.request())
		s.Require().NoError(err)
		s.Equal("tok", result.Token)
		s.Nil(result.InvalidatedSessionID)
	})

	s.Run("displacement with failing notifier still succeeds", func() {
		prev := s.activeSession(firefoxWindows)
		s.users.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(s.user, nil)
		s.hasher.EXPECT().Compare(gomock.Any(), gomock.Any()).Return(nil)
		s.policy.EXPECT().MobileRestricted(gomock.Any(), gomock.Any()).Return(false)
		s.sessions.EXPECT().ListActiveByUser(gomock.Any(), gomock.Any()).Return([]*models.Session{prev}, nil)
		s.sessions.EXPECT().CloseIfActive(gomock.Any(), prev.ID, models.SessionStatusInvalidated, gomock.Any()).
			Return(prev, nil)
		s.tokens.EXPECT().Issue(gomock.Any(), gomock.Any(), gomock.Any()).Return("tok", nil)
		s.sessions.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		s.users.EXPECT().SetOnline(gomock.Any(), gomock.Any(), true, gomock.Any()).Return(nil)
		s.attempts.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)
		s.presence.EXPECT().Touch(gomock.Any(), gomock.Any()).Return(nil)
		s.notifier.EXPECT().FanOut(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, d notificationmodels.Draft) ([]*notificationmodels.Notification, error) {
				s.Equal(notificationmodels.TypeMultipleLoginAttempt, d.Type)
				s.Equal(notificationmodels.PriorityMedium, d.Priority)
				return nil, errors.New("store down")
			})

		result, err := s.service.Login(s.ctx, s.request())
		s.Require().NoError(err)
		s.Require().NotNil(result.InvalidatedSessionID)
		s.Equal(prev.ID, *result.InvalidatedSessionID)
	})
}

func (s *ServiceSuite) TestAuthenticate() {
	sessionID := id.NewSessionID()
	claims := &jwttoken.Claims{
		UserID:    s.user.ID.String(),
		SessionID: sessionID.String(),
		Role:      "EMPLOYEE",
	}
	row := func(status models.SessionStatus) *models.Session {
		return &models.Session{ID: sessionID, UserID: s.user.ID, Status: status}
	}

	s.Run("bad signature", func() {
		s.tokens.EXPECT().Validate("tok").Return(nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
		_, err := s.service.Authenticate(s.ctx, "tok")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("claims with malformed ids", func() {
		s.tokens.EXPECT().Validate("tok").Return(&jwttoken.Claims{UserID: "x", SessionID: "y"}, nil)
		_, err := s.service.Authenticate(s.ctx, "tok")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("unknown token hash", func() {
		s.tokens.EXPECT().Validate("tok").Return(claims, nil)
		s.sessions.EXPECT().FindByTokenHash(gomock.Any(), jwttoken.Hash("tok")).Return(nil, sentinel.ErrNotFound)
		_, err := s.service.Authenticate(s.ctx, "tok")
		s.True(dErrors.HasCode(err, dErrors.CodeSessionInvalidated))
	})

	s.Run("row for another session", func() {
		other := row(models.SessionStatusActive)
		other.ID = id.NewSessionID()
		s.tokens.EXPECT().Validate("tok").Return(claims, nil)
		s.sessions.EXPECT().FindByTokenHash(gomock.Any(), gomock.Any()).Return(other, nil)
		_, err := s.service.Authenticate(s.ctx, "tok")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("invalidated and expired rows are refused", func() {
		for _, status := range []models.SessionStatus{models.SessionStatusInvalidated, models.SessionStatusExpired} {
			s.tokens.EXPECT().Validate("tok").Return(claims, nil)
			s.sessions.EXPECT().FindByTokenHash(gomock.Any(), gomock.Any()).Return(row(status), nil)
			_, err := s.service.Authenticate(s.ctx, "tok")
			s.True(dErrors.HasCode(err, dErrors.CodeSessionInvalidated), status)
		}
	})

	s.Run("row closed between read and touch", func() {
		s.tokens.EXPECT().Validate("tok").Return(claims, nil)
		s.sessions.EXPECT().FindByTokenHash(gomock.Any(), gomock.Any()).Return(row(models.SessionStatusActive), nil)
		s.sessions.EXPECT().TouchActivity(gomock.Any(), sessionID, gomock.Any()).Return(sentinel.ErrInvalidState)
		_, err := s.service.Authenticate(s.ctx, "tok")
		s.True(dErrors.HasCode(err, dErrors.CodeSessionInvalidated))
	})

	s.Run("store failure is internal", func() {
		s.tokens.EXPECT().Validate("tok").Return(claims, nil)
		s.sessions.EXPECT().FindByTokenHash(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))
		_, err := s.service.Authenticate(s.ctx, "tok")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("active row admits with the token role", func() {
		s.tokens.EXPECT().Validate("tok").Return(claims, nil)
		s.sessions.EXPECT().FindByTokenHash(gomock.Any(), gomock.Any()).Return(row(models.SessionStatusActive), nil)
		s.sessions.EXPECT().TouchActivity(gomock.Any(), sessionID, gomock.Any()).Return(nil)
		s.presence.EXPECT().Touch(gomock.Any(), s.user.ID).Return(errors.New("redis down"))

		principal, err := s.service.Authenticate(s.ctx, "tok")
		s.Require().NoError(err)
		s.Equal(s.user.ID, principal.UserID)
		s.Equal(sessionID, principal.SessionID)
		s.Equal(models.RoleEmployee, principal.Role)
	})
}

func (s *ServiceSuite) TestLogoutDevice() {
	sessionID := id.NewSessionID()

	s.Run("nil ids", func() {
		err := s.service.LogoutDevice(s.ctx, id.UserID{}, sessionID)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		err = s.service.LogoutDevice(s.ctx, s.user.ID, id.SessionID{})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("lost race with another closer", func() {
		s.sessions.EXPECT().FindByID(gomock.Any(), sessionID).
			Return(&models.Session{ID: sessionID, UserID: s.user.ID, Status: models.SessionStatusActive}, nil)
		s.sessions.EXPECT().CloseIfActive(gomock.Any(), sessionID, models.SessionStatusExpired, models.ReasonLoggedOutDevice).
			Return(nil, sentinel.ErrInvalidState)
		err := s.service.LogoutDevice(s.ctx, s.user.ID, sessionID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("other sessions keep the user online", func() {
		s.sessions.EXPECT().FindByID(gomock.Any(), sessionID).
			Return(&models.Session{ID: sessionID, UserID: s.user.ID, Status: models.SessionStatusActive}, nil)
		s.sessions.EXPECT().CloseIfActive(gomock.Any(), sessionID, gomock.Any(), gomock.Any()).Return(nil, nil)
		s.sessions.EXPECT().CountActiveByUser(gomock.Any(), s.user.ID).Return(1, nil)
		s.NoError(s.service.LogoutDevice(s.ctx, s.user.ID, sessionID))
	})

	s.Run("last session clears presence even when redis fails", func() {
		s.sessions.EXPECT().FindByID(gomock.Any(), sessionID).
			Return(&models.Session{ID: sessionID, UserID: s.user.ID, Status: models.SessionStatusActive}, nil)
		s.sessions.EXPECT().CloseIfActive(gomock.Any(), sessionID, gomock.Any(), gomock.Any()).Return(nil, nil)
		s.sessions.EXPECT().CountActiveByUser(gomock.Any(), s.user.ID).Return(0, nil)
		s.users.EXPECT().SetOnline(gomock.Any(), s.user.ID, false, gomock.Any()).Return(nil)
		s.presence.EXPECT().SetOffline(gomock.Any(), s.user.ID).Return(errors.New("redis down"))
		s.NoError(s.service.LogoutDevice(s.ctx, s.user.ID, sessionID))
	})
}

func (s *ServiceSuite) TestListLoginAttemptsNeverReturnsNil() {
	s.attempts.EXPECT().List(gomock.Any(), models.AttemptFilter{Email: "bob@co.com"}).Return(nil, nil)
	attempts, err := s.service.ListLoginAttempts(s.ctx, models.AttemptFilter{Email: " Bob@CO.com "})
	s.Require().NoError(err)
	s.NotNil(attempts)
	s.Empty(attempts)
}

func (s *ServiceSuite) TestUserPresence() {
	s.Run("registry decides while sessions are open", func() {
		s.users.EXPECT().FindByID(gomock.Any(), s.user.ID).Return(s.user, nil)
		s.sessions.EXPECT().CountActiveByUser(gomock.Any(), s.user.ID).Return(1, nil)
		s.presence.EXPECT().IsOnline(gomock.Any(), s.user.ID).Return(true, nil)

		got, err := s.service.UserPresence(s.ctx, s.user.ID)
		s.Require().NoError(err)
		s.True(got.Online)
		s.Equal(1, got.ActiveSessions)
	})

	s.Run("expired heartbeat reads offline", func() {
		s.users.EXPECT().FindByID(gomock.Any(), s.user.ID).Return(&models.User{ID: s.user.ID, IsOnline: true}, nil)
		s.sessions.EXPECT().CountActiveByUser(gomock.Any(), s.user.ID).Return(1, nil)
		s.presence.EXPECT().IsOnline(gomock.Any(), s.user.ID).Return(false, nil)

		got, err := s.service.UserPresence(s.ctx, s.user.ID)
		s.Require().NoError(err)
		s.False(got.Online)
	})

	s.Run("registry failure falls back to the user flag", func() {
		s.users.EXPECT().FindByID(gomock.Any(), s.user.ID).Return(&models.User{ID: s.user.ID, IsOnline: true}, nil)
		s.sessions.EXPECT().CountActiveByUser(gomock.Any(), s.user.ID).Return(2, nil)
		s.presence.EXPECT().IsOnline(gomock.Any(), s.user.ID).Return(false, errors.New("redis down"))

		got, err := s.service.UserPresence(s.ctx, s.user.ID)
		s.Require().NoError(err)
		s.True(got.Online)
		s.Equal(2, got.ActiveSessions)
	})

	s.Run("no open sessions is offline", func() {
		s.users.EXPECT().FindByID(gomock.Any(), s.user.ID).Return(s.user, nil)
		s.sessions.EXPECT().CountActiveByUser(gomock.Any(), s.user.ID).Return(0, nil)
		s.presence.EXPECT().IsOnline(gomock.Any(), s.user.ID).Return(true, nil)

		got, err := s.service.UserPresence(s.ctx, s.user.ID)
		s.Require().NoError(err)
		s.False(got.Online)
	})

	s.Run("unknown user", func() {
		s.users.EXPECT().FindByID(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.UserPresence(s.ctx, id.NewUserID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
