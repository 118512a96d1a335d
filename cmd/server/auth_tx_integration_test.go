//go:build integration

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"workguard/internal/auth/models"
	"workguard/internal/auth/password"
	authservice "workguard/internal/auth/service"
	attemptstore "workguard/internal/auth/store/attempt"
	presencestore "workguard/internal/auth/store/presence"
	sessionstore "workguard/internal/auth/store/session"
	userstore "workguard/internal/auth/store/user"
	"workguard/internal/jwttoken"
	notificationmodels "workguard/internal/notification/models"
	notificationservice "workguard/internal/notification/service"
	notificationstore "workguard/internal/notification/store"
	id "workguard/pkg/domain"
	dErrors "workguard/pkg/domain-errors"
	"workguard/pkg/testutil/containers"
)

const (
	chromeUA  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	firefoxUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0"
)

// PostgresLoginSuite runs the login pipeline against Postgres with the
// row-locking transaction.
type PostgresLoginSuite struct {
	suite.Suite
	postgres      *containers.PostgresContainer
	users         *userstore.PostgresStore
	sessions      *sessionstore.PostgresStore
	attempts      *attemptstore.PostgresStore
	notifications *notificationstore.PostgresStore
	auth          *authservice.Service
	bob           *models.User
}

func TestPostgresLoginSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresLoginSuite))
}

func (s *PostgresLoginSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	db := s.postgres.DB
	s.users = userstore.NewPostgres(db)
	s.sessions = sessionstore.NewPostgres(db)
	s.attempts = attemptstore.NewPostgres(db)
	s.notifications = notificationstore.NewPostgres(db)
}

func (s *PostgresLoginSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.Truncate(ctx))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hasher, err := password.NewHasher(bcrypt.MinCost)
	s.Require().NoError(err)
	hash, err := hasher.Hash("s3cret")
	s.Require().NoError(err)

	s.bob = &models.User{ID: id.NewUserID(), Name: "Bob", Email: "bob@co.com", PasswordHash: hash, Role: models.RoleEmployee}
	admin := &models.User{ID: id.NewUserID(), Name: "Ada", Email: "ada@co.com", PasswordHash: hash, Role: models.RoleAdmin}
	for _, u := range []*models.User{s.bob, admin} {
		s.Require().NoError(s.users.Save(ctx, u))
	}

	notifier := notificationservice.New(s.notifications, s.users, notificationservice.WithLogger(logger))
	s.auth = authservice.New(s.users, s.sessions, s.attempts,
		jwttoken.New("integration-key", "workguard-test", time.Hour),
		hasher,
		authservice.WithPresence(presencestore.New(time.Minute)),
		authservice.WithNotifier(notifier),
		authservice.WithTx(newAuthPostgresTx(s.postgres.DB, s.users)),
		authservice.WithLogger(logger),
	)
}

func (s *PostgresLoginSuite) login(ua string) (*models.LoginResult, error) {
	return s.auth.Login(context.Background(), models.LoginRequest{
		Email: "bob@co.com", Password: "s3cret", UserAgent: ua, IPAddress: "198.51.100.7",
	})
}

func (s *PostgresLoginSuite) TestSecondDeviceInvalidatesFirst() {
	ctx := context.Background()
	chrome, err := s.login(chromeUA)
	s.Require().NoError(err)
	firefox, err := s.login(firefoxUA)
	s.Require().NoError(err)

	old, err := s.sessions.FindByID(ctx, chrome.SessionID)
	s.Require().NoError(err)
	s.Equal(models.SessionStatusInvalidated, old.Status)
	s.Require().NotNil(old.Reason)
	s.Contains(*old.Reason, "Firefox")

	active, err := s.sessions.ListActiveByUser(ctx, s.bob.ID)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(firefox.SessionID, active[0].ID)

	_, err = s.auth.Authenticate(ctx, chrome.Token)
	s.True(dErrors.HasCode(err, dErrors.CodeSessionInvalidated))

	var n int
	err = s.postgres.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE type = $1`, string(notificationmodels.TypeMultipleLoginAttempt),
	).Scan(&n)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *PostgresLoginSuite) TestConcurrentLoginsSerializePerUser() {
	ctx := context.Background()
	const logins = 10

	var wg sync.WaitGroup
	errs := make(chan error, logins)
	for i := range logins {
		ua := chromeUA
		if i%2 == 1 {
			ua = firefoxUA
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.login(ua)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	attempts, err := s.attempts.List(ctx, models.AttemptFilter{UserID: &s.bob.ID})
	s.Require().NoError(err)
	s.Len(attempts, logins)

	var total int
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM active_sessions WHERE user_id = $1`, s.bob.ID.String()).Scan(&total))
	s.Equal(logins, total)

	active, err := s.sessions.ListActiveByUser(ctx, s.bob.ID)
	s.Require().NoError(err)
	s.Require().NotEmpty(active)
	s.Less(len(active), logins, "alternating devices must displace at least one session")
}

func (s *PostgresLoginSuite) TestRunInTxRollsBackOnError() {
	ctx := context.Background()
	boom := errors.New("boom")
	txr := newAuthPostgresTx(s.postgres.DB, s.users)

	sessionID := id.NewSessionID()
	err := txr.RunInTx(ctx, s.bob.ID, func(txCtx context.Context) error {
		now := time.Now()
		if err := s.sessions.Create(txCtx, &models.Session{
			ID: sessionID, UserID: s.bob.ID, TokenHash: "rolled-back", DeviceFingerprint: "fp",
			LoginTime: now, LastActivityTime: now, Status: models.SessionStatusActive,
		}); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	_, err = s.sessions.FindByID(ctx, sessionID)
	s.Error(err)
}

func (s *PostgresLoginSuite) TestRunInTxRejectsCancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := newAuthPostgresTx(s.postgres.DB, s.users).RunInTx(ctx, s.bob.ID, func(context.Context) error {
		s.Fail("fn must not run")
		return nil
	})
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}
