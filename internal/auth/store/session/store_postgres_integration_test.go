//go:build integration

package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"workguard/internal/auth/models"
	"workguard/internal/auth/store/session"
	"workguard/internal/auth/store/user"
	id "workguard/pkg/domain"
	"workguard/pkg/platform/sentinel"
	"workguard/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *session.PostgresStore
	users    *user.PostgresStore
	owner    id.UserID
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = session.NewPostgres(s.postgres.DB)
	s.users = user.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.Truncate(ctx))
	s.owner = id.NewUserID()
	s.Require().NoError(s.users.Save(ctx, &models.User{
		ID: s.owner, Name: "Bob", Email: "bob@co.com", PasswordHash: "x", Role: models.RoleEmployee,
	}))
}

func (s *PostgresStoreSuite) newSession(fingerprint string, loginAt time.Time) *models.Session {
	return &models.Session{
		ID:                id.NewSessionID(),
		UserID:            s.owner,
		TokenHash:         id.NewSessionID().String(),
		DeviceFingerprint: fingerprint,
		DeviceName:        "Windows 10 - Chrome",
		BrowserName:       "Chrome",
		OSName:            "Windows",
		IPAddress:         "198.51.100.7",
		LoginTime:         loginAt.UTC().Truncate(time.Microsecond),
		LastActivityTime:  loginAt.UTC().Truncate(time.Microsecond),
		Status:            models.SessionStatusActive,
	}
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	sess := s.newSession("fp-chrome", time.Now())
	s.Require().NoError(s.store.Create(ctx, sess))

	byID, err := s.store.FindByID(ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(sess.TokenHash, byID.TokenHash)
	s.True(byID.LoginTime.Equal(sess.LoginTime))
	s.Nil(byID.Reason)

	byToken, err := s.store.FindByTokenHash(ctx, sess.TokenHash)
	s.Require().NoError(err)
	s.Equal(sess.ID, byToken.ID)

	_, err = s.store.FindByTokenHash(ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)

	dup := s.newSession("fp-other", time.Now())
	dup.TokenHash = sess.TokenHash
	s.ErrorIs(s.store.Create(ctx, dup), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestListActiveNewestFirst() {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	older := s.newSession("fp-a", base)
	newer := s.newSession("fp-b", base.Add(time.Minute))
	closed := s.newSession("fp-c", base.Add(2*time.Minute))
	for _, sess := range []*models.Session{older, newer, closed} {
		s.Require().NoError(s.store.Create(ctx, sess))
	}
	_, err := s.store.CloseIfActive(ctx, closed.ID, models.SessionStatusExpired, "User logged out")
	s.Require().NoError(err)

	active, err := s.store.ListActiveByUser(ctx, s.owner)
	s.Require().NoError(err)
	s.Require().Len(active, 2)
	s.Equal(newer.ID, active[0].ID)
	s.Equal(older.ID, active[1].ID)

	n, err := s.store.CountActiveByUser(ctx, s.owner)
	s.Require().NoError(err)
	s.Equal(2, n)
}

func (s *PostgresStoreSuite) TestCloseIfActive() {
	ctx := context.Background()
	sess := s.newSession("fp-chrome", time.Now())
	s.Require().NoError(s.store.Create(ctx, sess))

	s.Run("rejects ACTIVE as a target", func() {
		_, err := s.store.CloseIfActive(ctx, sess.ID, models.SessionStatusActive, "")
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("closes once", func() {
		closed, err := s.store.CloseIfActive(ctx, sess.ID, models.SessionStatusInvalidated, "New login from Windows - Firefox")
		s.Require().NoError(err)
		s.Equal(models.SessionStatusInvalidated, closed.Status)
		s.Require().NotNil(closed.Reason)
		s.Equal("New login from Windows - Firefox", *closed.Reason)

		_, err = s.store.CloseIfActive(ctx, sess.ID, models.SessionStatusExpired, "User logged out")
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("unknown session", func() {
		_, err := s.store.CloseIfActive(ctx, id.NewSessionID(), models.SessionStatusExpired, "")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PostgresStoreSuite) TestConcurrentCloseHasOneWinner() {
	ctx := context.Background()
	sess := s.newSession("fp-chrome", time.Now())
	s.Require().NoError(s.store.Create(ctx, sess))

	const closers = 20
	var (
		wg       sync.WaitGroup
		winners  atomic.Int32
		rejected atomic.Int32
	)
	for range closers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.CloseIfActive(ctx, sess.ID, models.SessionStatusExpired, "User logged out")
			switch {
			case err == nil:
				winners.Add(1)
			case errors.Is(err, sentinel.ErrInvalidState):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), winners.Load())
	s.Equal(int32(closers-1), rejected.Load())
}

func (s *PostgresStoreSuite) TestTouchActivityNeverMovesBackwards() {
	ctx := context.Background()
	start := time.Now().UTC().Truncate(time.Microsecond)
	sess := s.newSession("fp-chrome", start)
	s.Require().NoError(s.store.Create(ctx, sess))

	later := start.Add(5 * time.Minute)
	s.Require().NoError(s.store.TouchActivity(ctx, sess.ID, later))
	s.Require().NoError(s.store.TouchActivity(ctx, sess.ID, start.Add(time.Minute)))

	got, err := s.store.FindByID(ctx, sess.ID)
	s.Require().NoError(err)
	s.True(got.LastActivityTime.Equal(later))

	_, err = s.store.CloseIfActive(ctx, sess.ID, models.SessionStatusExpired, "User logged out")
	s.Require().NoError(err)
	s.ErrorIs(s.store.TouchActivity(ctx, sess.ID, later.Add(time.Minute)), sentinel.ErrInvalidState)
}
