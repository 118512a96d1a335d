package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "workguard/pkg/domain"
	dErrors "workguard/pkg/domain-errors"
)

var (
	userID    = id.NewUserID()
	sessionID = id.NewSessionID()
)

func TestIssueAndValidate(t *testing.T) {
	svc := New("test-signing-key", "workguard-test", time.Hour)

	token, err := svc.Issue(userID, sessionID, "EMPLOYEE")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "EMPLOYEE", claims.Role)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)

	gotUser, gotSession, err := claims.ParsedIDs()
	require.NoError(t, err)
	assert.Equal(t, userID, gotUser)
	assert.Equal(t, sessionID, gotSession)
}

func TestIssue_UniquePerCall(t *testing.T) {
	svc := New("test-signing-key", "workguard-test", time.Hour)
	a, err := svc.Issue(userID, sessionID, "EMPLOYEE")
	require.NoError(t, err)
	b, err := svc.Issue(userID, sessionID, "EMPLOYEE")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, Hash(a), Hash(b))
}

func TestValidate_Rejections(t *testing.T) {
	svc := New("test-signing-key", "workguard-test", time.Hour)

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Validate("invalid-token-string")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("expired", func(t *testing.T) {
		past := New("test-signing-key", "workguard-test", time.Hour,
			WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }))
		token, err := past.Issue(userID, sessionID, "EMPLOYEE")
		require.NoError(t, err)

		_, err = svc.Validate(token)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "token has expired")
	})

	t.Run("wrong key", func(t *testing.T) {
		other := New("another-key", "workguard-test", time.Hour)
		token, err := other.Issue(userID, sessionID, "ADMIN")
		require.NoError(t, err)

		_, err = svc.Validate(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := New("test-signing-key", "someone-else", time.Hour)
		token, err := other.Issue(userID, sessionID, "ADMIN")
		require.NoError(t, err)

		_, err = svc.Validate(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestHash(t *testing.T) {
	assert.Len(t, Hash("abc"), 64)
	assert.Equal(t, Hash("abc"), Hash("abc"))
}
