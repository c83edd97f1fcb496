package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/auth-service/internal/config"
)

func TestTokenManager_SignAndVerify(t *testing.T) {
	t.Parallel()

	tm := NewTokenManager(ContextAccess, "access-secret", 15*time.Minute)

	token, expiresAt, err := tm.Sign(TokenPayload{
		Subject: "user-1",
		Name:    "Ann",
		Email:   "ann@x.com",
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, time.Second)

	claims, err := tm.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "Ann", claims.Name)
	assert.Equal(t, "ann@x.com", claims.Email)
	require.NotNil(t, claims.IssuedAt)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, expiresAt, claims.ExpiresAt.Time, time.Second)
}

func TestTokenManager_ContextsAreNotInterchangeable(t *testing.T) {
	t.Parallel()

	access := NewTokenManager(ContextAccess, "access-secret", 15*time.Minute)
	refresh := NewTokenManager(ContextRefresh, "refresh-secret", 7*24*time.Hour)
	email := NewTokenManager(ContextEmail, "email-secret", time.Hour)

	token, _, err := access.Sign(TokenPayload{Subject: "user-1"})
	require.NoError(t, err)

	for _, other := range []*TokenManager{refresh, email} {
		claims, err := other.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.Nil(t, claims)
	}
}

func TestTokenManager_RejectsTamperedToken(t *testing.T) {
	t.Parallel()

	tm := NewTokenManager(ContextRefresh, "refresh-secret", 7*24*time.Hour)

	token, _, err := tm.Sign(TokenPayload{Subject: "user-1"})
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + ".eyJzdWIiOiJ1c2VyLTIifQ." + parts[2]

	claims, err := tm.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, claims)
}

func TestTokenManager_RejectsExpiredToken(t *testing.T) {
	t.Parallel()

	tm := NewTokenManager(ContextEmail, "email-secret", -time.Minute)

	token, _, err := tm.Sign(TokenPayload{Subject: "user-1"})
	require.NoError(t, err)

	claims, err := tm.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, claims)
}

func TestTokenManager_RejectsMalformedToken(t *testing.T) {
	t.Parallel()

	tm := NewTokenManager(ContextAccess, "access-secret", 15*time.Minute)

	for _, token := range []string{"", "garbage", "a.b.c"} {
		claims, err := tm.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.Nil(t, claims)
	}
}

func TestTokenManager_MissingSecretFailsFast(t *testing.T) {
	t.Parallel()

	tm := NewTokenManager(ContextAccess, "", 15*time.Minute)

	_, _, err := tm.Sign(TokenPayload{Subject: "user-1"})
	assert.ErrorIs(t, err, ErrMissingSecret)

	_, err = tm.Verify("whatever")
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestNewTokenSet_ConfiguresLifetimes(t *testing.T) {
	t.Parallel()

	set := NewTokenSet(config.AuthConfig{
		AccessSecret:          "a",
		RefreshSecret:         "r",
		EmailSecret:           "e",
		AccessTokenTTLMinutes: 15,
		RefreshTokenTTLHours:  168,
		EmailTokenTTLMinutes:  60,
	})

	assert.Equal(t, 15*time.Minute, set.Access.TTL())
	assert.Equal(t, 7*24*time.Hour, set.Refresh.TTL())
	assert.Equal(t, time.Hour, set.Email.TTL())
	assert.Equal(t, ContextAccess, set.Access.Context())
	assert.Equal(t, ContextRefresh, set.Refresh.Context())
	assert.Equal(t, ContextEmail, set.Email.Context())
}
