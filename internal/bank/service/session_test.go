package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/domain"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/jwtx"
)

func TestSessionIssueAndValidate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	before := time.Now().UTC().Truncate(time.Second)
	token, exp, err := e.sessions.Issue("alice")
	require.NoError(t, err)
	require.WithinDuration(t, before.Add(15*time.Minute), exp, 2*time.Second)

	claims, err := e.sessions.Validate(ctx, token, "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Subject)
	require.Equal(t, testIssuer, claims.Issuer)
	require.NotNil(t, claims.IssuedAt)
	require.NotEmpty(t, claims.ID)
}

func TestSessionValidateRejects(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	token, _, err := e.sessions.Issue("alice")
	require.NoError(t, err)

	t.Run("subject mismatch", func(t *testing.T) {
		_, err := e.sessions.Validate(ctx, token, "bob")
		require.ErrorIs(t, err, ErrInvalidToken)
		require.ErrorIs(t, err, jwtx.ErrSubject)
	})

	t.Run("tampered signature", func(t *testing.T) {
		parts := strings.Split(token, ".")
		sig := []byte(parts[2])
		if sig[0] == 'A' {
			sig[0] = 'B'
		} else {
			sig[0] = 'A'
		}
		tampered := parts[0] + "." + parts[1] + "." + string(sig)

		_, err := e.sessions.Validate(ctx, tampered, "alice")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		old := jwtx.NewAccessClaims("alice", testIssuer, 15*time.Minute, time.Now().Add(-time.Hour))
		raw, err := e.signer.Sign(old)
		require.NoError(t, err)

		_, err = e.sessions.Validate(ctx, raw, "alice")
		require.ErrorIs(t, err, ErrInvalidToken)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("other algorithm", func(t *testing.T) {
		claims := jwtx.NewAccessClaims("alice", testIssuer, 15*time.Minute, time.Now())
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS384, claims).SignedString([]byte(strings.Repeat("k", 32)))
		require.NoError(t, err)

		_, err = e.sessions.Validate(ctx, raw, "alice")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := e.sessions.Validate(ctx, "not-a-jwt", "alice")
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestSessionRevoke(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	token, exp, err := e.sessions.Issue("alice")
	require.NoError(t, err)
	other, _, err := e.sessions.Issue("alice")
	require.NoError(t, err)
	require.NotEqual(t, token, other)

	require.NoError(t, e.sessions.Revoke(ctx, token, exp))

	_, err = e.sessions.Validate(ctx, token, "alice")
	require.ErrorIs(t, err, ErrTokenRevoked)

	// Revoking one token leaves the user's other tokens alone.
	_, err = e.sessions.Validate(ctx, other, "alice")
	require.NoError(t, err)

	// The entry expires together with the token.
	keys := e.redis.Keys()
	require.Len(t, keys, 1)
	ttl := e.redis.TTL(keys[0])
	require.Greater(t, ttl, 14*time.Minute)
	require.LessOrEqual(t, ttl, 15*time.Minute)

	e.redis.FastForward(16 * time.Minute)
	require.Empty(t, e.redis.Keys())
}

func TestSessionRevokeExpiredIsNoop(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.sessions.Revoke(context.Background(), "whatever", time.Now().Add(-time.Minute)))
	require.Empty(t, e.redis.Keys())
}

func TestSessionAuthenticate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.createUser(t, "root", domain.RoleAdmin)

	token, exp, err := e.sessions.Issue(admin.Username)
	require.NoError(t, err)

	p, err := e.sessions.Authenticate(ctx, token)
	require.NoError(t, err)
	require.Equal(t, admin.ID, p.UserID)
	require.Equal(t, "root", p.Username)
	require.True(t, p.IsAdmin())
	require.Equal(t, token, p.Token)
	require.WithinDuration(t, exp, p.ExpiresAt, time.Second)

	t.Run("unknown subject", func(t *testing.T) {
		ghost, _, err := e.sessions.Issue("ghost")
		require.NoError(t, err)

		_, err = e.sessions.Authenticate(ctx, ghost)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("revoked", func(t *testing.T) {
		require.NoError(t, e.sessions.Revoke(ctx, token, exp))
		_, err := e.sessions.Authenticate(ctx, token)
		require.ErrorIs(t, err, ErrTokenRevoked)
	})
}
