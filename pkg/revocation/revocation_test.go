package revocation_test

import (
	"context"
	"testing"
	"time"

	"github.com/MuadBenMusa/sparkcore-backend/pkg/revocation"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) (*revocation.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return revocation.NewRedis(client, ""), mr
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()

	t.Run("revoked until ttl", func(t *testing.T) {
		reg, mr := newRegistry(t)

		require.NoError(t, reg.Revoke(ctx, "token-a", 10*time.Minute))

		revoked, err := reg.IsRevoked(ctx, "token-a")
		require.NoError(t, err)
		require.True(t, revoked)

		revoked, err = reg.IsRevoked(ctx, "token-b")
		require.NoError(t, err)
		require.False(t, revoked)

		mr.FastForward(10*time.Minute + time.Second)

		revoked, err = reg.IsRevoked(ctx, "token-a")
		require.NoError(t, err)
		require.False(t, revoked)
	})

	t.Run("non positive ttl is a no-op", func(t *testing.T) {
		reg, mr := newRegistry(t)

		require.NoError(t, reg.Revoke(ctx, "token-a", 0))
		require.NoError(t, reg.Revoke(ctx, "token-b", -time.Second))
		require.Empty(t, mr.Keys())
	})

	t.Run("stores fingerprints only", func(t *testing.T) {
		reg, mr := newRegistry(t)

		require.NoError(t, reg.Revoke(ctx, "secret-token", time.Minute))
		keys := mr.Keys()
		require.Len(t, keys, 1)
		require.Contains(t, keys[0], revocation.DefaultPrefix)
		require.NotContains(t, keys[0], "secret-token")
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		reg, mr := newRegistry(t)
		mr.Close()

		_, err := reg.IsRevoked(ctx, "token")
		require.Error(t, err)
	})
}
