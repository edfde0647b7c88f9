package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/domain"
	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/store"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/cryptox"
)

func TestRefreshCreateReplacesPrevious(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.createUser(t, "alice", domain.RoleUser)

	first, err := e.refresh.Create(ctx, u.ID)
	require.NoError(t, err)
	second, err := e.refresh.Create(ctx, u.ID)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	_, err = e.refresh.Verify(ctx, first)
	require.ErrorIs(t, err, ErrRefreshNotFound)

	owner, err := e.refresh.Verify(ctx, second)
	require.NoError(t, err)
	require.Equal(t, u.ID, owner.ID)

	rt, err := e.store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(second))
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(7*24*time.Hour), rt.ExpiresAt, time.Minute)
}

func TestRefreshCreateConcurrent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.createUser(t, "alice", domain.RoleUser)

	const workers = 6
	var wg sync.WaitGroup
	tokens := make([]string, workers)
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tokens[i], errs[i] = e.refresh.Create(ctx, u.ID)
		}()
	}
	wg.Wait()

	var valid int
	for i := range workers {
		require.NoError(t, errs[i])
		if _, err := e.refresh.Verify(ctx, tokens[i]); err == nil {
			valid++
		}
	}
	require.Equal(t, 1, valid, "only the last login keeps a refresh token")
}

func TestRefreshVerifyExpiredDeletes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.createUser(t, "alice", domain.RoleUser)

	e.refresh.TTL = time.Millisecond
	raw, err := e.refresh.Create(ctx, u.ID)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	_, err = e.refresh.Verify(ctx, raw)
	require.ErrorIs(t, err, ErrRefreshExpired)

	_, err = e.store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(raw))
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = e.refresh.Verify(ctx, raw)
	require.ErrorIs(t, err, ErrRefreshNotFound)
}

func TestRefreshRotate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.createUser(t, "alice", domain.RoleUser)

	raw, err := e.refresh.Create(ctx, u.ID)
	require.NoError(t, err)

	owner, next, err := e.refresh.Rotate(ctx, raw)
	require.NoError(t, err)
	require.Equal(t, u.ID, owner.ID)
	require.NotEqual(t, raw, next)

	// The old token is gone for good, even though it had not expired.
	_, _, err = e.refresh.Rotate(ctx, raw)
	require.ErrorIs(t, err, ErrRefreshNotFound)

	_, err = e.refresh.Verify(ctx, next)
	require.NoError(t, err)
}

func TestRefreshRotateExpired(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.createUser(t, "alice", domain.RoleUser)

	e.refresh.TTL = time.Millisecond
	raw, err := e.refresh.Create(ctx, u.ID)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	_, _, err = e.refresh.Rotate(ctx, raw)
	require.ErrorIs(t, err, ErrRefreshExpired)

	_, err = e.store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(raw))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRefreshRotateConcurrent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.createUser(t, "alice", domain.RoleUser)

	raw, err := e.refresh.Create(ctx, u.ID)
	require.NoError(t, err)

	const workers = 5
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, errs[i] = e.refresh.Rotate(ctx, raw)
		}()
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, ErrRefreshNotFound)
	}
	require.Equal(t, 1, wins)
}

func TestRefreshDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.createUser(t, "alice", domain.RoleUser)

	raw, err := e.refresh.Create(ctx, u.ID)
	require.NoError(t, err)
	require.NoError(t, e.refresh.Delete(ctx, u.ID))

	_, err = e.refresh.Verify(ctx, raw)
	require.ErrorIs(t, err, ErrRefreshNotFound)

	// Deleting when nothing is stored is fine.
	require.NoError(t, e.refresh.Delete(ctx, u.ID))
}
