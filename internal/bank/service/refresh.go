package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/domain"
	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/store"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/cryptox"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/idx"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/jwtx"
)

// RefreshTokenService owns the single refresh token a user may hold. Only
// the fingerprint of a token is stored; the raw value exists on the client.
type RefreshTokenService struct {
	Store store.Store
	TTL   time.Duration
}

func (s *RefreshTokenService) ttl() time.Duration {
	if s.TTL <= 0 {
		return jwtx.DefaultRefreshTokenTTL
	}
	return s.TTL
}

// Create replaces whatever refresh token userID holds with a new one.
func (s *RefreshTokenService) Create(ctx context.Context, userID string) (string, error) {
	var raw string
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		raw, err = s.create(ctx, tx, userID, time.Now().UTC())
		return err
	})
	if err != nil {
		return "", err
	}
	return raw, nil
}

func (s *RefreshTokenService) create(ctx context.Context, st store.Store, userID string, now time.Time) (string, error) {
	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}

	err = st.RefreshTokens().ReplaceRefreshToken(ctx, domain.RefreshToken{
		ID:        idx.NewAt(now).String(),
		UserID:    userID,
		TokenHash: cryptox.FingerprintToken(raw),
		ExpiresAt: now.Add(s.ttl()),
		CreatedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return raw, nil
}

// Verify returns the owner of raw. An expired token is deleted on the way.
func (s *RefreshTokenService) Verify(ctx context.Context, raw string) (domain.User, error) {
	return s.verify(ctx, s.Store, raw, time.Now().UTC())
}

func (s *RefreshTokenService) verify(ctx context.Context, st store.Store, raw string, now time.Time) (domain.User, error) {
	fp := cryptox.FingerprintToken(raw)

	rt, err := st.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrRefreshNotFound
		}
		return domain.User{}, err
	}

	if rt.ExpiredAt(now) {
		if _, err := st.RefreshTokens().DeleteRefreshTokenByHash(ctx, fp); err != nil {
			return domain.User{}, fmt.Errorf("delete expired refresh token: %w", err)
		}
		return domain.User{}, ErrRefreshExpired
	}

	u, err := st.Users().GetUserByID(ctx, rt.UserID)
	if err != nil {
		return domain.User{}, fmt.Errorf("load refresh token owner: %w", err)
	}
	return u, nil
}

// Rotate consumes raw and mints its replacement in one transaction. Of two
// concurrent rotations of the same token only one succeeds.
func (s *RefreshTokenService) Rotate(ctx context.Context, raw string) (domain.User, string, error) {
	now := time.Now().UTC()

	var (
		user    domain.User
		next    string
		expired bool
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		user, err = s.verify(ctx, tx, raw, now)
		if errors.Is(err, ErrRefreshExpired) {
			// Commit the delete so the expired row is gone for good.
			expired = true
			return nil
		}
		if err != nil {
			return err
		}

		n, err := tx.RefreshTokens().DeleteRefreshTokenByHash(ctx, cryptox.FingerprintToken(raw))
		if err != nil {
			return fmt.Errorf("consume refresh token: %w", err)
		}
		if n != 1 {
			return ErrRefreshNotFound
		}

		next, err = s.create(ctx, tx, user.ID, now)
		return err
	})
	if err != nil {
		return domain.User{}, "", err
	}
	if expired {
		return domain.User{}, "", ErrRefreshExpired
	}
	return user, next, nil
}

// Delete removes the refresh token of userID, if any.
func (s *RefreshTokenService) Delete(ctx context.Context, userID string) error {
	if err := s.Store.RefreshTokens().DeleteRefreshTokensByUser(ctx, userID); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}
