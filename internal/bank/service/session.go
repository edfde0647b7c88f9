package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/store"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/jwtx"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/revocation"
)

// SessionService issues and validates access tokens.
type SessionService struct {
	Signer      jwtx.Signer
	Verifier    jwtx.Verifier
	Revocations revocation.Registry
	Store       store.Store
	Issuer      string
	AccessTTL   time.Duration
}

func (s *SessionService) ttl() time.Duration {
	if s.AccessTTL <= 0 {
		return jwtx.DefaultAccessTokenTTL
	}
	return s.AccessTTL
}

// Issue signs an access token for subject.
func (s *SessionService) Issue(subject string) (token string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	claims := jwtx.NewAccessClaims(subject, s.Issuer, s.ttl(), now)

	token, err = s.Signer.Sign(claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return token, claims.ExpiresAt.Time, nil
}

// Validate checks signature, expiry, subject and revocation. The signature
// and the revocation lookup are independent; both must pass.
func (s *SessionService) Validate(ctx context.Context, raw, expectedSubject string) (jwtx.Claims, error) {
	claims, err := s.Verifier.Verify(raw)
	if err != nil {
		return jwtx.Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if err := claims.ValidateSubject(expectedSubject); err != nil {
		return jwtx.Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	revoked, err := s.Revocations.IsRevoked(ctx, raw)
	if err != nil {
		return jwtx.Claims{}, fmt.Errorf("revocation lookup: %w", err)
	}
	if revoked {
		return jwtx.Claims{}, ErrTokenRevoked
	}
	return claims, nil
}

// Authenticate resolves a bearer token to the user it was issued to.
func (s *SessionService) Authenticate(ctx context.Context, raw string) (Principal, error) {
	claims, err := s.Verifier.Verify(raw)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	u, err := s.Store.Users().GetUserByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Principal{}, fmt.Errorf("%w: unknown subject", ErrInvalidToken)
		}
		return Principal{}, err
	}

	claims, err = s.Validate(ctx, raw, u.Username)
	if err != nil {
		return Principal{}, err
	}

	return Principal{
		UserID:    u.ID,
		Username:  u.Username,
		Role:      u.Role,
		Token:     raw,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Revoke blocks raw for the rest of its lifetime. Tokens that already
// expired are left alone.
func (s *SessionService) Revoke(ctx context.Context, raw string, expiresAt time.Time) error {
	if err := s.Revocations.Revoke(ctx, raw, time.Until(expiresAt)); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}
