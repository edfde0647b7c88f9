package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/audit"
	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/domain"
	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/store"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/cryptox"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/idx"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/slogx"
)

const (
	MaxUsernameLength = 64
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// AuthService implements register, login, refresh and logout on top of the
// session and refresh token services.
type AuthService struct {
	Store         store.Store
	Sessions      *SessionService
	RefreshTokens *RefreshTokenService
	Audit         audit.Publisher

	dummyOnce sync.Once
	dummyHash string
}

func validateCredentials(username, password string) error {
	if username == "" {
		return invalid("username must not be blank")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return invalid("username must be at most %d characters", MaxUsernameLength)
	}
	if password == "" {
		return invalid("password must not be blank")
	}
	return nil
}

// Register creates a USER and signs them in.
func (s *AuthService) Register(ctx context.Context, username, password string) (domain.TokenPair, error) {
	username = strings.TrimSpace(username)
	if err := validateCredentials(username, password); err != nil {
		return domain.TokenPair{}, err
	}
	if n := utf8.RuneCountInString(password); n < MinPasswordLength || n > MaxPasswordLength {
		return domain.TokenPair{}, invalid("password must be between %d and %d characters", MinPasswordLength, MaxPasswordLength)
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	u := domain.User{
		ID:           idx.NewAt(now).String(),
		Username:     username,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    now,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.TokenPair{}, ErrUsernameTaken
		}
		return domain.TokenPair{}, fmt.Errorf("create user: %w", err)
	}

	slogx.FromContext(ctx).Info("user registered", slog.String("user_id", u.ID))
	return s.issuePair(ctx, u)
}

// Login checks the password and signs the user in. Unknown users and wrong
// passwords fail the same way. Every attempt is audited.
func (s *AuthService) Login(ctx context.Context, username, password string) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	username = strings.TrimSpace(username)
	if err := validateCredentials(username, password); err != nil {
		return domain.TokenPair{}, err
	}

	u, err := s.authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.Audit.Publish(ctx, audit.NewEvent(ctx, audit.ActionLoginFailed, audit.StatusFailure, username))
			l.Info("login failed", slog.String("username", username))
		}
		return domain.TokenPair{}, err
	}

	if cryptox.IsLegacyHash(u.PasswordHash) {
		s.upgradeHash(ctx, u, password)
	}

	pair, err := s.issuePair(ctx, u)
	if err != nil {
		return domain.TokenPair{}, err
	}

	s.Audit.Publish(ctx, audit.NewEvent(ctx, audit.ActionLoginSuccess, audit.StatusSuccess, u.Username))
	return pair, nil
}

func (s *AuthService) authenticate(ctx context.Context, username, password string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn the same time a real comparison would.
			_ = cryptox.VerifyPassword(password, s.dummy())
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrMismatch) {
			slogx.FromContext(ctx).Error("stored password hash unreadable",
				slog.String("user_id", u.ID),
				slogx.Err(err),
			)
		}
		return domain.User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = cryptox.HashPassword("not-a-real-password")
	})
	return s.dummyHash
}

// upgradeHash replaces a bcrypt hash with argon2id. Failure only costs
// another upgrade attempt at the next login.
func (s *AuthService) upgradeHash(ctx context.Context, u domain.User, password string) {
	l := slogx.FromContext(ctx)

	hash, err := cryptox.HashPassword(password)
	if err == nil {
		err = s.Store.Users().UpdatePasswordHash(ctx, u.ID, hash)
	}
	if err != nil {
		l.Warn("password hash upgrade failed", slog.String("user_id", u.ID), slogx.Err(err))
		return
	}
	l.Info("password hash upgraded", slog.String("user_id", u.ID))
}

// Refresh exchanges a refresh token for a new access token and a new refresh
// token. The presented token is unusable afterwards.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return domain.TokenPair{}, invalid("refresh token must not be blank")
	}

	u, next, err := s.RefreshTokens.Rotate(ctx, refreshToken)
	if err != nil {
		return domain.TokenPair{}, err
	}

	access, expiresAt, err := s.Sessions.Issue(u.Username)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return newTokenPair(access, next, expiresAt), nil
}

// Logout revokes the caller's access token and drops their refresh token.
func (s *AuthService) Logout(ctx context.Context, p Principal) error {
	if err := s.Sessions.Revoke(ctx, p.Token, p.ExpiresAt); err != nil {
		return err
	}
	if err := s.RefreshTokens.Delete(ctx, p.UserID); err != nil {
		return err
	}

	s.Audit.Publish(ctx, audit.NewEvent(ctx, audit.ActionLogout, audit.StatusSuccess, p.Username))
	return nil
}

func (s *AuthService) issuePair(ctx context.Context, u domain.User) (domain.TokenPair, error) {
	access, expiresAt, err := s.Sessions.Issue(u.Username)
	if err != nil {
		return domain.TokenPair{}, err
	}

	refresh, err := s.RefreshTokens.Create(ctx, u.ID)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return newTokenPair(access, refresh, expiresAt), nil
}

func newTokenPair(access, refresh string, expiresAt time.Time) domain.TokenPair {
	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(time.Until(expiresAt).Round(time.Second) / time.Second),
	}
}
