package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/domain"
	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/store"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/cryptox"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/idx"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/slogx"
)

// BootstrapService seeds the administrator account at startup. Registration
// only ever creates USERs, so this is the one way an ADMIN comes to exist.
type BootstrapService struct {
	Store store.Store
}

// EnsureAdmin creates username as ADMIN unless a user of that name exists.
// It reports whether a user was created.
func (s *BootstrapService) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	l := slogx.FromContext(ctx)

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return false, nil
	}

	existing, err := s.Store.Users().GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		if !existing.IsAdmin() {
			l.Warn("bootstrap admin name belongs to a regular user", slog.String("username", username))
		}
		return false, nil
	case !errors.Is(err, store.ErrNotFound):
		return false, fmt.Errorf("look up admin: %w", err)
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}

	now := time.Now().UTC()
	err = s.Store.Users().CreateUser(ctx, domain.User{
		ID:           idx.NewAt(now).String(),
		Username:     username,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		CreatedAt:    now,
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		// Another instance got there first.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}

	l.Info("admin user created", slog.String("username", username))
	return true, nil
}
