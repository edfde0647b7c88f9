package service

import (
	"context"
	"time"

	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/domain"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID    string
	Username  string
	Role      domain.Role
	Token     string // raw access token, needed to revoke it on logout
	ExpiresAt time.Time
}

func (p Principal) IsAdmin() bool { return p.Role == domain.RoleAdmin }

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller set by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
