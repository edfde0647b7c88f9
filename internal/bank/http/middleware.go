package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/service"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/httpx"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/slogx"
)

// bearerAuth resolves the bearer token to a Principal. Failures that are not
// about the token are flagged as backend errors so they surface as 500.
func bearerAuth(sessions *service.SessionService) httpx.BearerAuthenticator {
	return func(ctx context.Context, raw string) (context.Context, error) {
		p, err := sessions.Authenticate(ctx, raw)
		switch {
		case err == nil:
		case errors.Is(err, service.ErrInvalidToken), errors.Is(err, service.ErrTokenRevoked):
			return nil, err
		default:
			return nil, fmt.Errorf("%w: %w", httpx.ErrAuthBackend, err)
		}

		ctx = service.WithPrincipal(ctx, p)
		ctx = slogx.With(ctx, "username", p.Username)
		return ctx, nil
	}
}

// requireAdmin rejects callers without the ADMIN role. It must run after
// the bearer middleware.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := service.PrincipalFromContext(r.Context())
		if !ok {
			httpx.WriteProblem(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !p.IsAdmin() {
			slogx.FromContext(r.Context()).Warn("admin route denied", "username", p.Username)
			httpx.WriteProblem(w, http.StatusForbidden, "Administrator role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// principal returns the caller set by the bearer middleware, writing a 401
// when it is missing.
func principal(w http.ResponseWriter, r *http.Request) (service.Principal, bool) {
	p, ok := service.PrincipalFromContext(r.Context())
	if !ok {
		httpx.WriteProblem(w, http.StatusUnauthorized, "Authentication required")
	}
	return p, ok
}
