package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MuadBenMusa/sparkcore-backend/pkg/slogx"
)

// BearerAuthenticator checks a raw bearer token and returns the context the
// rest of the request should run with.
type BearerAuthenticator func(ctx context.Context, token string) (context.Context, error)

// ErrAuthBackend marks authenticator failures that say nothing about the
// token itself, such as an unreachable database. They produce a 500.
var ErrAuthBackend = errors.New("authentication backend failure")

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	return raw, raw != ""
}

func AuthnMiddleware(authn BearerAuthenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw, ok := BearerToken(r)
			if !ok {
				writeBearerError(w, "missing bearer token")
				return
			}

			authed, err := authn(ctx, raw)
			if errors.Is(err, ErrAuthBackend) {
				slogx.FromContext(ctx).Error("bearer authentication unavailable", slogx.Err(err))
				WriteProblem(w, http.StatusInternalServerError, "An unexpected error occurred")
				return
			}
			if err != nil {
				slogx.FromContext(ctx).Warn("bearer authentication failed", slogx.Err(err))
				writeBearerError(w, "token verification failed")
				return
			}

			next.ServeHTTP(w, r.WithContext(authed))
		})
	}
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteProblem(w, http.StatusUnauthorized, "Authentication required")
}
