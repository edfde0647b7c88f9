package http

import (
	"errors"
	"net/http"

	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/service"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/httpx"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/slogx"
)

const internalErrorMessage = "An unexpected error occurred"

// writeError maps a service error onto the problem response for its class.
// Anything unrecognised is logged and answered with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := classify(err)
	if status == http.StatusInternalServerError {
		slogx.FromContext(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			slogx.Err(err),
		)
	}
	httpx.WriteProblem(w, status, message)
}

func classify(err error) (int, string) {
	var (
		validation *service.ValidationError
		refusal    *service.TransferError
	)

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Reason
	case errors.Is(err, httpx.ErrBadBody):
		return http.StatusBadRequest, "Malformed request body"

	case errors.As(err, &refusal):
		switch refusal.Kind {
		case service.KindNotFound:
			return http.StatusNotFound, refusal.Error()
		case service.KindForbidden:
			return http.StatusForbidden, refusal.Error()
		default:
			return http.StatusBadRequest, refusal.Error()
		}

	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid username or password"
	case errors.Is(err, service.ErrRefreshNotFound),
		errors.Is(err, service.ErrRefreshExpired):
		return http.StatusUnauthorized, "Invalid or expired refresh token"
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenRevoked):
		return http.StatusUnauthorized, "Authentication required"

	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "Access denied"
	case errors.Is(err, service.ErrAccountNotFound):
		return http.StatusNotFound, "Account not found"
	case errors.Is(err, service.ErrUsernameTaken):
		return http.StatusConflict, "Username is already taken"
	}

	return http.StatusInternalServerError, internalErrorMessage
}
