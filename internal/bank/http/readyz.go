package http

import (
	"context"
	"net/http"
	"time"

	"github.com/MuadBenMusa/sparkcore-backend/pkg/banksdk"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/httpx"
)

// PingFunc checks one dependency.
type PingFunc func(ctx context.Context) error

// ReadyzHandler reports 503 unless both the database and Redis answer.
func ReadyzHandler(startTime time.Time, version string, db, redis PingFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := &banksdk.HealthChecks{
			Database: "ok",
			Redis:    "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := db(ctx); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
		if err := redis(ctx); err != nil {
			checks.Redis = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, statusCode, banksdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
