package http

import (
	"net/http"
	"time"

	"github.com/MuadBenMusa/sparkcore-backend/pkg/banksdk"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/httpx"
)

// LivezHandler always answers 200 while the process is serving.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := banksdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		}
		httpx.WriteJSON(w, http.StatusOK, response)
	}
}

// PingHandler serves GET /api/v1/system/ping.
func PingHandler(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, banksdk.PingResponse{
		Message:   "pong",
		Timestamp: time.Now().UTC(),
	})
}
