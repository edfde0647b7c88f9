package http

import (
	"net/http"
	"strconv"

	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/service"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/httpx"
)

// AuditLogsHandler serves GET /api/v1/audit-logs (admin).
type AuditLogsHandler struct {
	AuditLogs *service.AuditLogService
}

func (h *AuditLogsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var limit int
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httpx.WriteProblem(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	recs, err := h.AuditLogs.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, mapSlice(recs, auditLogResponse))
}
