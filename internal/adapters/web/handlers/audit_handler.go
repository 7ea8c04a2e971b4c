package handlers

import (
	"net/http"

	"github.com/lcalzada-xor/iotguard/internal/core/ports"
)

// AuditHandler handles audit logging operations
type AuditHandler struct {
	Service ports.AuditService
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(service ports.AuditService) *AuditHandler {
	return &AuditHandler{
		Service: service,
	}
}

// HandleGetLogs returns the most recent audit logs
func (h *AuditHandler) HandleGetLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, 100, 1000)
	if err != nil {
		writeError(w, err)
		return
	}
	logs, err := h.Service.GetLogs(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs": logs,
	})
}
