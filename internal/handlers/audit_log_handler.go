package handlers

import (
	"context"
	"net/http"
	"strconv"

	"km-backend/internal/models"
	"km-backend/pkg/utils"
)

type AuditLogLister interface {
	List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, error)
}

type AuditLogHandler struct {
	Repo AuditLogLister
}

func NewAuditLogHandler(repo AuditLogLister) *AuditLogHandler {
	return &AuditLogHandler{Repo: repo}
}

// List returns audit entries newest first, optionally for one entity
func (h *AuditLogHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.AuditLogFilter{
		Entity:   q.Get("entity"),
		EntityID: q.Get("entityId"),
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = n
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = n
	}

	logs, err := h.Repo.List(r.Context(), filter)
	if err != nil {
		respondServiceError(w, "Audit", err)
		return
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "logs": logs})
}
