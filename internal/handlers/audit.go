package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/crucial707/alloc8/internal/lifecycle"
	"github.com/crucial707/alloc8/internal/models"
	"github.com/crucial707/alloc8/internal/repo"
)

// AuditHandler serves audit log endpoints.
type AuditHandler struct {
	Repo *repo.AuditRepo
}

// ListAudit returns recent audit log entries. Query: entity_type, entity_id, limit (default 50), offset (default 0).
func (h *AuditHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50, 200)

	entries, err := h.Repo.List(r.Context(), repo.AuditFilter{
		EntityType: r.URL.Query().Get("entity_type"),
		EntityID:   queryID(r, "entity_id"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// recordAudit appends an entry for changes made outside the lifecycle engine.
// Failures are ignored: the change itself already succeeded.
func recordAudit(ctx context.Context, sink lifecycle.AuditSink, entityType string, entityID int64, action string, actor lifecycle.Actor, details map[string]any) {
	if sink == nil {
		return
	}
	e := models.AuditEntry{EntityType: entityType, EntityID: entityID, Action: action}
	if actor.UserID != 0 {
		id := actor.UserID
		e.PerformedBy = &id
	}
	if len(details) > 0 {
		e.Details, _ = json.Marshal(details)
	}
	_ = sink.Record(context.WithoutCancel(ctx), e)
}
