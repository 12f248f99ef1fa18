package lifecycle

import (
	"context"
	"encoding/json"

	"github.com/crucial707/alloc8/internal/metrics"
	"github.com/crucial707/alloc8/internal/models"
	"github.com/google/uuid"
)

type details map[string]any

// emit appends an audit entry after the primary mutation has committed.
// Failures are logged and counted, never returned: the transition already happened.
func (e *Engine) emit(ctx context.Context, opID uuid.UUID, entityType string, entityID int64, action string, actor Actor, d details) {
	if e.audit == nil {
		return
	}

	entry := models.AuditEntry{
		EntityType:  entityType,
		EntityID:    entityID,
		Action:      action,
		PerformedBy: actor.ref(),
	}
	if opID != uuid.Nil {
		entry.OperationID = &opID
	}
	if len(d) > 0 {
		raw, err := json.Marshal(d)
		if err != nil {
			e.log.WarnContext(ctx, "audit details not encodable", "action", action, "error", err)
		} else {
			entry.Details = raw
		}
	}

	// The request may be gone by now; the audit append must still be attempted.
	if err := e.audit.Record(context.WithoutCancel(ctx), entry); err != nil {
		metrics.IncAuditFailures(action)
		e.log.WarnContext(ctx, "audit append failed",
			"operation_id", opID.String(),
			"action", action,
			"entity_type", entityType,
			"entity_id", entityID,
			"error", err)
	}
}
