package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit entity types.
const (
	EntityAsset       = "ASSET"
	EntityUser        = "USER"
	EntityRequest     = "REQUEST"
	EntityMaintenance = "MAINTENANCE"
	EntityCategory    = "CATEGORY"
	EntityDepartment  = "DEPARTMENT"
)

// AuditEntry represents one audit log row.
type AuditEntry struct {
	ID          int64           `json:"id"`
	OperationID *uuid.UUID      `json:"operation_id,omitempty"`
	EntityType  string          `json:"entity_type"`
	EntityID    int64           `json:"entity_id"`
	Action      string          `json:"action"` // ASSET_ASSIGNED, MAINTENANCE_STARTED, ...
	PerformedBy *int64          `json:"performed_by,omitempty"`
	Details     json.RawMessage `json:"details,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
