package models

import (
	"time"

	"github.com/google/uuid"
)

// HistoryAction names a lifecycle event recorded in asset_history.
type HistoryAction string

const (
	ActionCreated              HistoryAction = "created"
	ActionAssigned             HistoryAction = "assigned"
	ActionUnassigned           HistoryAction = "unassigned"
	ActionIssueReported        HistoryAction = "issue_reported"
	ActionReturnRequested      HistoryAction = "return_requested"
	ActionMaintenanceStarted   HistoryAction = "maintenance_started"
	ActionMaintenanceCompleted HistoryAction = "maintenance_completed"
	ActionDeactivated          HistoryAction = "deactivated"
	ActionRestored             HistoryAction = "restored"
)

// HistoryEntry is one immutable row of an asset's lifecycle log.
// AssignedTo is the affected user: the new holder for "assigned", the prior
// holder for events that take the asset away from someone.
type HistoryEntry struct {
	ID          int64         `json:"id"`
	OperationID uuid.UUID     `json:"operation_id"`
	AssetID     int64         `json:"asset_id"`
	Action      HistoryAction `json:"action"`
	PerformedBy *int64        `json:"performed_by,omitempty"`
	AssignedTo  *int64        `json:"assigned_to,omitempty"`
	Notes       string        `json:"notes,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}
