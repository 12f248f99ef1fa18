package lifecycle

import (
	"slices"

	"github.com/crucial707/alloc8/internal/models"
)

// Op is a state-changing lifecycle operation.
type Op string

const (
	OpCreate              Op = "create"
	OpAssign              Op = "assign"
	OpUnassign            Op = "unassign"
	OpReportIssue         Op = "report_issue"
	OpRequestReturn       Op = "request_return"
	OpStartMaintenance    Op = "start_maintenance"
	OpCompleteMaintenance Op = "complete_maintenance"
	OpDeactivate          Op = "deactivate"
	OpRestore             Op = "restore"
)

// Transition describes one row of the lifecycle table.
type Transition struct {
	Op     Op
	From   []models.AssetStatus
	To     models.AssetStatus
	Action models.HistoryAction
	Audit  string

	// HolderOnly marks employee-initiated operations: the actor must hold the asset.
	HolderOnly bool
	// OnDeleted marks operations that apply to soft-deleted assets only.
	OnDeleted bool

	reject func(current models.AssetStatus) error
	guard  func(a models.Asset) error
	target func(a models.Asset) models.AssetStatus
}

var live = []models.AssetStatus{
	models.StatusAvailable,
	models.StatusAssigned,
	models.StatusMaintenance,
	models.StatusIssueReported,
	models.StatusReturnRequested,
}

// held are the states in which an asset keeps its holder.
var held = []models.AssetStatus{
	models.StatusAssigned,
	models.StatusIssueReported,
	models.StatusReturnRequested,
}

var transitions = map[Op]Transition{
	OpCreate: {
		Op:     OpCreate,
		To:     models.StatusAvailable,
		Action: models.ActionCreated,
		Audit:  "ASSET_CREATED",
	},
	OpAssign: {
		Op:     OpAssign,
		From:   []models.AssetStatus{models.StatusAvailable},
		To:     models.StatusAssigned,
		Action: models.ActionAssigned,
		Audit:  "ASSET_ASSIGNED",
		reject: func(s models.AssetStatus) error {
			switch s {
			case models.StatusAssigned, models.StatusReturnRequested, models.StatusIssueReported:
				return ErrAlreadyAssigned
			}
			return ErrInvalidTransition
		},
	},
	OpUnassign: {
		Op:     OpUnassign,
		From:   held,
		To:     models.StatusAvailable,
		Action: models.ActionUnassigned,
		Audit:  "ASSET_UNASSIGNED",
		reject: func(models.AssetStatus) error { return ErrNotAssigned },
	},
	OpReportIssue: {
		Op:         OpReportIssue,
		From:       held,
		To:         models.StatusIssueReported,
		Action:     models.ActionIssueReported,
		Audit:      "ISSUE_REPORTED",
		HolderOnly: true,
	},
	OpRequestReturn: {
		Op:         OpRequestReturn,
		From:       []models.AssetStatus{models.StatusAssigned, models.StatusIssueReported},
		To:         models.StatusReturnRequested,
		Action:     models.ActionReturnRequested,
		Audit:      "ASSET_RETURN_REQUESTED",
		HolderOnly: true,
		reject: func(s models.AssetStatus) error {
			if s == models.StatusReturnRequested {
				return ErrDuplicateReturn
			}
			return ErrInvalidTransition
		},
	},
	OpStartMaintenance: {
		Op:     OpStartMaintenance,
		From:   live,
		To:     models.StatusMaintenance,
		Action: models.ActionMaintenanceStarted,
		Audit:  "MAINTENANCE_STARTED",
		guard: func(a models.Asset) error {
			if _, ok := a.ActiveMaintenance(); ok {
				return ErrActiveMaintenance
			}
			return nil
		},
	},
	OpCompleteMaintenance: {
		Op:     OpCompleteMaintenance,
		From:   []models.AssetStatus{models.StatusMaintenance},
		To:     models.StatusAvailable,
		Action: models.ActionMaintenanceCompleted,
		Audit:  "MAINTENANCE_COMPLETED",
		reject: func(models.AssetStatus) error { return ErrNoActiveMaintenance },
		guard: func(a models.Asset) error {
			if _, ok := a.ActiveMaintenance(); !ok {
				return ErrNoActiveMaintenance
			}
			return nil
		},
	},
	OpDeactivate: {
		Op:     OpDeactivate,
		From:   live,
		To:     models.StatusInactive,
		Action: models.ActionDeactivated,
		Audit:  "ASSET_DEACTIVATED",
	},
	OpRestore: {
		Op:        OpRestore,
		From:      []models.AssetStatus{models.StatusInactive},
		To:        models.StatusAvailable,
		Action:    models.ActionRestored,
		Audit:     "ASSET_RESTORED",
		OnDeleted: true,
		target: func(a models.Asset) models.AssetStatus {
			if _, ok := a.ActiveMaintenance(); ok {
				return models.StatusMaintenance
			}
			return models.StatusAvailable
		},
	},
}

// TransitionFor returns the table row for op.
func TransitionFor(op Op) (Transition, bool) {
	t, ok := transitions[op]
	return t, ok
}

// Check validates op against the asset's current state and returns the
// transition with its resulting state resolved. Every engine operation goes
// through Check before it writes anything.
func Check(op Op, a models.Asset, actor Actor) (Transition, error) {
	t, ok := transitions[op]
	if !ok || op == OpCreate {
		return Transition{}, ErrInvalidTransition
	}

	if t.OnDeleted {
		if !a.IsDeleted {
			return Transition{}, ErrNotDeleted
		}
	} else if a.IsDeleted || a.Status == models.StatusInactive {
		return Transition{}, ErrAssetInactive
	}

	if t.HolderOnly && !a.HeldBy(actor.UserID) {
		return Transition{}, ErrNotHolder
	}

	if !slices.Contains(t.From, a.Status) {
		if t.reject != nil {
			return Transition{}, t.reject(a.Status)
		}
		return Transition{}, ErrInvalidTransition
	}

	if t.guard != nil {
		if err := t.guard(a); err != nil {
			return Transition{}, err
		}
	}

	if t.target != nil {
		t.To = t.target(a)
	}
	return t, nil
}

// Allowed returns the operations that Check would accept for a, as seen by actor.
func Allowed(a models.Asset, actor Actor) []Op {
	var ops []Op
	for _, op := range []Op{
		OpAssign, OpUnassign, OpReportIssue, OpRequestReturn,
		OpStartMaintenance, OpCompleteMaintenance, OpDeactivate, OpRestore,
	} {
		if _, err := Check(op, a, actor); err == nil {
			ops = append(ops, op)
		}
	}
	return ops
}
