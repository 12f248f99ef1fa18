package lifecycle

import (
	"context"
	"time"

	"github.com/crucial707/alloc8/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Actor is the authenticated user performing an operation.
type Actor struct {
	UserID int64
	Role   string
}

// IsAdmin reports whether the actor has the admin role.
func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

func (a Actor) ref() *int64 {
	if a.UserID == 0 {
		return nil
	}
	id := a.UserID
	return &id
}

// Mutation is one atomic unit of work against an asset. A Store applies it as
// a single conditional write: the asset row is updated only if it still
// matches From / Deleted / Holder, and the history entry plus any attached
// records are written in the same transaction. When the condition does not
// match, the Store returns ErrConditionFailed and writes nothing.
type Mutation struct {
	OperationID uuid.UUID
	AssetID     int64

	// Preconditions checked by the write itself.
	From    []models.AssetStatus
	Deleted bool   // asset must have this is_deleted value
	Holder  *int64 // when set, assigned_to must equal it

	// New state.
	To          models.AssetStatus
	SetHolder   bool
	NewHolder   *int64 // nil clears the holder when SetHolder is true
	SetDeleted  bool
	NewDeleted  bool
	IssueReport *models.IssueSnapshot

	OpenMaintenance  *models.MaintenanceRecord
	CloseMaintenance *MaintenanceClose

	NewIssue        *models.AssetIssue
	IssueUpdate     *IssueUpdate
	NewReturn       *models.AssetReturn
	CompleteReturns bool
	RequestUpdate   *RequestUpdate

	History models.HistoryEntry
}

// MaintenanceClose closes the asset's single active maintenance record.
// Empty Vendor / Notes keep the values recorded at start.
type MaintenanceClose struct {
	Cost    decimal.Decimal
	Vendor  string
	Notes   string
	EndDate time.Time
}

// IssueUpdate moves an issue from one sub-state to another inside a Mutation.
type IssueUpdate struct {
	IssueID    int64
	From       models.IssueStatus
	To         models.IssueStatus
	AdminNotes string
	Vendor     string
	Cost       *decimal.Decimal
	StartDate  *time.Time
	EndDate    *time.Time
}

// RequestUpdate moves a request out of pending inside a Mutation.
type RequestUpdate struct {
	RequestID int64
	From      models.RequestStatus
	To        models.RequestStatus
	AssetID   *int64
}

// Result is what a Store reports after applying a Mutation.
type Result struct {
	OperationID uuid.UUID
	Asset       models.Asset
	Maintenance *models.MaintenanceRecord // opened or closed record
	IssueID     int64
	ReturnID    int64
}

// AssetStore persists assets. GetAsset returns ErrAssetNotFound for unknown
// ids and includes soft-deleted assets and their maintenance records.
type AssetStore interface {
	GetAsset(ctx context.Context, id int64) (models.Asset, error)
	NextSerial(ctx context.Context) (int64, error)
	InsertAsset(ctx context.Context, a models.Asset, h models.HistoryEntry) (models.Asset, error)
	Apply(ctx context.Context, m Mutation) (Result, error)
}

// HistoryFilter selects assignment-relevant history.
type HistoryFilter struct {
	AssetID int64
	UserID  int64
}

// HistoryReader returns history rows oldest first.
type HistoryReader interface {
	AssignmentHistory(ctx context.Context, f HistoryFilter) ([]models.HistoryEntry, error)
}

// IssueReader loads issue reports; returns ErrIssueNotFound for unknown ids.
type IssueReader interface {
	GetIssue(ctx context.Context, id int64) (models.AssetIssue, error)
}

// RequestStore loads and records asset requests.
type RequestStore interface {
	GetRequest(ctx context.Context, id int64) (models.Request, error)
	InsertRequest(ctx context.Context, r models.Request) (models.Request, error)
	// UpdateRequestStatus is conditional on the request's current status and
	// returns ErrRequestProcessed when it no longer matches.
	UpdateRequestStatus(ctx context.Context, u RequestUpdate) error
}

// CategoryRegistry answers whether a live category with the given name exists.
type CategoryRegistry interface {
	CategoryExists(ctx context.Context, name string) (bool, error)
}

// UserLookup resolves users; returns ErrUserNotFound for unknown ids.
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (models.User, error)
}

// AuditSink appends audit entries.
type AuditSink interface {
	Record(ctx context.Context, e models.AuditEntry) error
}
