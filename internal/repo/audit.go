package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/crucial707/alloc8/internal/models"
	"github.com/google/uuid"
)

// AuditRepo persists audit log entries. It implements lifecycle.AuditSink.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo returns a new AuditRepo.
func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Record appends an audit entry. Entries are never updated.
func (r *AuditRepo) Record(ctx context.Context, e models.AuditEntry) error {
	var details any
	if len(e.Details) > 0 {
		details = []byte(e.Details)
	}
	var opID uuid.NullUUID
	if e.OperationID != nil {
		opID = uuid.NullUUID{UUID: *e.OperationID, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (operation_id, entity_type, entity_id, action, performed_by, details) VALUES ($1, $2, $3, $4, $5, $6)`,
		opID, e.EntityType, e.EntityID, e.Action, nullID(e.PerformedBy), details,
	)
	if err != nil {
		return fmt.Errorf("recording audit: %w", err)
	}
	return nil
}

// AuditFilter narrows List. Zero values mean "any".
type AuditFilter struct {
	EntityType string
	EntityID   int64
	Limit      int
	Offset     int
}

// List returns audit entries, newest first.
func (r *AuditRepo) List(ctx context.Context, f AuditFilter) ([]models.AuditEntry, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, operation_id, entity_type, entity_id, action, performed_by, details, created_at
		 FROM audit_log
		 WHERE ($1 = '' OR entity_type = $1) AND ($2 = 0 OR entity_id = $2)
		 ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`,
		f.EntityType, f.EntityID, f.Limit, f.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing audit log: %w", err)
	}
	defer rows.Close()

	entries := []models.AuditEntry{}
	for rows.Next() {
		var (
			e           models.AuditEntry
			opID        uuid.NullUUID
			performedBy sql.NullInt64
			details     []byte
		)
		if err := rows.Scan(&e.ID, &opID, &e.EntityType, &e.EntityID, &e.Action, &performedBy, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		if opID.Valid {
			id := opID.UUID
			e.OperationID = &id
		}
		e.PerformedBy = idPtr(performedBy)
		if len(details) > 0 {
			e.Details = details
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
