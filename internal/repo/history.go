package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/crucial707/alloc8/internal/lifecycle"
	"github.com/crucial707/alloc8/internal/models"
	"github.com/lib/pq"
)

// HistoryRepo reads the append-only asset history. Rows are only ever written
// by AssetRepo inside a lifecycle transaction.
type HistoryRepo struct {
	DB *sql.DB
}

func NewHistoryRepo(db *sql.DB) *HistoryRepo {
	return &HistoryRepo{DB: db}
}

const historyColumns = `id, operation_id, asset_id, action, performed_by, assigned_to, notes, created_at`

func insertHistory(ctx context.Context, q queryer, h models.HistoryEntry) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`INSERT INTO asset_history (operation_id, asset_id, action, performed_by, assigned_to, notes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		h.OperationID, h.AssetID, string(h.Action), nullID(h.PerformedBy), nullID(h.AssignedTo), h.Notes, h.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting history: %w", err)
	}
	return id, nil
}

func scanHistory(row scanner) (models.HistoryEntry, error) {
	var (
		h                       models.HistoryEntry
		action                  string
		performedBy, assignedTo sql.NullInt64
	)
	if err := row.Scan(&h.ID, &h.OperationID, &h.AssetID, &action, &performedBy, &assignedTo, &h.Notes, &h.CreatedAt); err != nil {
		return models.HistoryEntry{}, err
	}
	h.Action = models.HistoryAction(action)
	h.PerformedBy = idPtr(performedBy)
	h.AssignedTo = idPtr(assignedTo)
	return h, nil
}

func collectHistory(rows *sql.Rows) ([]models.HistoryEntry, error) {
	defer rows.Close()
	out := []models.HistoryEntry{}
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// AssignmentHistory returns the assignment and release events needed to
// rebuild holding intervals, oldest first. For a user it returns the events
// of every asset the user was ever assigned, so intervals closed by someone
// else's action are still closed.
func (r *HistoryRepo) AssignmentHistory(ctx context.Context, f lifecycle.HistoryFilter) ([]models.HistoryEntry, error) {
	actions := []string{
		string(models.ActionAssigned),
		string(models.ActionUnassigned),
		string(models.ActionMaintenanceStarted),
		string(models.ActionDeactivated),
	}

	var (
		rows *sql.Rows
		err  error
	)
	if f.AssetID != 0 {
		rows, err = r.DB.QueryContext(ctx,
			`SELECT `+historyColumns+` FROM asset_history
			 WHERE asset_id = $1 AND action = ANY($2) AND assigned_to IS NOT NULL
			 ORDER BY created_at, id`,
			f.AssetID, pq.Array(actions))
	} else {
		rows, err = r.DB.QueryContext(ctx,
			`SELECT `+historyColumns+` FROM asset_history
			 WHERE asset_id IN (
			     SELECT DISTINCT asset_id FROM asset_history WHERE action = 'assigned' AND assigned_to = $1
			 ) AND action = ANY($2) AND assigned_to IS NOT NULL
			 ORDER BY created_at, id`,
			f.UserID, pq.Array(actions))
	}
	if err != nil {
		return nil, fmt.Errorf("loading assignment history: %w", err)
	}
	return collectHistory(rows)
}

// ListForAsset returns an asset's full history, newest first.
func (r *HistoryRepo) ListForAsset(ctx context.Context, assetID int64, limit, offset int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+historyColumns+` FROM asset_history WHERE asset_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		assetID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	return collectHistory(rows)
}
