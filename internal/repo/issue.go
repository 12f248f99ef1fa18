package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/crucial707/alloc8/internal/lifecycle"
	"github.com/crucial707/alloc8/internal/models"
)

// ========================
// ISSUES
// ========================

// IssueRepo reads issue reports. Issues are created and moved between states
// by AssetRepo.Apply alongside the asset they belong to.
type IssueRepo struct {
	DB *sql.DB
}

func NewIssueRepo(db *sql.DB) *IssueRepo {
	return &IssueRepo{DB: db}
}

const issueColumns = `id, asset_id, reported_by, issue_type, description, status, admin_notes, vendor, cost, start_date, end_date, created_at`

func scanIssue(row scanner) (models.AssetIssue, error) {
	var (
		i          models.AssetIssue
		status     string
		start, end sql.NullTime
	)
	err := row.Scan(&i.ID, &i.AssetID, &i.ReportedBy, &i.IssueType, &i.Description, &status,
		&i.AdminNotes, &i.Vendor, &i.Cost, &start, &end, &i.CreatedAt)
	if err != nil {
		return models.AssetIssue{}, err
	}
	i.Status = models.IssueStatus(status)
	i.StartDate = timePtr(start)
	i.EndDate = timePtr(end)
	return i, nil
}

func (r *IssueRepo) GetIssue(ctx context.Context, id int64) (models.AssetIssue, error) {
	i, err := scanIssue(r.DB.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM asset_issues WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.AssetIssue{}, lifecycle.ErrIssueNotFound
	}
	if err != nil {
		return models.AssetIssue{}, fmt.Errorf("getting issue: %w", err)
	}
	return i, nil
}

// IssueFilter narrows List. Zero values mean "any".
type IssueFilter struct {
	Status     models.IssueStatus
	AssetID    int64
	ReportedBy int64
	Limit      int
	Offset     int
}

func (r *IssueRepo) List(ctx context.Context, f IssueFilter) ([]models.AssetIssue, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+issueColumns+` FROM asset_issues
		 WHERE ($1 = '' OR status = $1)
		   AND ($2 = 0 OR asset_id = $2)
		   AND ($3 = 0 OR reported_by = $3)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $4 OFFSET $5`,
		string(f.Status), f.AssetID, f.ReportedBy, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("listing issues: %w", err)
	}
	defer rows.Close()

	issues := []models.AssetIssue{}
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning issue: %w", err)
		}
		issues = append(issues, i)
	}
	return issues, rows.Err()
}

// updateIssue moves an issue between sub-states, conditional on its current one.
func updateIssue(ctx context.Context, q queryer, u lifecycle.IssueUpdate) error {
	res, err := q.ExecContext(ctx,
		`UPDATE asset_issues
		 SET status = $1,
		     admin_notes = COALESCE(NULLIF($2, ''), admin_notes),
		     vendor = COALESCE(NULLIF($3, ''), vendor),
		     cost = COALESCE($4, cost),
		     start_date = COALESCE($5, start_date),
		     end_date = COALESCE($6, end_date)
		 WHERE id = $7 AND status = $8`,
		string(u.To), u.AdminNotes, u.Vendor, nullDecimal(u.Cost), nullTime(u.StartDate), nullTime(u.EndDate),
		u.IssueID, string(u.From))
	if err != nil {
		return fmt.Errorf("updating issue: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("updating issue: %w", err)
	} else if n == 0 {
		return lifecycle.ErrIssueState
	}
	return nil
}

// ========================
// RETURN REQUESTS
// ========================

type ReturnRepo struct {
	DB *sql.DB
}

func NewReturnRepo(db *sql.DB) *ReturnRepo {
	return &ReturnRepo{DB: db}
}

// List returns return requests, open ones only unless includeCompleted is set.
func (r *ReturnRepo) List(ctx context.Context, includeCompleted bool, limit, offset int) ([]models.AssetReturn, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, asset_id, requested_by, reason, is_completed, created_at FROM asset_returns
		 WHERE $1 OR NOT is_completed
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		includeCompleted, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing returns: %w", err)
	}
	defer rows.Close()

	returns := []models.AssetReturn{}
	for rows.Next() {
		var ret models.AssetReturn
		if err := rows.Scan(&ret.ID, &ret.AssetID, &ret.RequestedBy, &ret.Reason, &ret.IsCompleted, &ret.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning return: %w", err)
		}
		returns = append(returns, ret)
	}
	return returns, rows.Err()
}
