package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/crucial707/alloc8/internal/lifecycle"
	"github.com/crucial707/alloc8/internal/models"
)

// RequestRepo implements lifecycle.RequestStore.
type RequestRepo struct {
	DB *sql.DB
}

func NewRequestRepo(db *sql.DB) *RequestRepo {
	return &RequestRepo{DB: db}
}

const requestColumns = `id, user_id, asset_category, reason, status, assigned_asset, created_at`

func scanRequest(row scanner) (models.Request, error) {
	var (
		req    models.Request
		status string
		asset  sql.NullInt64
	)
	if err := row.Scan(&req.ID, &req.UserID, &req.AssetCategory, &req.Reason, &status, &asset, &req.CreatedAt); err != nil {
		return models.Request{}, err
	}
	req.Status = models.RequestStatus(status)
	req.AssignedAsset = idPtr(asset)
	return req, nil
}

func (r *RequestRepo) GetRequest(ctx context.Context, id int64) (models.Request, error) {
	req, err := scanRequest(r.DB.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Request{}, lifecycle.ErrRequestNotFound
	}
	if err != nil {
		return models.Request{}, fmt.Errorf("getting request: %w", err)
	}
	return req, nil
}

func (r *RequestRepo) InsertRequest(ctx context.Context, req models.Request) (models.Request, error) {
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO requests (user_id, asset_category, reason, status, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		req.UserID, req.AssetCategory, req.Reason, string(req.Status), req.CreatedAt,
	).Scan(&req.ID)
	if err != nil {
		return models.Request{}, fmt.Errorf("inserting request: %w", err)
	}
	return req, nil
}

func (r *RequestRepo) UpdateRequestStatus(ctx context.Context, u lifecycle.RequestUpdate) error {
	return updateRequestStatus(ctx, r.DB, u)
}

func updateRequestStatus(ctx context.Context, q queryer, u lifecycle.RequestUpdate) error {
	res, err := q.ExecContext(ctx,
		`UPDATE requests SET status = $1, assigned_asset = COALESCE($2, assigned_asset)
		 WHERE id = $3 AND status = $4`,
		string(u.To), nullID(u.AssetID), u.RequestID, string(u.From))
	if err != nil {
		return fmt.Errorf("updating request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating request: %w", err)
	}
	if n == 0 {
		return lifecycle.ErrRequestProcessed
	}
	return nil
}

// List returns requests newest first. userID 0 lists everyone's; an empty
// status lists every status.
func (r *RequestRepo) List(ctx context.Context, userID int64, status models.RequestStatus, limit, offset int) ([]models.Request, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM requests
		 WHERE ($1 = 0 OR user_id = $1) AND ($2 = '' OR status = $2)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3 OFFSET $4`,
		userID, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	defer rows.Close()

	out := []models.Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}
