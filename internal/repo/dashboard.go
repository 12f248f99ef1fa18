package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DashboardRepo runs the aggregate queries behind the admin dashboard and the
// metrics refresher.
type DashboardRepo struct {
	DB *sql.DB
}

func NewDashboardRepo(db *sql.DB) *DashboardRepo {
	return &DashboardRepo{DB: db}
}

// Stats is the admin dashboard summary.
type Stats struct {
	AssetsByStatus     map[string]int  `json:"assets_by_status"`
	RequestsByStatus   map[string]int  `json:"requests_by_status"`
	TotalAssets        int             `json:"total_assets"`
	TotalAssetValue    decimal.Decimal `json:"total_asset_value"`
	MaintenanceExpense decimal.Decimal `json:"maintenance_expense"`
	OpenIssues         int             `json:"open_issues"`
	PendingReturns     int             `json:"pending_returns"`
}

func (r *DashboardRepo) Stats(ctx context.Context) (Stats, error) {
	s := Stats{RequestsByStatus: map[string]int{}}

	var err error
	if s.AssetsByStatus, err = r.AssetCounts(ctx); err != nil {
		return Stats{}, err
	}
	for _, n := range s.AssetsByStatus {
		s.TotalAssets += n
	}

	if err := r.DB.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(cost), 0), COALESCE(SUM(total_maintenance_cost), 0) FROM assets WHERE NOT is_deleted`,
	).Scan(&s.TotalAssetValue, &s.MaintenanceExpense); err != nil {
		return Stats{}, fmt.Errorf("summing asset value: %w", err)
	}

	if err := countBy(ctx, r.DB, `SELECT status, COUNT(*) FROM requests GROUP BY status`, s.RequestsByStatus); err != nil {
		return Stats{}, fmt.Errorf("counting requests: %w", err)
	}

	if err := r.DB.QueryRowContext(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM asset_issues WHERE status <> 'resolved'),
		   (SELECT COUNT(*) FROM asset_returns WHERE NOT is_completed)`,
	).Scan(&s.OpenIssues, &s.PendingReturns); err != nil {
		return Stats{}, fmt.Errorf("counting open work: %w", err)
	}
	return s, nil
}

// AssetCounts returns the number of assets per status, deactivated ones under "inactive".
func (r *DashboardRepo) AssetCounts(ctx context.Context) (map[string]int, error) {
	counts := map[string]int{}
	if err := countBy(ctx, r.DB, `SELECT status, COUNT(*) FROM assets GROUP BY status`, counts); err != nil {
		return nil, fmt.Errorf("counting assets: %w", err)
	}
	return counts, nil
}

// WarrantyExpiring counts live assets whose warranty ends between now and now+within.
func (r *DashboardRepo) WarrantyExpiring(ctx context.Context, now time.Time, within time.Duration) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM assets WHERE NOT is_deleted AND warranty_expiry BETWEEN $1 AND $2`,
		now, now.Add(within)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting warranty expiries: %w", err)
	}
	return n, nil
}

func countBy(ctx context.Context, q queryer, query string, into map[string]int, args ...any) error {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		into[key] = n
	}
	return rows.Err()
}
