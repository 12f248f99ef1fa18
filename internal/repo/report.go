package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/crucial707/alloc8/internal/lifecycle"
	"github.com/crucial707/alloc8/internal/models"
	"github.com/shopspring/decimal"
)

// ReportRepo answers the administrative report queries. Rows are plain JSON
// data; rendering them into documents is left to clients.
type ReportRepo struct {
	DB *sql.DB
}

func NewReportRepo(db *sql.DB) *ReportRepo {
	return &ReportRepo{DB: db}
}

// GroupCount is one bucket of a grouped asset count.
type GroupCount struct {
	Group string `json:"group"`
	Total int    `json:"total"`
}

// CategoryBreakdown counts live assets of one category, per status.
type CategoryBreakdown struct {
	Category string         `json:"category"`
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

// ==========================
// Asset distribution
// ==========================

func (r *ReportRepo) AssetsByCategory(ctx context.Context) ([]CategoryBreakdown, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT category, status, COUNT(*) FROM assets WHERE NOT is_deleted GROUP BY category, status ORDER BY category, status`)
	if err != nil {
		return nil, fmt.Errorf("counting assets by category: %w", err)
	}
	defer rows.Close()

	out := []CategoryBreakdown{}
	for rows.Next() {
		var (
			category, status string
			n                int
		)
		if err := rows.Scan(&category, &status, &n); err != nil {
			return nil, fmt.Errorf("scanning category count: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].Category != category {
			out = append(out, CategoryBreakdown{Category: category, ByStatus: map[string]int{}})
		}
		last := &out[len(out)-1]
		last.ByStatus[status] = n
		last.Total += n
	}
	return out, rows.Err()
}

func (r *ReportRepo) AssetsByStatus(ctx context.Context) ([]GroupCount, error) {
	return r.groupCounts(ctx, "status",
		`SELECT status, COUNT(*) FROM assets WHERE NOT is_deleted GROUP BY status ORDER BY status`)
}

// AssetsByLocation groups live assets by their holder's department. Assets
// without a holder, or held by someone without a department, count as "Unassigned".
func (r *ReportRepo) AssetsByLocation(ctx context.Context) ([]GroupCount, error) {
	return r.groupCounts(ctx, "location",
		`SELECT COALESCE(NULLIF(u.department, ''), 'Unassigned') AS location, COUNT(*)
		 FROM assets a LEFT JOIN users u ON u.id = a.assigned_to
		 WHERE NOT a.is_deleted
		 GROUP BY location ORDER BY location`)
}

func (r *ReportRepo) groupCounts(ctx context.Context, what, query string) ([]GroupCount, error) {
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("counting assets by %s: %w", what, err)
	}
	defer rows.Close()

	out := []GroupCount{}
	for rows.Next() {
		var g GroupCount
		if err := rows.Scan(&g.Group, &g.Total); err != nil {
			return nil, fmt.Errorf("scanning %s count: %w", what, err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ==========================
// Maintenance
// ==========================

type MaintenanceLog struct {
	RecordID  int64           `json:"record_id"`
	AssetID   int64           `json:"asset_id"`
	AssetName string          `json:"asset_name"`
	Category  string          `json:"category"`
	Reason    string          `json:"reason"`
	Vendor    string          `json:"vendor,omitempty"`
	Cost      decimal.Decimal `json:"cost"`
	StartDate time.Time       `json:"start_date"`
	EndDate   *time.Time      `json:"end_date"`
	Active    bool            `json:"active"`
}

// MaintenanceLogs lists every maintenance record of live assets, newest first.
func (r *ReportRepo) MaintenanceLogs(ctx context.Context) ([]MaintenanceLog, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT m.id, a.id, a.name, a.category, m.reason, m.vendor, m.cost, m.start_date, m.end_date, m.is_active
		 FROM asset_maintenance m JOIN assets a ON a.id = m.asset_id
		 WHERE NOT a.is_deleted
		 ORDER BY m.start_date DESC, m.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing maintenance logs: %w", err)
	}
	defer rows.Close()

	out := []MaintenanceLog{}
	for rows.Next() {
		var (
			l   MaintenanceLog
			end sql.NullTime
		)
		if err := rows.Scan(&l.RecordID, &l.AssetID, &l.AssetName, &l.Category, &l.Reason, &l.Vendor,
			&l.Cost, &l.StartDate, &end, &l.Active); err != nil {
			return nil, fmt.Errorf("scanning maintenance log: %w", err)
		}
		l.EndDate = timePtr(end)
		out = append(out, l)
	}
	return out, rows.Err()
}

type MaintenanceExpense struct {
	AssetID      int64           `json:"asset_id"`
	AssetName    string          `json:"asset_name"`
	SerialNumber string          `json:"serial_number"`
	Category     string          `json:"category"`
	Status       string          `json:"status"`
	IsDeleted    bool            `json:"is_deleted"`
	Count        int             `json:"maintenance_count"`
	Total        decimal.Decimal `json:"total_cost"`
	Average      decimal.Decimal `json:"average_cost"`
}

// MaintenanceExpenses sums maintenance cost per asset, written-off assets included.
func (r *ReportRepo) MaintenanceExpenses(ctx context.Context) ([]MaintenanceExpense, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT a.id, a.name, a.serial_number, a.category, a.status, a.is_deleted, COUNT(m.id), COALESCE(SUM(m.cost), 0)
		 FROM assets a JOIN asset_maintenance m ON m.asset_id = a.id
		 GROUP BY a.id
		 ORDER BY a.id`)
	if err != nil {
		return nil, fmt.Errorf("summing maintenance expense: %w", err)
	}
	defer rows.Close()

	out := []MaintenanceExpense{}
	for rows.Next() {
		var e MaintenanceExpense
		if err := rows.Scan(&e.AssetID, &e.AssetName, &e.SerialNumber, &e.Category, &e.Status, &e.IsDeleted,
			&e.Count, &e.Total); err != nil {
			return nil, fmt.Errorf("scanning maintenance expense: %w", err)
		}
		if e.Count > 0 {
			e.Average = e.Total.Div(decimal.NewFromInt(int64(e.Count))).Round(2)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ==========================
// Warranty
// ==========================

type WarrantyExpiry struct {
	AssetID        int64     `json:"asset_id"`
	AssetName      string    `json:"asset_name"`
	Category       string    `json:"category"`
	SerialNumber   string    `json:"serial_number"`
	Status         string    `json:"status"`
	Holder         string    `json:"holder,omitempty"`
	WarrantyExpiry time.Time `json:"warranty_expiry"`
	DaysLeft       int       `json:"days_left"`
}

// ExpiringWarranties lists live assets whose warranty ends between now and
// now+within, soonest first.
func (r *ReportRepo) ExpiringWarranties(ctx context.Context, now time.Time, within time.Duration) ([]WarrantyExpiry, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT a.id, a.name, a.category, a.serial_number, a.status, COALESCE(NULLIF(u.name, ''), u.username, ''), a.warranty_expiry
		 FROM assets a LEFT JOIN users u ON u.id = a.assigned_to
		 WHERE NOT a.is_deleted AND a.warranty_expiry BETWEEN $1 AND $2
		 ORDER BY a.warranty_expiry, a.id`,
		now, now.Add(within))
	if err != nil {
		return nil, fmt.Errorf("listing warranty expiries: %w", err)
	}
	defer rows.Close()

	out := []WarrantyExpiry{}
	for rows.Next() {
		var w WarrantyExpiry
		if err := rows.Scan(&w.AssetID, &w.AssetName, &w.Category, &w.SerialNumber, &w.Status, &w.Holder, &w.WarrantyExpiry); err != nil {
			return nil, fmt.Errorf("scanning warranty expiry: %w", err)
		}
		w.DaysLeft = lifecycle.DurationDays(now, w.WarrantyExpiry)
		out = append(out, w)
	}
	return out, rows.Err()
}

// ==========================
// Assignments
// ==========================

type AssignmentEvent struct {
	HistoryID   int64                `json:"history_id"`
	AssetID     int64                `json:"asset_id"`
	AssetName   string               `json:"asset_name"`
	Category    string               `json:"category"`
	Action      models.HistoryAction `json:"action"`
	AssignedTo  *int64               `json:"assigned_to,omitempty"`
	Holder      string               `json:"holder,omitempty"`
	PerformedBy string               `json:"performed_by,omitempty"`
	Notes       string               `json:"notes,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

// AssignmentHistory pages through the history log newest first. With
// transfersOnly it keeps assign and unassign events only.
func (r *ReportRepo) AssignmentHistory(ctx context.Context, transfersOnly bool, limit, offset int) ([]AssignmentEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	where := ""
	if transfersOnly {
		where = ` WHERE h.action IN ('assigned', 'unassigned')`
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT h.id, h.asset_id, a.name, a.category, h.action, h.assigned_to,
		        COALESCE(NULLIF(u.name, ''), u.username, ''), COALESCE(NULLIF(p.name, ''), p.username, ''),
		        h.notes, h.created_at
		 FROM asset_history h
		 JOIN assets a ON a.id = h.asset_id
		 LEFT JOIN users u ON u.id = h.assigned_to
		 LEFT JOIN users p ON p.id = h.performed_by`+where+`
		 ORDER BY h.created_at DESC, h.id DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing assignment history: %w", err)
	}
	defer rows.Close()

	out := []AssignmentEvent{}
	for rows.Next() {
		var (
			ev     AssignmentEvent
			action string
			holder sql.NullInt64
		)
		if err := rows.Scan(&ev.HistoryID, &ev.AssetID, &ev.AssetName, &ev.Category, &action, &holder,
			&ev.Holder, &ev.PerformedBy, &ev.Notes, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning assignment event: %w", err)
		}
		ev.Action = models.HistoryAction(action)
		ev.AssignedTo = idPtr(holder)
		out = append(out, ev)
	}
	return out, rows.Err()
}

type EmployeeAsset struct {
	UserID       int64  `json:"user_id"`
	Employee     string `json:"employee"`
	Department   string `json:"department,omitempty"`
	AssetID      int64  `json:"asset_id"`
	AssetName    string `json:"asset_name"`
	Category     string `json:"category"`
	SerialNumber string `json:"serial_number"`
	Status       string `json:"status"`
}

// EmployeeAssets lists every live asset that currently has a holder, grouped by holder.
func (r *ReportRepo) EmployeeAssets(ctx context.Context) ([]EmployeeAsset, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT u.id, COALESCE(NULLIF(u.name, ''), u.username), u.department,
		        a.id, a.name, a.category, a.serial_number, a.status
		 FROM assets a JOIN users u ON u.id = a.assigned_to
		 WHERE NOT a.is_deleted
		 ORDER BY u.id, a.id`)
	if err != nil {
		return nil, fmt.Errorf("listing employee assets: %w", err)
	}
	defer rows.Close()

	out := []EmployeeAsset{}
	for rows.Next() {
		var e EmployeeAsset
		if err := rows.Scan(&e.UserID, &e.Employee, &e.Department,
			&e.AssetID, &e.AssetName, &e.Category, &e.SerialNumber, &e.Status); err != nil {
			return nil, fmt.Errorf("scanning employee asset: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ==========================
// Purchase cost
// ==========================

type PurchaseCost struct {
	AssetID      int64           `json:"asset_id"`
	AssetName    string          `json:"asset_name"`
	Category     string          `json:"category"`
	PurchaseDate *time.Time      `json:"purchase_date"`
	Cost         decimal.Decimal `json:"cost"`
	Status       string          `json:"status"`
	IsDeleted    bool            `json:"is_deleted"`
}

type PurchaseCostReport struct {
	Items []PurchaseCost  `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// PurchaseCosts lists the purchase cost of every asset ever registered,
// deactivated ones included, with the grand total.
func (r *ReportRepo) PurchaseCosts(ctx context.Context) (PurchaseCostReport, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, name, category, purchase_date, cost, status, is_deleted FROM assets ORDER BY id`)
	if err != nil {
		return PurchaseCostReport{}, fmt.Errorf("listing purchase costs: %w", err)
	}
	defer rows.Close()

	rep := PurchaseCostReport{Items: []PurchaseCost{}, Total: decimal.Zero}
	for rows.Next() {
		var (
			p         PurchaseCost
			purchased sql.NullTime
		)
		if err := rows.Scan(&p.AssetID, &p.AssetName, &p.Category, &purchased, &p.Cost, &p.Status, &p.IsDeleted); err != nil {
			return PurchaseCostReport{}, fmt.Errorf("scanning purchase cost: %w", err)
		}
		p.PurchaseDate = timePtr(purchased)
		rep.Items = append(rep.Items, p)
		rep.Total = rep.Total.Add(p.Cost)
	}
	return rep, rows.Err()
}

// ==========================
// Per-user summary
// ==========================

type UserSummary struct {
	UserID               int64          `json:"user_id"`
	TotalAssignments     int            `json:"total_assignments"`
	ActiveAssets         int            `json:"active_assets"`
	MaintenanceIncidents int            `json:"maintenance_incidents"`
	TotalRequests        int            `json:"total_requests"`
	RequestsByStatus     map[string]int `json:"requests_by_status"`
}

// UserSummary counts a user's assignments, current holdings, maintenance
// incidents on assets they held, and requests by status.
func (r *ReportRepo) UserSummary(ctx context.Context, userID int64) (UserSummary, error) {
	s := UserSummary{UserID: userID, RequestsByStatus: map[string]int{}}
	err := r.DB.QueryRowContext(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM asset_history WHERE assigned_to = $1 AND action = 'assigned'),
		   (SELECT COUNT(*) FROM assets WHERE assigned_to = $1 AND NOT is_deleted),
		   (SELECT COUNT(*) FROM asset_history WHERE assigned_to = $1 AND action = 'maintenance_started')`,
		userID).Scan(&s.TotalAssignments, &s.ActiveAssets, &s.MaintenanceIncidents)
	if err != nil {
		return UserSummary{}, fmt.Errorf("counting user activity: %w", err)
	}

	if err := countBy(ctx, r.DB,
		`SELECT status, COUNT(*) FROM requests WHERE user_id = $1 GROUP BY status`,
		s.RequestsByStatus, userID); err != nil {
		return UserSummary{}, fmt.Errorf("counting user requests: %w", err)
	}
	for _, n := range s.RequestsByStatus {
		s.TotalRequests += n
	}
	return s, nil
}
