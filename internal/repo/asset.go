package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/crucial707/alloc8/internal/lifecycle"
	"github.com/crucial707/alloc8/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ========================
// REPOSITORY STRUCT
// ========================

// AssetRepo implements lifecycle.AssetStore on Postgres.
type AssetRepo struct {
	DB *sql.DB
}

func NewAssetRepo(db *sql.DB) *AssetRepo {
	return &AssetRepo{DB: db}
}

const assetColumns = `id, serial_number, name, category, cost, purchase_date, warranty_expiry,
	image_refs, status, assigned_to, is_deleted, maintenance_count, total_maintenance_cost,
	issue_type, issue_description, issue_reported_by, issue_reported_at, created_at, updated_at`

func scanAsset(row scanner) (models.Asset, error) {
	var (
		a                    models.Asset
		status               string
		purchase, warranty   sql.NullTime
		assignedTo           sql.NullInt64
		issueType, issueDesc sql.NullString
		issueBy              sql.NullInt64
		issueAt              sql.NullTime
	)
	err := row.Scan(
		&a.ID, &a.SerialNumber, &a.Name, &a.Category, &a.Cost, &purchase, &warranty,
		pq.Array(&a.ImageRefs), &status, &assignedTo, &a.IsDeleted, &a.MaintenanceCount, &a.TotalMaintenanceCost,
		&issueType, &issueDesc, &issueBy, &issueAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return models.Asset{}, err
	}
	a.Status = models.AssetStatus(status)
	a.PurchaseDate = timePtr(purchase)
	a.WarrantyExpiry = timePtr(warranty)
	a.AssignedTo = idPtr(assignedTo)
	if issueType.Valid {
		a.Issue = &models.IssueSnapshot{
			Type:        issueType.String,
			Description: issueDesc.String,
			ReportedBy:  issueBy.Int64,
			ReportedAt:  issueAt.Time,
		}
	}
	if a.ImageRefs == nil {
		a.ImageRefs = []string{}
	}
	return a, nil
}

// ========================
// GET ASSET BY ID
// ========================

// GetAsset returns the asset, deleted or not, with its maintenance records.
func (r *AssetRepo) GetAsset(ctx context.Context, id int64) (models.Asset, error) {
	a, err := scanAsset(r.DB.QueryRowContext(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Asset{}, lifecycle.ErrAssetNotFound
	}
	if err != nil {
		return models.Asset{}, fmt.Errorf("getting asset: %w", err)
	}

	a.Maintenance, err = r.maintenance(ctx, id)
	if err != nil {
		return models.Asset{}, err
	}
	return a, nil
}

const maintenanceColumns = `id, asset_id, reason, vendor, cost, start_date, end_date, notes, is_active`

func scanMaintenance(row scanner) (models.MaintenanceRecord, error) {
	var (
		m   models.MaintenanceRecord
		end sql.NullTime
	)
	if err := row.Scan(&m.ID, &m.AssetID, &m.Reason, &m.Vendor, &m.Cost, &m.StartDate, &end, &m.Notes, &m.IsActive); err != nil {
		return models.MaintenanceRecord{}, err
	}
	m.EndDate = timePtr(end)
	return m, nil
}

func (r *AssetRepo) maintenance(ctx context.Context, assetID int64) ([]models.MaintenanceRecord, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+maintenanceColumns+` FROM asset_maintenance WHERE asset_id = $1 ORDER BY start_date, id`, assetID)
	if err != nil {
		return nil, fmt.Errorf("listing maintenance: %w", err)
	}
	defer rows.Close()

	var out []models.MaintenanceRecord
	for rows.Next() {
		m, err := scanMaintenance(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning maintenance: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ========================
// CREATE ASSET
// ========================

// NextSerial draws the next value from the serial number sequence.
func (r *AssetRepo) NextSerial(ctx context.Context) (int64, error) {
	var n int64
	if err := r.DB.QueryRowContext(ctx, `SELECT nextval('asset_serial_seq')`).Scan(&n); err != nil {
		return 0, fmt.Errorf("next serial: %w", err)
	}
	return n, nil
}

// InsertAsset stores a new asset and its "created" history entry in one transaction.
func (r *AssetRepo) InsertAsset(ctx context.Context, a models.Asset, h models.HistoryEntry) (models.Asset, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return models.Asset{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollback(tx)

	images := a.ImageRefs
	if images == nil {
		images = []string{}
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO assets (serial_number, name, category, cost, purchase_date, warranty_expiry, image_refs, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		 RETURNING id`,
		a.SerialNumber, a.Name, a.Category, a.Cost, nullTime(a.PurchaseDate), nullTime(a.WarrantyExpiry),
		pq.Array(images), string(a.Status), a.CreatedAt,
	).Scan(&a.ID)
	if isUniqueViolation(err) {
		return models.Asset{}, fmt.Errorf("serial number %s already issued: %w", a.SerialNumber, err)
	}
	if err != nil {
		return models.Asset{}, fmt.Errorf("inserting asset: %w", err)
	}

	h.AssetID = a.ID
	if _, err := insertHistory(ctx, tx, h); err != nil {
		return models.Asset{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Asset{}, fmt.Errorf("committing asset: %w", err)
	}
	a.ImageRefs = images
	return a, nil
}

// ========================
// APPLY LIFECYCLE MUTATION
// ========================

// Apply performs a lifecycle mutation as one transaction. The asset update is
// conditional on status, deletion flag and (optionally) holder; if it matches
// nothing, lifecycle.ErrConditionFailed is returned and nothing is written.
func (r *AssetRepo) Apply(ctx context.Context, m lifecycle.Mutation) (lifecycle.Result, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return lifecycle.Result{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollback(tx)

	query, args := buildAssetUpdate(m)
	asset, err := scanAsset(tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return lifecycle.Result{}, lifecycle.ErrConditionFailed
	}
	if err != nil {
		return lifecycle.Result{}, fmt.Errorf("updating asset: %w", err)
	}

	res := lifecycle.Result{Asset: asset}

	switch {
	case m.OpenMaintenance != nil:
		rec := *m.OpenMaintenance
		err := tx.QueryRowContext(ctx,
			`INSERT INTO asset_maintenance (asset_id, reason, vendor, cost, start_date, notes, is_active)
			 VALUES ($1, $2, $3, $4, $5, $6, TRUE)
			 RETURNING id`,
			m.AssetID, rec.Reason, rec.Vendor, rec.Cost, rec.StartDate, rec.Notes,
		).Scan(&rec.ID)
		if isUniqueViolation(err) {
			return lifecycle.Result{}, lifecycle.ErrActiveMaintenance
		}
		if err != nil {
			return lifecycle.Result{}, fmt.Errorf("opening maintenance: %w", err)
		}
		rec.AssetID = m.AssetID
		rec.IsActive = true
		res.Maintenance = &rec

	case m.CloseMaintenance != nil:
		c := m.CloseMaintenance
		rec, err := scanMaintenance(tx.QueryRowContext(ctx,
			`UPDATE asset_maintenance
			 SET is_active = FALSE, end_date = $1, cost = $2,
			     vendor = COALESCE(NULLIF($3, ''), vendor),
			     notes = COALESCE(NULLIF($4, ''), notes)
			 WHERE asset_id = $5 AND is_active
			 RETURNING `+maintenanceColumns,
			c.EndDate, c.Cost, c.Vendor, c.Notes, m.AssetID,
		))
		if errors.Is(err, sql.ErrNoRows) {
			return lifecycle.Result{}, lifecycle.ErrNoActiveMaintenance
		}
		if err != nil {
			return lifecycle.Result{}, fmt.Errorf("closing maintenance: %w", err)
		}
		res.Maintenance = &rec
	}

	if m.NewIssue != nil {
		i := m.NewIssue
		err := tx.QueryRowContext(ctx,
			`INSERT INTO asset_issues (asset_id, reported_by, issue_type, description, status, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			m.AssetID, i.ReportedBy, i.IssueType, i.Description, string(i.Status), i.CreatedAt,
		).Scan(&res.IssueID)
		if err != nil {
			return lifecycle.Result{}, fmt.Errorf("inserting issue: %w", err)
		}
	}

	if m.IssueUpdate != nil {
		if err := updateIssue(ctx, tx, *m.IssueUpdate); err != nil {
			return lifecycle.Result{}, err
		}
	}

	if m.NewReturn != nil {
		ret := m.NewReturn
		err := tx.QueryRowContext(ctx,
			`INSERT INTO asset_returns (asset_id, requested_by, reason, created_at)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id`,
			m.AssetID, ret.RequestedBy, ret.Reason, ret.CreatedAt,
		).Scan(&res.ReturnID)
		if err != nil {
			return lifecycle.Result{}, fmt.Errorf("inserting return: %w", err)
		}
	}

	if m.CompleteReturns {
		if _, err := tx.ExecContext(ctx,
			`UPDATE asset_returns SET is_completed = TRUE WHERE asset_id = $1 AND NOT is_completed`,
			m.AssetID,
		); err != nil {
			return lifecycle.Result{}, fmt.Errorf("completing returns: %w", err)
		}
	}

	if m.RequestUpdate != nil {
		if err := updateRequestStatus(ctx, tx, *m.RequestUpdate); err != nil {
			return lifecycle.Result{}, err
		}
	}

	h := m.History
	h.AssetID = m.AssetID
	if _, err := insertHistory(ctx, tx, h); err != nil {
		return lifecycle.Result{}, err
	}

	if err := tx.Commit(); err != nil {
		return lifecycle.Result{}, fmt.Errorf("committing %s: %w", h.Action, err)
	}
	return res, nil
}

// buildAssetUpdate renders the conditional UPDATE for a mutation.
func buildAssetUpdate(m lifecycle.Mutation) (string, []any) {
	args := []any{string(m.To), m.History.CreatedAt}
	sets := []string{"status = $1", "updated_at = $2"}
	set := func(expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if m.SetHolder {
		set("assigned_to = $%d", nullID(m.NewHolder))
	}
	if m.SetDeleted {
		set("is_deleted = $%d", m.NewDeleted)
	}
	if s := m.IssueReport; s != nil {
		set("issue_type = $%d", s.Type)
		set("issue_description = $%d", s.Description)
		set("issue_reported_by = $%d", s.ReportedBy)
		set("issue_reported_at = $%d", s.ReportedAt)
	}
	if c := m.CloseMaintenance; c != nil {
		sets = append(sets, "maintenance_count = maintenance_count + 1")
		set("total_maintenance_cost = total_maintenance_cost + $%d", c.Cost)
	}

	from := make([]string, len(m.From))
	for i, s := range m.From {
		from[i] = string(s)
	}
	args = append(args, m.AssetID, pq.Array(from), m.Deleted)
	n := len(args)
	where := fmt.Sprintf("id = $%d AND status = ANY($%d) AND is_deleted = $%d", n-2, n-1, n)
	if m.Holder != nil {
		args = append(args, *m.Holder)
		where += fmt.Sprintf(" AND assigned_to = $%d", len(args))
	}

	return "UPDATE assets SET " + strings.Join(sets, ", ") + " WHERE " + where + " RETURNING " + assetColumns, args
}

// ========================
// UPDATE DESCRIPTIVE FIELDS
// ========================

// AssetUpdate carries the descriptive fields an admin may edit. Serial number,
// category, status and holder are owned by the lifecycle and never change here.
type AssetUpdate struct {
	Name           string
	Cost           decimal.Decimal
	PurchaseDate   *time.Time
	WarrantyExpiry *time.Time
	ImageRefs      []string
}

func (r *AssetRepo) Update(ctx context.Context, id int64, u AssetUpdate) (models.Asset, error) {
	images := u.ImageRefs
	if images == nil {
		images = []string{}
	}
	a, err := scanAsset(r.DB.QueryRowContext(ctx,
		`UPDATE assets
		 SET name = $1, cost = $2, purchase_date = $3, warranty_expiry = $4, image_refs = $5, updated_at = now()
		 WHERE id = $6 AND NOT is_deleted
		 RETURNING `+assetColumns,
		u.Name, u.Cost, nullTime(u.PurchaseDate), nullTime(u.WarrantyExpiry), pq.Array(images), id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Asset{}, lifecycle.ErrAssetNotFound
	}
	if err != nil {
		return models.Asset{}, fmt.Errorf("updating asset: %w", err)
	}
	return a, nil
}

// ========================
// LIST / SEARCH ASSETS
// ========================

// AssetFilter narrows List. Zero values mean "any".
type AssetFilter struct {
	Status         models.AssetStatus
	Category       string
	Query          string
	AssignedTo     int64
	IncludeDeleted bool
	Limit, Offset  int
}

func (f AssetFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if !f.IncludeDeleted {
		conds = append(conds, "NOT is_deleted")
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Category != "" {
		add("lower(category) = lower($%d)", f.Category)
	}
	if f.AssignedTo != 0 {
		add("assigned_to = $%d", f.AssignedTo)
	}
	if f.Query != "" {
		add("(name ILIKE $%[1]d OR serial_number ILIKE $%[1]d)", "%"+f.Query+"%")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *AssetRepo) List(ctx context.Context, f AssetFilter) ([]models.Asset, error) {
	where, args := f.where()
	limit, offset := f.Limit, f.Offset
	if limit <= 0 {
		limit = 10
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM assets%s ORDER BY id LIMIT $%d OFFSET $%d`,
		assetColumns, where, len(args)-1, len(args))

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing assets: %w", err)
	}
	defer rows.Close()

	assets := []models.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func (r *AssetRepo) Count(ctx context.Context, f AssetFilter) (int, error) {
	where, args := f.where()
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM assets`+where, args...).Scan(&n)
	return n, err
}
