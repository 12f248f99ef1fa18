// Package lifecycle owns the asset state machine: it validates every
// transition against one table, applies it as a single conditional write
// together with its history entry, and emits audit entries afterwards.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/crucial707/alloc8/internal/metrics"
	"github.com/crucial707/alloc8/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultSerialPrefix is used when no prefix is configured.
const DefaultSerialPrefix = "ORG"

// Deps are the collaborators the engine reads and writes through.
type Deps struct {
	Assets     AssetStore
	History    HistoryReader
	Issues     IssueReader
	Requests   RequestStore
	Categories CategoryRegistry
	Users      UserLookup
	Audit      AuditSink
}

type Engine struct {
	assets     AssetStore
	history    HistoryReader
	issues     IssueReader
	requests   RequestStore
	categories CategoryRegistry
	users      UserLookup
	audit      AuditSink

	log          *slog.Logger
	serialPrefix string
	now          func() time.Time
}

type Option func(*Engine)

func WithSerialPrefix(prefix string) Option {
	return func(e *Engine) {
		if p := strings.TrimSpace(prefix); p != "" {
			e.serialPrefix = strings.ToUpper(p)
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(d Deps, opts ...Option) *Engine {
	e := &Engine{
		assets:       d.Assets,
		history:      d.History,
		issues:       d.Issues,
		requests:     d.Requests,
		categories:   d.Categories,
		users:        d.Users,
		audit:        d.Audit,
		log:          slog.Default(),
		serialPrefix: DefaultSerialPrefix,
		now:          time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// FormatSerial renders the display serial number for sequence value n.
func FormatSerial(prefix string, n int64) string {
	return fmt.Sprintf("%s-AST-%04d", prefix, n)
}

// NewAsset holds the caller-supplied fields of a new asset.
type NewAsset struct {
	Name           string
	Category       string
	Cost           decimal.Decimal
	PurchaseDate   *time.Time
	WarrantyExpiry *time.Time
	ImageRefs      []string
}

// CreateAsset registers a new available asset with a freshly issued serial number.
func (e *Engine) CreateAsset(ctx context.Context, in NewAsset, actor Actor) (models.Asset, error) {
	name := strings.TrimSpace(in.Name)
	category := strings.TrimSpace(in.Category)
	if name == "" {
		return models.Asset{}, ValidationError("name", "required")
	}
	if category == "" {
		return models.Asset{}, ValidationError("category", "required")
	}
	if in.Cost.IsNegative() {
		return models.Asset{}, ValidationError("cost", "must not be negative")
	}
	if e.categories != nil {
		ok, err := e.categories.CategoryExists(ctx, category)
		if err != nil {
			return models.Asset{}, classify("check category", err)
		}
		if !ok {
			return models.Asset{}, ValidationError("category", "not registered")
		}
	}

	n, err := e.assets.NextSerial(ctx)
	if err != nil {
		return models.Asset{}, classify("issue serial number", err)
	}

	now := e.now()
	opID := uuid.New()
	asset := models.Asset{
		SerialNumber:   FormatSerial(e.serialPrefix, n),
		Name:           name,
		Category:       category,
		Cost:           in.Cost,
		PurchaseDate:   in.PurchaseDate,
		WarrantyExpiry: in.WarrantyExpiry,
		ImageRefs:      in.ImageRefs,
		Status:         models.StatusAvailable,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	h := models.HistoryEntry{
		OperationID: opID,
		Action:      models.ActionCreated,
		PerformedBy: actor.ref(),
		Notes:       "Asset created",
		CreatedAt:   now,
	}

	created, err := e.assets.InsertAsset(ctx, asset, h)
	if err != nil {
		metrics.RecordTransition(string(OpCreate), string(KindOf(err)))
		return models.Asset{}, classify("create asset", err)
	}
	metrics.RecordTransition(string(OpCreate), "ok")

	e.emit(ctx, opID, models.EntityAsset, created.ID, "ASSET_CREATED", actor, details{
		"name":          created.Name,
		"category":      created.Category,
		"serial_number": created.SerialNumber,
	})
	return created, nil
}

// transition loads the asset, validates op through Check, lets prepare fill
// in operation-specific parts of the mutation, and applies it.
func (e *Engine) transition(
	ctx context.Context,
	op Op,
	assetID int64,
	actor Actor,
	prepare func(prior models.Asset, m *Mutation) error,
) (Result, models.Asset, error) {
	prior, err := e.assets.GetAsset(ctx, assetID)
	if err != nil {
		return Result{}, models.Asset{}, e.fail(op, classify("load asset", err))
	}

	t, err := Check(op, prior, actor)
	if err != nil {
		return Result{}, prior, e.fail(op, err)
	}

	opID := uuid.New()
	m := Mutation{
		OperationID: opID,
		AssetID:     assetID,
		From:        slices.Clone(t.From),
		Deleted:     t.OnDeleted,
		To:          t.To,
		History: models.HistoryEntry{
			OperationID: opID,
			AssetID:     assetID,
			Action:      t.Action,
			PerformedBy: actor.ref(),
			CreatedAt:   e.now(),
		},
	}
	if t.HolderOnly {
		m.Holder = actor.ref()
	}
	if prepare != nil {
		if err := prepare(prior, &m); err != nil {
			return Result{}, prior, e.fail(op, err)
		}
	}

	res, err := e.assets.Apply(ctx, m)
	if errors.Is(err, ErrConditionFailed) {
		err = e.conflict(ctx, op, assetID, actor)
	}
	if err != nil {
		return Result{}, prior, e.fail(op, classify(string(op), err))
	}
	res.OperationID = opID
	metrics.RecordTransition(string(op), "ok")
	return res, prior, nil
}

// conflict explains a conditional write that matched no row by re-reading the
// asset and checking op against its current state. ErrConditionFailed is kept
// only when the current state would still accept op.
func (e *Engine) conflict(ctx context.Context, op Op, assetID int64, actor Actor) error {
	current, err := e.assets.GetAsset(ctx, assetID)
	if err != nil {
		return classify("reload asset", err)
	}
	if _, err := Check(op, current, actor); err != nil {
		return err
	}
	return ErrConditionFailed
}

func (e *Engine) fail(op Op, err error) error {
	metrics.RecordTransition(string(op), string(KindOf(err)))
	return err
}

// AssignAsset hands an available asset to userID.
func (e *Engine) AssignAsset(ctx context.Context, assetID, userID int64, actor Actor) (models.Asset, error) {
	res, _, user, err := e.assign(ctx, assetID, userID, actor, nil)
	if err != nil {
		return models.Asset{}, err
	}
	e.emitAssigned(ctx, res, user, actor, nil)
	return res.Asset, nil
}

func (e *Engine) assign(ctx context.Context, assetID, userID int64, actor Actor, extra func(prior models.Asset, m *Mutation) error) (Result, models.Asset, models.User, error) {
	var user models.User
	res, prior, err := e.transition(ctx, OpAssign, assetID, actor, func(prior models.Asset, m *Mutation) error {
		u, err := e.liveUser(ctx, userID)
		if err != nil {
			return err
		}
		user = u
		if extra != nil {
			if err := extra(prior, m); err != nil {
				return err
			}
		}
		holder := userID
		m.SetHolder = true
		m.NewHolder = &holder
		m.History.AssignedTo = &holder
		m.History.Notes = "Assigned to " + displayName(u)
		return nil
	})
	return res, prior, user, err
}

func (e *Engine) emitAssigned(ctx context.Context, res Result, user models.User, actor Actor, extra details) {
	d := details{
		"asset_name":    res.Asset.Name,
		"serial_number": res.Asset.SerialNumber,
		"user_id":       user.ID,
		"user_name":     displayName(user),
		"department":    user.Department,
	}
	for k, v := range extra {
		d[k] = v
	}
	e.emit(ctx, res.OperationID, models.EntityAsset, res.Asset.ID, "ASSET_ASSIGNED", actor, d)
}

func (e *Engine) liveUser(ctx context.Context, userID int64) (models.User, error) {
	if userID <= 0 {
		return models.User{}, ValidationError("user_id", "required")
	}
	u, err := e.users.GetUser(ctx, userID)
	if err != nil {
		return models.User{}, classify("load user", err)
	}
	if u.IsDeleted {
		return models.User{}, ErrUserNotFound
	}
	return u, nil
}

// UnassignAsset takes an assigned (or return-requested) asset back from its holder.
func (e *Engine) UnassignAsset(ctx context.Context, assetID int64, actor Actor) (models.Asset, error) {
	res, prior, err := e.transition(ctx, OpUnassign, assetID, actor, func(prior models.Asset, m *Mutation) error {
		m.Holder = prior.AssignedTo
		m.SetHolder = true
		m.NewHolder = nil
		m.CompleteReturns = true
		m.History.AssignedTo = prior.AssignedTo
		m.History.Notes = "Returned to inventory"
		return nil
	})
	if err != nil {
		return models.Asset{}, err
	}
	e.emit(ctx, res.OperationID, models.EntityAsset, assetID, "ASSET_UNASSIGNED", actor, details{
		"asset_name":      res.Asset.Name,
		"serial_number":   res.Asset.SerialNumber,
		"previous_holder": prior.AssignedTo,
	})
	return res.Asset, nil
}

// ReportIssue records an issue raised by the asset's holder and quarantines the asset.
func (e *Engine) ReportIssue(ctx context.Context, assetID int64, actor Actor, issueType, description string) (models.AssetIssue, error) {
	issueType = strings.ToLower(strings.TrimSpace(issueType))
	description = strings.TrimSpace(description)
	if !slices.Contains(models.IssueTypes, issueType) {
		return models.AssetIssue{}, ValidationError("issue_type", "must be one of "+strings.Join(models.IssueTypes, ", "))
	}
	if description == "" {
		return models.AssetIssue{}, ValidationError("description", "required")
	}

	var issue models.AssetIssue
	res, _, err := e.transition(ctx, OpReportIssue, assetID, actor, func(prior models.Asset, m *Mutation) error {
		now := m.History.CreatedAt
		m.IssueReport = &models.IssueSnapshot{
			Type:        issueType,
			Description: description,
			ReportedBy:  actor.UserID,
			ReportedAt:  now,
		}
		issue = models.AssetIssue{
			AssetID:     assetID,
			ReportedBy:  actor.UserID,
			IssueType:   issueType,
			Description: description,
			Status:      models.IssueOpen,
			Cost:        decimal.Zero,
			CreatedAt:   now,
		}
		m.NewIssue = &issue
		m.History.AssignedTo = prior.AssignedTo
		m.History.Notes = description
		return nil
	})
	if err != nil {
		return models.AssetIssue{}, err
	}
	issue.ID = res.IssueID
	e.emit(ctx, res.OperationID, models.EntityAsset, assetID, "ISSUE_REPORTED", actor, details{
		"issue_id":   issue.ID,
		"issue_type": issueType,
		"asset_name": res.Asset.Name,
	})
	return issue, nil
}

// RequestReturn flags the holder's wish to hand the asset back. The asset stays assigned.
func (e *Engine) RequestReturn(ctx context.Context, assetID int64, actor Actor, reason string) (models.AssetReturn, error) {
	reason = strings.TrimSpace(reason)
	var ret models.AssetReturn
	res, _, err := e.transition(ctx, OpRequestReturn, assetID, actor, func(prior models.Asset, m *Mutation) error {
		ret = models.AssetReturn{
			AssetID:     assetID,
			RequestedBy: actor.UserID,
			Reason:      reason,
			CreatedAt:   m.History.CreatedAt,
		}
		m.NewReturn = &ret
		m.History.AssignedTo = prior.AssignedTo
		m.History.Notes = "Return requested"
		if reason != "" {
			m.History.Notes += ": " + reason
		}
		return nil
	})
	if err != nil {
		return models.AssetReturn{}, err
	}
	ret.ID = res.ReturnID
	e.emit(ctx, res.OperationID, models.EntityAsset, assetID, "ASSET_RETURN_REQUESTED", actor, details{
		"asset_name":    res.Asset.Name,
		"serial_number": res.Asset.SerialNumber,
		"return_id":     ret.ID,
	})
	return ret, nil
}

// MaintenanceStart holds the inputs for opening a maintenance record.
type MaintenanceStart struct {
	Reason string
	Vendor string
	Notes  string
	Cost   decimal.Decimal
}

// StartMaintenance pulls the asset from its holder and opens a maintenance record.
func (e *Engine) StartMaintenance(ctx context.Context, assetID int64, in MaintenanceStart, actor Actor) (models.MaintenanceRecord, error) {
	rec, _, err := e.startMaintenance(ctx, assetID, in, actor, nil)
	return rec, err
}

func (e *Engine) startMaintenance(ctx context.Context, assetID int64, in MaintenanceStart, actor Actor, extra func(m *Mutation)) (models.MaintenanceRecord, Result, error) {
	in.Reason = strings.TrimSpace(in.Reason)
	if in.Reason == "" {
		return models.MaintenanceRecord{}, Result{}, ValidationError("reason", "required")
	}
	if in.Cost.IsNegative() {
		return models.MaintenanceRecord{}, Result{}, ValidationError("cost", "must not be negative")
	}

	res, prior, err := e.transition(ctx, OpStartMaintenance, assetID, actor, func(prior models.Asset, m *Mutation) error {
		m.SetHolder = true
		m.NewHolder = nil
		m.OpenMaintenance = &models.MaintenanceRecord{
			AssetID:   assetID,
			Reason:    in.Reason,
			Vendor:    strings.TrimSpace(in.Vendor),
			Cost:      in.Cost,
			StartDate: m.History.CreatedAt,
			Notes:     strings.TrimSpace(in.Notes),
			IsActive:  true,
		}
		m.History.AssignedTo = prior.AssignedTo
		m.History.Notes = in.Reason
		if extra != nil {
			extra(m)
		}
		return nil
	})
	if err != nil {
		return models.MaintenanceRecord{}, Result{}, err
	}

	rec := *orEmpty(res.Maintenance)
	e.emit(ctx, res.OperationID, models.EntityMaintenance, assetID, "MAINTENANCE_STARTED", actor, details{
		"asset_name":      res.Asset.Name,
		"reason":          rec.Reason,
		"vendor":          rec.Vendor,
		"cost":            rec.Cost.String(),
		"previous_holder": prior.AssignedTo,
	})
	return rec, res, nil
}

// MaintenanceCompletion holds the inputs for closing the active maintenance record.
type MaintenanceCompletion struct {
	Cost   decimal.Decimal
	Vendor string
	Notes  string
}

// CompleteMaintenance closes the active maintenance record and makes the asset available.
func (e *Engine) CompleteMaintenance(ctx context.Context, assetID int64, in MaintenanceCompletion, actor Actor) (models.MaintenanceRecord, error) {
	rec, _, err := e.completeMaintenance(ctx, assetID, in, actor, nil)
	return rec, err
}

func (e *Engine) completeMaintenance(ctx context.Context, assetID int64, in MaintenanceCompletion, actor Actor, extra func(m *Mutation)) (models.MaintenanceRecord, Result, error) {
	if in.Cost.IsNegative() {
		return models.MaintenanceRecord{}, Result{}, ValidationError("cost", "must not be negative")
	}

	res, _, err := e.transition(ctx, OpCompleteMaintenance, assetID, actor, func(prior models.Asset, m *Mutation) error {
		m.CloseMaintenance = &MaintenanceClose{
			Cost:    in.Cost,
			Vendor:  strings.TrimSpace(in.Vendor),
			Notes:   strings.TrimSpace(in.Notes),
			EndDate: m.History.CreatedAt,
		}
		m.History.Notes = "Maintenance completed"
		if n := strings.TrimSpace(in.Notes); n != "" {
			m.History.Notes = n
		}
		if extra != nil {
			extra(m)
		}
		return nil
	})
	if err != nil {
		return models.MaintenanceRecord{}, Result{}, err
	}

	rec := *orEmpty(res.Maintenance)
	days := 0
	if rec.EndDate != nil {
		days = DurationDays(rec.StartDate, *rec.EndDate)
	}
	e.emit(ctx, res.OperationID, models.EntityMaintenance, assetID, "MAINTENANCE_COMPLETED", actor, details{
		"asset_name":    res.Asset.Name,
		"cost":          rec.Cost.String(),
		"vendor":        rec.Vendor,
		"duration_days": days,
	})
	return rec, res, nil
}

// DeactivateAsset soft-deletes the asset, releasing any holder.
func (e *Engine) DeactivateAsset(ctx context.Context, assetID int64, actor Actor) error {
	res, prior, err := e.transition(ctx, OpDeactivate, assetID, actor, func(prior models.Asset, m *Mutation) error {
		m.SetDeleted = true
		m.NewDeleted = true
		m.SetHolder = true
		m.NewHolder = nil
		m.CompleteReturns = prior.AssignedTo != nil
		m.History.AssignedTo = prior.AssignedTo
		m.History.Notes = "Asset deactivated"
		return nil
	})
	if err != nil {
		return err
	}
	e.emit(ctx, res.OperationID, models.EntityAsset, assetID, "ASSET_DEACTIVATED", actor, details{
		"asset_name":      res.Asset.Name,
		"serial_number":   res.Asset.SerialNumber,
		"previous_holder": prior.AssignedTo,
	})
	return nil
}

// RestoreAsset undoes a deactivation. The asset returns to maintenance if an
// active maintenance record survived the deactivation, otherwise to available.
func (e *Engine) RestoreAsset(ctx context.Context, assetID int64, actor Actor) (models.Asset, error) {
	res, _, err := e.transition(ctx, OpRestore, assetID, actor, func(prior models.Asset, m *Mutation) error {
		m.SetDeleted = true
		m.NewDeleted = false
		m.History.Notes = "Asset restored"
		return nil
	})
	if err != nil {
		return models.Asset{}, err
	}
	e.emit(ctx, res.OperationID, models.EntityAsset, assetID, "ASSET_RESTORED", actor, details{
		"asset_name": res.Asset.Name,
		"status":     res.Asset.Status,
	})
	return res.Asset, nil
}

// Asset loads one asset together with the operations actor may perform on it
// next. Employees may only read assets they hold.
func (e *Engine) Asset(ctx context.Context, assetID int64, actor Actor) (models.Asset, []Op, error) {
	a, err := e.assets.GetAsset(ctx, assetID)
	if err != nil {
		return models.Asset{}, nil, classify("load asset", err)
	}
	if actor.IsAdmin() {
		return a, Allowed(a, actor), nil
	}
	if !a.HeldBy(actor.UserID) {
		return models.Asset{}, nil, ErrNotHolder
	}
	var ops []Op
	for _, op := range Allowed(a, actor) {
		if transitions[op].HolderOnly {
			ops = append(ops, op)
		}
	}
	return a, ops, nil
}

// orEmpty dereferences a store-reported maintenance record, tolerating stores that omit it.
func orEmpty(rec *models.MaintenanceRecord) *models.MaintenanceRecord {
	if rec == nil {
		return &models.MaintenanceRecord{}
	}
	return rec
}

func displayName(u models.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}
