package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/crucial707/alloc8/internal/lifecycle"
	"github.com/crucial707/alloc8/internal/models"
	"github.com/crucial707/alloc8/internal/repo"
	"github.com/shopspring/decimal"
)

type AssetHandler struct {
	Engine  *lifecycle.Engine
	Repo    *repo.AssetRepo
	History *repo.HistoryRepo
	Audit   lifecycle.AuditSink
	Logger  *slog.Logger
}

// date accepts either a calendar date (2006-01-02) or an RFC 3339 timestamp.
type date struct{ time.Time }

func (d *date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (d *date) ptr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

type assetInput struct {
	Name           string          `json:"name" validate:"required,min=2,max=255"`
	Category       string          `json:"category" validate:"required,max=100"`
	Cost           decimal.Decimal `json:"cost"`
	PurchaseDate   *date           `json:"purchase_date"`
	WarrantyExpiry *date           `json:"warranty_expiry"`
	ImageRefs      []string        `json:"image_refs" validate:"max=10,dive,max=500"`
}

//
// ==========================
// Create Asset
// ==========================
//

func (h *AssetHandler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var input assetInput
	if !decodeAndValidate(w, r, &input) {
		return
	}

	asset, err := h.Engine.CreateAsset(r.Context(), lifecycle.NewAsset{
		Name:           input.Name,
		Category:       input.Category,
		Cost:           input.Cost,
		PurchaseDate:   input.PurchaseDate.ptr(),
		WarrantyExpiry: input.WarrantyExpiry.ptr(),
		ImageRefs:      input.ImageRefs,
	}, actor)
	if err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

//
// ==========================
// List Assets
// ==========================
//

func (h *AssetHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 10, 200)
	q := r.URL.Query()
	f := repo.AssetFilter{
		Status:         models.AssetStatus(q.Get("status")),
		Category:       q.Get("category"),
		Query:          strings.TrimSpace(q.Get("q")),
		AssignedTo:     queryID(r, "assigned_to"),
		IncludeDeleted: q.Get("include_deleted") == "true",
		Limit:          limit,
		Offset:         offset,
	}

	assets, err := h.Repo.List(r.Context(), f)
	if err != nil {
		JSONError(w, "failed to fetch assets", http.StatusInternalServerError)
		return
	}
	total, err := h.Repo.Count(r.Context(), f)
	if err != nil {
		JSONError(w, "failed to fetch assets", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":  assets,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

//
// ==========================
// Get Asset By ID
// ==========================
//

func (h *AssetHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		JSONError(w, "invalid asset id", http.StatusBadRequest)
		return
	}

	asset, ops, err := h.Engine.Asset(r.Context(), id, actor)
	if err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}
	if ops == nil {
		ops = []lifecycle.Op{}
	}
	writeJSON(w, http.StatusOK, struct {
		models.Asset
		AllowedOperations []lifecycle.Op `json:"allowed_operations"`
	}{asset, ops})
}

//
// ==========================
// Update Asset
// ==========================
//

// UpdateAsset edits descriptive fields only. Serial, status, holder and
// category change through lifecycle operations or not at all.
func (h *AssetHandler) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		JSONError(w, "invalid asset id", http.StatusBadRequest)
		return
	}

	var input struct {
		Name           string          `json:"name" validate:"required,min=2,max=255"`
		Cost           decimal.Decimal `json:"cost"`
		PurchaseDate   *date           `json:"purchase_date"`
		WarrantyExpiry *date           `json:"warranty_expiry"`
		ImageRefs      []string        `json:"image_refs" validate:"max=10,dive,max=500"`
	}
	if !decodeAndValidate(w, r, &input) {
		return
	}
	if input.Cost.IsNegative() {
		JSONValidationError(w, "validation failed", map[string]string{"cost": "must not be negative"}, http.StatusBadRequest)
		return
	}

	asset, err := h.Repo.Update(r.Context(), id, repo.AssetUpdate{
		Name:           strings.TrimSpace(input.Name),
		Cost:           input.Cost,
		PurchaseDate:   input.PurchaseDate.ptr(),
		WarrantyExpiry: input.WarrantyExpiry.ptr(),
		ImageRefs:      input.ImageRefs,
	})
	if err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}

	recordAudit(r.Context(), h.Audit, models.EntityAsset, asset.ID, "ASSET_UPDATED", actor, map[string]any{
		"name": asset.Name,
		"cost": asset.Cost.String(),
	})
	writeJSON(w, http.StatusOK, asset)
}

//
// ==========================
// Deactivate / Restore
// ==========================
//

func (h *AssetHandler) DeactivateAsset(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.Engine.DeactivateAsset(r.Context(), id, actor); err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AssetHandler) RestoreAsset(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	asset, err := h.Engine.RestoreAsset(r.Context(), id, actor)
	if err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

//
// ==========================
// Assignment
// ==========================
//

func (h *AssetHandler) AssignAsset(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var input struct {
		UserID int64 `json:"user_id" validate:"required,gt=0"`
	}
	if !decodeAndValidate(w, r, &input) {
		return
	}

	asset, err := h.Engine.AssignAsset(r.Context(), id, input.UserID, actor)
	if err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (h *AssetHandler) UnassignAsset(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	asset, err := h.Engine.UnassignAsset(r.Context(), id, actor)
	if err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

//
// ==========================
// Employee actions
// ==========================
//

func (h *AssetHandler) ReportIssue(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var input struct {
		IssueType   string `json:"issue_type" validate:"required"`
		Description string `json:"description" validate:"required,max=2000"`
	}
	if !decodeAndValidate(w, r, &input) {
		return
	}

	issue, err := h.Engine.ReportIssue(r.Context(), id, actor, input.IssueType, input.Description)
	if err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, issue)
}

func (h *AssetHandler) RequestReturn(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var input struct {
		Reason string `json:"reason" validate:"max=1000"`
	}
	if !decodeAndValidate(w, r, &input) {
		return
	}

	ret, err := h.Engine.RequestReturn(r.Context(), id, actor, input.Reason)
	if err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, ret)
}

//
// ==========================
// Maintenance
// ==========================
//

func (h *AssetHandler) StartMaintenance(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var input struct {
		Reason string          `json:"reason" validate:"required,max=500"`
		Vendor string          `json:"vendor" validate:"max=255"`
		Notes  string          `json:"notes" validate:"max=2000"`
		Cost   decimal.Decimal `json:"cost"`
	}
	if !decodeAndValidate(w, r, &input) {
		return
	}

	rec, err := h.Engine.StartMaintenance(r.Context(), id, lifecycle.MaintenanceStart{
		Reason: input.Reason,
		Vendor: input.Vendor,
		Notes:  input.Notes,
		Cost:   input.Cost,
	}, actor)
	if err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *AssetHandler) CompleteMaintenance(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var input struct {
		Cost   decimal.Decimal `json:"cost"`
		Vendor string          `json:"vendor" validate:"max=255"`
		Notes  string          `json:"notes" validate:"max=2000"`
	}
	if !decodeAndValidate(w, r, &input) {
		return
	}

	rec, err := h.Engine.CompleteMaintenance(r.Context(), id, lifecycle.MaintenanceCompletion{
		Cost:   input.Cost,
		Vendor: input.Vendor,
		Notes:  input.Notes,
	}, actor)
	if err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

//
// ==========================
// History / Timeline
// ==========================
//

// AssetHistory returns the asset's lifecycle log, newest first.
func (h *AssetHandler) AssetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		JSONError(w, "invalid asset id", http.StatusBadRequest)
		return
	}
	limit, offset := pagination(r, 50, 500)

	entries, err := h.History.ListForAsset(r.Context(), id, limit, offset)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *AssetHandler) AssetTimeline(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		JSONError(w, "invalid asset id", http.StatusBadRequest)
		return
	}
	intervals, err := h.Engine.AssignmentTimeline(r.Context(), lifecycle.HistoryFilter{AssetID: id})
	if err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, timelineResponse(intervals))
}

func timelineResponse(intervals []lifecycle.Interval) []lifecycle.Interval {
	if intervals == nil {
		return []lifecycle.Interval{}
	}
	return intervals
}

// target resolves the actor and the {id} path parameter shared by every
// lifecycle endpoint.
func (h *AssetHandler) target(w http.ResponseWriter, r *http.Request) (lifecycle.Actor, int64, bool) {
	actor, ok := requireActor(w, r)
	if !ok {
		return lifecycle.Actor{}, 0, false
	}
	id, ok := pathID(r, "id")
	if !ok {
		JSONError(w, "invalid asset id", http.StatusBadRequest)
		return lifecycle.Actor{}, 0, false
	}
	return actor, id, true
}

// parseDays reads a positive day count query parameter.
func parseDays(r *http.Request, name string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(name)); err == nil && v > 0 {
		return v
	}
	return def
}
