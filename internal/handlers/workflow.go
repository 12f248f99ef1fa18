package handlers

import (
	"log/slog"
	"net/http"

	"github.com/crucial707/alloc8/internal/lifecycle"
	"github.com/crucial707/alloc8/internal/models"
	"github.com/crucial707/alloc8/internal/repo"
	"github.com/shopspring/decimal"
)

// WorkflowHandler serves issue reports, return requests and asset requests.
type WorkflowHandler struct {
	Engine   *lifecycle.Engine
	Issues   *repo.IssueRepo
	Returns  *repo.ReturnRepo
	Requests *repo.RequestRepo
	Logger   *slog.Logger
}

// ==========================
// Issues
// ==========================

// ListIssues returns issue reports. Query: status, asset_id, limit, offset.
func (h *WorkflowHandler) ListIssues(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50, 200)
	issues, err := h.Issues.List(r.Context(), repo.IssueFilter{
		Status:  models.IssueStatus(r.URL.Query().Get("status")),
		AssetID: queryID(r, "asset_id"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

// MyIssues returns the issues the caller reported.
func (h *WorkflowHandler) MyIssues(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r, 50, 200)
	issues, err := h.Issues.List(r.Context(), repo.IssueFilter{ReportedBy: actor.UserID, Limit: limit, Offset: offset})
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

func (h *WorkflowHandler) StartIssueMaintenance(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		JSONError(w, "invalid issue id", http.StatusBadRequest)
		return
	}
	var input struct {
		Vendor     string `json:"vendor" validate:"max=255"`
		AdminNotes string `json:"admin_notes" validate:"max=2000"`
	}
	if !decodeAndValidate(w, r, &input) {
		return
	}

	issue, err := h.Engine.StartIssueMaintenance(r.Context(), id, input.Vendor, input.AdminNotes, actor)
	if err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (h *WorkflowHandler) ResolveIssue(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		JSONError(w, "invalid issue id", http.StatusBadRequest)
		return
	}
	var input struct {
		Cost       decimal.Decimal `json:"cost"`
		AdminNotes string          `json:"admin_notes" validate:"max=2000"`
	}
	if !decodeAndValidate(w, r, &input) {
		return
	}

	issue, err := h.Engine.ResolveIssue(r.Context(), id, input.Cost, input.AdminNotes, actor)
	if err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

// ==========================
// Returns
// ==========================

// ListReturns returns open return requests; include_completed=true lists all.
func (h *WorkflowHandler) ListReturns(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50, 200)
	all := r.URL.Query().Get("include_completed") == "true"
	returns, err := h.Returns.List(r.Context(), all, limit, offset)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, returns)
}

// ==========================
// Requests
// ==========================

func (h *WorkflowHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var input struct {
		AssetCategory string `json:"asset_category" validate:"required,max=100"`
		Reason        string `json:"reason" validate:"max=1000"`
	}
	if !decodeAndValidate(w, r, &input) {
		return
	}

	req, err := h.Engine.CreateRequest(r.Context(), actor, input.AssetCategory, input.Reason)
	if err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// ListRequests returns every request. Query: status, user_id, limit, offset.
func (h *WorkflowHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	h.listRequests(w, r, queryID(r, "user_id"))
}

// MyRequests returns the caller's own requests.
func (h *WorkflowHandler) MyRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	h.listRequests(w, r, actor.UserID)
}

func (h *WorkflowHandler) listRequests(w http.ResponseWriter, r *http.Request, userID int64) {
	limit, offset := pagination(r, 50, 200)
	status := models.RequestStatus(r.URL.Query().Get("status"))
	reqs, err := h.Requests.List(r.Context(), userID, status, limit, offset)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (h *WorkflowHandler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		JSONError(w, "invalid request id", http.StatusBadRequest)
		return
	}
	var input struct {
		AssetID int64 `json:"asset_id" validate:"required,gt=0"`
	}
	if !decodeAndValidate(w, r, &input) {
		return
	}

	req, err := h.Engine.ApproveRequest(r.Context(), id, input.AssetID, actor)
	if err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *WorkflowHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		JSONError(w, "invalid request id", http.StatusBadRequest)
		return
	}

	req, err := h.Engine.RejectRequest(r.Context(), id, actor)
	if err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
