package lifecycle

import (
	"context"
	"strings"

	"github.com/crucial707/alloc8/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StartIssueMaintenance sends the asset behind an open issue to maintenance.
// The issue moves to in_maintenance in the same write as the asset.
func (e *Engine) StartIssueMaintenance(ctx context.Context, issueID int64, vendor, adminNotes string, actor Actor) (models.AssetIssue, error) {
	issue, err := e.openIssue(ctx, issueID, models.IssueOpen)
	if err != nil {
		return models.AssetIssue{}, e.fail(OpStartMaintenance, err)
	}

	in := MaintenanceStart{
		Reason: issue.IssueType,
		Vendor: vendor,
		Notes:  adminNotes,
	}
	rec, _, err := e.startMaintenance(ctx, issue.AssetID, in, actor, func(m *Mutation) {
		start := m.History.CreatedAt
		m.IssueUpdate = &IssueUpdate{
			IssueID:    issue.ID,
			From:       models.IssueOpen,
			To:         models.IssueInMaintenance,
			AdminNotes: strings.TrimSpace(adminNotes),
			Vendor:     strings.TrimSpace(vendor),
			StartDate:  &start,
		}
		if n := strings.TrimSpace(adminNotes); n != "" {
			m.History.Notes = n
		}
	})
	if err != nil {
		return models.AssetIssue{}, err
	}

	issue.Status = models.IssueInMaintenance
	issue.AdminNotes = strings.TrimSpace(adminNotes)
	issue.Vendor = rec.Vendor
	issue.StartDate = &rec.StartDate
	return issue, nil
}

// ResolveIssue completes the maintenance started for an issue and marks it resolved.
func (e *Engine) ResolveIssue(ctx context.Context, issueID int64, cost decimal.Decimal, adminNotes string, actor Actor) (models.AssetIssue, error) {
	issue, err := e.openIssue(ctx, issueID, models.IssueInMaintenance)
	if err != nil {
		return models.AssetIssue{}, e.fail(OpCompleteMaintenance, err)
	}

	in := MaintenanceCompletion{Cost: cost, Notes: adminNotes}
	rec, _, err := e.completeMaintenance(ctx, issue.AssetID, in, actor, func(m *Mutation) {
		end := m.History.CreatedAt
		c := cost
		m.IssueUpdate = &IssueUpdate{
			IssueID:    issue.ID,
			From:       models.IssueInMaintenance,
			To:         models.IssueResolved,
			AdminNotes: strings.TrimSpace(adminNotes),
			Cost:       &c,
			EndDate:    &end,
		}
	})
	if err != nil {
		return models.AssetIssue{}, err
	}

	issue.Status = models.IssueResolved
	if n := strings.TrimSpace(adminNotes); n != "" {
		issue.AdminNotes = n
	}
	issue.Cost = rec.Cost
	issue.EndDate = rec.EndDate
	return issue, nil
}

func (e *Engine) openIssue(ctx context.Context, issueID int64, want models.IssueStatus) (models.AssetIssue, error) {
	issue, err := e.issues.GetIssue(ctx, issueID)
	if err != nil {
		return models.AssetIssue{}, classify("load issue", err)
	}
	if issue.Status != want {
		return models.AssetIssue{}, ErrIssueState
	}
	return issue, nil
}

// CreateRequest files an employee's request for an asset of a registered category.
func (e *Engine) CreateRequest(ctx context.Context, actor Actor, category, reason string) (models.Request, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return models.Request{}, ValidationError("asset_category", "required")
	}
	if e.categories != nil {
		ok, err := e.categories.CategoryExists(ctx, category)
		if err != nil {
			return models.Request{}, classify("check category", err)
		}
		if !ok {
			return models.Request{}, ValidationError("asset_category", "not registered")
		}
	}

	r, err := e.requests.InsertRequest(ctx, models.Request{
		UserID:        actor.UserID,
		AssetCategory: category,
		Reason:        strings.TrimSpace(reason),
		Status:        models.RequestPending,
		CreatedAt:     e.now(),
	})
	if err != nil {
		return models.Request{}, classify("create request", err)
	}
	e.emit(ctx, uuid.Nil, models.EntityRequest, r.ID, "REQUEST_CREATED", actor, details{
		"asset_category": r.AssetCategory,
	})
	return r, nil
}

// ApproveRequest assigns assetID to the requester. The asset must be available
// and of the requested category; request and asset change together.
func (e *Engine) ApproveRequest(ctx context.Context, requestID, assetID int64, actor Actor) (models.Request, error) {
	req, err := e.pendingRequest(ctx, requestID)
	if err != nil {
		return models.Request{}, e.fail(OpAssign, err)
	}

	res, _, user, err := e.assign(ctx, assetID, req.UserID, actor, func(prior models.Asset, m *Mutation) error {
		if !strings.EqualFold(prior.Category, req.AssetCategory) {
			return ErrCategoryMismatch
		}
		id := assetID
		m.RequestUpdate = &RequestUpdate{
			RequestID: req.ID,
			From:      models.RequestPending,
			To:        models.RequestApproved,
			AssetID:   &id,
		}
		return nil
	})
	if err != nil {
		return models.Request{}, err
	}

	e.emitAssigned(ctx, res, user, actor, details{"request_id": req.ID})
	req.Status = models.RequestApproved
	req.AssignedAsset = &assetID
	return req, nil
}

// RejectRequest closes a pending request without assigning anything.
func (e *Engine) RejectRequest(ctx context.Context, requestID int64, actor Actor) (models.Request, error) {
	req, err := e.pendingRequest(ctx, requestID)
	if err != nil {
		return models.Request{}, err
	}
	err = e.requests.UpdateRequestStatus(ctx, RequestUpdate{
		RequestID: req.ID,
		From:      models.RequestPending,
		To:        models.RequestRejected,
	})
	if err != nil {
		return models.Request{}, classify("reject request", err)
	}
	e.emit(ctx, uuid.Nil, models.EntityRequest, req.ID, "REQUEST_REJECTED", actor, details{
		"user_id":        req.UserID,
		"asset_category": req.AssetCategory,
	})
	req.Status = models.RequestRejected
	return req, nil
}

func (e *Engine) pendingRequest(ctx context.Context, id int64) (models.Request, error) {
	req, err := e.requests.GetRequest(ctx, id)
	if err != nil {
		return models.Request{}, classify("load request", err)
	}
	if req.Status != models.RequestPending {
		return models.Request{}, ErrRequestProcessed
	}
	return req, nil
}
