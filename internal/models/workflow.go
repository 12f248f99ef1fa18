package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// IssueStatus is the sub-state of an employee issue report.
type IssueStatus string

const (
	IssueOpen          IssueStatus = "open"
	IssueInMaintenance IssueStatus = "in_maintenance"
	IssueResolved      IssueStatus = "resolved"
)

// Issue types accepted from employees.
var IssueTypes = []string{"damage", "performance", "battery", "hardware", "other"}

// AssetIssue is an issue reported by the holder of an asset.
type AssetIssue struct {
	ID          int64           `json:"id"`
	AssetID     int64           `json:"asset_id"`
	ReportedBy  int64           `json:"reported_by"`
	IssueType   string          `json:"issue_type"`
	Description string          `json:"description"`
	Status      IssueStatus     `json:"status"`
	AdminNotes  string          `json:"admin_notes,omitempty"`
	Vendor      string          `json:"vendor,omitempty"`
	Cost        decimal.Decimal `json:"cost"`
	StartDate   *time.Time      `json:"start_date,omitempty"`
	EndDate     *time.Time      `json:"end_date,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// AssetReturn is an employee's request to hand an asset back.
type AssetReturn struct {
	ID          int64     `json:"id"`
	AssetID     int64     `json:"asset_id"`
	RequestedBy int64     `json:"requested_by"`
	Reason      string    `json:"reason"`
	IsCompleted bool      `json:"is_completed"`
	CreatedAt   time.Time `json:"created_at"`
}

// RequestStatus is the state of an asset request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Request is an employee's request for a new asset of some category.
type Request struct {
	ID            int64         `json:"id"`
	UserID        int64         `json:"user_id"`
	AssetCategory string        `json:"asset_category"`
	Reason        string        `json:"reason,omitempty"`
	Status        RequestStatus `json:"status"`
	AssignedAsset *int64        `json:"assigned_asset,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}
