package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetStatus is the lifecycle state of an asset.
type AssetStatus string

const (
	StatusAvailable       AssetStatus = "available"
	StatusAssigned        AssetStatus = "assigned"
	StatusMaintenance     AssetStatus = "maintenance"
	StatusIssueReported   AssetStatus = "issue_reported"
	StatusReturnRequested AssetStatus = "return_requested"
	StatusInactive        AssetStatus = "inactive"
)

// AllStatuses lists every asset status in display order.
var AllStatuses = []AssetStatus{
	StatusAvailable,
	StatusAssigned,
	StatusMaintenance,
	StatusIssueReported,
	StatusReturnRequested,
	StatusInactive,
}

type Asset struct {
	ID                   int64               `json:"id"`
	SerialNumber         string              `json:"serial_number"`
	Name                 string              `json:"name"`
	Category             string              `json:"category"`
	Cost                 decimal.Decimal     `json:"cost"`
	PurchaseDate         *time.Time          `json:"purchase_date,omitempty"`
	WarrantyExpiry       *time.Time          `json:"warranty_expiry,omitempty"`
	ImageRefs            []string            `json:"image_refs"`
	Status               AssetStatus         `json:"status"`
	AssignedTo           *int64              `json:"assigned_to"`
	IsDeleted            bool                `json:"is_deleted"`
	MaintenanceCount     int                 `json:"maintenance_count"`
	TotalMaintenanceCost decimal.Decimal     `json:"total_maintenance_cost"`
	Issue                *IssueSnapshot      `json:"issue,omitempty"`
	Maintenance          []MaintenanceRecord `json:"maintenance,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

// ActiveMaintenance returns the open maintenance record, if any.
func (a Asset) ActiveMaintenance() (MaintenanceRecord, bool) {
	for _, m := range a.Maintenance {
		if m.IsActive {
			return m, true
		}
	}
	return MaintenanceRecord{}, false
}

// HeldBy reports whether userID is the asset's current holder.
func (a Asset) HeldBy(userID int64) bool {
	return a.AssignedTo != nil && *a.AssignedTo == userID
}

// MaintenanceRecord is one maintenance episode. At most one per asset is active.
type MaintenanceRecord struct {
	ID        int64           `json:"id"`
	AssetID   int64           `json:"asset_id"`
	Reason    string          `json:"reason"`
	Vendor    string          `json:"vendor,omitempty"`
	Cost      decimal.Decimal `json:"cost"`
	StartDate time.Time       `json:"start_date"`
	EndDate   *time.Time      `json:"end_date,omitempty"`
	Notes     string          `json:"notes,omitempty"`
	IsActive  bool            `json:"is_active"`
}

// IssueSnapshot is the last issue reported against an asset. Informational only.
type IssueSnapshot struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	ReportedBy  int64     `json:"reported_by"`
	ReportedAt  time.Time `json:"reported_at"`
}

// Category is an entry in the asset category registry.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
}
