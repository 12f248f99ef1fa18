package repo

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
)

func TestReportRepo_AssetsByCategory(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT category, status, COUNT\(\*\) FROM assets WHERE NOT is_deleted GROUP BY category, status`).
		WillReturnRows(sqlmock.NewRows([]string{"category", "status", "count"}).
			AddRow("Laptop", "assigned", 3).
			AddRow("Laptop", "available", 2).
			AddRow("Monitor", "available", 4))

	got, err := NewReportRepo(db).AssetsByCategory(context.Background())
	if err != nil {
		t.Fatalf("AssetsByCategory: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 categories, got %+v", got)
	}
	if got[0].Category != "Laptop" || got[0].Total != 5 || got[0].ByStatus["assigned"] != 3 {
		t.Errorf("unexpected laptop row: %+v", got[0])
	}
	if got[1].Category != "Monitor" || got[1].Total != 4 {
		t.Errorf("unexpected monitor row: %+v", got[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestReportRepo_AssetsByLocation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`COALESCE\(NULLIF\(u.department, ''\), 'Unassigned'\) AS location`).
		WillReturnRows(sqlmock.NewRows([]string{"location", "count"}).
			AddRow("IT", 2).
			AddRow("Unassigned", 7))

	got, err := NewReportRepo(db).AssetsByLocation(context.Background())
	if err != nil {
		t.Fatalf("AssetsByLocation: %v", err)
	}
	if len(got) != 2 || got[1].Group != "Unassigned" || got[1].Total != 7 {
		t.Errorf("unexpected locations: %+v", got)
	}
}

func TestReportRepo_ExpiringWarranties(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	within := 30 * 24 * time.Hour
	mock.ExpectQuery(`a.warranty_expiry BETWEEN \$1 AND \$2`).
		WithArgs(now, now.Add(within)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "serial_number", "status", "holder", "warranty_expiry"}).
			AddRow(7, "ThinkPad", "Laptop", "AST-0007", "assigned", "Ana", now.Add(36*time.Hour)))

	got, err := NewReportRepo(db).ExpiringWarranties(context.Background(), now, within)
	if err != nil {
		t.Fatalf("ExpiringWarranties: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 row, got %+v", got)
	}
	if got[0].DaysLeft != 2 {
		t.Errorf("expected partial days to round up to 2, got %d", got[0].DaysLeft)
	}
	if got[0].Holder != "Ana" {
		t.Errorf("expected holder Ana, got %q", got[0].Holder)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestReportRepo_MaintenanceExpenses(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`FROM assets a JOIN asset_maintenance m ON m.asset_id = a.id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "serial_number", "category", "status", "is_deleted", "count", "sum"}).
			AddRow(3, "Printer", "AST-0003", "Printer", "available", true, 3, "100.00"))

	got, err := NewReportRepo(db).MaintenanceExpenses(context.Background())
	if err != nil {
		t.Fatalf("MaintenanceExpenses: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 row, got %+v", got)
	}
	if !got[0].Average.Equal(decimal.RequireFromString("33.33")) {
		t.Errorf("expected average 33.33, got %s", got[0].Average)
	}
	if !got[0].IsDeleted {
		t.Error("expected written-off asset to be reported")
	}
}

func TestReportRepo_PurchaseCosts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT id, name, category, purchase_date, cost, status, is_deleted FROM assets ORDER BY id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "purchase_date", "cost", "status", "is_deleted"}).
			AddRow(1, "ThinkPad", "Laptop", time.Now(), "1200.50", "assigned", false).
			AddRow(2, "Old Dell", "Laptop", nil, "300.00", "available", true))

	rep, err := NewReportRepo(db).PurchaseCosts(context.Background())
	if err != nil {
		t.Fatalf("PurchaseCosts: %v", err)
	}
	if len(rep.Items) != 2 {
		t.Fatalf("expected 2 items, got %+v", rep.Items)
	}
	if !rep.Total.Equal(decimal.RequireFromString("1500.50")) {
		t.Errorf("expected total 1500.50, got %s", rep.Total)
	}
	if rep.Items[1].PurchaseDate != nil {
		t.Errorf("expected nil purchase date, got %v", rep.Items[1].PurchaseDate)
	}
}

func TestReportRepo_AssignmentHistory_TransfersOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`WHERE h.action IN \('assigned', 'unassigned'\)\s+ORDER BY h.created_at DESC, h.id DESC\s+LIMIT \$1 OFFSET \$2`).
		WithArgs(100, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "asset_id", "name", "category", "action", "assigned_to", "holder", "performed_by", "notes", "created_at"}).
			AddRow(9, 1, "ThinkPad", "Laptop", "unassigned", nil, "", "Admin", "", time.Now()))

	got, err := NewReportRepo(db).AssignmentHistory(context.Background(), true, 0, 0)
	if err != nil {
		t.Fatalf("AssignmentHistory: %v", err)
	}
	if len(got) != 1 || got[0].AssignedTo != nil || got[0].PerformedBy != "Admin" {
		t.Errorf("unexpected events: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestReportRepo_UserSummary(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`action = 'maintenance_started'`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"assignments", "active", "maintenance"}).AddRow(4, 1, 2))
	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM requests WHERE user_id = \$1 GROUP BY status`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("approved", 2).
			AddRow("rejected", 1))

	s, err := NewReportRepo(db).UserSummary(context.Background(), 5)
	if err != nil {
		t.Fatalf("UserSummary: %v", err)
	}
	if s.TotalAssignments != 4 || s.ActiveAssets != 1 || s.MaintenanceIncidents != 2 {
		t.Errorf("unexpected counts: %+v", s)
	}
	if s.TotalRequests != 3 || s.RequestsByStatus["approved"] != 2 {
		t.Errorf("unexpected request counts: %+v", s)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}
