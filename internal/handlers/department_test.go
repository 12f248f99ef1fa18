package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/crucial707/alloc8/internal/lifecycle/lifecycletest"
	"github.com/crucial707/alloc8/internal/repo"
)

func TestDepartmentHandler_CreateDepartment(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO departments`).
		WithArgs("Finance").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(4, time.Now()))

	audit := lifecycletest.New()
	h := &DepartmentHandler{Repo: repo.NewDepartmentRepo(db), Audit: audit}
	req := requestWithChiURLParams("POST", "/departments", jsonBody(t, map[string]string{"name": "Finance"}), nil)
	rr := httptest.NewRecorder()
	h.CreateDepartment(rr, asUser(req, adminUser))

	if rr.Code != http.StatusCreated {
		t.Fatalf("CreateDepartment status: got %d, want 201 (%s)", rr.Code, rr.Body)
	}
	entries := audit.AuditEntries()
	if len(entries) != 1 || entries[0].Action != "DEPARTMENT_CREATED" {
		t.Errorf("unexpected audit entries: %+v", entries)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestDepartmentHandler_DeleteDepartment_InUse(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM departments WHERE id = \$1`).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "is_deleted", "created_at"}).AddRow(2, "IT", false, time.Now()))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users`).
		WithArgs("IT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	audit := lifecycletest.New()
	h := &DepartmentHandler{Repo: repo.NewDepartmentRepo(db), Audit: audit}
	req := requestWithChiURLParams("DELETE", "/departments/2", nil, map[string]string{"id": "2"})
	rr := httptest.NewRecorder()
	h.DeleteDepartment(rr, asUser(req, adminUser))

	if rr.Code != http.StatusConflict {
		t.Fatalf("DeleteDepartment status: got %d, want 409 (%s)", rr.Code, rr.Body)
	}
	if n := len(audit.AuditEntries()); n != 0 {
		t.Errorf("expected no audit entry, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}
