package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/crucial707/alloc8/internal/config"
	"golang.org/x/crypto/bcrypt"
)

var userCols = []string{"id", "username", "name", "email", "password_hash", "role", "department", "is_deleted", "created_at"}

var assetCols = []string{
	"id", "serial_number", "name", "category", "cost", "purchase_date", "warranty_expiry",
	"image_refs", "status", "assigned_to", "is_deleted", "maintenance_count", "total_maintenance_cost",
	"issue_type", "issue_description", "issue_reported_by", "issue_reported_at", "created_at", "updated_at",
}

func testConfig() config.Config {
	return config.Config{JWTSecret: "test-secret-for-integration", JWTExpireHours: 1, SerialPrefix: "ORG"}
}

func newTestServer(t *testing.T) (*httptest.Server, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(newRouter(db, testConfig(), logger))
	t.Cleanup(srv.Close)
	return srv, mock
}

func login(t *testing.T, srv *httptest.Server, mock sqlmock.Sqlmock, id int64, username, role string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("integration-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	mock.ExpectQuery(`FROM users WHERE username = \$1 AND NOT is_deleted`).
		WithArgs(username).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(id, username, "", "", string(hash), role, "", false, time.Now()))

	body, _ := json.Marshal(map[string]string{"username": username, "password": "integration-pass"})
	resp, err := http.Post(srv.URL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status: got %d, want 200", resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Token == "" {
		t.Fatalf("login response: %v", err)
	}
	return out.Token
}

func get(t *testing.T, srv *httptest.Server, path, token string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest("GET", srv.URL+path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// TestAPI_LoginThenListAssets logs in as an admin and lists assets through the full router.
func TestAPI_LoginThenListAssets(t *testing.T) {
	srv, mock := newTestServer(t)
	token := login(t, srv, mock, 1, "integration", "admin")

	now := time.Now()
	mock.ExpectQuery(`FROM assets WHERE NOT is_deleted ORDER BY id LIMIT \$1 OFFSET \$2`).
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows(assetCols).AddRow(
			1, "ORG-AST-0001", "ThinkPad", "Laptop", "1200", nil, nil,
			"{}", "available", nil, false, 0, "0",
			nil, nil, nil, nil, now, now))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM assets WHERE NOT is_deleted`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	resp := get(t, srv, "/assets", token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /assets status: got %d, want 200", resp.StatusCode)
	}
	var out struct {
		Items []struct {
			ID           int64  `json:"id"`
			SerialNumber string `json:"serial_number"`
		} `json:"items"`
		Total int `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode assets: %v", err)
	}
	if out.Total != 1 || len(out.Items) != 1 || out.Items[0].SerialNumber != "ORG-AST-0001" {
		t.Errorf("unexpected assets: %+v", out)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

// TestAPI_EmployeeCannotReachAdminRoutes checks the role split at the router.
func TestAPI_EmployeeCannotReachAdminRoutes(t *testing.T) {
	srv, mock := newTestServer(t)
	token := login(t, srv, mock, 2, "employee", "employee")

	for _, path := range []string{
		"/assets", "/users", "/users/search", "/dashboard", "/audit", "/requests",
		"/departments", "/reports/assets/by-status", "/users/2/summary",
	} {
		if resp := get(t, srv, path, token); resp.StatusCode != http.StatusForbidden {
			t.Errorf("GET %s as employee: got %d, want 403", path, resp.StatusCode)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestAPI_RequiresToken(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/me", "/assets", "/assets/1"} {
		if resp := get(t, srv, path, ""); resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s without token: got %d, want 401", path, resp.StatusCode)
		}
	}
}

func TestAPI_HealthReadyMetrics(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/health", "/ready", "/metrics"} {
		if resp := get(t, srv, path, ""); resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status: got %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestAPI_SecurityHeaders(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := get(t, srv, "/health", "")
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("missing nosniff header: %v", resp.Header)
	}
}
