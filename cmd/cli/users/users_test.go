package users

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/crucial707/alloc8/cmd/cli/config"
	"github.com/crucial707/alloc8/internal/lifecycle"
	"github.com/crucial707/alloc8/internal/models"
)

// captureOutput helps capture stdout during command execution.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	fn()

	_ = w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	return buf.String()
}

func withAPI(t *testing.T, h http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	t.Setenv("ALLOC8_API_URL", srv.URL)
	t.Setenv("ALLOC8_TOKEN_FILE", filepath.Join(t.TempDir(), "token"))
	if err := config.SaveToken("tok"); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
}

func TestListUsers_TableOutput(t *testing.T) {
	withAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("include_deleted") != "true" {
			t.Errorf("--all not forwarded: %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(userPage{
			Items: []models.User{
				{ID: 1, Username: "alice", Role: models.RoleAdmin},
				{ID: 2, Username: "bob", Role: models.RoleEmployee, IsDeleted: true},
			},
			Total: 2,
		})
	})

	cmd := listUsersCmd()
	cmd.SetArgs([]string{"--all"})
	var err error
	out := captureOutput(t, func() { err = cmd.Execute() })
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "alice") || !strings.Contains(out, "bob") || !strings.Contains(out, "deleted") {
		t.Fatalf("expected usernames in output, got: %s", out)
	}
}

func TestListUsers_JSONOutput(t *testing.T) {
	withAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(userPage{Items: []models.User{{ID: 1, Username: "alice"}}, Total: 1})
	})

	cmd := listUsersCmd()
	cmd.SetArgs([]string{"--json"})
	var err error
	out := captureOutput(t, func() { err = cmd.Execute() })
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, `"username": "alice"`) {
		t.Fatalf("expected JSON output, got: %s", out)
	}
}

func TestTimeline_DefaultsToCaller(t *testing.T) {
	from := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	to := from.Add(36 * time.Hour)
	days := 2

	var paths []string
	withAPI(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_ = json.NewEncoder(w).Encode([]lifecycle.Interval{
			{AssetID: 4, HolderID: 2, From: from, To: &to, DurationDays: &days},
			{AssetID: 9, HolderID: 2, From: to},
		})
	})

	for _, args := range [][]string{{}, {"2"}} {
		cmd := timelineCmd()
		cmd.SetArgs(args)
		var err error
		out := captureOutput(t, func() { err = cmd.Execute() })
		if err != nil {
			t.Fatalf("timeline %v: %v", args, err)
		}
		if !strings.Contains(out, "current") || !strings.Contains(out, "2026-01-01 09:00") {
			t.Errorf("unexpected timeline output: %s", out)
		}
	}
	if len(paths) != 2 || paths[0] != "/me/timeline" || paths[1] != "/users/2/timeline" {
		t.Errorf("unexpected paths: %v", paths)
	}
}

func TestDeleteUser(t *testing.T) {
	withAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "DELETE" || r.URL.Path != "/users/6" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(models.User{ID: 6, IsDeleted: true})
	})

	cmd := setDeletedCmd("delete", "", "DELETE", "", "User %s deleted.")
	cmd.SetArgs([]string{"6"})
	var err error
	out := captureOutput(t, func() { err = cmd.Execute() })
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !strings.Contains(out, "User 6 deleted.") {
		t.Errorf("unexpected output: %s", out)
	}
}
