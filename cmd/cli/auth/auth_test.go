package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crucial707/alloc8/cmd/cli/config"
	"github.com/crucial707/alloc8/internal/models"
)

func TestLogin_SavesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" || r.Header.Get("Authorization") != "" {
			t.Errorf("unexpected request: %s auth=%q", r.URL.Path, r.Header.Get("Authorization"))
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["username"] != "alice" || body["password"] != "s3cret-pass" {
			t.Errorf("unexpected credentials: %v", body)
		}
		_ = json.NewEncoder(w).Encode(loginResponse{Token: "jwt-123", ExpiresIn: 3600, User: models.User{Username: "alice", Role: "admin"}})
	}))
	defer srv.Close()
	t.Setenv("ALLOC8_API_URL", srv.URL)
	t.Setenv("ALLOC8_TOKEN_FILE", filepath.Join(t.TempDir(), "token"))

	cmd := loginCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader("s3cret-pass\n"))
	cmd.SetArgs([]string{"--username", "alice"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("login: %v", err)
	}

	token, err := config.ReadToken()
	if err != nil || token != "jwt-123" {
		t.Errorf("saved token: %q, %v", token, err)
	}
	if !strings.Contains(out.String(), "Logged in as alice (admin)") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestLogin_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
	}))
	defer srv.Close()
	t.Setenv("ALLOC8_API_URL", srv.URL)
	t.Setenv("ALLOC8_TOKEN_FILE", filepath.Join(t.TempDir(), "token"))

	cmd := loginCmd()
	cmd.SetArgs([]string{"--username", "alice", "--password", "nope"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "invalid credentials") {
		t.Errorf("expected invalid credentials, got %v", err)
	}
	if _, err := config.ReadToken(); err != config.ErrNotLoggedIn {
		t.Errorf("no token should be saved, got %v", err)
	}
}

func TestLogout(t *testing.T) {
	t.Setenv("ALLOC8_TOKEN_FILE", filepath.Join(t.TempDir(), "token"))
	if err := config.SaveToken("jwt"); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}

	for _, want := range []string{"Logged out.", "No user logged in."} {
		cmd := logoutCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("logout: %v", err)
		}
		if !strings.Contains(out.String(), want) {
			t.Errorf("got %q, want %q", out.String(), want)
		}
	}
}
