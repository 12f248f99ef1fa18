package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestJWTMiddleware(t *testing.T) {
	secret := []byte("test-secret")
	valid, err := NewToken(secret, 42, "ana", "employee", time.Hour)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	expired, _ := NewToken(secret, 42, "ana", "employee", -time.Minute)
	otherKey, _ := NewToken([]byte("other"), 42, "ana", "employee", time.Hour)
	noneAlg, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 42}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + valid, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong key", "Bearer " + otherKey, http.StatusUnauthorized},
		{"alg none", "Bearer " + noneAlg, http.StatusUnauthorized},
		{"garbage", "Bearer abc.def", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID int64
			h := JWTMiddleware(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotID, _ = GetUserID(r.Context())
			}))
			req := httptest.NewRequest("GET", "/assets", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
			if tt.want == http.StatusOK && gotID != 42 {
				t.Errorf("user id: got %d, want 42", gotID)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole("admin")(okHandler)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/assets", nil)
	h.ServeHTTP(rr, req.WithContext(WithUser(req.Context(), 2, "employee")))
	if rr.Code != http.StatusForbidden {
		t.Errorf("employee: got %d, want 403", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req.WithContext(WithUser(req.Context(), 1, "admin")))
	if rr.Code != http.StatusOK {
		t.Errorf("admin: got %d, want 200", rr.Code)
	}
}

func TestIPRateLimiter(t *testing.T) {
	l := NewIPRateLimiter(1, 2)
	h := l.Middleware(okHandler)

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest("POST", "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
		if rr.Code == http.StatusTooManyRequests && rr.Header().Get("Retry-After") == "" {
			t.Error("429 without Retry-After")
		}
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes: got %v", codes)
	}

	// Another client has its own bucket, regardless of port.
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "10.0.0.2:1"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("second client: got %d, want 200", rr.Code)
	}
}

func TestIPRateLimiter_SweepsIdleClients(t *testing.T) {
	l := NewIPRateLimiter(1, 1)
	now := time.Now()
	l.allow("a", now)
	l.allow("b", now.Add(11*time.Minute))
	if _, ok := l.clients["a"]; ok {
		t.Error("idle client a should have been swept")
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://app.example"})(okHandler)

	req := httptest.NewRequest("OPTIONS", "/assets", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent || rr.Header().Get("Access-Control-Allow-Origin") != "https://app.example" {
		t.Errorf("preflight: code=%d headers=%v", rr.Code, rr.Header())
	}

	req = httptest.NewRequest("GET", "/assets", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("disallowed origin must not be echoed")
	}
	if rr.Header().Get("Vary") != "Origin" {
		t.Error("Vary: Origin should be set")
	}
}

func TestRecoverer(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := Recoverer(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", rr.Code)
	}
	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("panic not logged: %s", buf.String())
	}
}

func TestRequestLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := RequestLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))
	if !strings.Contains(buf.String(), "status=418") {
		t.Errorf("request log missing status: %s", buf.String())
	}
}

func TestMaxBytes(t *testing.T) {
	h := MaxBytes(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/assets", strings.NewReader("{}")))
	if rr.Code != http.StatusOK {
		t.Errorf("small body: got %d, want 200", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/assets", strings.NewReader(`{"name":"much too long"}`)))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("declared large body: got %d, want 413", rr.Code)
	}

	// Without a Content-Length the limit is enforced while reading.
	req := httptest.NewRequest("POST", "/assets", io.NopCloser(strings.NewReader(`{"name":"much too long"}`)))
	req.ContentLength = -1
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("streamed large body: got %d, want 400", rr.Code)
	}
}
