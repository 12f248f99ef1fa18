package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/crucial707/alloc8/internal/middleware"
	"github.com/crucial707/alloc8/internal/repo"
	"golang.org/x/crypto/bcrypt"
)

// ==========================
// Auth Handler
// ==========================
type AuthHandler struct {
	UserRepo *repo.UserRepo
	Secret   []byte
	TTL      time.Duration
	Logger   *slog.Logger
}

// ==========================
// Login (username and password verified against the bcrypt hash)
// ==========================
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid json", http.StatusBadRequest)
		return
	}
	if input.Username == "" || input.Password == "" {
		JSONError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	user, err := h.UserRepo.GetByUsername(r.Context(), input.Username)
	if err != nil {
		JSONError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		JSONError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	ttl := h.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	signed, err := middleware.NewToken(h.Secret, user.ID, user.Username, user.Role, ttl)
	if err != nil {
		if h.Logger != nil {
			h.Logger.ErrorContext(r.Context(), "signing token", "error", err)
		}
		JSONError(w, "failed to issue token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      signed,
		"expires_in": int(ttl.Seconds()),
		"user":       user,
	})
}
