package handlers

import (
	"net/http"
	"time"

	"github.com/crucial707/alloc8/internal/repo"
)

type DashboardHandler struct {
	Repo *repo.DashboardRepo
	Now  func() time.Time
}

// Stats returns the admin dashboard counters. Query: warranty_days (default 30)
// sets the window for warranty_expiring.
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Repo.Stats(r.Context())
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	days := parseDays(r, "warranty_days", 30)
	expiring, err := h.Repo.WarrantyExpiring(r.Context(), now(), time.Duration(days)*24*time.Hour)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		repo.Stats
		WarrantyExpiring int `json:"warranty_expiring"`
	}{stats, expiring})
}
