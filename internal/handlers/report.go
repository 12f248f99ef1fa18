package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/crucial707/alloc8/internal/repo"
)

// ReportHandler serves report data as JSON. Every endpoint is read-only.
type ReportHandler struct {
	Repo   *repo.ReportRepo
	Users  *repo.UserRepo
	Logger *slog.Logger
	Now    func() time.Time
}

func (h *ReportHandler) reply(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		log := h.Logger
		if log == nil {
			log = slog.Default()
		}
		log.ErrorContext(r.Context(), "report failed", "path", r.URL.Path, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *ReportHandler) AssetsByCategory(w http.ResponseWriter, r *http.Request) {
	v, err := h.Repo.AssetsByCategory(r.Context())
	h.reply(w, r, v, err)
}

func (h *ReportHandler) AssetsByStatus(w http.ResponseWriter, r *http.Request) {
	v, err := h.Repo.AssetsByStatus(r.Context())
	h.reply(w, r, v, err)
}

func (h *ReportHandler) AssetsByLocation(w http.ResponseWriter, r *http.Request) {
	v, err := h.Repo.AssetsByLocation(r.Context())
	h.reply(w, r, v, err)
}

func (h *ReportHandler) MaintenanceLogs(w http.ResponseWriter, r *http.Request) {
	v, err := h.Repo.MaintenanceLogs(r.Context())
	h.reply(w, r, v, err)
}

func (h *ReportHandler) MaintenanceExpenses(w http.ResponseWriter, r *http.Request) {
	v, err := h.Repo.MaintenanceExpenses(r.Context())
	h.reply(w, r, v, err)
}

// ExpiringWarranties takes days (default 30) as the look-ahead window.
func (h *ReportHandler) ExpiringWarranties(w http.ResponseWriter, r *http.Request) {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	days := parseDays(r, "days", 30)
	v, err := h.Repo.ExpiringWarranties(r.Context(), now(), time.Duration(days)*24*time.Hour)
	h.reply(w, r, v, err)
}

func (h *ReportHandler) AssignmentHistory(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 100, 500)
	v, err := h.Repo.AssignmentHistory(r.Context(), false, limit, offset)
	h.reply(w, r, v, err)
}

// Transfers is AssignmentHistory restricted to assign and unassign events.
func (h *ReportHandler) Transfers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 100, 500)
	v, err := h.Repo.AssignmentHistory(r.Context(), true, limit, offset)
	h.reply(w, r, v, err)
}

func (h *ReportHandler) EmployeeAssets(w http.ResponseWriter, r *http.Request) {
	v, err := h.Repo.EmployeeAssets(r.Context())
	h.reply(w, r, v, err)
}

func (h *ReportHandler) PurchaseCosts(w http.ResponseWriter, r *http.Request) {
	v, err := h.Repo.PurchaseCosts(r.Context())
	h.reply(w, r, v, err)
}

// UserSummary returns the activity counts of the user in {id}, deleted users included.
func (h *ReportHandler) UserSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		JSONError(w, "invalid user id", http.StatusBadRequest)
		return
	}
	user, err := h.Users.GetUser(r.Context(), id)
	if err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}
	summary, err := h.Repo.UserSummary(r.Context(), id)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":    user,
		"summary": summary,
	})
}
