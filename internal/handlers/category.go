package handlers

import (
	"log/slog"
	"net/http"

	"github.com/crucial707/alloc8/internal/lifecycle"
	"github.com/crucial707/alloc8/internal/models"
	"github.com/crucial707/alloc8/internal/repo"
)

type CategoryHandler struct {
	Repo   *repo.CategoryRepo
	Audit  lifecycle.AuditSink
	Logger *slog.Logger
}

func (h *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Repo.List(r.Context())
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (h *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var input struct {
		Name string `json:"name" validate:"required,min=2,max=100"`
	}
	if !decodeAndValidate(w, r, &input) {
		return
	}

	cat, err := h.Repo.Create(r.Context(), input.Name)
	if err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}
	recordAudit(r.Context(), h.Audit, models.EntityCategory, cat.ID, "CATEGORY_CREATED", actor, map[string]any{"name": cat.Name})
	writeJSON(w, http.StatusCreated, cat)
}

// DeleteCategory soft-deletes a category no live asset uses.
func (h *CategoryHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		JSONError(w, "invalid category id", http.StatusBadRequest)
		return
	}

	cat, err := h.Repo.Delete(r.Context(), id)
	if err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}
	recordAudit(r.Context(), h.Audit, models.EntityCategory, cat.ID, "CATEGORY_DELETED", actor, map[string]any{"name": cat.Name})
	w.WriteHeader(http.StatusNoContent)
}
