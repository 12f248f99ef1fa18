package handlers

import (
	"log/slog"
	"net/http"

	"github.com/crucial707/alloc8/internal/lifecycle"
	"github.com/crucial707/alloc8/internal/models"
	"github.com/crucial707/alloc8/internal/repo"
)

type DepartmentHandler struct {
	Repo   *repo.DepartmentRepo
	Audit  lifecycle.AuditSink
	Logger *slog.Logger
}

func (h *DepartmentHandler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	depts, err := h.Repo.List(r.Context())
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, depts)
}

func (h *DepartmentHandler) CreateDepartment(w http.ResponseWriter, r *http.Request) {
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

	dept, err := h.Repo.Create(r.Context(), input.Name)
	if err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}
	recordAudit(r.Context(), h.Audit, models.EntityDepartment, dept.ID, "DEPARTMENT_CREATED", actor, map[string]any{"name": dept.Name})
	writeJSON(w, http.StatusCreated, dept)
}

// DeleteDepartment soft-deletes a department no user belongs to.
func (h *DepartmentHandler) DeleteDepartment(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		JSONError(w, "invalid department id", http.StatusBadRequest)
		return
	}

	dept, err := h.Repo.Delete(r.Context(), id)
	if err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}
	recordAudit(r.Context(), h.Audit, models.EntityDepartment, dept.ID, "DEPARTMENT_DELETED", actor, map[string]any{"name": dept.Name})
	w.WriteHeader(http.StatusNoContent)
}
