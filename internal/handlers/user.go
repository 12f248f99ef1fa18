package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/crucial707/alloc8/internal/lifecycle"
	"github.com/crucial707/alloc8/internal/models"
	"github.com/crucial707/alloc8/internal/repo"
)

// ==========================
// UserHandler
// ==========================
type UserHandler struct {
	Repo        *repo.UserRepo
	Assets      *repo.AssetRepo
	Departments *repo.DepartmentRepo
	Engine      *lifecycle.Engine
	Audit       lifecycle.AuditSink
	Logger      *slog.Logger
}

// checkDepartment rejects department names missing from the registry.
// An empty name clears the department and is always accepted.
func (h *UserHandler) checkDepartment(ctx context.Context, name string) error {
	if name == "" || h.Departments == nil {
		return nil
	}
	ok, err := h.Departments.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return lifecycle.ValidationError("department", "not registered")
	}
	return nil
}

// ==========================
// Create User (role defaults to employee)
// ==========================
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var input struct {
		Username   string `json:"username" validate:"required,min=3,max=64"`
		Name       string `json:"name" validate:"max=255"`
		Email      string `json:"email" validate:"omitempty,email"`
		Password   string `json:"password" validate:"required,min=8,max=72"`
		Role       string `json:"role" validate:"omitempty,oneof=admin employee"`
		Department string `json:"department" validate:"max=100"`
	}
	if !decodeAndValidate(w, r, &input) {
		return
	}
	department := strings.TrimSpace(input.Department)
	if err := h.checkDepartment(r.Context(), department); err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}

	user, err := h.Repo.Create(r.Context(), repo.NewUser{
		Username:   strings.TrimSpace(input.Username),
		Name:       strings.TrimSpace(input.Name),
		Email:      strings.TrimSpace(input.Email),
		Password:   input.Password,
		Role:       input.Role,
		Department: department,
	})
	if err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}

	recordAudit(r.Context(), h.Audit, models.EntityUser, user.ID, "USER_CREATED", actor, map[string]any{
		"username": user.Username,
		"role":     user.Role,
	})
	writeJSON(w, http.StatusCreated, user)
}

// ==========================
// List Users
// ==========================
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50, 200)
	includeDeleted := r.URL.Query().Get("include_deleted") == "true"

	users, err := h.Repo.List(r.Context(), includeDeleted, limit, offset)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	total, err := h.Repo.Count(r.Context())
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":  users,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// ==========================
// Search Users
// ==========================

// SearchUsers filters live users. Query: q (name or username), role, department.
func (h *UserHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	role := q.Get("role")
	if role != "" && role != models.RoleAdmin && role != models.RoleEmployee {
		JSONError(w, "invalid role", http.StatusBadRequest)
		return
	}
	users, err := h.Repo.Search(r.Context(), repo.UserSearch{
		Query:      strings.TrimSpace(q.Get("q")),
		Role:       role,
		Department: strings.TrimSpace(q.Get("department")),
	})
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// ==========================
// Update User
// ==========================

// UpdateUser changes profile fields. Omitted fields keep their value; an admin
// cannot change their own role.
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		JSONError(w, "invalid user id", http.StatusBadRequest)
		return
	}
	var input struct {
		Name       *string `json:"name" validate:"omitempty,max=255"`
		Email      *string `json:"email" validate:"omitempty,email"`
		Role       *string `json:"role" validate:"omitempty,oneof=admin employee"`
		Department *string `json:"department" validate:"omitempty,max=100"`
	}
	if !decodeAndValidate(w, r, &input) {
		return
	}
	if input.Role != nil && id == actor.UserID && *input.Role != actor.Role {
		JSONError(w, "cannot change your own role", http.StatusConflict)
		return
	}
	trim := func(p *string) *string {
		if p == nil {
			return nil
		}
		v := strings.TrimSpace(*p)
		return &v
	}
	update := repo.UserUpdate{
		Name:       trim(input.Name),
		Email:      trim(input.Email),
		Role:       input.Role,
		Department: trim(input.Department),
	}
	if update.Department != nil {
		if err := h.checkDepartment(r.Context(), *update.Department); err != nil {
			writeLifecycleError(w, r, h.Logger, err)
			return
		}
	}

	user, err := h.Repo.Update(r.Context(), id, update)
	if err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}
	recordAudit(r.Context(), h.Audit, models.EntityUser, user.ID, "USER_UPDATED", actor, map[string]any{
		"username":   user.Username,
		"role":       user.Role,
		"department": user.Department,
	})
	writeJSON(w, http.StatusOK, user)
}

// ==========================
// Get User
// ==========================
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		JSONError(w, "invalid user id", http.StatusBadRequest)
		return
	}

	user, err := h.Repo.GetUser(r.Context(), id)
	if err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ==========================
// Delete / Restore User
// ==========================

// DeleteUser soft-deletes a user. Users still holding assets are refused.
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	h.setDeleted(w, r, true)
}

func (h *UserHandler) RestoreUser(w http.ResponseWriter, r *http.Request) {
	h.setDeleted(w, r, false)
}

func (h *UserHandler) setDeleted(w http.ResponseWriter, r *http.Request, deleted bool) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		JSONError(w, "invalid user id", http.StatusBadRequest)
		return
	}
	if deleted && id == actor.UserID {
		JSONError(w, "cannot delete your own account", http.StatusConflict)
		return
	}

	user, err := h.Repo.SetDeleted(r.Context(), id, deleted)
	if err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}

	action := "USER_RESTORED"
	if deleted {
		action = "USER_DELETED"
	}
	recordAudit(r.Context(), h.Audit, models.EntityUser, user.ID, action, actor, map[string]any{"username": user.Username})
	writeJSON(w, http.StatusOK, user)
}

// ==========================
// Timelines
// ==========================

// UserTimeline returns the assignment intervals of the user in {id}.
func (h *UserHandler) UserTimeline(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		JSONError(w, "invalid user id", http.StatusBadRequest)
		return
	}
	h.timeline(w, r, id)
}

func (h *UserHandler) MyTimeline(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	h.timeline(w, r, actor.UserID)
}

func (h *UserHandler) timeline(w http.ResponseWriter, r *http.Request, userID int64) {
	intervals, err := h.Engine.AssignmentTimeline(r.Context(), lifecycle.HistoryFilter{UserID: userID})
	if err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, timelineResponse(intervals))
}

// ==========================
// Current user
// ==========================

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	user, err := h.Repo.GetUser(r.Context(), actor.UserID)
	if err != nil {
		writeLifecycleError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// MyAssets lists the assets currently assigned to the caller.
func (h *UserHandler) MyAssets(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r, 50, 200)
	assets, err := h.Assets.List(r.Context(), repo.AssetFilter{AssignedTo: actor.UserID, Limit: limit, Offset: offset})
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}
