package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/crucial707/alloc8/internal/lifecycle"
	"github.com/crucial707/alloc8/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// ErrMessageInternal is the generic message for 500 responses. Do not expose internal details to clients.
const ErrMessageInternal = "internal server error"

// ErrMessageUnavailable is returned when the store fails underneath a lifecycle operation.
const ErrMessageUnavailable = "storage unavailable, try again"

// JSONError sends a JSON error response with a single "error" field.
func JSONError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// JSONValidationError sends a JSON error response with "error" and optional "fields" for field-level details.
// status is typically http.StatusBadRequest (400).
func JSONValidationError(w http.ResponseWriter, message string, fields map[string]string, status int) {
	out := map[string]any{"error": message}
	if len(fields) > 0 {
		out["fields"] = fields
	}
	writeJSON(w, status, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps a lifecycle error kind onto an HTTP status.
func statusFor(kind lifecycle.Kind) int {
	switch kind {
	case lifecycle.KindNotFound:
		return http.StatusNotFound
	case lifecycle.KindInvalidState:
		return http.StatusConflict
	case lifecycle.KindNotAuthorized:
		return http.StatusForbidden
	case lifecycle.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusServiceUnavailable
	}
}

// writeLifecycleError reports err with the status of its kind. Storage
// failures are logged and answered with a generic message.
func writeLifecycleError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	kind := lifecycle.KindOf(err)
	status := statusFor(kind)
	if kind != lifecycle.KindStorage {
		JSONError(w, err.Error(), status)
		return
	}
	if log == nil {
		log = slog.Default()
	}
	log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	JSONError(w, ErrMessageUnavailable, status)
}

// ==========================
// Request helpers
// ==========================

var validate = newValidator()

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// It writes the 400 response itself and returns false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			JSONValidationError(w, "validation failed", fields, http.StatusBadRequest)
			return false
		}
		JSONError(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// pathID parses the named chi URL parameter as a positive id.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// queryID parses an optional positive id query parameter. Missing or bad values give 0.
func queryID(r *http.Request, name string) int64 {
	id, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

// pagination reads limit/offset query parameters, clamping limit to max.
func pagination(r *http.Request, def, max int) (limit, offset int) {
	limit = def
	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 && val <= max {
			limit = val
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if val, err := strconv.Atoi(o); err == nil && val >= 0 {
			offset = val
		}
	}
	return limit, offset
}

// actorFrom builds the lifecycle actor from the identity JWTMiddleware stored.
func actorFrom(r *http.Request) (lifecycle.Actor, bool) {
	id, ok := middleware.GetUserID(r.Context())
	if !ok {
		return lifecycle.Actor{}, false
	}
	return lifecycle.Actor{UserID: id, Role: middleware.GetRole(r.Context())}, true
}

// requireActor is actorFrom that answers 401 itself.
func requireActor(w http.ResponseWriter, r *http.Request) (lifecycle.Actor, bool) {
	actor, ok := actorFrom(r)
	if !ok {
		JSONError(w, "unauthorized", http.StatusUnauthorized)
	}
	return actor, ok
}
