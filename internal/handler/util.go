package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/tenantry/internal/auth"
	"github.com/dukerupert/tenantry/internal/chore"
	"github.com/dukerupert/tenantry/internal/model"
	"github.com/dukerupert/tenantry/internal/store"
)

// Notifier is told about changes other users should hear about.
type Notifier interface {
	SwapRequested(sw *model.SwapRequest)
	SwapResolved(sw *model.SwapRequest)
	RequestFiled(req *model.Request)
	RequestUpdated(req *model.Request)
	CompletionChanged(c *model.ChoreCompletion)
}

func parseIDParam(r *http.Request) (int64, error) {
	return parsePathInt(r, "id")
}

func parsePathInt(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

// queryInt64 reads an optional integer query parameter; absent means 0.
func queryInt64(r *http.Request, name string) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func actorFrom(r *http.Request) chore.Actor {
	ac, _ := auth.FromContext(r.Context())
	return chore.Actor{UserID: ac.UserID, Admin: ac.IsAdmin()}
}

// writeServiceError maps the chore error taxonomy to HTTP statuses.
// Storage failures are logged and reported without their detail.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var se *chore.StorageError
	switch {
	case errors.As(err, &se):
		logger.Error("storage failure", "op", se.Op, "error", se.Err)
		writeError(w, http.StatusInternalServerError, "internal error")
	case errors.Is(err, chore.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chore.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, chore.ErrInvalidTransition):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, chore.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, chore.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error("unexpected error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeStoreError handles errors from direct store calls in admin handlers.
func writeStoreError(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	if errors.Is(err, store.ErrDuplicate) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	logger.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, msg)
}

// validDate reports whether s is a YYYY-MM-DD date.
func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
