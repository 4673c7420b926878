// Package handler exposes the state cache's intents as a JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/huddle/internal/auth"
	"github.com/dukerupert/huddle/internal/backup"
	"github.com/dukerupert/huddle/internal/calsync"
	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/schedule"
	"github.com/dukerupert/huddle/internal/state"
)

const maxBodyBytes = 1 << 20

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

func parseDayParam(w http.ResponseWriter, r *http.Request) (model.Weekday, bool) {
	day := model.Weekday(r.PathValue("day"))
	if !day.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "day must be Monday through Friday"})
		return "", false
	}
	return day, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// writeError maps core errors onto HTTP statuses. Unexpected errors are
// logged and reported generically.
func writeError(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: ve.FieldErrors})
	case errors.Is(err, model.ErrNotFound), errors.Is(err, calsync.ErrUnsupportedProvider):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, schedule.ErrNotOnDay):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, state.ErrImportedReadOnly):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, model.ErrNotAuthenticated), errors.Is(err, auth.ErrInvalidToken):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, backup.ErrDisabled), errors.Is(err, backup.ErrNoPassphrase), errors.Is(err, model.ErrNotInitialized):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	case errors.Is(err, model.ErrTimeout):
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: err.Error()})
	default:
		logger.Error(msg, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msg})
	}
}
