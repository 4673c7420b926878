package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/state"
)

type SettingsHandler struct {
	cache  *state.Cache
	logger *slog.Logger
}

func NewSettingsHandler(cache *state.Cache, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{cache: cache, logger: logger}
}

// State returns the whole cached state, as the UI paints it.
func (h *SettingsHandler) State(w http.ResponseWriter, r *http.Request) {
	s := h.cache.State()
	if s.Meetings == nil {
		s.Meetings = []model.Meeting{}
	}
	if s.Categories == nil {
		s.Categories = []model.Category{}
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Settings())
}

func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	s := h.cache.Settings()
	if !decodeJSON(w, r, &s) {
		return
	}
	if !s.CurrentWeekType.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: map[string]string{"currentWeekType": "unknown week type"}})
		return
	}
	if s.TimeFormat != model.TimeFormat12h && s.TimeFormat != model.TimeFormat24h {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: map[string]string{"timeFormat": "must be 12h or 24h"}})
		return
	}

	saved, err := h.cache.UpdateSettings(r.Context(), s)
	if err != nil {
		writeError(w, h.logger, "failed to save settings", err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *SettingsHandler) SetWeekType(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WeekType model.WeekType `json:"weekType"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.cache.SetWeekType(r.Context(), req.WeekType); err != nil {
		writeError(w, h.logger, "failed to set week type", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]model.WeekType{"weekType": req.WeekType})
}

func (h *SettingsHandler) SetView(w http.ResponseWriter, r *http.Request) {
	var req struct {
		View string `json:"view"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.cache.SetView(r.Context(), req.View); err != nil {
		writeError(w, h.logger, "failed to set view", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"view": req.View})
}
