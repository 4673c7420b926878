package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/schedule"
	"github.com/dukerupert/huddle/internal/state"
)

type MeetingHandler struct {
	cache  *state.Cache
	logger *slog.Logger
}

func NewMeetingHandler(cache *state.Cache, logger *slog.Logger) *MeetingHandler {
	return &MeetingHandler{cache: cache, logger: logger}
}

func (h *MeetingHandler) List(w http.ResponseWriter, r *http.Request) {
	meetings := h.cache.Meetings()
	if meetings == nil {
		meetings = []model.Meeting{}
	}
	writeJSON(w, http.StatusOK, meetings)
}

func (h *MeetingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	for _, m := range h.cache.Meetings() {
		if m.ID == id {
			writeJSON(w, http.StatusOK, m)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "meeting not found"})
}

func (h *MeetingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var m model.Meeting
	if !decodeJSON(w, r, &m) {
		return
	}
	m.ID = 0

	saved, err := h.cache.SaveMeeting(r.Context(), m)
	if err != nil {
		writeError(w, h.logger, "failed to create meeting", err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *MeetingHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var m model.Meeting
	if !decodeJSON(w, r, &m) {
		return
	}
	m.ID = id

	saved, err := h.cache.SaveMeeting(r.Context(), m)
	if err != nil {
		writeError(w, h.logger, "failed to update meeting", err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *MeetingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	if err := h.cache.DeleteMeeting(r.Context(), id); err != nil {
		writeError(w, h.logger, "failed to delete meeting", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type moveRequest struct {
	From model.Weekday `json:"from"`
	To   model.Weekday `json:"to"`
}

type moveResponse struct {
	Meeting model.Meeting  `json:"meeting"`
	Split   *model.Meeting `json:"split,omitempty"`
	Changed bool           `json:"changed"`
}

func (h *MeetingHandler) Move(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var req moveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.cache.MoveMeeting(r.Context(), id, req.From, req.To)
	if err != nil {
		writeError(w, h.logger, "failed to move meeting", err)
		return
	}
	writeJSON(w, http.StatusOK, moveResponse{Meeting: res.Updated, Split: res.Split, Changed: res.Changed})
}

func (h *MeetingHandler) Split(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	parts, err := h.cache.SplitMeeting(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "failed to split meeting", err)
		return
	}
	writeJSON(w, http.StatusOK, parts)
}

func (h *MeetingHandler) Day(w http.ResponseWriter, r *http.Request) {
	day, ok := parseDayParam(w, r)
	if !ok {
		return
	}
	meetings := h.cache.MeetingsForDay(day)
	if meetings == nil {
		meetings = []model.Meeting{}
	}
	writeJSON(w, http.StatusOK, meetings)
}

func (h *MeetingHandler) DayConflicts(w http.ResponseWriter, r *http.Request) {
	day, ok := parseDayParam(w, r)
	if !ok {
		return
	}
	conflicts := h.cache.ConflictsForDay(day)
	if conflicts == nil {
		conflicts = []model.Conflict{}
	}
	writeJSON(w, http.StatusOK, conflicts)
}

func (h *MeetingHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Conflicts())
}

func (h *MeetingHandler) Series(w http.ResponseWriter, r *http.Request) {
	series := h.cache.Series()
	if series == nil {
		series = []model.MeetingSeries{}
	}
	writeJSON(w, http.StatusOK, series)
}

type seriesUpdateRequest struct {
	Key    string                `json:"key"`
	Update schedule.SeriesUpdate `json:"update"`
}

func (h *MeetingHandler) UpdateSeries(w http.ResponseWriter, r *http.Request) {
	var req seriesUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "key is required"})
		return
	}

	n, err := h.cache.UpdateSeries(r.Context(), req.Key, req.Update)
	if err != nil {
		writeError(w, h.logger, "failed to update series", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}
