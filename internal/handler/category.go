package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/schedule"
	"github.com/dukerupert/huddle/internal/state"
)

type CategoryHandler struct {
	cache  *state.Cache
	logger *slog.Logger
}

func NewCategoryHandler(cache *state.Cache, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{cache: cache, logger: logger}
}

// categoryRequest accepts the color as a hex string for form-friendly clients.
type categoryRequest struct {
	Name     string `json:"name"`
	Color    *int   `json:"color"`
	ColorHex string `json:"colorHex"`
}

func (req categoryRequest) toModel(id string) (model.Category, bool) {
	c := model.Category{ID: id, Name: req.Name}
	switch {
	case req.Color != nil:
		c.Color = *req.Color
	case req.ColorHex != "":
		n, err := schedule.HexToNumber(req.ColorHex)
		if err != nil {
			return c, false
		}
		c.Color = n
	}
	return c, true
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories := h.cache.Categories()
	if categories == nil {
		categories = []model.Category{}
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, "", http.StatusCreated)
}

func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	h.save(w, r, id, http.StatusOK)
}

func (h *CategoryHandler) save(w http.ResponseWriter, r *http.Request, id string, status int) {
	var req categoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, ok := req.toModel(id)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "colorHex must be a hex color like #3B82F6"})
		return
	}

	saved, err := h.cache.SaveCategory(r.Context(), c)
	if err != nil {
		writeError(w, h.logger, "failed to save category", err)
		return
	}
	writeJSON(w, status, saved)
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.DeleteCategory(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, h.logger, "failed to delete category", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
