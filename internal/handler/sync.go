package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/huddle/internal/calsync"
	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/state"
)

// SyncHandler manages external calendar connections.
type SyncHandler struct {
	cache  *state.Cache
	syncer *calsync.Syncer
	logger *slog.Logger
}

func NewSyncHandler(cache *state.Cache, syncer *calsync.Syncer, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{cache: cache, syncer: syncer, logger: logger}
}

// redact strips OAuth secrets before a config leaves the device.
func redact(cfg model.CalendarSyncConfig) model.CalendarSyncConfig {
	cfg.AccessToken = ""
	cfg.RefreshToken = ""
	return cfg
}

func (h *SyncHandler) List(w http.ResponseWriter, r *http.Request) {
	configs, err := h.cache.SyncConfigs(r.Context())
	if err != nil {
		writeError(w, h.logger, "failed to list calendar connections", err)
		return
	}
	out := make([]model.CalendarSyncConfig, 0, len(configs))
	for _, c := range configs {
		out = append(out, redact(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *SyncHandler) Save(w http.ResponseWriter, r *http.Request) {
	var cfg model.CalendarSyncConfig
	if !decodeJSON(w, r, &cfg) {
		return
	}
	if err := h.cache.SaveSyncConfig(r.Context(), cfg); err != nil {
		writeError(w, h.logger, "failed to save calendar connection", err)
		return
	}
	writeJSON(w, http.StatusOK, redact(cfg))
}

func (h *SyncHandler) Delete(w http.ResponseWriter, r *http.Request) {
	provider := model.Provider(r.PathValue("provider"))
	name := r.PathValue("name")
	if err := h.cache.DeleteSyncConfig(r.Context(), provider, name); err != nil {
		writeError(w, h.logger, "failed to delete calendar connection", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RunAll syncs every ICS connection now. Partial failures still return the
// connections that succeeded.
func (h *SyncHandler) RunAll(w http.ResponseWriter, r *http.Request) {
	results, err := h.syncer.SyncAll(r.Context())
	if results == nil {
		results = []calsync.Result{}
	}
	resp := map[string]any{"results": results}
	if err != nil {
		h.logger.Warn("calendar sync incomplete", "error", err)
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Run syncs one connection now.
func (h *SyncHandler) Run(w http.ResponseWriter, r *http.Request) {
	provider := model.Provider(r.PathValue("provider"))
	name := r.PathValue("name")

	configs, err := h.cache.SyncConfigs(r.Context())
	if err != nil {
		writeError(w, h.logger, "failed to list calendar connections", err)
		return
	}
	for _, cfg := range configs {
		if cfg.Provider != provider || cfg.Name != name {
			continue
		}
		res, err := h.syncer.Sync(r.Context(), cfg)
		if err != nil {
			writeError(w, h.logger, "calendar sync failed", err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "calendar connection not found"})
}
