package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path"

	"github.com/dukerupert/huddle/internal/backup"
	"github.com/dukerupert/huddle/internal/state"
)

// Reloader re-reads the cache from the active backend.
type Reloader interface {
	Refresh(ctx context.Context) error
}

// BackupHandler runs, lists and restores encrypted snapshots.
type BackupHandler struct {
	manager *backup.Manager
	source  backup.Source
	target  backup.Target
	cache   Reloader
	logger  *slog.Logger
}

func NewBackupHandler(manager *backup.Manager, cache *state.Cache, target backup.Target, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: manager, source: cache, target: target, cache: cache, logger: logger}
}

func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Status())
}

func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	key, err := h.manager.RunNow(r.Context(), h.source)
	if err != nil {
		writeError(w, h.logger, "backup failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	objects, err := h.manager.List(r.Context())
	if err != nil {
		writeError(w, h.logger, "failed to list backups", err)
		return
	}
	if objects == nil {
		objects = []backup.Object{}
	}
	writeJSON(w, http.StatusOK, objects)
}

// Download streams the encrypted object as-is. Keys are passed as ?key=
// because they contain a slash.
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	body, err := h.manager.Download(r.Context(), key)
	if err != nil {
		writeError(w, h.logger, "failed to download backup", err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(key)+`"`)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("backup download interrupted", "key", key, "error", err)
	}
}

func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	snap, err := h.manager.Restore(r.Context(), req.Key, h.target)
	if err != nil {
		writeError(w, h.logger, "restore failed", err)
		return
	}
	if err := h.cache.Refresh(r.Context()); err != nil {
		writeError(w, h.logger, "failed to reload after restore", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":        req.Key,
		"meetings":   len(snap.Meetings),
		"categories": len(snap.Categories),
	})
}
