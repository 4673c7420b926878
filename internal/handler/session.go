package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/huddle/internal/auth"
	"github.com/dukerupert/huddle/internal/storage"
)

// ModeReporter reports which backend serves requests.
type ModeReporter interface {
	Mode() storage.Mode
	CloudConfigured() bool
}

// Refresher re-reads state after the active backend changes.
type Refresher interface {
	RefreshAsync()
}

// SessionHandler manages the device's cloud session.
type SessionHandler struct {
	tokens    *auth.TokenSource
	modes     ModeReporter
	refresher Refresher
	logger    *slog.Logger
}

func NewSessionHandler(tokens *auth.TokenSource, modes ModeReporter, refresher Refresher, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{tokens: tokens, modes: modes, refresher: refresher, logger: logger}
}

type sessionResponse struct {
	SignedIn        bool          `json:"signedIn"`
	Session         *auth.Session `json:"session,omitempty"`
	Mode            storage.Mode  `json:"mode"`
	CloudConfigured bool          `json:"cloudConfigured"`
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp := sessionResponse{Mode: h.modes.Mode(), CloudConfigured: h.modes.CloudConfigured()}
	if h.tokens != nil {
		sess, err := h.tokens.Session(r.Context())
		if err != nil {
			h.logger.Warn("held session token is invalid", "error", err)
		}
		resp.Session = sess
		resp.SignedIn = sess != nil
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SessionHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "cloud sync is not configured"})
		return
	}
	var req struct {
		Token string `json:"token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "token is required"})
		return
	}

	sess, err := h.tokens.Verify(req.Token)
	if err != nil {
		writeError(w, h.logger, "failed to verify token", err)
		return
	}
	if sess == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "token expired"})
		return
	}

	h.tokens.SetToken(req.Token)
	h.logger.Info("signed in", "user", sess.UserID)
	h.refresher.RefreshAsync()
	writeJSON(w, http.StatusOK, sessionResponse{SignedIn: true, Session: sess, Mode: h.modes.Mode(), CloudConfigured: h.modes.CloudConfigured()})
}

func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if h.tokens != nil {
		h.tokens.Clear()
		h.refresher.RefreshAsync()
	}
	w.WriteHeader(http.StatusNoContent)
}
