package handlers

import (
	"errors"
	"net/http"

	"github.com/agentpost/agentpost/internal/web/auth"
)

// Login handles POST /api/admin/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	sess, err := h.sessions.Login(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.apiError(w, http.StatusUnauthorized, "Invalid password", "INVALID_CREDENTIALS")
			return
		}
		h.logger.Error("login failed", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Login failed", "INTERNAL_ERROR")
		return
	}

	h.sessions.SetCookie(w, sess)
	h.apiJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Logout handles POST /api/admin/logout
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(r); err != nil {
		h.logger.Error("failed to destroy session", "error", err)
	}
	h.sessions.ClearCookie(w)
	h.apiJSON(w, http.StatusOK, map[string]any{"success": true})
}

// OIDCLogin handles GET /auth/oidc/login
func (h *Handlers) OIDCLogin(w http.ResponseWriter, r *http.Request) {
	if h.oidc == nil {
		h.apiError(w, http.StatusNotFound, "OIDC is not enabled", "OIDC_DISABLED")
		return
	}
	url, _, err := h.oidc.AuthCodeURL()
	if err != nil {
		h.logger.Error("failed to build OIDC auth URL", "error", err)
		h.apiError(w, http.StatusInternalServerError, "OIDC login failed", "INTERNAL_ERROR")
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// OIDCCallback handles GET /auth/oidc/callback
func (h *Handlers) OIDCCallback(w http.ResponseWriter, r *http.Request) {
	if h.oidc == nil {
		h.apiError(w, http.StatusNotFound, "OIDC is not enabled", "OIDC_DISABLED")
		return
	}

	info, err := h.oidc.Exchange(r.Context(), r.URL.Query().Get("state"), r.URL.Query().Get("code"))
	if err != nil {
		h.logger.Warn("OIDC exchange failed", "error", err)
		h.apiError(w, http.StatusUnauthorized, "OIDC authentication failed", "OIDC_FAILED")
		return
	}

	sess, err := h.sessions.Create(info.Email)
	if err != nil {
		h.logger.Error("failed to create session", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Login failed", "INTERNAL_ERROR")
		return
	}

	h.sessions.SetCookie(w, sess)
	http.Redirect(w, r, "/admin", http.StatusFound)
}
