package handlers

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/agentpost/agentpost/internal/models"
	"github.com/agentpost/agentpost/internal/web/auth"
)

// ChangePassword handles POST /api/admin/password
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.NewPassword) < 8 {
		h.apiError(w, http.StatusBadRequest, "New password must be at least 8 characters", "VALIDATION_ERROR")
		return
	}

	hash, err := h.settings.GetSetting(models.SettingAdminPasswordHash)
	if err != nil {
		h.logger.Error("failed to load admin password", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to change password", "INTERNAL_ERROR")
		return
	}
	if hash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.CurrentPassword)); err != nil {
			h.apiError(w, http.StatusUnauthorized, "Current password is incorrect", "INVALID_CREDENTIALS")
			return
		}
	}

	newHash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		h.logger.Error("failed to hash password", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to change password", "INTERNAL_ERROR")
		return
	}
	if err := h.settings.SetSetting(models.SettingAdminPasswordHash, newHash); err != nil {
		h.logger.Error("failed to store password", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to change password", "INTERNAL_ERROR")
		return
	}
	h.logger.Info("admin password changed")
	h.apiJSON(w, http.StatusOK, map[string]any{"success": true})
}

// AutoSyncGet handles GET /api/admin/settings/auto-sync
func (h *Handlers) AutoSyncGet(w http.ResponseWriter, r *http.Request) {
	enabled, err := h.settings.AutoSyncEnabled()
	if err != nil {
		h.logger.Error("failed to load auto-sync setting", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to load settings", "INTERNAL_ERROR")
		return
	}
	providerName, err := h.settings.GetSetting(models.SettingAutoSyncProvider)
	if err != nil {
		h.logger.Error("failed to load auto-sync provider", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to load settings", "INTERNAL_ERROR")
		return
	}
	h.apiJSON(w, http.StatusOK, map[string]any{
		"enabled":  enabled,
		"provider": providerName,
	})
}

// AutoSyncSet handles POST /api/admin/settings/auto-sync
func (h *Handlers) AutoSyncSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled  bool   `json:"enabled"`
		Provider string `json:"provider"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.Enabled && !models.ValidProvider(req.Provider) {
		h.apiError(w, http.StatusBadRequest, "A valid provider is required to enable auto-sync", "VALIDATION_ERROR")
		return
	}

	value := "false"
	if req.Enabled {
		value = "true"
	}
	if err := h.settings.SetSetting(models.SettingAutoSyncContacts, value); err != nil {
		h.logger.Error("failed to store auto-sync setting", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to store settings", "INTERNAL_ERROR")
		return
	}
	if req.Provider != "" {
		if err := h.settings.SetSetting(models.SettingAutoSyncProvider, req.Provider); err != nil {
			h.logger.Error("failed to store auto-sync provider", "error", err)
			h.apiError(w, http.StatusInternalServerError, "Failed to store settings", "INTERNAL_ERROR")
			return
		}
	}
	h.apiJSON(w, http.StatusOK, map[string]any{"success": true})
}
