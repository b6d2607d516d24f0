// Package handlers implements the HTTP handlers for the admin API and the
// public endpoints.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/agentpost/agentpost/internal/campaign"
	"github.com/agentpost/agentpost/internal/config"
	"github.com/agentpost/agentpost/internal/provider"
	"github.com/agentpost/agentpost/internal/reconcile"
	"github.com/agentpost/agentpost/internal/repository"
	"github.com/agentpost/agentpost/internal/web/auth"
)

// APIErrorResponse represents an API error
type APIErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type Handlers struct {
	cfg        *config.Config
	contacts   *repository.ContactRepository
	templates  *repository.TemplateRepository
	campaigns  *repository.CampaignRepository
	logs       *repository.EmailLogRepository
	settings   *repository.SettingsRepository
	registry   *provider.Registry
	reconciler *reconcile.Reconciler
	dispatcher *campaign.Dispatcher
	sessions   *auth.Sessions
	oidc       *auth.OIDCProvider
	logger     *slog.Logger
}

func New(
	cfg *config.Config,
	contacts *repository.ContactRepository,
	templates *repository.TemplateRepository,
	campaigns *repository.CampaignRepository,
	logs *repository.EmailLogRepository,
	settings *repository.SettingsRepository,
	registry *provider.Registry,
	reconciler *reconcile.Reconciler,
	dispatcher *campaign.Dispatcher,
	sessions *auth.Sessions,
	oidc *auth.OIDCProvider,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		cfg:        cfg,
		contacts:   contacts,
		templates:  templates,
		campaigns:  campaigns,
		logs:       logs,
		settings:   settings,
		registry:   registry,
		reconciler: reconciler,
		dispatcher: dispatcher,
		sessions:   sessions,
		oidc:       oidc,
		logger:     logger,
	}
}

// Health check
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// apiJSON writes a JSON response
func (h *Handlers) apiJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// apiError writes a JSON error response
func (h *Handlers) apiError(w http.ResponseWriter, status int, message, code string) {
	h.apiJSON(w, status, APIErrorResponse{Error: message, Code: code})
}

// decode parses a JSON request body
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.apiError(w, http.StatusBadRequest, "Invalid request body", "INVALID_JSON")
		return false
	}
	return true
}
