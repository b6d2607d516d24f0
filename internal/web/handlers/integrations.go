package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/agentpost/agentpost/internal/metrics"
	"github.com/agentpost/agentpost/internal/models"
	"github.com/agentpost/agentpost/internal/provider"
)

const stateCookie = "agentpost_oauth_state"

// IntegrationStatus handles GET /api/admin/integrations
func (h *Handlers) IntegrationStatus(w http.ResponseWriter, r *http.Request) {
	records, err := h.registry.Store().List()
	if err != nil {
		h.logger.Error("failed to list integrations", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to list integrations", "INTERNAL_ERROR")
		return
	}
	byProvider := make(map[string]models.Integration, len(records))
	for _, rec := range records {
		byProvider[rec.Provider] = rec
	}

	type status struct {
		Provider   string     `json:"provider"`
		Configured bool       `json:"configured"`
		Connected  bool       `json:"connected"`
		Email      string     `json:"email,omitempty"`
		ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	}
	out := make([]status, 0, len(models.ProviderPriority))
	for _, name := range models.ProviderPriority {
		s := status{Provider: name, Configured: h.providerConfigured(name)}
		if rec, ok := byProvider[name]; ok {
			s.Connected = true
			s.Email = rec.ProviderEmail
			s.ExpiresAt = &rec.ExpiresAt
		}
		out = append(out, s)
	}
	h.apiJSON(w, http.StatusOK, map[string]any{"integrations": out})
}

func (h *Handlers) providerConfigured(name string) bool {
	switch name {
	case models.ProviderGoogle:
		return h.cfg.Providers.Google.Configured()
	case models.ProviderMicrosoft:
		return h.cfg.Providers.Microsoft.Configured()
	case models.ProviderYahoo:
		return h.cfg.Providers.Yahoo.Configured()
	}
	return false
}

// lookupProvider resolves the {provider} path or body value to an adapter.
func (h *Handlers) lookupProvider(w http.ResponseWriter, name string) (provider.Provider, bool) {
	if !models.ValidProvider(name) {
		h.apiError(w, http.StatusBadRequest, "Unknown provider", "UNKNOWN_PROVIDER")
		return nil, false
	}
	if !h.providerConfigured(name) {
		h.apiError(w, http.StatusBadRequest, "Provider is not configured", "PROVIDER_NOT_CONFIGURED")
		return nil, false
	}
	p, ok := h.registry.Get(name)
	if !ok {
		h.apiError(w, http.StatusBadRequest, "Provider is not configured", "PROVIDER_NOT_CONFIGURED")
		return nil, false
	}
	return p, true
}

// OAuthLogin handles GET /auth/{provider}/login
func (h *Handlers) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookupProvider(w, r.PathValue("provider"))
	if !ok {
		return
	}

	state, err := randomState()
	if err != nil {
		h.logger.Error("failed to generate state", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to start OAuth flow", "INTERNAL_ERROR")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, p.AuthURL(state), http.StatusFound)
}

// OAuthCallback handles GET /auth/{provider}/callback
func (h *Handlers) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookupProvider(w, r.PathValue("provider"))
	if !ok {
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		h.apiError(w, http.StatusBadRequest, "OAuth state mismatch", "STATE_MISMATCH")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/auth", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		h.apiError(w, http.StatusBadRequest, "Missing authorization code", "MISSING_CODE")
		return
	}

	rec, err := p.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("oauth exchange failed", "provider", p.Name(), "error", err)
		h.apiError(w, http.StatusBadGateway, "Authentication with provider failed", "EXCHANGE_FAILED")
		return
	}

	h.logger.Info("provider connected", "provider", p.Name(), "email", rec.ProviderEmail)
	http.Redirect(w, r, "/admin/integrations?connected="+p.Name(), http.StatusFound)
}

// OAuthDisconnect handles POST /auth/{provider}/logout. It deletes the
// stored credential record; the vendor-side grant is left to expire.
func (h *Handlers) OAuthDisconnect(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("provider")
	if !models.ValidProvider(name) {
		h.apiError(w, http.StatusBadRequest, "Unknown provider", "UNKNOWN_PROVIDER")
		return
	}
	if err := h.registry.Store().Delete(name); err != nil {
		h.logger.Error("failed to disconnect provider", "provider", name, "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to disconnect", "INTERNAL_ERROR")
		return
	}
	h.logger.Info("provider disconnected", "provider", name)
	h.apiJSON(w, http.StatusOK, map[string]any{"success": true})
}

// IntegrationTest handles POST /api/admin/integrations/{provider}/test. It
// sends a test email to the connected account itself.
func (h *Handlers) IntegrationTest(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookupProvider(w, r.PathValue("provider"))
	if !ok {
		return
	}

	rec, err := p.EnsureToken(r.Context())
	if err != nil {
		h.providerError(w, p.Name(), err)
		return
	}

	subject := "AgentPost test email"
	body := "<p>This is a test email from your AgentPost integration. If you are reading this, sending works.</p>"
	if err := p.SendEmail(r.Context(), rec.ProviderEmail, subject, body); err != nil {
		metrics.IncEmailsFailed(p.Name())
		h.providerError(w, p.Name(), err)
		return
	}
	metrics.IncEmailsSent(p.Name())
	h.apiJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"to":      rec.ProviderEmail,
	})
}

// ContactImport handles POST /api/admin/contacts/import
func (h *Handlers) ContactImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string `json:"provider"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	p, ok := h.lookupProvider(w, req.Provider)
	if !ok {
		return
	}

	res, err := h.reconciler.Import(r.Context(), p)
	if err != nil {
		h.providerError(w, p.Name(), err)
		return
	}
	metrics.AddContactsImported(p.Name(), res.Imported)
	h.apiJSON(w, http.StatusOK, res)
}

// ContactSync handles POST /api/admin/contacts/sync
func (h *Handlers) ContactSync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string `json:"provider"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	p, ok := h.lookupProvider(w, req.Provider)
	if !ok {
		return
	}

	res, err := h.reconciler.Sync(r.Context(), p)
	if err != nil {
		h.providerError(w, p.Name(), err)
		return
	}
	metrics.AddContactsSynced(p.Name(), res.Created)
	h.apiJSON(w, http.StatusOK, res)
}

// providerError maps provider failures to HTTP responses.
func (h *Handlers) providerError(w http.ResponseWriter, name string, err error) {
	var authErr *provider.AuthError
	switch {
	case errors.Is(err, provider.ErrNotConnected):
		h.apiError(w, http.StatusBadRequest, "Provider is not connected", "NOT_CONNECTED")
	case errors.As(err, &authErr):
		h.logger.Warn("provider auth failed", "provider", name, "error", err)
		h.apiError(w, http.StatusUnauthorized, "Provider authentication failed, reconnect the account", "AUTH_FAILED")
	default:
		h.logger.Error("provider call failed", "provider", name, "error", err)
		h.apiError(w, http.StatusBadGateway, err.Error(), "PROVIDER_ERROR")
	}
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
