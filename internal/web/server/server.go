// Package server wires the HTTP server, the provider adapters and the
// background worker together.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentpost/agentpost/internal/campaign"
	"github.com/agentpost/agentpost/internal/config"
	"github.com/agentpost/agentpost/internal/db"
	"github.com/agentpost/agentpost/internal/metrics"
	"github.com/agentpost/agentpost/internal/provider"
	"github.com/agentpost/agentpost/internal/provider/google"
	"github.com/agentpost/agentpost/internal/provider/microsoft"
	"github.com/agentpost/agentpost/internal/provider/yahoo"
	"github.com/agentpost/agentpost/internal/reconcile"
	"github.com/agentpost/agentpost/internal/repository"
	"github.com/agentpost/agentpost/internal/web/auth"
	"github.com/agentpost/agentpost/internal/web/handlers"
	"github.com/agentpost/agentpost/internal/web/middleware"
	"github.com/agentpost/agentpost/internal/web/worker"
)

type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	db      *db.DB
	http    *http.Server
	worker  *worker.Worker
	metrics *metrics.Metrics
}

func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	contacts := repository.NewContactRepository(database.DB)
	templates := repository.NewTemplateRepository(database.DB)
	campaigns := repository.NewCampaignRepository(database.DB)
	logs := repository.NewEmailLogRepository(database.DB)
	integrations := repository.NewIntegrationRepository(database.DB)
	settings := repository.NewSettingsRepository(database.DB)

	registry := provider.NewRegistry(integrations, buildProviders(cfg, integrations, logger)...)
	reconciler := reconcile.New(contacts, logger)
	dispatcher := campaign.NewDispatcher(campaigns, templates, contacts, logs,
		registry, cfg.App.BaseURL, logger)

	secureCookies := strings.HasPrefix(cfg.App.BaseURL, "https://")
	sessions := auth.NewSessions(settings, cfg.Auth.SessionTTL, secureCookies)

	var oidcProvider *auth.OIDCProvider
	if cfg.Auth.OIDC.Enabled {
		oidcProvider, err = auth.NewOIDCProvider(context.Background(), &cfg.Auth.OIDC)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OIDC provider: %w", err)
		}
		logger.Info("OIDC provider initialized", "issuer", cfg.Auth.OIDC.IssuerURL)
	}

	m := metrics.New()
	metrics.SetGlobal(m)

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		db:      database,
		metrics: m,
	}

	h := handlers.New(cfg, contacts, templates, campaigns, logs, settings,
		registry, reconciler, dispatcher, sessions, oidcProvider, logger)

	s.http = &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      s.setupRoutes(h, sessions),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.worker = worker.New(campaigns, settings, registry, dispatcher, reconciler,
		logger, worker.Config{
			PollInterval:     cfg.Worker.PollInterval,
			AutoSyncInterval: cfg.Worker.AutoSyncInterval,
		})

	return s, nil
}

// buildProviders creates an adapter for each provider with client credentials
// configured.
func buildProviders(cfg *config.Config, store provider.TokenStore, logger *slog.Logger) []provider.Provider {
	var out []provider.Provider
	base := cfg.App.BaseURL
	if p := cfg.Providers.Google; p.Configured() {
		out = append(out, google.New(p.ClientID, p.ClientSecret, base, store, logger))
	}
	if p := cfg.Providers.Microsoft; p.Configured() {
		out = append(out, microsoft.New(p.ClientID, p.ClientSecret, p.Tenant, base, store, logger))
	}
	if p := cfg.Providers.Yahoo; p.Configured() {
		out = append(out, yahoo.New(p.ClientID, p.ClientSecret, base, store, logger))
	}
	return out
}

func (s *Server) setupRoutes(h *handlers.Handlers, sessions *auth.Sessions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(s.logger))
	r.Use(middleware.Logger(s.logger))
	r.Use(metrics.HTTPMiddleware)

	// Public endpoints
	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	r.Post("/api/contact", h.ContactForm)
	r.Get("/unsubscribe/{token}", h.Unsubscribe)

	// Authentication
	r.Post("/api/admin/login", h.Login)
	r.Post("/api/admin/logout", h.Logout)
	r.Get("/auth/oidc/login", h.OIDCLogin)
	r.Get("/auth/oidc/callback", h.OIDCCallback)

	// Provider OAuth callbacks arrive as vendor redirects; the state cookie
	// set at login time authenticates them.
	r.Get("/auth/{provider}/callback", h.OAuthCallback)

	// Admin endpoints
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(sessions, s.logger))

		r.Get("/auth/{provider}/login", h.OAuthLogin)
		r.Post("/auth/{provider}/logout", h.OAuthDisconnect)

		r.Route("/api/admin", func(r chi.Router) {
			r.Get("/contacts", h.ContactList)
			r.Post("/contacts", h.ContactCreate)
			r.Get("/contacts/{id}", h.ContactGet)
			r.Put("/contacts/{id}", h.ContactUpdate)
			r.Delete("/contacts/{id}", h.ContactDelete)
			r.Post("/contacts/import", h.ContactImport)
			r.Post("/contacts/sync", h.ContactSync)

			r.Get("/templates", h.TemplateList)
			r.Post("/templates", h.TemplateCreate)
			r.Get("/templates/{id}", h.TemplateGet)
			r.Put("/templates/{id}", h.TemplateUpdate)
			r.Delete("/templates/{id}", h.TemplateDelete)

			r.Get("/campaigns", h.CampaignList)
			r.Post("/campaigns", h.CampaignCreate)
			r.Get("/campaigns/{id}", h.CampaignGet)
			r.Put("/campaigns/{id}", h.CampaignUpdate)
			r.Delete("/campaigns/{id}", h.CampaignDelete)
			r.Post("/campaigns/{id}/send", h.CampaignSend)
			r.Get("/campaigns/{id}/logs", h.CampaignLogs)

			r.Get("/integrations", h.IntegrationStatus)
			r.Post("/integrations/{provider}/test", h.IntegrationTest)

			r.Post("/password", h.ChangePassword)
			r.Get("/settings/auto-sync", h.AutoSyncGet)
			r.Post("/settings/auto-sync", h.AutoSyncSet)
		})
	})

	return r
}

func (s *Server) Run(ctx context.Context) error {
	s.worker.Start()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting web server", "addr", s.cfg.Server.ListenAddr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.worker.Stop()
		return err
	case <-ctx.Done():
		s.worker.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("shutdown error", "error", err)
		}
		s.db.Close()
		return nil
	}
}
