// Package worker runs background jobs: due scheduled campaigns and periodic
// contact auto-sync.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/agentpost/agentpost/internal/campaign"
	"github.com/agentpost/agentpost/internal/metrics"
	"github.com/agentpost/agentpost/internal/models"
	"github.com/agentpost/agentpost/internal/provider"
	"github.com/agentpost/agentpost/internal/reconcile"
	"github.com/agentpost/agentpost/internal/repository"
)

// Config holds worker configuration
type Config struct {
	PollInterval     time.Duration
	AutoSyncInterval time.Duration
}

// DefaultConfig returns default worker configuration
func DefaultConfig() Config {
	return Config{
		PollInterval:     30 * time.Second,
		AutoSyncInterval: time.Hour,
	}
}

// Worker polls for due scheduled campaigns and runs contact auto-sync.
type Worker struct {
	campaigns  *repository.CampaignRepository
	settings   *repository.SettingsRepository
	registry   *provider.Registry
	dispatcher *campaign.Dispatcher
	reconciler *reconcile.Reconciler
	logger     *slog.Logger

	pollInterval     time.Duration
	autoSyncInterval time.Duration
	lastAutoSync     time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new worker
func New(
	campaigns *repository.CampaignRepository,
	settings *repository.SettingsRepository,
	registry *provider.Registry,
	dispatcher *campaign.Dispatcher,
	reconciler *reconcile.Reconciler,
	logger *slog.Logger,
	cfg Config,
) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.AutoSyncInterval == 0 {
		cfg.AutoSyncInterval = DefaultConfig().AutoSyncInterval
	}

	return &Worker{
		campaigns:        campaigns,
		settings:         settings,
		registry:         registry,
		dispatcher:       dispatcher,
		reconciler:       reconciler,
		logger:           logger.With("component", "worker"),
		pollInterval:     cfg.PollInterval,
		autoSyncInterval: cfg.AutoSyncInterval,
		ctx:              ctx,
		cancel:           cancel,
	}
}

// Start starts the worker
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
	w.logger.Info("worker started",
		"poll_interval", w.pollInterval, "auto_sync_interval", w.autoSyncInterval)
}

// Stop stops the worker gracefully
func (w *Worker) Stop() {
	w.logger.Info("stopping worker...")
	w.cancel()
	w.wg.Wait()
	w.logger.Info("worker stopped")
}

func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.tick(time.Now())
		}
	}
}

func (w *Worker) tick(now time.Time) {
	w.startDueCampaigns(now)
	if now.Sub(w.lastAutoSync) >= w.autoSyncInterval {
		w.lastAutoSync = now
		w.autoSync()
		if err := w.settings.PurgeExpiredSessions(); err != nil {
			w.logger.Error("failed to purge expired sessions", "error", err)
		}
	}
}

// startDueCampaigns dispatches Scheduled campaigns whose scheduled_for has
// passed.
func (w *Worker) startDueCampaigns(now time.Time) {
	due, err := w.campaigns.ListScheduledDue(now)
	if err != nil {
		w.logger.Error("failed to list due campaigns", "error", err)
		return
	}
	for _, c := range due {
		w.logger.Info("starting scheduled campaign",
			"campaign", c.ID, "name", c.Name, "scheduled_for", c.ScheduledFor)
		if _, err := w.dispatcher.Dispatch(w.ctx, c.ID); err != nil {
			w.logger.Error("scheduled campaign failed", "campaign", c.ID, "error", err)
		}
	}
}

// autoSync imports contacts from the configured provider when the
// auto_sync_contacts setting is on.
func (w *Worker) autoSync() {
	enabled, err := w.settings.AutoSyncEnabled()
	if err != nil {
		w.logger.Error("failed to read auto-sync setting", "error", err)
		return
	}
	if !enabled {
		return
	}

	name, err := w.settings.GetSetting(models.SettingAutoSyncProvider)
	if err != nil {
		w.logger.Error("failed to read auto-sync provider", "error", err)
		return
	}

	var p provider.Provider
	if name != "" {
		var ok bool
		if p, ok = w.registry.Get(name); !ok {
			w.logger.Warn("auto-sync provider not configured", "provider", name)
			return
		}
	} else {
		if p, err = w.registry.Active(); err != nil {
			w.logger.Warn("auto-sync skipped", "error", err)
			return
		}
	}

	res, err := w.reconciler.Import(w.ctx, p)
	if err != nil {
		w.logger.Error("auto-sync import failed", "provider", p.Name(), "error", err)
		return
	}
	metrics.AddContactsImported(p.Name(), res.Imported)
}
