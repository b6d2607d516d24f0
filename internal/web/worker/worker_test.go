package worker

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agentpost/agentpost/internal/campaign"
	"github.com/agentpost/agentpost/internal/db"
	"github.com/agentpost/agentpost/internal/models"
	"github.com/agentpost/agentpost/internal/provider"
	"github.com/agentpost/agentpost/internal/reconcile"
	"github.com/agentpost/agentpost/internal/repository"
)

type recordingSender struct {
	sent []string
}

func (s *recordingSender) SendViaActive(ctx context.Context, to, subject, html string) (string, error) {
	s.sent = append(s.sent, to)
	return models.ProviderGoogle, nil
}

type stubProvider struct {
	name     string
	contacts []provider.Contact
	listed   int
}

func (p *stubProvider) Name() string                { return p.name }
func (p *stubProvider) AuthURL(state string) string { return "" }

func (p *stubProvider) Exchange(ctx context.Context, code string) (*models.Integration, error) {
	return nil, nil
}

func (p *stubProvider) EnsureToken(ctx context.Context) (*models.Integration, error) {
	return nil, nil
}

func (p *stubProvider) SendEmail(ctx context.Context, to, subject, html string) error { return nil }

func (p *stubProvider) ListContacts(ctx context.Context) ([]provider.Contact, error) {
	p.listed++
	return p.contacts, nil
}

func (p *stubProvider) CreateContact(ctx context.Context, c provider.Contact) error { return nil }

type testEnv struct {
	worker    *Worker
	campaigns *repository.CampaignRepository
	templates *repository.TemplateRepository
	contacts  *repository.ContactRepository
	settings  *repository.SettingsRepository
	sender    *recordingSender
	google    *stubProvider
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	database, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	for _, m := range db.Migrations {
		if _, err := database.Exec(m); err != nil {
			t.Fatalf("failed to apply migration: %v", err)
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		campaigns: repository.NewCampaignRepository(database),
		templates: repository.NewTemplateRepository(database),
		contacts:  repository.NewContactRepository(database),
		settings:  repository.NewSettingsRepository(database),
		sender:    &recordingSender{},
		google:    &stubProvider{name: models.ProviderGoogle},
	}

	integrations := repository.NewIntegrationRepository(database)
	if err := integrations.Upsert(&models.Integration{
		Provider:    models.ProviderGoogle,
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("failed to connect stub provider: %v", err)
	}

	registry := provider.NewRegistry(integrations, env.google)
	logs := repository.NewEmailLogRepository(database)
	dispatcher := campaign.NewDispatcher(env.campaigns, env.templates, env.contacts,
		logs, env.sender, "https://example.com", logger)
	reconciler := reconcile.New(env.contacts, logger)

	env.worker = New(env.campaigns, env.settings, registry, dispatcher, reconciler,
		logger, DefaultConfig())
	return env
}

func TestTickDispatchesDueCampaigns(t *testing.T) {
	env := setup(t)

	tmpl := &models.Template{Name: "T", Subject: "Hi", Body: "<p>Hi</p>"}
	if err := env.templates.Create(tmpl); err != nil {
		t.Fatalf("failed to create template: %v", err)
	}
	if err := env.contacts.Create(&models.Contact{Email: "a@b.com"}); err != nil {
		t.Fatalf("failed to create contact: %v", err)
	}

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	due := &models.Campaign{Name: "due", TemplateID: tmpl.ID, ScheduledFor: &past}
	notDue := &models.Campaign{Name: "later", TemplateID: tmpl.ID, ScheduledFor: &future}
	for _, c := range []*models.Campaign{due, notDue} {
		if err := env.campaigns.Create(c); err != nil {
			t.Fatalf("failed to create campaign: %v", err)
		}
	}

	env.worker.tick(time.Now())

	got, _ := env.campaigns.GetByID(due.ID)
	if got.Status != models.CampaignStatusSent {
		t.Errorf("due campaign status = %q, want Sent", got.Status)
	}
	got, _ = env.campaigns.GetByID(notDue.ID)
	if got.Status != models.CampaignStatusScheduled {
		t.Errorf("future campaign status = %q, want still Scheduled", got.Status)
	}
	if len(env.sender.sent) != 1 {
		t.Errorf("sent %d emails, want 1", len(env.sender.sent))
	}
}

func TestTickAutoSyncDisabledByDefault(t *testing.T) {
	env := setup(t)
	env.worker.tick(time.Now())
	if env.google.listed != 0 {
		t.Errorf("provider contacts listed %d times, want 0 while auto-sync is off", env.google.listed)
	}
}

func TestTickAutoSyncImports(t *testing.T) {
	env := setup(t)
	if err := env.settings.SetSetting(models.SettingAutoSyncContacts, "true"); err != nil {
		t.Fatalf("SetSetting() error: %v", err)
	}
	env.google.contacts = []provider.Contact{{Email: "new@b.com", FirstName: "New"}}

	env.worker.tick(time.Now())

	if env.google.listed != 1 {
		t.Fatalf("provider contacts listed %d times, want 1", env.google.listed)
	}
	c, err := env.contacts.GetByEmail("new@b.com")
	if err != nil {
		t.Fatalf("GetByEmail() error: %v", err)
	}
	if c == nil {
		t.Fatal("auto-sync did not import the contact")
	}

	// A second tick inside the same interval must not sync again.
	env.worker.tick(time.Now())
	if env.google.listed != 1 {
		t.Errorf("provider contacts listed %d times, want interval respected", env.google.listed)
	}
}
