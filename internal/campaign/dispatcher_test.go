package campaign

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agentpost/agentpost/internal/db"
	"github.com/agentpost/agentpost/internal/models"
	"github.com/agentpost/agentpost/internal/repository"
)

type sentMail struct {
	to      string
	subject string
	html    string
}

type fakeSender struct {
	sent    []sentMail
	failFor map[string]error
}

func (s *fakeSender) SendViaActive(ctx context.Context, to, subject, html string) (string, error) {
	if err, ok := s.failFor[to]; ok {
		return models.ProviderGoogle, err
	}
	s.sent = append(s.sent, sentMail{to: to, subject: subject, html: html})
	return models.ProviderGoogle, nil
}

type fixture struct {
	campaigns *repository.CampaignRepository
	templates *repository.TemplateRepository
	contacts  *repository.ContactRepository
	logs      *repository.EmailLogRepository
	sender    *fakeSender
	d         *Dispatcher
}

func setup(t *testing.T) *fixture {
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

	f := &fixture{
		campaigns: repository.NewCampaignRepository(database),
		templates: repository.NewTemplateRepository(database),
		contacts:  repository.NewContactRepository(database),
		logs:      repository.NewEmailLogRepository(database),
		sender:    &fakeSender{failFor: map[string]error{}},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.d = NewDispatcher(f.campaigns, f.templates, f.contacts, f.logs,
		f.sender, "https://example.com", logger)
	return f
}

func (f *fixture) seedTemplate(t *testing.T) *models.Template {
	t.Helper()
	tmpl := &models.Template{
		Name:    "Welcome",
		Subject: "Hello {{firstName}}",
		Body:    "<p>Hi {{firstName}} {{lastName}}, we have you as {{email}}.</p>",
	}
	if err := f.templates.Create(tmpl); err != nil {
		t.Fatalf("failed to create template: %v", err)
	}
	return tmpl
}

func (f *fixture) seedCampaign(t *testing.T, tmpl *models.Template, filter string) *models.Campaign {
	t.Helper()
	c := &models.Campaign{Name: "Spring", TemplateID: tmpl.ID, RecipientFilter: filter}
	if err := f.campaigns.Create(c); err != nil {
		t.Fatalf("failed to create campaign: %v", err)
	}
	return c
}

func TestDispatchRendersAndLogs(t *testing.T) {
	f := setup(t)
	tmpl := f.seedTemplate(t)
	c := f.seedCampaign(t, tmpl, models.RecipientFilterAll)

	if err := f.contacts.Create(&models.Contact{
		FirstName: "Jane", LastName: "Doe", Email: "jane@example.com",
	}); err != nil {
		t.Fatalf("failed to create contact: %v", err)
	}

	got, err := f.d.Dispatch(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if got.Status != models.CampaignStatusSent {
		t.Errorf("Status = %q, want Sent", got.Status)
	}
	if got.SentCount != 1 {
		t.Errorf("SentCount = %d, want 1", got.SentCount)
	}

	if len(f.sender.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(f.sender.sent))
	}
	m := f.sender.sent[0]
	if m.subject != "Hello Jane" {
		t.Errorf("subject = %q, want placeholders rendered", m.subject)
	}
	if !strings.Contains(m.html, "Hi Jane Doe, we have you as jane@example.com.") {
		t.Errorf("body not rendered: %q", m.html)
	}
	if !strings.Contains(m.html, "https://example.com/unsubscribe/") {
		t.Errorf("body missing unsubscribe footer: %q", m.html)
	}

	stats, err := f.logs.Stats(c.ID)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.Total != 1 || stats.Success != 1 {
		t.Errorf("stats = %+v, want 1 success", stats)
	}
}

func TestDispatchPartialFailureStillSent(t *testing.T) {
	f := setup(t)
	tmpl := f.seedTemplate(t)
	c := f.seedCampaign(t, tmpl, models.RecipientFilterAll)

	for _, addr := range []string{"ok@example.com", "bad@example.com"} {
		if err := f.contacts.Create(&models.Contact{Email: addr}); err != nil {
			t.Fatalf("failed to create contact: %v", err)
		}
	}
	f.sender.failFor["bad@example.com"] = errors.New("mailbox full")

	got, err := f.d.Dispatch(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if got.Status != models.CampaignStatusSent {
		t.Errorf("Status = %q, partial failure must still end Sent", got.Status)
	}
	if got.SentCount != 1 {
		t.Errorf("SentCount = %d, want 1", got.SentCount)
	}

	stats, _ := f.logs.Stats(c.ID)
	if stats.Total != 2 || stats.Success != 1 || stats.Failed != 1 {
		t.Errorf("stats = %+v, want 1 success and 1 failure", stats)
	}

	logs, err := f.logs.ListByCampaign(c.ID)
	if err != nil {
		t.Fatalf("ListByCampaign() error: %v", err)
	}
	for _, l := range logs {
		if !l.Success && l.ErrorMessage != "mailbox full" {
			t.Errorf("ErrorMessage = %q, want provider error recorded", l.ErrorMessage)
		}
	}
}

func TestDispatchAllFailuresEndsFailed(t *testing.T) {
	f := setup(t)
	tmpl := f.seedTemplate(t)
	c := f.seedCampaign(t, tmpl, models.RecipientFilterAll)

	if err := f.contacts.Create(&models.Contact{Email: "bad@example.com"}); err != nil {
		t.Fatalf("failed to create contact: %v", err)
	}
	f.sender.failFor["bad@example.com"] = errors.New("no provider")

	got, err := f.d.Dispatch(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if got.Status != models.CampaignStatusFailed {
		t.Errorf("Status = %q, want Failed when nothing was delivered", got.Status)
	}
}

func TestDispatchSkipsOptedOut(t *testing.T) {
	f := setup(t)
	tmpl := f.seedTemplate(t)
	c := f.seedCampaign(t, tmpl, models.RecipientFilterAll)

	if err := f.contacts.Create(&models.Contact{Email: "in@example.com"}); err != nil {
		t.Fatalf("failed to create contact: %v", err)
	}
	if err := f.contacts.Create(&models.Contact{Email: "out@example.com", OptedOut: true}); err != nil {
		t.Fatalf("failed to create contact: %v", err)
	}

	if _, err := f.d.Dispatch(context.Background(), c.ID); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if len(f.sender.sent) != 1 || f.sender.sent[0].to != "in@example.com" {
		t.Errorf("sent = %v, opted-out contact must be excluded", f.sender.sent)
	}
}

func TestDispatchBirthdayFilter(t *testing.T) {
	f := setup(t)
	tmpl := f.seedTemplate(t)
	c := f.seedCampaign(t, tmpl, models.RecipientFilterBirthday)

	now := time.Now()
	today := time.Date(1990, now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	other := today.AddDate(0, 1, 0)

	if err := f.contacts.Create(&models.Contact{Email: "today@example.com", Birthdate: &today}); err != nil {
		t.Fatalf("failed to create contact: %v", err)
	}
	if err := f.contacts.Create(&models.Contact{Email: "other@example.com", Birthdate: &other}); err != nil {
		t.Fatalf("failed to create contact: %v", err)
	}
	if err := f.contacts.Create(&models.Contact{Email: "nobday@example.com"}); err != nil {
		t.Fatalf("failed to create contact: %v", err)
	}

	if _, err := f.d.Dispatch(context.Background(), c.ID); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if len(f.sender.sent) != 1 || f.sender.sent[0].to != "today@example.com" {
		t.Errorf("sent = %v, want only the matching birthday", f.sender.sent)
	}
}

func TestDispatchLockedCampaignRejected(t *testing.T) {
	f := setup(t)
	tmpl := f.seedTemplate(t)
	c := f.seedCampaign(t, tmpl, models.RecipientFilterAll)

	if err := f.campaigns.UpdateStatus(c.ID, models.CampaignStatusSent); err != nil {
		t.Fatalf("UpdateStatus() error: %v", err)
	}
	if _, err := f.d.Dispatch(context.Background(), c.ID); err == nil {
		t.Error("Dispatch() of a sent campaign must fail")
	}
}

func TestDispatchReusesUnsubscribeToken(t *testing.T) {
	f := setup(t)
	tmpl := f.seedTemplate(t)

	contact := &models.Contact{Email: "jane@example.com"}
	if err := f.contacts.Create(contact); err != nil {
		t.Fatalf("failed to create contact: %v", err)
	}

	first := f.seedCampaign(t, tmpl, models.RecipientFilterAll)
	if _, err := f.d.Dispatch(context.Background(), first.ID); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	got, _ := f.contacts.GetByID(contact.ID)
	if got.UnsubscribeToken == "" {
		t.Fatal("unsubscribe token not assigned on first send")
	}
	token := got.UnsubscribeToken

	second := f.seedCampaign(t, tmpl, models.RecipientFilterAll)
	if _, err := f.d.Dispatch(context.Background(), second.ID); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	got, _ = f.contacts.GetByID(contact.ID)
	if got.UnsubscribeToken != token {
		t.Errorf("token changed between sends: %q vs %q", token, got.UnsubscribeToken)
	}
}

func TestRenderVarsKeepsUnknownPlaceholders(t *testing.T) {
	out := renderVars("Hi {{firstName}}, {{mystery}}", map[string]any{"firstName": "Jane"})
	if out != "Hi Jane, {{mystery}}" {
		t.Errorf("renderVars() = %q", out)
	}
}
