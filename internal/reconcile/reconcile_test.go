package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agentpost/agentpost/internal/db"
	"github.com/agentpost/agentpost/internal/models"
	"github.com/agentpost/agentpost/internal/provider"
	"github.com/agentpost/agentpost/internal/repository"
)

func setupRepo(t *testing.T) *repository.ContactRepository {
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
	return repository.NewContactRepository(database)
}

type stubProvider struct {
	contacts  []provider.Contact
	created   []provider.Contact
	createErr error
}

func (p *stubProvider) Name() string                { return models.ProviderGoogle }
func (p *stubProvider) AuthURL(state string) string { return "" }

func (p *stubProvider) Exchange(ctx context.Context, code string) (*models.Integration, error) {
	return nil, nil
}

func (p *stubProvider) EnsureToken(ctx context.Context) (*models.Integration, error) {
	return nil, nil
}

func (p *stubProvider) SendEmail(ctx context.Context, to, subject, html string) error {
	return nil
}

func (p *stubProvider) ListContacts(ctx context.Context) ([]provider.Contact, error) {
	return p.contacts, nil
}

func (p *stubProvider) CreateContact(ctx context.Context, c provider.Contact) error {
	if p.createErr != nil {
		return p.createErr
	}
	p.created = append(p.created, c)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestImportInsertsNewContacts(t *testing.T) {
	contacts := setupRepo(t)
	bd := time.Date(1985, time.March, 14, 0, 0, 0, 0, time.UTC)
	p := &stubProvider{contacts: []provider.Contact{
		{FirstName: "Jane", LastName: "Doe", Email: "Jane@Example.com", Phone: "5551234567", Birthdate: &bd},
	}}

	res, err := New(contacts, discardLogger()).Import(context.Background(), p)
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if res.Imported != 1 || res.Updated != 0 || res.Skipped != 0 || res.Total != 1 {
		t.Errorf("result = %+v, want 1 imported of 1", res)
	}

	c, err := contacts.GetByEmail("jane@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error: %v", err)
	}
	if c == nil {
		t.Fatal("imported contact not found")
	}
	if c.Status != models.ContactStatusNew {
		t.Errorf("Status = %q, want %q", c.Status, models.ContactStatusNew)
	}
	if c.Phone != "(555) 123-4567" {
		t.Errorf("Phone = %q, want formatted", c.Phone)
	}
	if c.Birthdate == nil || !c.Birthdate.Equal(bd) {
		t.Errorf("Birthdate = %v, want %v", c.Birthdate, bd)
	}
}

func TestImportUpdatesExistingByEmail(t *testing.T) {
	contacts := setupRepo(t)
	existing := &models.Contact{FirstName: "J", Email: "jane@example.com", Status: models.ContactStatusContacted}
	if err := contacts.Create(existing); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	bd := time.Date(1985, time.March, 14, 0, 0, 0, 0, time.UTC)
	p := &stubProvider{contacts: []provider.Contact{
		{FirstName: "Jane", LastName: "Doe", Email: "JANE@example.com", Birthdate: &bd},
	}}

	res, err := New(contacts, discardLogger()).Import(context.Background(), p)
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if res.Updated != 1 || res.Imported != 0 {
		t.Errorf("result = %+v, want 1 updated", res)
	}

	got, _ := contacts.GetByID(existing.ID)
	if got.FirstName != "Jane" || got.LastName != "Doe" {
		t.Errorf("name = %q %q, want Jane Doe", got.FirstName, got.LastName)
	}
	if got.Status != models.ContactStatusContacted {
		t.Errorf("Status = %q, import must not reset status", got.Status)
	}
	if got.Birthdate == nil {
		t.Error("Birthdate not filled from provider")
	}
}

func TestImportKeepsLocalBirthdate(t *testing.T) {
	contacts := setupRepo(t)
	local := time.Date(1980, time.January, 2, 0, 0, 0, 0, time.UTC)
	if err := contacts.Create(&models.Contact{Email: "a@b.com", Birthdate: &local}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	remote := time.Date(1999, time.December, 31, 0, 0, 0, 0, time.UTC)
	p := &stubProvider{contacts: []provider.Contact{{Email: "a@b.com", Birthdate: &remote}}}

	res, err := New(contacts, discardLogger()).Import(context.Background(), p)
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if res.Skipped != 1 {
		t.Errorf("result = %+v, want unchanged contact counted as skipped", res)
	}

	got, _ := contacts.GetByEmail("a@b.com")
	if !got.Birthdate.Equal(local) {
		t.Errorf("Birthdate = %v, local value must win", got.Birthdate)
	}
}

func TestImportIdempotent(t *testing.T) {
	contacts := setupRepo(t)
	bd := time.Date(1985, time.March, 14, 0, 0, 0, 0, time.UTC)
	p := &stubProvider{contacts: []provider.Contact{
		{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Phone: "5551234567", Birthdate: &bd},
		{FirstName: "Bob", Email: "bob@example.com"},
	}}
	r := New(contacts, discardLogger())

	res, err := r.Import(context.Background(), p)
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if res.Imported != 2 {
		t.Fatalf("first result = %+v, want 2 imported", res)
	}

	// Re-importing unchanged remote data must write nothing.
	res, err = r.Import(context.Background(), p)
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if res.Imported != 0 || res.Updated != 0 || res.Skipped != 2 || res.Total != 2 {
		t.Errorf("second result = %+v, want everything skipped", res)
	}
}

func TestImportSkipsInvalidEmail(t *testing.T) {
	contacts := setupRepo(t)
	p := &stubProvider{contacts: []provider.Contact{{Email: "not-an-email"}}}

	res, err := New(contacts, discardLogger()).Import(context.Background(), p)
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if res.Skipped != 1 || res.Imported != 0 {
		t.Errorf("result = %+v, want 1 skipped", res)
	}
}

func TestSyncCreatesMissingRemoteContacts(t *testing.T) {
	contacts := setupRepo(t)
	for _, addr := range []string{"a@b.com", "c@d.com"} {
		if err := contacts.Create(&models.Contact{Email: addr}); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
	}
	// Remote already has a@b.com, under different casing.
	p := &stubProvider{contacts: []provider.Contact{{Email: "A@B.com"}}}

	res, err := New(contacts, discardLogger()).Sync(context.Background(), p)
	if err != nil {
		t.Fatalf("Sync() error: %v", err)
	}
	if res.Created != 1 || res.Existed != 1 || res.Failed != 0 || res.Total != 2 {
		t.Errorf("result = %+v, want 1 created and 1 existed", res)
	}
	if len(p.created) != 1 || p.created[0].Email != "c@d.com" {
		t.Errorf("created = %v, want only c@d.com pushed", p.created)
	}
}

func TestSyncCountsFailures(t *testing.T) {
	contacts := setupRepo(t)
	if err := contacts.Create(&models.Contact{Email: "a@b.com"}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	p := &stubProvider{createErr: errors.New("not supported")}

	res, err := New(contacts, discardLogger()).Sync(context.Background(), p)
	if err != nil {
		t.Fatalf("Sync() error: %v", err)
	}
	if res.Failed != 1 || res.Created != 0 {
		t.Errorf("result = %+v, want 1 failed", res)
	}
}
