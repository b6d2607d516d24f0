package auth

import (
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agentpost/agentpost/internal/db"
	"github.com/agentpost/agentpost/internal/models"
	"github.com/agentpost/agentpost/internal/repository"
)

func setupSessions(t *testing.T) (*Sessions, *repository.SettingsRepository) {
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

	settings := repository.NewSettingsRepository(database)
	return NewSessions(settings, time.Hour, false), settings
}

func TestLogin(t *testing.T) {
	sessions, settings := setupSessions(t)

	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}
	if err := settings.SetSetting(models.SettingAdminPasswordHash, hash); err != nil {
		t.Fatalf("SetSetting() error: %v", err)
	}

	sess, err := sessions.Login("hunter2")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if sess.ID == "" {
		t.Error("session has no ID")
	}

	if _, err := sessions.Login("wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(wrong) error = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginWithoutPasswordSet(t *testing.T) {
	sessions, _ := setupSessions(t)
	if _, err := sessions.Login("anything"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() error = %v, want ErrInvalidCredentials when no password is set", err)
	}
}

func TestValidateRoundTrip(t *testing.T) {
	sessions, _ := setupSessions(t)

	sess, err := sessions.Create("admin@example.com")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	w := httptest.NewRecorder()
	sessions.SetCookie(w, sess)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/contacts", nil)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}

	got, err := sessions.Validate(req)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if got == nil || got.ID != sess.ID {
		t.Errorf("Validate() = %v, want session %s", got, sess.ID)
	}

	if err := sessions.Destroy(req); err != nil {
		t.Fatalf("Destroy() error: %v", err)
	}
	got, err = sessions.Validate(req)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if got != nil {
		t.Error("Validate() returned a destroyed session")
	}
}

func TestValidateNoCookie(t *testing.T) {
	sessions, _ := setupSessions(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	got, err := sessions.Validate(req)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if got != nil {
		t.Errorf("Validate() = %v, want nil without a cookie", got)
	}
}
