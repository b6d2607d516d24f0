package repository

import (
	"testing"
	"time"

	"github.com/agentpost/agentpost/internal/models"
)

func TestSettingsRepository_Settings(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSettingsRepository(db)

	v, err := repo.GetSetting("unset")
	if err != nil {
		t.Fatalf("GetSetting() error = %v", err)
	}
	if v != "" {
		t.Errorf("GetSetting(unset) = %q, want empty", v)
	}

	if err := repo.SetSetting(models.SettingAutoSyncContacts, "true"); err != nil {
		t.Fatalf("SetSetting() error = %v", err)
	}

	enabled, err := repo.AutoSyncEnabled()
	if err != nil {
		t.Fatalf("AutoSyncEnabled() error = %v", err)
	}
	if !enabled {
		t.Error("AutoSyncEnabled() = false, want true")
	}

	// Overwrite
	if err := repo.SetSetting(models.SettingAutoSyncContacts, "false"); err != nil {
		t.Fatalf("SetSetting() update error = %v", err)
	}
	enabled, _ = repo.AutoSyncEnabled()
	if enabled {
		t.Error("AutoSyncEnabled() after disable = true, want false")
	}
}

func TestSettingsRepository_Sessions(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSettingsRepository(db)

	s := &models.Session{
		ID:        "sess-1",
		UserEmail: "admin@example.com",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := repo.CreateSession(s); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	got, err := repo.GetSession("sess-1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got == nil || got.UserEmail != "admin@example.com" {
		t.Fatalf("GetSession() = %+v, want stored session", got)
	}

	if err := repo.DeleteSession("sess-1"); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	got, _ = repo.GetSession("sess-1")
	if got != nil {
		t.Errorf("GetSession() after delete = %+v, want nil", got)
	}
}

func TestSettingsRepository_ExpiredSessionNotReturned(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSettingsRepository(db)

	s := &models.Session{
		ID:        "sess-old",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	if err := repo.CreateSession(s); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	got, err := repo.GetSession("sess-old")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetSession() = %+v, want nil for expired session", got)
	}

	if err := repo.PurgeExpiredSessions(); err != nil {
		t.Fatalf("PurgeExpiredSessions() error = %v", err)
	}
}
