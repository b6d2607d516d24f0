package repository

import (
	"testing"
	"time"

	"github.com/agentpost/agentpost/internal/models"
)

func TestIntegrationRepository_UpsertReplacesRow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewIntegrationRepository(db)

	first := &models.Integration{
		Provider:      models.ProviderGoogle,
		AccessToken:   "at-1",
		RefreshToken:  "rt-1",
		ExpiresAt:     time.Now().Add(time.Hour),
		ProviderEmail: "agent@gmail.com",
	}
	if err := repo.Upsert(first); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	// A second exchange for the same provider replaces, never duplicates
	second := &models.Integration{
		Provider:      models.ProviderGoogle,
		AccessToken:   "at-2",
		RefreshToken:  "rt-2",
		ExpiresAt:     time.Now().Add(2 * time.Hour),
		ProviderEmail: "agent@gmail.com",
	}
	if err := repo.Upsert(second); err != nil {
		t.Fatalf("Upsert() second error = %v", err)
	}

	all, err := repo.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("List() = %d rows, want 1 per provider", len(all))
	}

	got, err := repo.Get(models.ProviderGoogle)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.AccessToken != "at-2" || got.RefreshToken != "rt-2" {
		t.Errorf("Get() tokens = %q/%q, want replaced values", got.AccessToken, got.RefreshToken)
	}
}

func TestIntegrationRepository_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewIntegrationRepository(db)

	got, err := repo.Get(models.ProviderYahoo)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Errorf("Get() = %+v, want nil for unconnected provider", got)
	}
}

func TestIntegrationRepository_DeleteAndConnected(t *testing.T) {
	db := setupTestDB(t)
	repo := NewIntegrationRepository(db)

	for _, p := range []string{models.ProviderMicrosoft, models.ProviderYahoo} {
		err := repo.Upsert(&models.Integration{
			Provider:    p,
			AccessToken: "at",
			ExpiresAt:   time.Now().Add(time.Hour),
		})
		if err != nil {
			t.Fatalf("Upsert(%s) error = %v", p, err)
		}
	}

	if err := repo.Delete(models.ProviderMicrosoft); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	connected, err := repo.Connected()
	if err != nil {
		t.Fatalf("Connected() error = %v", err)
	}
	if connected[models.ProviderMicrosoft] {
		t.Error("Connected() still reports microsoft after disconnect")
	}
	if !connected[models.ProviderYahoo] {
		t.Error("Connected() missing yahoo")
	}
}
