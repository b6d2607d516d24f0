package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/agentpost/agentpost/internal/models"
)

// IntegrationRepository is the token store: one persisted OAuth credential
// record per provider.
type IntegrationRepository struct {
	db *sql.DB
}

func NewIntegrationRepository(db *sql.DB) *IntegrationRepository {
	return &IntegrationRepository{db: db}
}

// Get returns the credential record for a provider, or nil if not connected
func (r *IntegrationRepository) Get(provider string) (*models.Integration, error) {
	i := &models.Integration{}
	var email sql.NullString
	err := r.db.QueryRow(`
		SELECT provider, access_token, refresh_token, expires_at, provider_email, created_at, updated_at
		FROM integrations WHERE provider = ?`, provider,
	).Scan(&i.Provider, &i.AccessToken, &i.RefreshToken, &i.ExpiresAt, &email, &i.CreatedAt, &i.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if email.Valid {
		i.ProviderEmail = email.String
	}
	return i, nil
}

// Upsert creates or replaces the credential record for a provider. Called on
// auth-code exchange and on every token refresh, so refreshed credentials are
// durable before any dependent vendor call proceeds.
func (r *IntegrationRepository) Upsert(i *models.Integration) error {
	now := time.Now()
	i.UpdatedAt = now
	_, err := r.db.Exec(`
		INSERT INTO integrations (provider, access_token, refresh_token, expires_at, provider_email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			provider_email = excluded.provider_email,
			updated_at = excluded.updated_at`,
		i.Provider, i.AccessToken, i.RefreshToken, i.ExpiresAt, nullString(i.ProviderEmail), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert integration: %w", err)
	}
	return nil
}

// Delete removes a provider's credential record (disconnect)
func (r *IntegrationRepository) Delete(provider string) error {
	_, err := r.db.Exec("DELETE FROM integrations WHERE provider = ?", provider)
	return err
}

// List returns all connected providers
func (r *IntegrationRepository) List() ([]models.Integration, error) {
	rows, err := r.db.Query(`
		SELECT provider, access_token, refresh_token, expires_at, provider_email, created_at, updated_at
		FROM integrations ORDER BY provider`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	integrations := []models.Integration{}
	for rows.Next() {
		var i models.Integration
		var email sql.NullString
		if err := rows.Scan(&i.Provider, &i.AccessToken, &i.RefreshToken, &i.ExpiresAt, &email, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		if email.Valid {
			i.ProviderEmail = email.String
		}
		integrations = append(integrations, i)
	}
	return integrations, nil
}

// Connected returns the set of provider names with a persisted record.
func (r *IntegrationRepository) Connected() (map[string]bool, error) {
	rows, err := r.db.Query("SELECT provider FROM integrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	connected := map[string]bool{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		connected[p] = true
	}
	return connected, nil
}
