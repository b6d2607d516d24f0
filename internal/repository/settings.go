package repository

import (
	"database/sql"
	"time"

	"github.com/agentpost/agentpost/internal/models"
)

type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetSetting returns a setting value, or "" when unset
func (r *SettingsRepository) GetSetting(key string) (string, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetSetting sets a setting value
func (r *SettingsRepository) SetSetting(key, value string) error {
	_, err := r.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now(),
	)
	return err
}

// AutoSyncEnabled reports whether the periodic contact sync is turned on.
func (r *SettingsRepository) AutoSyncEnabled() (bool, error) {
	v, err := r.GetSetting(models.SettingAutoSyncContacts)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

// CreateSession stores an admin session
func (r *SettingsRepository) CreateSession(s *models.Session) error {
	s.CreatedAt = time.Now()
	_, err := r.db.Exec(`
		INSERT INTO sessions (id, user_email, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		s.ID, s.UserEmail, s.ExpiresAt, s.CreatedAt,
	)
	return err
}

// GetSession returns a session if it exists and has not expired
func (r *SettingsRepository) GetSession(id string) (*models.Session, error) {
	s := &models.Session{}
	err := r.db.QueryRow(`
		SELECT id, user_email, expires_at, created_at FROM sessions
		WHERE id = ? AND expires_at > ?`, id, time.Now(),
	).Scan(&s.ID, &s.UserEmail, &s.ExpiresAt, &s.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// DeleteSession removes a session (logout)
func (r *SettingsRepository) DeleteSession(id string) error {
	_, err := r.db.Exec("DELETE FROM sessions WHERE id = ?", id)
	return err
}

// PurgeExpiredSessions removes sessions past their expiry
func (r *SettingsRepository) PurgeExpiredSessions() error {
	_, err := r.db.Exec("DELETE FROM sessions WHERE expires_at <= ?", time.Now())
	return err
}
