package models

import "time"

// Setting keys
const (
	SettingAdminPasswordHash = "admin_password_hash"
	SettingAutoSyncContacts  = "auto_sync_contacts"
	SettingAutoSyncProvider  = "auto_sync_provider"
)

// Session is a server-side admin session.
type Session struct {
	ID        string    `json:"id"`
	UserEmail string    `json:"user_email"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
