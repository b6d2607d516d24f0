package models

import "time"

// EmailLog is one per-recipient send attempt within a campaign. Append-only.
type EmailLog struct {
	ID           int64     `json:"id"`
	ContactID    string    `json:"contact_id"`
	CampaignID   string    `json:"campaign_id"`
	ContactEmail string    `json:"contact_email,omitempty"` // joined field
	Subject      string    `json:"subject"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// EmailLogStats aggregates attempts for one campaign.
type EmailLogStats struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}
