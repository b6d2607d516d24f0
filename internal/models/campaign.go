package models

import "time"

// Campaign statuses
const (
	CampaignStatusDraft     = "Draft"
	CampaignStatusScheduled = "Scheduled"
	CampaignStatusSending   = "Sending"
	CampaignStatusSent      = "Sent"
	CampaignStatusFailed    = "Failed"
)

// Recipient filters
const (
	RecipientFilterAll      = "all"
	RecipientFilterBirthday = "birthday"
)

// Campaign is a bulk send of one template to a filtered contact set.
type Campaign struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	TemplateID      string     `json:"template_id"`
	TemplateName    string     `json:"template_name,omitempty"` // joined field
	ScheduledFor    *time.Time `json:"scheduled_for,omitempty"`
	Status          string     `json:"status"`
	RecipientFilter string     `json:"recipient_filter"`
	SentCount       int        `json:"sent_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Locked reports whether the campaign may no longer be edited or deleted.
// Campaigns that are sending or already sent are immutable.
func (c *Campaign) Locked() bool {
	return c.Status == CampaignStatusSending || c.Status == CampaignStatusSent
}

// CampaignFilter for listing campaigns
type CampaignFilter struct {
	Status string
	Limit  int
	Offset int
}
