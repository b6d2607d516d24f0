package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentpost/agentpost/internal/models"
)

type CampaignRepository struct {
	db *sql.DB
}

func NewCampaignRepository(db *sql.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Create creates a new campaign. A scheduled time puts it in Scheduled,
// otherwise it starts as a Draft.
func (r *CampaignRepository) Create(c *models.Campaign) error {
	c.ID = uuid.New().String()
	if c.RecipientFilter == "" {
		c.RecipientFilter = models.RecipientFilterAll
	}
	if c.Status == "" {
		if c.ScheduledFor != nil {
			c.Status = models.CampaignStatusScheduled
		} else {
			c.Status = models.CampaignStatusDraft
		}
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt

	_, err := r.db.Exec(`
		INSERT INTO campaigns (id, name, template_id, scheduled_for, status, recipient_filter, sent_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.TemplateID, c.ScheduledFor, c.Status, c.RecipientFilter, c.SentCount, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

const campaignColumns = `c.id, c.name, c.template_id, t.name, c.scheduled_for, c.status, c.recipient_filter, c.sent_count, c.created_at, c.updated_at`

func scanCampaign(row interface{ Scan(...any) error }) (*models.Campaign, error) {
	c := &models.Campaign{}
	var templateName sql.NullString
	err := row.Scan(&c.ID, &c.Name, &c.TemplateID, &templateName, &c.ScheduledFor, &c.Status, &c.RecipientFilter, &c.SentCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if templateName.Valid {
		c.TemplateName = templateName.String
	}
	return c, nil
}

// GetByID returns a campaign by ID
func (r *CampaignRepository) GetByID(id string) (*models.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRow(`
		SELECT `+campaignColumns+`
		FROM campaigns c LEFT JOIN templates t ON c.template_id = t.id
		WHERE c.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns campaigns with optional filtering, newest first
func (r *CampaignRepository) List(filter models.CampaignFilter) ([]models.Campaign, int, error) {
	where := " WHERE 1=1"
	args := []any{}

	if filter.Status != "" {
		where += " AND c.status = ?"
		args = append(args, filter.Status)
	}

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM campaigns c"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + campaignColumns + `
		FROM campaigns c LEFT JOIN templates t ON c.template_id = t.id` + where + " ORDER BY c.created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		// SQLite requires LIMIT before OFFSET
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	campaigns := []models.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, *c)
	}

	return campaigns, total, nil
}

// ListScheduledDue returns Scheduled campaigns whose scheduled time has passed.
func (r *CampaignRepository) ListScheduledDue(now time.Time) ([]models.Campaign, error) {
	rows, err := r.db.Query(`
		SELECT `+campaignColumns+`
		FROM campaigns c LEFT JOIN templates t ON c.template_id = t.id
		WHERE c.status = ? AND c.scheduled_for IS NOT NULL AND c.scheduled_for <= ?
		ORDER BY c.scheduled_for`,
		models.CampaignStatusScheduled, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []models.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, nil
}

// Update updates a campaign's editable fields
func (r *CampaignRepository) Update(c *models.Campaign) error {
	c.UpdatedAt = time.Now()
	_, err := r.db.Exec(`
		UPDATE campaigns SET name = ?, template_id = ?, scheduled_for = ?, status = ?, recipient_filter = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, c.TemplateID, c.ScheduledFor, c.Status, c.RecipientFilter, c.UpdatedAt, c.ID,
	)
	return err
}

// UpdateStatus sets a campaign's status
func (r *CampaignRepository) UpdateStatus(id, status string) error {
	_, err := r.db.Exec("UPDATE campaigns SET status = ?, updated_at = ? WHERE id = ?",
		status, time.Now(), id)
	return err
}

// Finish records the final status and sent counter after a send.
func (r *CampaignRepository) Finish(id, status string, sentCount int) error {
	_, err := r.db.Exec("UPDATE campaigns SET status = ?, sent_count = ?, updated_at = ? WHERE id = ?",
		status, sentCount, time.Now(), id)
	return err
}

// Delete deletes a campaign and its email logs
func (r *CampaignRepository) Delete(id string) error {
	if _, err := r.db.Exec("DELETE FROM email_logs WHERE campaign_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete campaign logs: %w", err)
	}
	_, err := r.db.Exec("DELETE FROM campaigns WHERE id = ?", id)
	return err
}
