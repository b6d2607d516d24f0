package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/agentpost/agentpost/internal/models"
)

type EmailLogRepository struct {
	db *sql.DB
}

func NewEmailLogRepository(db *sql.DB) *EmailLogRepository {
	return &EmailLogRepository{db: db}
}

// Append records one send attempt. The log is append-only.
func (r *EmailLogRepository) Append(l *models.EmailLog) error {
	l.CreatedAt = time.Now()
	res, err := r.db.Exec(`
		INSERT INTO email_logs (contact_id, campaign_id, subject, success, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		l.ContactID, l.CampaignID, l.Subject, l.Success, nullString(l.ErrorMessage), l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append email log: %w", err)
	}
	l.ID, _ = res.LastInsertId()
	return nil
}

// ListByCampaign returns all attempts for a campaign, oldest first
func (r *EmailLogRepository) ListByCampaign(campaignID string) ([]models.EmailLog, error) {
	rows, err := r.db.Query(`
		SELECT l.id, l.contact_id, l.campaign_id, COALESCE(c.email, '') as contact_email, l.subject, l.success, COALESCE(l.error_message, '') as error_message, l.created_at
		FROM email_logs l
		LEFT JOIN contacts c ON l.contact_id = c.id
		WHERE l.campaign_id = ?
		ORDER BY l.id`, campaignID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []models.EmailLog{}
	for rows.Next() {
		var l models.EmailLog
		if err := rows.Scan(&l.ID, &l.ContactID, &l.CampaignID, &l.ContactEmail, &l.Subject, &l.Success, &l.ErrorMessage, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, nil
}

// Stats aggregates attempts for a campaign
func (r *EmailLogRepository) Stats(campaignID string) (*models.EmailLogStats, error) {
	s := &models.EmailLogStats{}
	err := r.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN success THEN 0 ELSE 1 END), 0)
		FROM email_logs WHERE campaign_id = ?`, campaignID,
	).Scan(&s.Total, &s.Success, &s.Failed)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	return s, nil
}
