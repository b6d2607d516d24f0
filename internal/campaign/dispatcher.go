// Package campaign dispatches bulk email campaigns through the active
// provider.
package campaign

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agentpost/agentpost/internal/metrics"
	"github.com/agentpost/agentpost/internal/models"
	"github.com/agentpost/agentpost/internal/repository"
)

// Sender sends one email and reports which provider handled it.
type Sender interface {
	SendViaActive(ctx context.Context, to, subject, html string) (string, error)
}

// Dispatcher runs campaigns: it resolves recipients, renders the template per
// contact and records one email log row per attempt.
type Dispatcher struct {
	campaigns *repository.CampaignRepository
	templates *repository.TemplateRepository
	contacts  *repository.ContactRepository
	logs      *repository.EmailLogRepository
	sender    Sender
	baseURL   string
	logger    *slog.Logger
}

func NewDispatcher(
	campaigns *repository.CampaignRepository,
	templates *repository.TemplateRepository,
	contacts *repository.ContactRepository,
	logs *repository.EmailLogRepository,
	sender Sender,
	baseURL string,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		campaigns: campaigns,
		templates: templates,
		contacts:  contacts,
		logs:      logs,
		sender:    sender,
		baseURL:   baseURL,
		logger:    logger,
	}
}

// Dispatch sends the campaign now. The campaign moves to Sending for the
// duration of the run and ends Sent with per-recipient failures recorded in
// the email log; it ends Failed only when no email could be attempted at all.
func (d *Dispatcher) Dispatch(ctx context.Context, campaignID string) (*models.Campaign, error) {
	c, err := d.campaigns.GetByID(campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("campaign %s not found", campaignID)
	}
	if c.Locked() {
		return nil, fmt.Errorf("campaign %s already %s", campaignID, c.Status)
	}

	tmpl, err := d.templates.GetByID(c.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	if tmpl == nil {
		return nil, fmt.Errorf("template %s not found", c.TemplateID)
	}

	recipients, err := d.resolveRecipients(c.RecipientFilter)
	if err != nil {
		return nil, err
	}

	if err := d.campaigns.UpdateStatus(c.ID, models.CampaignStatusSending); err != nil {
		return nil, fmt.Errorf("failed to mark campaign sending: %w", err)
	}
	metrics.IncCampaignsDispatched()
	d.logger.Info("campaign dispatch started",
		"campaign", c.ID, "name", c.Name, "recipients", len(recipients))

	sent := 0
	attempted := false
	for _, contact := range recipients {
		select {
		case <-ctx.Done():
			// Shutdown mid-run: keep what was sent, leave the rest unlogged.
			d.finish(c, sent, attempted)
			return nil, ctx.Err()
		default:
		}

		ok := d.sendOne(ctx, c, tmpl, &contact)
		attempted = true
		if ok {
			sent++
		}
	}

	d.finish(c, sent, attempted)
	d.logger.Info("campaign dispatch finished",
		"campaign", c.ID, "status", c.Status, "sent", sent, "recipients", len(recipients))
	return c, nil
}

// finish settles the final status. A run with zero recipients still counts
// as Sent; Failed is reserved for runs where nothing could be attempted.
func (d *Dispatcher) finish(c *models.Campaign, sent int, attempted bool) {
	status := models.CampaignStatusSent
	if attempted && sent == 0 {
		status = models.CampaignStatusFailed
	}
	if err := d.campaigns.Finish(c.ID, status, sent); err != nil {
		d.logger.Error("failed to finalize campaign", "campaign", c.ID, "error", err)
		return
	}
	c.Status = status
	c.SentCount = sent
}

func (d *Dispatcher) sendOne(ctx context.Context, c *models.Campaign, tmpl *models.Template, contact *models.Contact) bool {
	token := contact.UnsubscribeToken
	if token == "" {
		token = uuid.New().String()
		if err := d.contacts.SetUnsubscribeToken(contact.ID, token); err != nil {
			d.logger.Error("failed to store unsubscribe token",
				"contact", contact.ID, "error", err)
			return false
		}
		contact.UnsubscribeToken = token
	}

	vars := contactVars(contact)
	subject := renderVars(tmpl.Subject, vars)
	html := renderVars(tmpl.Body, vars) + unsubscribeFooter(d.baseURL, token)

	providerName, err := d.sender.SendViaActive(ctx, contact.Email, subject, html)

	log := &models.EmailLog{
		ContactID:  contact.ID,
		CampaignID: c.ID,
		Subject:    subject,
		Success:    err == nil,
	}
	if err != nil {
		log.ErrorMessage = err.Error()
		metrics.IncEmailsFailed(providerName)
		d.logger.Warn("campaign email failed",
			"campaign", c.ID, "contact", contact.Email, "error", err)
	} else {
		metrics.IncEmailsSent(providerName)
	}
	if lerr := d.logs.Append(log); lerr != nil {
		d.logger.Error("failed to append email log", "campaign", c.ID, "error", lerr)
	}
	return err == nil
}

// resolveRecipients returns the opted-in contacts matching the campaign's
// recipient filter.
func (d *Dispatcher) resolveRecipients(filter string) ([]models.Contact, error) {
	contacts, err := d.contacts.ListOptedIn()
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	if filter != models.RecipientFilterBirthday {
		return contacts, nil
	}

	// Birthday match is month and day only; the stored year is ignored.
	now := time.Now()
	var out []models.Contact
	for _, c := range contacts {
		if c.Birthdate == nil {
			continue
		}
		if c.Birthdate.Month() == now.Month() && c.Birthdate.Day() == now.Day() {
			out = append(out, c)
		}
	}
	return out, nil
}
