package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/agentpost/agentpost/internal/models"
)

type campaignRequest struct {
	Name            string `json:"name"`
	TemplateID      string `json:"template_id"`
	ScheduledFor    string `json:"scheduled_for,omitempty"` // RFC 3339
	RecipientFilter string `json:"recipient_filter"`
}

func (h *Handlers) campaignFromRequest(w http.ResponseWriter, req *campaignRequest, c *models.Campaign) bool {
	if req.Name == "" {
		h.apiError(w, http.StatusBadRequest, "Campaign name is required", "VALIDATION_ERROR")
		return false
	}
	if req.RecipientFilter != "" &&
		req.RecipientFilter != models.RecipientFilterAll &&
		req.RecipientFilter != models.RecipientFilterBirthday {
		h.apiError(w, http.StatusBadRequest, "Invalid recipient filter", "VALIDATION_ERROR")
		return false
	}

	tmpl, err := h.templates.GetByID(req.TemplateID)
	if err != nil {
		h.logger.Error("failed to get template", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to get template", "INTERNAL_ERROR")
		return false
	}
	if tmpl == nil {
		h.apiError(w, http.StatusBadRequest, "Template not found", "TEMPLATE_NOT_FOUND")
		return false
	}

	c.Name = req.Name
	c.TemplateID = req.TemplateID
	c.RecipientFilter = req.RecipientFilter
	c.ScheduledFor = nil
	if req.ScheduledFor != "" {
		ts, err := time.Parse(time.RFC3339, req.ScheduledFor)
		if err != nil {
			h.apiError(w, http.StatusBadRequest, "scheduled_for must be RFC 3339", "VALIDATION_ERROR")
			return false
		}
		c.ScheduledFor = &ts
	}
	return true
}

// CampaignList handles GET /api/admin/campaigns
func (h *Handlers) CampaignList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.CampaignFilter{Status: q.Get("status")}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = v
	}

	campaigns, total, err := h.campaigns.List(filter)
	if err != nil {
		h.logger.Error("failed to list campaigns", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to list campaigns", "INTERNAL_ERROR")
		return
	}
	h.apiJSON(w, http.StatusOK, map[string]any{
		"campaigns": campaigns,
		"total":     total,
	})
}

// CampaignCreate handles POST /api/admin/campaigns
func (h *Handlers) CampaignCreate(w http.ResponseWriter, r *http.Request) {
	var req campaignRequest
	if !h.decode(w, r, &req) {
		return
	}

	c := &models.Campaign{}
	if !h.campaignFromRequest(w, &req, c) {
		return
	}
	if err := h.campaigns.Create(c); err != nil {
		h.logger.Error("failed to create campaign", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to create campaign", "INTERNAL_ERROR")
		return
	}
	h.apiJSON(w, http.StatusCreated, c)
}

// CampaignGet handles GET /api/admin/campaigns/{id}
func (h *Handlers) CampaignGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.GetByID(r.PathValue("id"))
	if err != nil {
		h.logger.Error("failed to get campaign", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to get campaign", "INTERNAL_ERROR")
		return
	}
	if c == nil {
		h.apiError(w, http.StatusNotFound, "Campaign not found", "NOT_FOUND")
		return
	}
	h.apiJSON(w, http.StatusOK, c)
}

// CampaignUpdate handles PUT /api/admin/campaigns/{id}. Campaigns that are
// sending or sent are immutable.
func (h *Handlers) CampaignUpdate(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.GetByID(r.PathValue("id"))
	if err != nil {
		h.logger.Error("failed to get campaign", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to get campaign", "INTERNAL_ERROR")
		return
	}
	if c == nil {
		h.apiError(w, http.StatusNotFound, "Campaign not found", "NOT_FOUND")
		return
	}
	if c.Locked() {
		h.apiError(w, http.StatusConflict, "Campaign can no longer be edited", "CAMPAIGN_LOCKED")
		return
	}

	var req campaignRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.campaignFromRequest(w, &req, c) {
		return
	}
	if c.ScheduledFor != nil {
		c.Status = models.CampaignStatusScheduled
	} else {
		c.Status = models.CampaignStatusDraft
	}
	if err := h.campaigns.Update(c); err != nil {
		h.logger.Error("failed to update campaign", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to update campaign", "INTERNAL_ERROR")
		return
	}
	h.apiJSON(w, http.StatusOK, c)
}

// CampaignDelete handles DELETE /api/admin/campaigns/{id}
func (h *Handlers) CampaignDelete(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.GetByID(r.PathValue("id"))
	if err != nil {
		h.logger.Error("failed to get campaign", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to get campaign", "INTERNAL_ERROR")
		return
	}
	if c == nil {
		h.apiError(w, http.StatusNotFound, "Campaign not found", "NOT_FOUND")
		return
	}
	if c.Locked() {
		h.apiError(w, http.StatusConflict, "Campaign can no longer be deleted", "CAMPAIGN_LOCKED")
		return
	}

	if err := h.campaigns.Delete(c.ID); err != nil {
		h.logger.Error("failed to delete campaign", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to delete campaign", "INTERNAL_ERROR")
		return
	}
	h.apiJSON(w, http.StatusOK, map[string]any{"success": true})
}

// CampaignSend handles POST /api/admin/campaigns/{id}/send
func (h *Handlers) CampaignSend(w http.ResponseWriter, r *http.Request) {
	c, err := h.dispatcher.Dispatch(r.Context(), r.PathValue("id"))
	if err != nil {
		h.logger.Error("campaign dispatch failed", "error", err)
		h.apiError(w, http.StatusBadRequest, err.Error(), "SEND_FAILED")
		return
	}
	h.apiJSON(w, http.StatusOK, c)
}

// CampaignLogs handles GET /api/admin/campaigns/{id}/logs
func (h *Handlers) CampaignLogs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	logs, err := h.logs.ListByCampaign(id)
	if err != nil {
		h.logger.Error("failed to list email logs", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to list email logs", "INTERNAL_ERROR")
		return
	}
	stats, err := h.logs.Stats(id)
	if err != nil {
		h.logger.Error("failed to load email log stats", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to load email log stats", "INTERNAL_ERROR")
		return
	}
	h.apiJSON(w, http.StatusOK, map[string]any{
		"logs":  logs,
		"stats": stats,
	})
}
