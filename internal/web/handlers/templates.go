package handlers

import (
	"net/http"

	"github.com/agentpost/agentpost/internal/models"
)

type templateRequest struct {
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (req *templateRequest) validate() (string, bool) {
	if req.Name == "" {
		return "Template name is required", false
	}
	if req.Subject == "" {
		return "Template subject is required", false
	}
	if req.Body == "" {
		return "Template body is required", false
	}
	return "", true
}

// TemplateList handles GET /api/admin/templates
func (h *Handlers) TemplateList(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templates.List()
	if err != nil {
		h.logger.Error("failed to list templates", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to list templates", "INTERNAL_ERROR")
		return
	}
	h.apiJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

// TemplateCreate handles POST /api/admin/templates
func (h *Handlers) TemplateCreate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if msg, ok := req.validate(); !ok {
		h.apiError(w, http.StatusBadRequest, msg, "VALIDATION_ERROR")
		return
	}

	t := &models.Template{Name: req.Name, Subject: req.Subject, Body: req.Body}
	if err := h.templates.Create(t); err != nil {
		h.logger.Error("failed to create template", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to create template", "INTERNAL_ERROR")
		return
	}
	h.apiJSON(w, http.StatusCreated, t)
}

// TemplateGet handles GET /api/admin/templates/{id}
func (h *Handlers) TemplateGet(w http.ResponseWriter, r *http.Request) {
	t, err := h.templates.GetByID(r.PathValue("id"))
	if err != nil {
		h.logger.Error("failed to get template", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to get template", "INTERNAL_ERROR")
		return
	}
	if t == nil {
		h.apiError(w, http.StatusNotFound, "Template not found", "NOT_FOUND")
		return
	}
	h.apiJSON(w, http.StatusOK, t)
}

// TemplateUpdate handles PUT /api/admin/templates/{id}
func (h *Handlers) TemplateUpdate(w http.ResponseWriter, r *http.Request) {
	t, err := h.templates.GetByID(r.PathValue("id"))
	if err != nil {
		h.logger.Error("failed to get template", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to get template", "INTERNAL_ERROR")
		return
	}
	if t == nil {
		h.apiError(w, http.StatusNotFound, "Template not found", "NOT_FOUND")
		return
	}

	var req templateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if msg, ok := req.validate(); !ok {
		h.apiError(w, http.StatusBadRequest, msg, "VALIDATION_ERROR")
		return
	}

	t.Name = req.Name
	t.Subject = req.Subject
	t.Body = req.Body
	if err := h.templates.Update(t); err != nil {
		h.logger.Error("failed to update template", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to update template", "INTERNAL_ERROR")
		return
	}
	h.apiJSON(w, http.StatusOK, t)
}

// TemplateDelete handles DELETE /api/admin/templates/{id}
func (h *Handlers) TemplateDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.templates.Delete(r.PathValue("id")); err != nil {
		h.logger.Error("failed to delete template", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to delete template", "INTERNAL_ERROR")
		return
	}
	h.apiJSON(w, http.StatusOK, map[string]any{"success": true})
}
