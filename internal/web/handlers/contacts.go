package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/agentpost/agentpost/internal/email"
	"github.com/agentpost/agentpost/internal/metrics"
	"github.com/agentpost/agentpost/internal/models"
)

type contactRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Birthdate string `json:"birthdate,omitempty"` // YYYY-MM-DD
	Notes     string `json:"notes"`
	Status    string `json:"status"`
	OptedOut  bool   `json:"opted_out"`
}

func (req *contactRequest) apply(c *models.Contact) (string, bool) {
	if !email.Valid(req.Email) {
		return "A valid email is required", false
	}
	if req.Status != "" && !models.ValidContactStatus(req.Status) {
		return "Invalid contact status", false
	}
	c.FirstName = req.FirstName
	c.LastName = req.LastName
	c.Email = req.Email
	c.Phone = req.Phone
	c.Notes = req.Notes
	c.Status = req.Status
	c.OptedOut = req.OptedOut
	if req.Birthdate != "" {
		bd, err := time.Parse("2006-01-02", req.Birthdate)
		if err != nil {
			return "Birthdate must be YYYY-MM-DD", false
		}
		c.Birthdate = &bd
	} else {
		c.Birthdate = nil
	}
	return "", true
}

// ContactList handles GET /api/admin/contacts
func (h *Handlers) ContactList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ContactFilter{
		Search: q.Get("search"),
		Status: q.Get("status"),
	}
	if v := q.Get("opted_out"); v != "" {
		optedOut := v == "true"
		filter.OptedOut = &optedOut
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = v
	}

	contacts, total, err := h.contacts.List(filter)
	if err != nil {
		h.logger.Error("failed to list contacts", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to list contacts", "INTERNAL_ERROR")
		return
	}
	h.apiJSON(w, http.StatusOK, map[string]any{
		"contacts": contacts,
		"total":    total,
	})
}

// ContactCreate handles POST /api/admin/contacts
func (h *Handlers) ContactCreate(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if !h.decode(w, r, &req) {
		return
	}

	c := &models.Contact{}
	if msg, ok := req.apply(c); !ok {
		h.apiError(w, http.StatusBadRequest, msg, "VALIDATION_ERROR")
		return
	}
	if err := h.contacts.Create(c); err != nil {
		h.logger.Error("failed to create contact", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to create contact", "INTERNAL_ERROR")
		return
	}
	h.apiJSON(w, http.StatusCreated, c)
}

// ContactGet handles GET /api/admin/contacts/{id}
func (h *Handlers) ContactGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.contacts.GetByID(r.PathValue("id"))
	if err != nil {
		h.logger.Error("failed to get contact", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to get contact", "INTERNAL_ERROR")
		return
	}
	if c == nil {
		h.apiError(w, http.StatusNotFound, "Contact not found", "NOT_FOUND")
		return
	}
	h.apiJSON(w, http.StatusOK, c)
}

// ContactUpdate handles PUT /api/admin/contacts/{id}
func (h *Handlers) ContactUpdate(w http.ResponseWriter, r *http.Request) {
	c, err := h.contacts.GetByID(r.PathValue("id"))
	if err != nil {
		h.logger.Error("failed to get contact", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to get contact", "INTERNAL_ERROR")
		return
	}
	if c == nil {
		h.apiError(w, http.StatusNotFound, "Contact not found", "NOT_FOUND")
		return
	}

	var req contactRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Status == "" {
		req.Status = c.Status
	}
	if msg, ok := req.apply(c); !ok {
		h.apiError(w, http.StatusBadRequest, msg, "VALIDATION_ERROR")
		return
	}
	if err := h.contacts.Update(c); err != nil {
		h.logger.Error("failed to update contact", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to update contact", "INTERNAL_ERROR")
		return
	}
	h.apiJSON(w, http.StatusOK, c)
}

// ContactDelete handles DELETE /api/admin/contacts/{id}
func (h *Handlers) ContactDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.contacts.Delete(r.PathValue("id")); err != nil {
		h.logger.Error("failed to delete contact", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to delete contact", "INTERNAL_ERROR")
		return
	}
	h.apiJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ContactForm handles POST /api/contact, the public capture form.
func (h *Handlers) ContactForm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.FirstName == "" || req.LastName == "" || req.Phone == "" || !email.Valid(req.Email) {
		h.apiError(w, http.StatusBadRequest, "Missing required fields", "VALIDATION_ERROR")
		return
	}

	c := &models.Contact{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Status:    models.ContactStatusNew,
	}
	if err := h.contacts.Create(c); err != nil {
		h.logger.Error("failed to save contact form submission", "error", err)
		h.apiError(w, http.StatusInternalServerError, "Failed to save contact", "INTERNAL_ERROR")
		return
	}
	metrics.IncContactFormSubmissions()
	h.logger.Info("contact form submission", "email", c.Email)
	h.apiJSON(w, http.StatusCreated, c)
}

const unsubscribePage = `<!DOCTYPE html>
<html>
<head>
<title>Unsubscribed</title>
<style>
body { font-family: Arial, sans-serif; max-width: 600px; margin: 50px auto; padding: 20px; text-align: center; }
h1 { color: #1e3a8a; }
p { color: #6b7280; line-height: 1.6; }
</style>
</head>
<body>
<h1>&#10003; Successfully Unsubscribed</h1>
<p>You have been removed from our mailing list and will no longer receive emails from us.</p>
<p>If this was a mistake, please contact us directly.</p>
</body>
</html>
`

// Unsubscribe handles GET /unsubscribe/{token}
func (h *Handlers) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	c, err := h.contacts.GetByUnsubscribeToken(r.PathValue("token"))
	if err != nil {
		h.logger.Error("failed to look up unsubscribe token", "error", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}
	if c == nil {
		http.Error(w, "Invalid unsubscribe link", http.StatusNotFound)
		return
	}

	if err := h.contacts.SetOptedOut(c.ID, true); err != nil {
		h.logger.Error("failed to opt contact out", "contact", c.ID, "error", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}
	metrics.IncUnsubscribes()
	h.logger.Info("contact unsubscribed", "email", c.Email)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(unsubscribePage))
}
