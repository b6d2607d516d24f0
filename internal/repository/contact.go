package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentpost/agentpost/internal/email"
	"github.com/agentpost/agentpost/internal/models"
)

type ContactRepository struct {
	db *sql.DB
}

func NewContactRepository(db *sql.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// Create creates a new contact. Email is normalized, phone formatted.
func (r *ContactRepository) Create(c *models.Contact) error {
	c.ID = uuid.New().String()
	c.Email = email.Normalize(c.Email)
	c.Phone = email.FormatPhone(c.Phone)
	if c.Status == "" {
		c.Status = models.ContactStatusNew
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt

	_, err := r.db.Exec(`
		INSERT INTO contacts (id, first_name, last_name, email, phone, birthdate, notes, status, opted_out, unsubscribe_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.FirstName, c.LastName, c.Email, c.Phone, c.Birthdate, c.Notes, c.Status, c.OptedOut, nullString(c.UnsubscribeToken), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}
	return nil
}

const contactColumns = `id, first_name, last_name, email, phone, birthdate, COALESCE(notes, '') as notes, status, opted_out, COALESCE(unsubscribe_token, '') as unsubscribe_token, created_at, updated_at`

func scanContact(row interface{ Scan(...any) error }) (*models.Contact, error) {
	c := &models.Contact{}
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Birthdate, &c.Notes, &c.Status, &c.OptedOut, &c.UnsubscribeToken, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetByID returns a contact by ID
func (r *ContactRepository) GetByID(id string) (*models.Contact, error) {
	c, err := scanContact(r.db.QueryRow(
		"SELECT "+contactColumns+" FROM contacts WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetByEmail returns a contact by normalized email address
func (r *ContactRepository) GetByEmail(address string) (*models.Contact, error) {
	c, err := scanContact(r.db.QueryRow(
		"SELECT "+contactColumns+" FROM contacts WHERE email = ?", email.Normalize(address)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetByUnsubscribeToken returns a contact by its unsubscribe token
func (r *ContactRepository) GetByUnsubscribeToken(token string) (*models.Contact, error) {
	c, err := scanContact(r.db.QueryRow(
		"SELECT "+contactColumns+" FROM contacts WHERE unsubscribe_token = ?", token))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns contacts with optional filtering
func (r *ContactRepository) List(filter models.ContactFilter) ([]models.Contact, int, error) {
	where := " WHERE 1=1"
	args := []any{}

	if filter.Search != "" {
		where += " AND (first_name LIKE ? OR last_name LIKE ? OR email LIKE ?)"
		s := "%" + filter.Search + "%"
		args = append(args, s, s, s)
	}
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.OptedOut != nil {
		where += " AND opted_out = ?"
		args = append(args, *filter.OptedOut)
	}

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM contacts"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + contactColumns + " FROM contacts" + where + " ORDER BY last_name, first_name"
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

	contacts := []models.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, err
		}
		contacts = append(contacts, *c)
	}

	return contacts, total, nil
}

// ListAll returns every contact, used by the sync-to-provider direction.
func (r *ContactRepository) ListAll() ([]models.Contact, error) {
	contacts, _, err := r.List(models.ContactFilter{})
	return contacts, err
}

// ListOptedIn returns contacts eligible for campaign sends.
func (r *ContactRepository) ListOptedIn() ([]models.Contact, error) {
	optedOut := false
	contacts, _, err := r.List(models.ContactFilter{OptedOut: &optedOut})
	return contacts, err
}

// Update updates a contact
func (r *ContactRepository) Update(c *models.Contact) error {
	c.Email = email.Normalize(c.Email)
	c.Phone = email.FormatPhone(c.Phone)
	c.UpdatedAt = time.Now()
	_, err := r.db.Exec(`
		UPDATE contacts SET first_name = ?, last_name = ?, email = ?, phone = ?, birthdate = ?, notes = ?, status = ?, opted_out = ?, updated_at = ?
		WHERE id = ?`,
		c.FirstName, c.LastName, c.Email, c.Phone, c.Birthdate, c.Notes, c.Status, c.OptedOut, c.UpdatedAt, c.ID,
	)
	return err
}

// SetUnsubscribeToken persists a lazily generated unsubscribe token.
func (r *ContactRepository) SetUnsubscribeToken(id, token string) error {
	_, err := r.db.Exec("UPDATE contacts SET unsubscribe_token = ?, updated_at = ? WHERE id = ?",
		token, time.Now(), id)
	return err
}

// SetOptedOut flips the opted-out flag.
func (r *ContactRepository) SetOptedOut(id string, optedOut bool) error {
	_, err := r.db.Exec("UPDATE contacts SET opted_out = ?, updated_at = ? WHERE id = ?",
		optedOut, time.Now(), id)
	return err
}

// Delete deletes a contact
func (r *ContactRepository) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM contacts WHERE id = ?", id)
	return err
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
