// Package reconcile merges provider address books with the local contact
// database: import pulls provider contacts in, sync pushes local contacts out.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agentpost/agentpost/internal/email"
	"github.com/agentpost/agentpost/internal/models"
	"github.com/agentpost/agentpost/internal/provider"
	"github.com/agentpost/agentpost/internal/repository"
)

// ImportResult counts what happened to each provider contact during an import.
type ImportResult struct {
	Imported int `json:"imported"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Total    int `json:"total"`
}

// SyncResult counts local contacts pushed to a provider.
type SyncResult struct {
	Created int `json:"created"`
	Existed int `json:"existed"`
	Failed  int `json:"failed"`
	Total   int `json:"total"`
}

// Reconciler moves contacts between providers and the local database.
type Reconciler struct {
	contacts *repository.ContactRepository
	logger   *slog.Logger
}

func New(contacts *repository.ContactRepository, logger *slog.Logger) *Reconciler {
	return &Reconciler{contacts: contacts, logger: logger}
}

// Import pulls the provider's contacts and merges them in, matching on
// normalized email. Unknown contacts are inserted with status New; known
// contacts get name and phone updates, and a birthdate only if none is set
// locally. A contact that fails to persist is counted as skipped, not fatal.
func (r *Reconciler) Import(ctx context.Context, p provider.Provider) (*ImportResult, error) {
	remote, err := p.ListContacts(ctx)
	if err != nil {
		return nil, err
	}

	res := &ImportResult{Total: len(remote)}
	for _, rc := range remote {
		switch outcome, err := r.merge(rc); {
		case err != nil:
			r.logger.Warn("contact import failed",
				"provider", p.Name(), "email", rc.Email, "error", err)
			res.Skipped++
		case outcome == mergeInserted:
			res.Imported++
		case outcome == mergeUpdated:
			res.Updated++
		default:
			res.Skipped++
		}
	}
	r.logger.Info("contact import finished", "provider", p.Name(),
		"imported", res.Imported, "updated", res.Updated,
		"skipped", res.Skipped, "total", res.Total)
	return res, nil
}

type mergeOutcome int

const (
	mergeSkipped mergeOutcome = iota
	mergeInserted
	mergeUpdated
)

func (r *Reconciler) merge(rc provider.Contact) (mergeOutcome, error) {
	addr := email.Normalize(rc.Email)
	if !email.Valid(addr) {
		return mergeSkipped, nil
	}

	existing, err := r.contacts.GetByEmail(addr)
	if err != nil {
		return mergeSkipped, err
	}
	if existing == nil {
		c := &models.Contact{
			FirstName: rc.FirstName,
			LastName:  rc.LastName,
			Email:     addr,
			Phone:     rc.Phone,
			Birthdate: rc.Birthdate,
			Status:    models.ContactStatusNew,
		}
		if err := r.contacts.Create(c); err != nil {
			return mergeSkipped, fmt.Errorf("failed to insert contact: %w", err)
		}
		return mergeInserted, nil
	}

	changed := false
	if rc.FirstName != "" && rc.FirstName != existing.FirstName {
		existing.FirstName = rc.FirstName
		changed = true
	}
	if rc.LastName != "" && rc.LastName != existing.LastName {
		existing.LastName = rc.LastName
		changed = true
	}
	if rc.Phone != "" && email.FormatPhone(rc.Phone) != existing.Phone {
		existing.Phone = rc.Phone
		changed = true
	}
	// Never overwrite a locally recorded birthdate.
	if rc.Birthdate != nil && existing.Birthdate == nil {
		existing.Birthdate = rc.Birthdate
		changed = true
	}
	if !changed {
		return mergeSkipped, nil
	}
	if err := r.contacts.Update(existing); err != nil {
		return mergeSkipped, fmt.Errorf("failed to update contact: %w", err)
	}
	return mergeUpdated, nil
}

// Sync pushes local contacts missing from the provider's address book.
// Matching is by normalized email against the provider's full list.
func (r *Reconciler) Sync(ctx context.Context, p provider.Provider) (*SyncResult, error) {
	remote, err := p.ListContacts(ctx)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(remote))
	for _, rc := range remote {
		have[email.Normalize(rc.Email)] = true
	}

	local, err := r.contacts.ListAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}

	res := &SyncResult{Total: len(local)}
	for _, c := range local {
		if have[email.Normalize(c.Email)] {
			res.Existed++
			continue
		}
		err := p.CreateContact(ctx, provider.Contact{
			FirstName: c.FirstName,
			LastName:  c.LastName,
			Email:     c.Email,
			Phone:     c.Phone,
			Birthdate: c.Birthdate,
		})
		if err != nil {
			r.logger.Warn("contact push failed",
				"provider", p.Name(), "email", c.Email, "error", err)
			res.Failed++
			continue
		}
		res.Created++
	}
	r.logger.Info("contact sync finished", "provider", p.Name(),
		"created", res.Created, "existed", res.Existed,
		"failed", res.Failed, "total", res.Total)
	return res, nil
}
