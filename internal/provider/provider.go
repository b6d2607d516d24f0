// Package provider defines the common contract implemented by the Google,
// Microsoft and Yahoo webmail adapters, and the registry that routes between
// them.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agentpost/agentpost/internal/models"
)

// RefreshBuffer is how long before expiry a token is treated as expired and
// refreshed.
const RefreshBuffer = 5 * time.Minute

// ErrNotConnected is returned when an operation requires a provider that has
// no persisted credential record.
var ErrNotConnected = errors.New("provider not connected")

// Contact is the normalized contact shape exchanged with providers.
type Contact struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Birthdate *time.Time
}

// AuthError indicates a failed token exchange or refresh. The admin UI
// surfaces it as a connect-again prompt.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s auth failed: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ProviderError indicates a failed vendor API call. It carries the vendor's
// raw message; callers decide whether to retry (none currently do).
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// TokenStore persists OAuth credential records keyed by provider name.
type TokenStore interface {
	Get(provider string) (*models.Integration, error)
	Upsert(i *models.Integration) error
	Delete(provider string) error
	List() ([]models.Integration, error)
	Connected() (map[string]bool, error)
}

// Provider is one vendor's webmail integration.
type Provider interface {
	// Name returns the provider identifier ("google", "microsoft", "yahoo").
	Name() string

	// AuthURL returns the vendor authorization URL for the code flow.
	AuthURL(state string) string

	// Exchange trades an authorization code for tokens, persists the
	// credential record and returns it.
	Exchange(ctx context.Context, code string) (*models.Integration, error)

	// EnsureToken returns a credential record valid for at least
	// RefreshBuffer. A refreshed record is persisted before it is returned.
	EnsureToken(ctx context.Context) (*models.Integration, error)

	// SendEmail sends a single HTML email to one recipient.
	SendEmail(ctx context.Context, to, subject, html string) error

	// ListContacts returns the provider's contacts that have an email address.
	ListContacts(ctx context.Context) ([]Contact, error)

	// CreateContact creates a contact in the provider's address book.
	CreateContact(ctx context.Context, c Contact) error
}

// TokenExpiring reports whether the record's token is within RefreshBuffer
// of expiry at the given time.
func TokenExpiring(i *models.Integration, now time.Time) bool {
	return !now.Before(i.ExpiresAt.Add(-RefreshBuffer))
}
