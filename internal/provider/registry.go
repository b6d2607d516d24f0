package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentpost/agentpost/internal/models"
)

// ErrNoProviderConfigured is returned when no provider is connected.
var ErrNoProviderConfigured = errors.New("no email provider connected")

// Registry holds the configured provider adapters and selects the active one.
type Registry struct {
	store     TokenStore
	providers map[string]Provider
}

// NewRegistry creates a registry over the given adapters.
func NewRegistry(store TokenStore, providers ...Provider) *Registry {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Registry{store: store, providers: m}
}

// Store returns the token store backing the registry.
func (r *Registry) Store() TokenStore { return r.store }

// Get returns the adapter for the named provider.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Active returns the highest-priority connected provider, or
// ErrNoProviderConfigured when none is connected.
func (r *Registry) Active() (Provider, error) {
	connected, err := r.store.Connected()
	if err != nil {
		return nil, fmt.Errorf("failed to list connected providers: %w", err)
	}
	for _, name := range models.ProviderPriority {
		if !connected[name] {
			continue
		}
		if p, ok := r.providers[name]; ok {
			return p, nil
		}
	}
	return nil, ErrNoProviderConfigured
}

// SendViaActive sends one email through the active provider and returns the
// provider name used.
func (r *Registry) SendViaActive(ctx context.Context, to, subject, html string) (string, error) {
	p, err := r.Active()
	if err != nil {
		return "", err
	}
	if err := p.SendEmail(ctx, to, subject, html); err != nil {
		return p.Name(), err
	}
	return p.Name(), nil
}
