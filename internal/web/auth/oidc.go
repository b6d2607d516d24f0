package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/agentpost/agentpost/internal/config"
)

// OIDCProvider handles OIDC single sign-on for the admin console.
type OIDCProvider struct {
	config   *config.OIDCConfig
	provider *oidc.Provider
	oauth2   oauth2.Config
	verifier *oidc.IDTokenVerifier

	mu     sync.RWMutex
	states map[string]struct{}
}

// NewOIDCProvider creates a new OIDC provider. Returns nil when OIDC is
// disabled.
func NewOIDCProvider(ctx context.Context, cfg *config.OIDCConfig) (*OIDCProvider, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	oauth2Config := oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       cfg.Scopes,
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})

	return &OIDCProvider{
		config:   cfg,
		provider: provider,
		oauth2:   oauth2Config,
		verifier: verifier,
		states:   make(map[string]struct{}),
	}, nil
}

// AuthCodeURL generates the authorization URL with a random state
func (p *OIDCProvider) AuthCodeURL() (string, string, error) {
	state, err := generateState()
	if err != nil {
		return "", "", err
	}

	p.mu.Lock()
	p.states[state] = struct{}{}
	p.mu.Unlock()

	url := p.oauth2.AuthCodeURL(state)
	return url, state, nil
}

// Exchange exchanges the authorization code for tokens and user info
func (p *OIDCProvider) Exchange(ctx context.Context, state, code string) (*UserInfo, error) {
	p.mu.Lock()
	_, valid := p.states[state]
	if valid {
		delete(p.states, state)
	}
	p.mu.Unlock()

	if !valid {
		return nil, fmt.Errorf("invalid state")
	}

	token, err := p.oauth2.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("no id_token in response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify id_token: %w", err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	if len(p.config.AllowedEmails) > 0 {
		allowed := false
		for _, a := range p.config.AllowedEmails {
			if strings.EqualFold(a, claims.Email) {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, fmt.Errorf("email %s not allowed", claims.Email)
		}
	}

	return &UserInfo{Email: claims.Email, Name: claims.Name}, nil
}

// UserInfo represents user information from OIDC
type UserInfo struct {
	Email string
	Name  string
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
