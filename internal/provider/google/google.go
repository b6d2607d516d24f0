// Package google implements the Gmail/People provider adapter.
package google

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	oauth2api "google.golang.org/api/oauth2/v2"
	people "google.golang.org/api/people/v1"
	"google.golang.org/api/option"

	"github.com/agentpost/agentpost/internal/email"
	"github.com/agentpost/agentpost/internal/models"
	"github.com/agentpost/agentpost/internal/provider"
)

const personFields = "names,emailAddresses,phoneNumbers,birthdays"

// Provider talks to Gmail and the People API on behalf of the connected
// Google account.
type Provider struct {
	oauth  *oauth2.Config
	store  provider.TokenStore
	logger *slog.Logger
}

// New creates the Google adapter. baseURL is the externally reachable server
// URL used to build the OAuth redirect.
func New(clientID, clientSecret, baseURL string, store provider.TokenStore, logger *slog.Logger) *Provider {
	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  baseURL + "/auth/google/callback",
			Endpoint:     googleoauth.Endpoint,
			Scopes: []string{
				gmail.GmailSendScope,
				people.ContactsScope,
				oauth2api.UserinfoEmailScope,
			},
		},
		store:  store,
		logger: logger,
	}
}

func (p *Provider) Name() string { return models.ProviderGoogle }

// AuthURL requests offline access with a forced consent screen so Google
// returns a refresh token even on repeated connects.
func (p *Provider) AuthURL(state string) string {
	return p.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
}

func (p *Provider) Exchange(ctx context.Context, code string) (*models.Integration, error) {
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, &provider.AuthError{Provider: p.Name(), Err: err}
	}

	svc, err := oauth2api.NewService(ctx, option.WithTokenSource(p.oauth.TokenSource(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo client: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, &provider.ProviderError{Provider: p.Name(), Op: "userinfo", Err: err}
	}

	rec := &models.Integration{
		Provider:      p.Name(),
		AccessToken:   tok.AccessToken,
		RefreshToken:  tok.RefreshToken,
		ExpiresAt:     tok.Expiry,
		ProviderEmail: email.Normalize(info.Email),
	}
	if err := p.store.Upsert(rec); err != nil {
		return nil, fmt.Errorf("failed to save google tokens: %w", err)
	}
	p.logger.Info("google account connected", "email", rec.ProviderEmail)
	return rec, nil
}

// EnsureToken returns the stored credential, refreshing it first when it is
// within the refresh buffer of expiry. A refreshed token is persisted before
// it is used.
func (p *Provider) EnsureToken(ctx context.Context) (*models.Integration, error) {
	rec, err := p.store.Get(p.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to load google tokens: %w", err)
	}
	if rec == nil {
		return nil, provider.ErrNotConnected
	}
	if !provider.TokenExpiring(rec, time.Now()) {
		return rec, nil
	}

	src := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: rec.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, &provider.AuthError{Provider: p.Name(), Err: err}
	}
	rec.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		rec.RefreshToken = tok.RefreshToken
	}
	rec.ExpiresAt = tok.Expiry
	if err := p.store.Upsert(rec); err != nil {
		return nil, fmt.Errorf("failed to save refreshed google tokens: %w", err)
	}
	p.logger.Debug("google token refreshed", "expires_at", rec.ExpiresAt)
	return rec, nil
}

func (p *Provider) SendEmail(ctx context.Context, to, subject, html string) error {
	rec, err := p.EnsureToken(ctx)
	if err != nil {
		return err
	}
	svc, err := gmail.NewService(ctx, option.WithTokenSource(staticSource(rec)))
	if err != nil {
		return fmt.Errorf("failed to create gmail client: %w", err)
	}

	raw := email.BuildHTMLMessage(rec.ProviderEmail, to, subject, html)
	msg := &gmail.Message{Raw: base64.RawURLEncoding.EncodeToString(raw)}
	if _, err := svc.Users.Messages.Send("me", msg).Context(ctx).Do(); err != nil {
		return &provider.ProviderError{Provider: p.Name(), Op: "send", Err: err}
	}
	return nil
}

func (p *Provider) ListContacts(ctx context.Context) ([]provider.Contact, error) {
	rec, err := p.EnsureToken(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := people.NewService(ctx, option.WithTokenSource(staticSource(rec)))
	if err != nil {
		return nil, fmt.Errorf("failed to create people client: %w", err)
	}

	var out []provider.Contact
	pageToken := ""
	for {
		call := svc.People.Connections.List("people/me").
			PersonFields(personFields).
			PageSize(100).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, &provider.ProviderError{Provider: p.Name(), Op: "list contacts", Err: err}
		}
		for _, person := range resp.Connections {
			if c, ok := fromPerson(person); ok {
				out = append(out, c)
			}
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return out, nil
}

func (p *Provider) CreateContact(ctx context.Context, c provider.Contact) error {
	rec, err := p.EnsureToken(ctx)
	if err != nil {
		return err
	}
	svc, err := people.NewService(ctx, option.WithTokenSource(staticSource(rec)))
	if err != nil {
		return fmt.Errorf("failed to create people client: %w", err)
	}

	person := &people.Person{
		Names:          []*people.Name{{GivenName: c.FirstName, FamilyName: c.LastName}},
		EmailAddresses: []*people.EmailAddress{{Value: c.Email}},
	}
	if c.Phone != "" {
		person.PhoneNumbers = []*people.PhoneNumber{{Value: c.Phone}}
	}
	if c.Birthdate != nil {
		person.Birthdays = []*people.Birthday{{Date: &people.Date{
			Year:  int64(c.Birthdate.Year()),
			Month: int64(c.Birthdate.Month()),
			Day:   int64(c.Birthdate.Day()),
		}}}
	}
	if _, err := svc.People.CreateContact(person).Context(ctx).Do(); err != nil {
		return &provider.ProviderError{Provider: p.Name(), Op: "create contact", Err: err}
	}
	return nil
}

func staticSource(rec *models.Integration) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: rec.AccessToken})
}

// fromPerson maps a People API person to a Contact. People without an email
// address are skipped.
func fromPerson(person *people.Person) (provider.Contact, bool) {
	c := provider.Contact{}
	for _, e := range person.EmailAddresses {
		if e.Value != "" {
			c.Email = email.Normalize(e.Value)
			break
		}
	}
	if c.Email == "" {
		return c, false
	}
	if len(person.Names) > 0 {
		c.FirstName = person.Names[0].GivenName
		c.LastName = person.Names[0].FamilyName
	}
	if len(person.PhoneNumbers) > 0 {
		c.Phone = person.PhoneNumbers[0].Value
	}
	for _, b := range person.Birthdays {
		if b.Date == nil || b.Date.Month == 0 || b.Date.Day == 0 {
			continue
		}
		year := int(b.Date.Year)
		if year == 0 {
			// Google omits the year for birthday-only dates.
			year = 1900
		}
		bd := time.Date(year, time.Month(b.Date.Month), int(b.Date.Day), 0, 0, 0, 0, time.UTC)
		c.Birthdate = &bd
		break
	}
	return c, true
}
