// Package microsoft implements the Outlook provider adapter on Microsoft
// Graph.
package microsoft

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	graphmodels "github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/users"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/agentpost/agentpost/internal/email"
	"github.com/agentpost/agentpost/internal/models"
	"github.com/agentpost/agentpost/internal/provider"
)

var scopes = []string{
	"offline_access",
	"https://graph.microsoft.com/Mail.Send",
	"https://graph.microsoft.com/Contacts.ReadWrite",
	"https://graph.microsoft.com/User.Read",
}

var contactSelect = []string{"givenName", "surname", "emailAddresses", "mobilePhone", "birthday"}

// Provider talks to Microsoft Graph on behalf of the connected Microsoft
// account.
type Provider struct {
	oauth  *oauth2.Config
	store  provider.TokenStore
	logger *slog.Logger
}

// New creates the Microsoft adapter. tenant is the Azure AD tenant
// ("common" for personal and work accounts).
func New(clientID, clientSecret, tenant, baseURL string, store provider.TokenStore, logger *slog.Logger) *Provider {
	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  baseURL + "/auth/microsoft/callback",
			Endpoint:     microsoft.AzureADEndpoint(tenant),
			Scopes:       scopes,
		},
		store:  store,
		logger: logger,
	}
}

func (p *Provider) Name() string { return models.ProviderMicrosoft }

func (p *Provider) AuthURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (p *Provider) Exchange(ctx context.Context, code string) (*models.Integration, error) {
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, &provider.AuthError{Provider: p.Name(), Err: err}
	}

	client, err := graphClient(tok.AccessToken)
	if err != nil {
		return nil, err
	}
	me, err := client.Me().Get(ctx, nil)
	if err != nil {
		return nil, &provider.ProviderError{Provider: p.Name(), Op: "userinfo", Err: err}
	}
	addr := ""
	if mail := me.GetMail(); mail != nil {
		addr = *mail
	} else if upn := me.GetUserPrincipalName(); upn != nil {
		addr = *upn
	}

	rec := &models.Integration{
		Provider:      p.Name(),
		AccessToken:   tok.AccessToken,
		RefreshToken:  tok.RefreshToken,
		ExpiresAt:     tok.Expiry,
		ProviderEmail: email.Normalize(addr),
	}
	if err := p.store.Upsert(rec); err != nil {
		return nil, fmt.Errorf("failed to save microsoft tokens: %w", err)
	}
	p.logger.Info("microsoft account connected", "email", rec.ProviderEmail)
	return rec, nil
}

func (p *Provider) EnsureToken(ctx context.Context) (*models.Integration, error) {
	rec, err := p.store.Get(p.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to load microsoft tokens: %w", err)
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
		return nil, fmt.Errorf("failed to save refreshed microsoft tokens: %w", err)
	}
	p.logger.Debug("microsoft token refreshed", "expires_at", rec.ExpiresAt)
	return rec, nil
}

func (p *Provider) SendEmail(ctx context.Context, to, subject, html string) error {
	rec, err := p.EnsureToken(ctx)
	if err != nil {
		return err
	}
	client, err := graphClient(rec.AccessToken)
	if err != nil {
		return err
	}

	msg := graphmodels.NewMessage()
	msg.SetSubject(&subject)

	body := graphmodels.NewItemBody()
	contentType := graphmodels.HTML_BODYTYPE
	body.SetContentType(&contentType)
	body.SetContent(&html)
	msg.SetBody(body)

	addr := graphmodels.NewEmailAddress()
	addr.SetAddress(&to)
	rcpt := graphmodels.NewRecipient()
	rcpt.SetEmailAddress(addr)
	msg.SetToRecipients([]graphmodels.Recipientable{rcpt})

	req := users.NewItemSendMailPostRequestBody()
	req.SetMessage(msg)
	save := true
	req.SetSaveToSentItems(&save)

	if err := client.Me().SendMail().Post(ctx, req, nil); err != nil {
		return &provider.ProviderError{Provider: p.Name(), Op: "send", Err: err}
	}
	return nil
}

func (p *Provider) ListContacts(ctx context.Context) ([]provider.Contact, error) {
	rec, err := p.EnsureToken(ctx)
	if err != nil {
		return nil, err
	}
	client, err := graphClient(rec.AccessToken)
	if err != nil {
		return nil, err
	}

	top := int32(100)
	cfg := &users.ItemContactsRequestBuilderGetRequestConfiguration{
		QueryParameters: &users.ItemContactsRequestBuilderGetQueryParameters{
			Top:    &top,
			Select: contactSelect,
		},
	}
	resp, err := client.Me().Contacts().Get(ctx, cfg)
	if err != nil {
		return nil, &provider.ProviderError{Provider: p.Name(), Op: "list contacts", Err: err}
	}

	var out []provider.Contact
	for _, gc := range resp.GetValue() {
		if c, ok := fromGraphContact(gc); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (p *Provider) CreateContact(ctx context.Context, c provider.Contact) error {
	rec, err := p.EnsureToken(ctx)
	if err != nil {
		return err
	}
	client, err := graphClient(rec.AccessToken)
	if err != nil {
		return err
	}

	gc := graphmodels.NewContact()
	if c.FirstName != "" {
		gc.SetGivenName(&c.FirstName)
	}
	if c.LastName != "" {
		gc.SetSurname(&c.LastName)
	}
	if c.Phone != "" {
		gc.SetMobilePhone(&c.Phone)
	}
	if c.Birthdate != nil {
		gc.SetBirthday(c.Birthdate)
	}
	addr := graphmodels.NewEmailAddress()
	addr.SetAddress(&c.Email)
	gc.SetEmailAddresses([]graphmodels.EmailAddressable{addr})

	if _, err := client.Me().Contacts().Post(ctx, gc, nil); err != nil {
		return &provider.ProviderError{Provider: p.Name(), Op: "create contact", Err: err}
	}
	return nil
}

func graphClient(accessToken string) (*msgraphsdk.GraphServiceClient, error) {
	cred := &staticTokenCredential{token: accessToken}
	client, err := msgraphsdk.NewGraphServiceClientWithCredentials(cred, []string{})
	if err != nil {
		return nil, fmt.Errorf("failed to create graph client: %w", err)
	}
	return client, nil
}

func fromGraphContact(gc graphmodels.Contactable) (provider.Contact, bool) {
	c := provider.Contact{}
	for _, a := range gc.GetEmailAddresses() {
		if addr := a.GetAddress(); addr != nil && *addr != "" {
			c.Email = email.Normalize(*addr)
			break
		}
	}
	if c.Email == "" {
		return c, false
	}
	if v := gc.GetGivenName(); v != nil {
		c.FirstName = *v
	}
	if v := gc.GetSurname(); v != nil {
		c.LastName = *v
	}
	if v := gc.GetMobilePhone(); v != nil {
		c.Phone = *v
	}
	if v := gc.GetBirthday(); v != nil {
		bd := v.UTC()
		c.Birthdate = &bd
	}
	return c, true
}

// staticTokenCredential adapts an already-acquired OAuth access token to the
// Azure credential interface the Graph SDK expects.
type staticTokenCredential struct {
	token string
}

func (c *staticTokenCredential) GetToken(ctx context.Context, options policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{
		Token:     c.token,
		ExpiresOn: time.Now().Add(time.Hour),
	}, nil
}
