package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

var ErrEmailNotVerified = errors.New("google account email is not verified")

// GoogleIdentity is what the provider tells us about the signed-in account.
type GoogleIdentity struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// GoogleProvider runs the authorization-code flow against Google.
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email"},
		},
		userInfoURL: googleUserInfoURL,
	}
}

// WithEndpoint points the provider at another authorization server.
func (p *GoogleProvider) WithEndpoint(endpoint oauth2.Endpoint, userInfoURL string) *GoogleProvider {
	p.config.Endpoint = endpoint
	p.userInfoURL = userInfoURL
	return p
}

func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Identify exchanges the authorization code and fetches the account's email.
func (p *GoogleProvider) Identify(ctx context.Context, code string) (*GoogleIdentity, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := p.config.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("userinfo error: status %d", resp.StatusCode)
	}

	var id GoogleIdentity
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&id); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if id.Email == "" {
		return nil, errors.New("userinfo has no email")
	}
	if !id.EmailVerified {
		return nil, ErrEmailNotVerified
	}
	return &id, nil
}
