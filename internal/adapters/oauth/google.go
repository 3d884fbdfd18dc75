package oauth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"replymate/internal/adapters/observability"
	"replymate/internal/domain"
)

const (
	ScopeBusinessManage = "https://www.googleapis.com/auth/business.manage"

	defaultAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURL = "https://oauth2.googleapis.com/token"
	defaultLifetime = time.Hour
)

type Options struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string // defaults to Google's consent endpoint
	TokenURL     string // defaults to Google's token endpoint
	Timeout      time.Duration
}

// Client wraps an oauth2.Config for Google Business Profile consent.
type Client struct {
	cfg  oauth2.Config
	http *http.Client
	now  func() time.Time
}

func New(o Options) *Client {
	if o.AuthURL == "" {
		o.AuthURL = defaultAuthURL
	}
	if o.TokenURL == "" {
		o.TokenURL = defaultTokenURL
	}
	if o.Timeout <= 0 {
		o.Timeout = 20 * time.Second
	}
	return &Client{
		cfg: oauth2.Config{
			ClientID:     o.ClientID,
			ClientSecret: o.ClientSecret,
			RedirectURL:  o.RedirectURL,
			Scopes:       []string{ScopeBusinessManage},
			Endpoint: oauth2.Endpoint{
				AuthURL:   o.AuthURL,
				TokenURL:  o.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		http: &http.Client{Timeout: o.Timeout},
		now:  time.Now,
	}
}

// AuthCodeURL asks for offline access and forces the consent screen so Google
// issues a refresh token on every connect.
func (c *Client) AuthCodeURL(state string) (string, error) {
	if c.cfg.ClientID == "" {
		return "", domain.MissingKey("GOOGLE_CLIENT_ID")
	}
	return c.cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	), nil
}

func (c *Client) Exchange(ctx context.Context, code string) (domain.OAuthToken, error) {
	if err := c.requireCredentials(); err != nil {
		return domain.OAuthToken{}, err
	}
	start := time.Now()
	tok, err := c.cfg.Exchange(c.withHTTP(ctx), code)
	observability.ObserveExternal("oauth", "exchange", statusOf(err), time.Since(start))
	if err != nil {
		return domain.OAuthToken{}, mapTokenError(err)
	}
	return c.toDomain(tok), nil
}

// Refresh trades a refresh token for a new access token. An empty refresh token
// fails before any request is made.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (domain.OAuthToken, error) {
	if err := c.requireCredentials(); err != nil {
		return domain.OAuthToken{}, err
	}
	if refreshToken == "" {
		return domain.OAuthToken{}, domain.ErrReauthRequired
	}
	start := time.Now()
	tok, err := c.cfg.TokenSource(c.withHTTP(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	observability.ObserveExternal("oauth", "refresh", statusOf(err), time.Since(start))
	if err != nil {
		return domain.OAuthToken{}, mapTokenError(err)
	}
	return c.toDomain(tok), nil
}

func (c *Client) requireCredentials() error {
	if c.cfg.ClientID == "" {
		return domain.MissingKey("GOOGLE_CLIENT_ID")
	}
	if c.cfg.ClientSecret == "" {
		return domain.MissingKey("GOOGLE_CLIENT_SECRET")
	}
	return nil
}

func (c *Client) withHTTP(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.http)
}

func (c *Client) toDomain(t *oauth2.Token) domain.OAuthToken {
	exp := t.Expiry
	if exp.IsZero() {
		exp = c.now().Add(defaultLifetime)
	}
	scope, _ := t.Extra("scope").(string)
	return domain.OAuthToken{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Scope:        scope,
		ExpiresAt:    exp,
	}
}

func mapTokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.ErrorCode == "invalid_grant" {
			return domain.ErrReauthRequired
		}
		msg := re.ErrorDescription
		if msg == "" {
			msg = re.ErrorCode
		}
		if msg == "" {
			msg = "token request failed"
		}
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		return &domain.ProviderError{Service: "oauth", Status: status, Message: msg}
	}
	return &domain.ProviderError{Service: "oauth", Message: err.Error()}
}

func statusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return re.Response.StatusCode
	}
	return 0
}
