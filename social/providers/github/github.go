package github

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/curenova/go-auth/social"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	defaultUserURL   = "https://api.github.com/user"
	defaultEmailsURL = "https://api.github.com/user/emails"
)

// Config holds GitHub OAuth configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	// Endpoint overrides, empty means github.com
	AuthURL   string
	TokenURL  string
	UserURL   string
	EmailsURL string

	HTTPClient *http.Client
}

// DefaultScopes returns the default GitHub scopes.
func DefaultScopes() []string {
	return []string{"user:email", "read:user"}
}

// Provider implements social.Provider for GitHub.
type Provider struct {
	oauth      *oauth2.Config
	userURL    string
	emailsURL  string
	httpClient *http.Client
}

// New creates a new GitHub provider.
func New(cfg Config) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}

	endpoint := github.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	if cfg.UserURL == "" {
		cfg.UserURL = defaultUserURL
	}
	if cfg.EmailsURL == "" {
		cfg.EmailsURL = defaultEmailsURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		userURL:    cfg.UserURL,
		emailsURL:  cfg.EmailsURL,
		httpClient: client,
	}
}

func (p *Provider) Name() string {
	return "github"
}

func (p *Provider) AuthCodeURL(state string, opts ...social.AuthCodeOption) string {
	cfg := social.ApplyAuthCodeOptions(p.oauth.Scopes, opts...)

	conf := *p.oauth
	conf.Scopes = cfg.Scopes

	var params []oauth2.AuthCodeOption
	if cfg.CodeChallenge != "" {
		params = append(params,
			oauth2.SetAuthURLParam("code_challenge", cfg.CodeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", cfg.CodeChallengeMethod),
		)
	}
	if cfg.Prompt != "" {
		params = append(params, oauth2.SetAuthURLParam("prompt", cfg.Prompt))
	}

	return conf.AuthCodeURL(state, params...)
}

func (p *Provider) Exchange(ctx context.Context, code string, opts ...social.ExchangeOption) (*social.Token, error) {
	cfg := social.ApplyExchangeOptions(opts...)

	var params []oauth2.AuthCodeOption
	if cfg.CodeVerifier != "" {
		params = append(params, oauth2.VerifierOption(cfg.CodeVerifier))
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := p.oauth.Exchange(ctx, code, params...)
	if err != nil {
		return nil, exchangeError(err)
	}

	return &social.Token{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
		Scopes:       grantedScopes(token),
	}, nil
}

// UserInfo reads the profile and, because GitHub hides private addresses
// from /user, the primary verified email from /user/emails.
func (p *Provider) UserInfo(ctx context.Context, token *social.Token) (*social.Assertion, error) {
	if token == nil || token.AccessToken == "" {
		return nil, providerError("user_info", 0, "missing_access_token", "missing access token", nil)
	}

	var user githubUser
	if err := p.getJSON(ctx, "user_info", p.userURL, token.AccessToken, &user); err != nil {
		return nil, err
	}

	if user.ID == 0 {
		return nil, providerError("user_info", http.StatusOK, "invalid_response", "user response has no id", nil)
	}

	email, verified := "", false
	var emails []githubEmail
	if err := p.getJSON(ctx, "emails", p.emailsURL, token.AccessToken, &emails); err == nil {
		email, verified = primaryEmail(emails)
	}

	if email == "" {
		email = user.Email
	}

	return mapAssertion(&user, email, verified), nil
}

func (p *Provider) getJSON(ctx context.Context, operation, endpoint, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return providerError(operation, 0, "", "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return providerError(operation, resp.StatusCode, "", "", err)
	}

	if resp.StatusCode != http.StatusOK {
		return providerError(operation, resp.StatusCode, "", apiErrorMessage(body), nil)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return providerError(operation, resp.StatusCode, "invalid_response", "failed to decode response", err)
	}

	return nil
}

func primaryEmail(emails []githubEmail) (string, bool) {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, true
		}
	}

	for _, e := range emails {
		if e.Verified {
			return e.Email, true
		}
	}

	return "", false
}

func exchangeError(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		status := 0
		if rerr.Response != nil {
			status = rerr.Response.StatusCode
		}
		return providerError("exchange", status, rerr.ErrorCode, rerr.ErrorDescription, err)
	}
	return providerError("exchange", 0, "", "", err)
}

func grantedScopes(token *oauth2.Token) []string {
	raw, _ := token.Extra("scope").(string)
	if raw == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type githubAPIError struct {
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url"`
}

func apiErrorMessage(body []byte) string {
	var apiErr githubAPIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Message
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "github request failed"
	}

	return msg
}

func providerError(operation string, status int, code, description string, err error) *social.ProviderError {
	return &social.ProviderError{
		Provider:    "github",
		Operation:   operation,
		Status:      status,
		Code:        code,
		Description: description,
		Err:         err,
	}
}
