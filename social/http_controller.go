package social

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/curenova/go-auth"
	"github.com/goliatone/go-router"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// KnownProviders are reported by the status endpoint whether or not they
// are configured.
var KnownProviders = []string{"google", "github"}

// HTTPController handles social auth HTTP routes.
type HTTPController struct {
	authenticator *SocialAuthenticator
	config        HTTPConfig
}

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// FrontendURL is the base every browser redirect points at
	FrontendURL string

	// SuccessPath receives token and provider query params
	// (default: "/oauth-callback")
	SuccessPath string

	// ErrorPath receives error=oauth_failed (default: "/signup.html")
	ErrorPath string

	Logger auth.Logger
}

// NewHTTPController creates a new social auth HTTP controller.
func NewHTTPController(sa *SocialAuthenticator, cfg HTTPConfig) *HTTPController {
	if sa == nil {
		panic("Missing SocialAuthenticator in social controller...")
	}
	if cfg.SuccessPath == "" {
		cfg.SuccessPath = "/oauth-callback"
	}
	if cfg.ErrorPath == "" {
		cfg.ErrorPath = "/signup.html"
	}
	if cfg.Logger == nil {
		cfg.Logger = auth.DefaultLogger()
	}
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")

	return &HTTPController{
		authenticator: sa,
		config:        cfg,
	}
}

// RegisterRoutes mounts the provider routes on group, usually /oauth
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	group.Get("/status", c.Status).SetName("oauth.status")
	group.Get("/error", c.Error).SetName("oauth.error")
	group.Get("/:provider/callback", c.Callback).SetName("oauth.callback")
	group.Get("/:provider", c.BeginAuth).SetName("oauth.begin")
}

// Status reports which providers are configured.
func (c *HTTPController) Status(ctx router.Context) error {
	enabled := map[string]bool{}
	for _, name := range c.authenticator.ListProviders() {
		enabled[name] = true
	}

	status := map[string]any{}
	for _, name := range KnownProviders {
		status[name] = map[string]any{"enabled": enabled[name]}
	}
	for name := range enabled {
		if _, ok := status[name]; !ok {
			status[name] = map[string]any{"enabled": true}
		}
	}

	return ctx.JSON(router.StatusOK, status)
}

// Error is where a provider that refused consent ends up.
func (c *HTTPController) Error(ctx router.Context) error {
	return ctx.Redirect(c.failureURL(), http.StatusFound)
}

// BeginAuth starts the OAuth flow.
func (c *HTTPController) BeginAuth(ctx router.Context) error {
	providerName := ctx.Param("provider")

	redirect, err := c.authenticator.BeginAuth(ctx.Context(), providerName)
	if err != nil {
		if auth.IsKind(err, ErrProviderNotFound) {
			return auth.WriteError(ctx, c.config.Logger, err)
		}
		return c.fail(ctx, providerName, err)
	}

	return ctx.Redirect(redirect.URL, http.StatusFound)
}

// Callback handles the OAuth callback.
func (c *HTTPController) Callback(ctx router.Context) error {
	providerName := ctx.Param("provider")

	if errCode := ctx.Query("error", ""); errCode != "" {
		c.config.Logger.Info("provider returned an error",
			"provider", providerName,
			"error", errCode,
			"description", ctx.Query("error_description", ""),
		)
		return ctx.Redirect(c.failureURL(), http.StatusFound)
	}

	result, err := c.authenticator.CompleteAuth(ctx.Context(), providerName, ctx.Query("code", ""), ctx.Query("state", ""))
	if err != nil {
		return c.fail(ctx, providerName, err)
	}

	return ctx.Redirect(c.successURL(result.Session.Token, result.Provider), http.StatusFound)
}

func (c *HTTPController) fail(ctx router.Context, provider string, err error) error {
	c.config.Logger.Warn("social login failed", "provider", provider, "error", err)
	return ctx.Redirect(c.failureURL(), http.StatusFound)
}

func (c *HTTPController) successURL(token, provider string) string {
	query := url.Values{}
	query.Set("token", token)
	query.Set("provider", provider)
	return c.config.FrontendURL + c.config.SuccessPath + "?" + query.Encode()
}

func (c *HTTPController) failureURL() string {
	return appendQueryParam(c.config.FrontendURL+c.config.ErrorPath, "error", "oauth_failed")
}

func appendQueryParam(rawURL, key, value string) string {
	if rawURL == "" {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err == nil {
		query := parsed.Query()
		query.Set(key, value)
		parsed.RawQuery = query.Encode()
		return parsed.String()
	}

	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}
