package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// DefaultOperationTimeout bounds every account operation
const DefaultOperationTimeout = 10 * time.Second

// OAuthClientConfig holds one provider's client registration
type OAuthClientConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	CallbackURL  string `env:"CALLBACK_URL"`
}

// Enabled reports whether the provider has credentials
func (c OAuthClientConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Config is the service configuration read from the environment
type Config struct {
	Port        int    `env:"PORT"         envDefault:"5000"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"file:accounts.db?cache=shared"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	AppName     string `env:"APP_NAME"     envDefault:"CureNova"`

	JWTSecret  string        `env:"JWT_SECRET"`
	JWTIssuer  string        `env:"JWT_ISSUER"  envDefault:"curenova"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"168h"`

	VerificationTokenTTL  time.Duration `env:"VERIFICATION_TOKEN_TTL"   envDefault:"24h"`
	PasswordResetTokenTTL time.Duration `env:"PASSWORD_RESET_TOKEN_TTL" envDefault:"1h"`
	OperationTimeout      time.Duration `env:"OPERATION_TIMEOUT"        envDefault:"10s"`
	EmailTimeout          time.Duration `env:"EMAIL_TIMEOUT"            envDefault:"10s"`
	BcryptCost            int           `env:"BCRYPT_COST"`
	UseHashidIDs          bool          `env:"USE_HASHID_IDS"           envDefault:"false"`

	OAuthStateKey string `env:"OAUTH_STATE_KEY"`

	EmailHost string `env:"EMAIL_HOST"`
	EmailPort int    `env:"EMAIL_PORT" envDefault:"587"`
	EmailUser string `env:"EMAIL_USER"`
	EmailPass string `env:"EMAIL_PASS"`
	EmailFrom string `env:"EMAIL_FROM"`

	Google OAuthClientConfig `envPrefix:"GOOGLE_"`
	GitHub OAuthClientConfig `envPrefix:"GITHUB_"`

	CORSOrigins     []string      `env:"CORS_ORIGINS"      envSeparator:","`
	RateLimitMax    int           `env:"RATE_LIMIT_MAX"    envDefault:"100"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m"`
}

// LoadConfig reads Config from the process environment
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadConfigFrom reads Config from the given variables only
func LoadConfigFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the pieces the service cannot start without
func (c Config) Validate() error {
	var errs []error

	if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes"))
	}

	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}

	if c.VerificationTokenTTL <= 0 || c.PasswordResetTokenTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}

	if c.OperationTimeout <= 0 {
		errs = append(errs, errors.New("OPERATION_TIMEOUT must be positive"))
	}

	if c.FrontendURL == "" {
		errs = append(errs, errors.New("FRONTEND_URL is required"))
	}

	return errors.Join(errs...)
}

// SMTP returns the mailer settings, ok is false when no relay is configured
func (c Config) SMTP() (SMTPConfig, bool) {
	if c.EmailHost == "" {
		return SMTPConfig{}, false
	}
	from := c.EmailFrom
	if from == "" {
		from = c.EmailUser
	}
	return SMTPConfig{
		Host:     c.EmailHost,
		Port:     c.EmailPort,
		Username: c.EmailUser,
		Password: c.EmailPass,
		From:     from,
	}, true
}

// StateKey is the secret used to seal OAuth state, JWT_SECRET when unset
func (c Config) StateKey() string {
	if strings.TrimSpace(c.OAuthStateKey) != "" {
		return c.OAuthStateKey
	}
	return c.JWTSecret
}
