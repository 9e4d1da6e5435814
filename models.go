package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account is the account model
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            uuid.UUID         `bun:"id,pk,type:uuid" json:"id"`
	Email         string            `bun:"email,notnull" json:"email"`
	PasswordHash  string            `bun:"password_hash,nullzero" json:"-"`
	Name          string            `bun:"name,notnull" json:"name"`
	AvatarURL     string            `bun:"avatar_url,nullzero" json:"avatar_url,omitempty"`
	EmailVerified bool              `bun:"is_email_verified,notnull" json:"is_email_verified"`
	Active        bool              `bun:"is_active,notnull" json:"is_active"`
	Role          AccountRole       `bun:"account_role,notnull" json:"role"`
	LastLoginAt   *time.Time        `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	CreatedAt     time.Time         `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time         `bun:"updated_at,notnull" json:"updated_at"`
	Linkages      []*AccountLinkage `bun:"rel:has-many,join:id=account_id" json:"linkages,omitempty"`
}

// AccountLinkage binds an account to a subject at an external provider
type AccountLinkage struct {
	bun.BaseModel   `bun:"table:account_linkages,alias:lnk"`
	ID              uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	AccountID       uuid.UUID `bun:"account_id,notnull,type:uuid" json:"account_id"`
	Provider        string    `bun:"provider,notnull" json:"provider"`
	ProviderSubject string    `bun:"provider_subject,notnull" json:"provider_subject"`
	Email           string    `bun:"email,nullzero" json:"email,omitempty"`
	CreatedAt       time.Time `bun:"created_at,notnull" json:"created_at"`
}

// TokenPurpose scopes a secret token to one flow
type TokenPurpose = string

const (
	PurposeVerifyEmail   TokenPurpose = "verify-email"
	PurposeResetPassword TokenPurpose = "reset-password"
)

// SecretToken is the stored half of an emailed secret. Only the hash of
// the raw value is persisted.
type SecretToken struct {
	bun.BaseModel `bun:"table:secret_tokens,alias:stk"`
	ID            uuid.UUID    `bun:"id,pk,type:uuid" json:"id"`
	AccountID     uuid.UUID    `bun:"account_id,notnull,type:uuid" json:"account_id"`
	Purpose       TokenPurpose `bun:"purpose,notnull" json:"purpose"`
	TokenHash     string       `bun:"token_hash,notnull" json:"-"`
	ExpiresAt     time.Time    `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt     time.Time    `bun:"created_at,notnull" json:"created_at"`
}

// Expired reports whether the token is past its expiry at now
func (t *SecretToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// HasPassword reports whether the account can sign in with a password
func HasPassword(a *Account) bool {
	return a != nil && a.PasswordHash != ""
}

// IsAdmin reports whether the account carries the admin role
func IsAdmin(a *Account) bool {
	return a != nil && a.Role == RoleAdmin
}

// NormalizeEmail lower-cases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func prepareAccountDefaults(record *Account, now time.Time) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.Role == "" {
		record.Role = RoleUser
	}

	record.Email = NormalizeEmail(record.Email)
	record.Name = strings.TrimSpace(record.Name)

	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
}
