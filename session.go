package auth

import (
	"time"

	"github.com/google/uuid"
)

// Session is an issued bearer token. It is not persisted.
type Session struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	AccountID uuid.UUID `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExpiresIn is the remaining lifetime relative to now
func (s *Session) ExpiresIn(now time.Time) time.Duration {
	if s == nil {
		return 0
	}
	return s.ExpiresAt.Sub(now)
}

// IssueSession mints a session token for account. It does not look at the
// account's flags; callers decide whether the account may sign in.
func IssueSession(tokens TokenService, account *Account) (*Session, error) {
	if account == nil || account.ID == uuid.Nil {
		return nil, ErrAccountNotFound
	}

	token, expiresAt, err := tokens.Issue(account.ID.String())
	if err != nil {
		return nil, err
	}

	return &Session{
		Token:     token,
		TokenType: "Bearer",
		AccountID: account.ID,
		ExpiresAt: expiresAt,
	}, nil
}
