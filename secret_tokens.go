package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	// DefaultVerificationTTL is the lifetime of an email verification token
	DefaultVerificationTTL = 24 * time.Hour
	// DefaultPasswordResetTTL is the lifetime of a password reset token
	DefaultPasswordResetTTL = time.Hour

	secretTokenBytes = 32
)

// SecretTokenService issues and consumes single-use emailed secrets
type SecretTokenService struct {
	repo RepositoryManager
	now  func() time.Time
}

// NewSecretTokenService returns a service storing tokens through repo
func NewSecretTokenService(repo RepositoryManager) *SecretTokenService {
	return &SecretTokenService{
		repo: repo,
		now:  time.Now,
	}
}

// WithClock overrides the clock used for expiry
func (s *SecretTokenService) WithClock(now func() time.Time) *SecretTokenService {
	if now != nil {
		s.now = now
	}
	return s
}

// Issue replaces any live token of purpose for the account and returns the
// raw value. Only its hash is stored.
func (s *SecretTokenService) Issue(ctx context.Context, accountID uuid.UUID, purpose TokenPurpose, ttl time.Duration) (string, error) {
	var raw string
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		raw, err = s.IssueTx(ctx, tx, accountID, purpose, ttl)
		return err
	})
	if err != nil {
		return "", err
	}
	return raw, nil
}

// IssueTx is Issue inside the caller's transaction
func (s *SecretTokenService) IssueTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, purpose TokenPurpose, ttl time.Duration) (string, error) {
	raw, err := generateSecret()
	if err != nil {
		return "", err
	}

	if err := s.repo.SecretTokens().DeleteByAccountPurposeTx(ctx, tx, accountID, purpose); err != nil {
		return "", err
	}

	now := s.now()
	record := &SecretToken{
		AccountID: accountID,
		Purpose:   purpose,
		TokenHash: HashSecret(raw),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	if _, err := s.repo.SecretTokens().CreateTx(ctx, tx, record); err != nil {
		return "", err
	}

	return raw, nil
}

// Consume redeems raw for purpose and returns the owning account. The row
// is deleted before expiry is checked, so an expired token is gone
// afterwards too. When two callers race only the one whose delete removed
// the row succeeds.
func (s *SecretTokenService) Consume(ctx context.Context, raw string, purpose TokenPurpose) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, ErrTokenNotFound
	}

	var accountID uuid.UUID
	var expired bool

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := s.repo.SecretTokens().GetByHashTx(ctx, tx, HashSecret(raw), purpose)
		if err != nil {
			return err
		}

		deleted, err := s.repo.SecretTokens().DeleteByIDTx(ctx, tx, record.ID)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrTokenNotFound
		}

		accountID = record.AccountID
		expired = record.Expired(s.now())
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	if expired {
		return uuid.Nil, ErrTokenExpired
	}

	return accountID, nil
}

// HashSecret is the stored digest of a raw secret
func HashSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func generateSecret() (string, error) {
	b := make([]byte, secretTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
