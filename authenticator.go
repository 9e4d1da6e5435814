package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Auther signs accounts in with a password and resolves bearer tokens back
// to accounts.
type Auther struct {
	repo    RepositoryManager
	hasher  PasswordHasher
	tokens  TokenService
	timeout time.Duration
	now     func() time.Time
	logger  Logger

	decoyOnce sync.Once
	decoy     string
}

// NewAuthenticator returns a new Auther
func NewAuthenticator(repo RepositoryManager, tokens TokenService, hasher PasswordHasher) *Auther {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	return &Auther{
		repo:    repo,
		hasher:  hasher,
		tokens:  tokens,
		timeout: DefaultOperationTimeout,
		now:     time.Now,
		logger:  DefaultLogger(),
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = orDefaultLogger(logger)
	return s
}

// WithTimeout bounds every store interaction
func (s *Auther) WithTimeout(timeout time.Duration) *Auther {
	if timeout > 0 {
		s.timeout = timeout
	}
	return s
}

// WithClock overrides the clock used for last-login stamps
func (s *Auther) WithClock(now func() time.Time) *Auther {
	if now != nil {
		s.now = now
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokens
}

// Login checks email and password and issues a session. Unknown email,
// wrong password, inactive account and password-less account all fail
// with ErrInvalidCredentials.
func (s *Auther) Login(ctx context.Context, email, password string) (*Session, *Account, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	account, err := s.repo.Accounts().GetByEmailTx(ctx, s.repo.DB(), email)
	if err != nil {
		if isNotFound(err) {
			s.compareDecoy(password)
			s.logger.Debug("login for unknown email")
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, DependencyError(err, "login")
	}

	if !account.Active {
		s.compareDecoy(password)
		s.logger.Info("login blocked for inactive account", "account_id", account.ID)
		return nil, nil, ErrInvalidCredentials
	}

	if !HasPassword(account) {
		s.compareDecoy(password)
		s.logger.Info("login for account without password", "account_id", account.ID)
		return nil, nil, ErrInvalidCredentials
	}

	if !VerifyPassword(s.hasher, account, password) {
		s.logger.Info("login with invalid password", "account_id", account.ID)
		return nil, nil, ErrInvalidCredentials
	}

	now := s.now()
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.repo.Accounts().TouchLastLoginTx(ctx, tx, account.ID, now)
	})
	if err != nil {
		return nil, nil, DependencyError(err, "login")
	}
	account.LastLoginAt = &now

	session, err := IssueSession(s.tokens, account)
	if err != nil {
		s.logger.Error("failed to issue session", "account_id", account.ID, "error", err)
		return nil, nil, DependencyError(err, "login")
	}

	return session, account, nil
}

// compareDecoy runs one hash comparison against a throwaway digest made
// with the configured hasher, so failures that never reach a stored
// digest cost the same as a wrong password.
func (s *Auther) compareDecoy(password string) {
	s.decoyOnce.Do(func() {
		digest, err := s.hasher.HashPassword(uuid.NewString())
		if err != nil {
			s.logger.Warn("failed to build decoy digest", "error", err)
			return
		}
		s.decoy = digest
	})
	if s.decoy == "" {
		return
	}
	_ = s.hasher.ComparePasswordAndHash(password, s.decoy)
}

// Authenticate resolves a bearer token to the current account state. The
// account is reloaded on every call so deactivation takes effect on the
// next request.
func (s *Auther) Authenticate(ctx context.Context, token string) (*Account, error) {
	raw, err := s.tokens.Validate(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	account, err := s.repo.Accounts().GetByIDTx(ctx, s.repo.DB(), id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUnauthenticated
		}
		return nil, DependencyError(err, "authenticate")
	}

	if !account.Active {
		return nil, ErrAccountInactive
	}

	return account, nil
}
