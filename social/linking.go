package social

import (
	"context"
	"strings"
	"time"

	"github.com/curenova/go-auth"
	"github.com/uptrace/bun"
)

// DefaultMaxAttempts bounds how often a reconcile restarts after losing a
// uniqueness race.
const DefaultMaxAttempts = 3

// ReconcileResult is the account an assertion resolved to
type ReconcileResult struct {
	Account      *auth.Account
	IsNewAccount bool
	// Linked is true when this call created the provider linkage
	Linked bool
}

// Reconciler maps a provider assertion to exactly one account. It looks up
// the (provider, subject) linkage first, then an account with the same
// email, and creates a new account when neither exists. Races between
// concurrent callbacks are settled by the store's unique constraints and a
// bounded retry.
type Reconciler struct {
	repo        auth.RepositoryManager
	logger      auth.Logger
	timeout     time.Duration
	now         func() time.Time
	maxAttempts int
}

func NewReconciler(repo auth.RepositoryManager) *Reconciler {
	return &Reconciler{
		repo:        repo,
		logger:      auth.DefaultLogger(),
		timeout:     auth.DefaultOperationTimeout,
		now:         time.Now,
		maxAttempts: DefaultMaxAttempts,
	}
}

func (r *Reconciler) WithLogger(logger auth.Logger) *Reconciler {
	if logger != nil {
		r.logger = logger
	}
	return r
}

func (r *Reconciler) WithTimeout(timeout time.Duration) *Reconciler {
	if timeout > 0 {
		r.timeout = timeout
	}
	return r
}

func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	if now != nil {
		r.now = now
	}
	return r
}

func (r *Reconciler) WithMaxAttempts(n int) *Reconciler {
	if n > 0 {
		r.maxAttempts = n
	}
	return r
}

// Reconcile resolves assertion to an account. Inactive accounts are
// returned unmodified and never gain a linkage; refusing them is up to
// the caller.
func (r *Reconciler) Reconcile(ctx context.Context, assertion *Assertion) (*ReconcileResult, error) {
	if assertion == nil || assertion.Provider == "" || strings.TrimSpace(assertion.Subject) == "" {
		return nil, ErrIncompleteProfile
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		result, err := r.reconcile(ctx, assertion)
		if err == nil {
			return result, nil
		}

		if !auth.IsKind(err, auth.ErrDuplicateIdentity) {
			return nil, auth.DependencyError(err, "reconcile identity")
		}

		lastErr = err
		r.logger.Debug("identity race lost, retrying",
			"provider", assertion.Provider,
			"attempt", attempt,
			"constraint", auth.DuplicateConstraint(err),
		)
	}

	return nil, lastErr
}

func (r *Reconciler) reconcile(ctx context.Context, assertion *Assertion) (*ReconcileResult, error) {
	var result *ReconcileResult
	now := r.now()

	err := r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error

		result, err = r.byLinkage(ctx, tx, assertion, now)
		if err != nil || result != nil {
			return err
		}

		result, err = r.byEmail(ctx, tx, assertion, now)
		if err != nil || result != nil {
			return err
		}

		result, err = r.create(ctx, tx, assertion, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *Reconciler) byLinkage(ctx context.Context, tx bun.Tx, assertion *Assertion, now time.Time) (*ReconcileResult, error) {
	link, err := r.repo.Linkages().GetBySubjectTx(ctx, tx, assertion.Provider, assertion.Subject)
	if err != nil {
		if auth.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	account, err := r.repo.Accounts().GetByIDTx(ctx, tx, link.AccountID)
	if err != nil {
		return nil, err
	}

	if !account.Active {
		return &ReconcileResult{Account: account}, nil
	}

	if err := r.repo.Accounts().TouchLastLoginTx(ctx, tx, account.ID, now); err != nil {
		return nil, err
	}
	account.LastLoginAt = &now

	return &ReconcileResult{Account: account}, nil
}

func (r *Reconciler) byEmail(ctx context.Context, tx bun.Tx, assertion *Assertion, now time.Time) (*ReconcileResult, error) {
	email := assertionEmail(assertion)

	account, err := r.repo.Accounts().GetByEmailTx(ctx, tx, email)
	if err != nil {
		if auth.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	// no linkage or verification is written for a deactivated account
	if !account.Active {
		return &ReconcileResult{Account: account}, nil
	}

	// the subject lookup already missed, so any linkage here is for another subject
	if _, err := r.repo.Linkages().GetByAccountProviderTx(ctx, tx, account.ID, assertion.Provider); err == nil {
		return nil, withMetadata(auth.ErrProviderAlreadyLinked, map[string]any{
			"provider": assertion.Provider,
		})
	} else if !auth.IsNotFound(err) {
		return nil, err
	}

	if _, err := r.repo.Linkages().CreateTx(ctx, tx, &auth.AccountLinkage{
		AccountID:       account.ID,
		Provider:        assertion.Provider,
		ProviderSubject: assertion.Subject,
		Email:           assertion.Email,
		CreatedAt:       now,
	}); err != nil {
		return nil, err
	}

	if err := r.repo.Accounts().MarkEmailVerifiedTx(ctx, tx, account.ID); err != nil {
		return nil, err
	}

	if err := r.repo.Accounts().TouchLastLoginTx(ctx, tx, account.ID, now); err != nil {
		return nil, err
	}

	account.EmailVerified = true
	account.LastLoginAt = &now

	r.logger.Info("provider linked to existing account",
		"account_id", account.ID,
		"provider", assertion.Provider,
	)

	return &ReconcileResult{Account: account, Linked: true}, nil
}

func (r *Reconciler) create(ctx context.Context, tx bun.Tx, assertion *Assertion, now time.Time) (*ReconcileResult, error) {
	account, err := r.repo.Accounts().CreateTx(ctx, tx, &auth.Account{
		Email:         assertionEmail(assertion),
		Name:          assertionName(assertion),
		AvatarURL:     assertion.AvatarURL,
		EmailVerified: true,
		Active:        true,
		Role:          auth.RoleUser,
		LastLoginAt:   &now,
	})
	if err != nil {
		return nil, err
	}

	if _, err := r.repo.Linkages().CreateTx(ctx, tx, &auth.AccountLinkage{
		AccountID:       account.ID,
		Provider:        assertion.Provider,
		ProviderSubject: assertion.Subject,
		Email:           assertion.Email,
		CreatedAt:       now,
	}); err != nil {
		return nil, err
	}

	r.logger.Info("account created from provider",
		"account_id", account.ID,
		"provider", assertion.Provider,
	)

	return &ReconcileResult{Account: account, IsNewAccount: true, Linked: true}, nil
}

// assertionEmail falls back to <login>@<provider>.com when the provider
// shares no address
func assertionEmail(a *Assertion) string {
	if email := auth.NormalizeEmail(a.Email); email != "" {
		return email
	}

	local := a.Username
	if local == "" {
		local = a.Subject
	}
	return auth.NormalizeEmail(local + "@" + a.Provider + ".com")
}

func assertionName(a *Assertion) string {
	for _, name := range []string{a.Name, a.Username} {
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}

	email := assertionEmail(a)
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}
