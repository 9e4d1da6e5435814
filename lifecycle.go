package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// LifecycleDeps are the collaborators shared by the account commands
type LifecycleDeps struct {
	Repo             RepositoryManager
	Hasher           PasswordHasher
	Secrets          *SecretTokenService
	Notifier         *Notifier
	Logger           Logger
	Timeout          time.Duration
	VerificationTTL  time.Duration
	PasswordResetTTL time.Duration
	UseHashidIDs     bool
}

func (d LifecycleDeps) withDefaults() LifecycleDeps {
	if d.Hasher == nil {
		d.Hasher = BcryptHasher{}
	}
	if d.Secrets == nil && d.Repo != nil {
		d.Secrets = NewSecretTokenService(d.Repo)
	}
	d.Logger = orDefaultLogger(d.Logger)
	if d.Notifier == nil {
		d.Notifier = NewNotifier(NewConsoleMailer(d.Logger), "")
	}
	if d.Timeout <= 0 {
		d.Timeout = DefaultOperationTimeout
	}
	if d.VerificationTTL <= 0 {
		d.VerificationTTL = DefaultVerificationTTL
	}
	if d.PasswordResetTTL <= 0 {
		d.PasswordResetTTL = DefaultPasswordResetTTL
	}
	return d
}

// Notice reports the email side effect of a committed operation. A failed
// send leaves the state change in place.
type Notice struct {
	EmailSent bool   `json:"email_sent"`
	Warning   string `json:"warning,omitempty"`
}

func noticeFrom(logger Logger, err error, warning string, args ...any) Notice {
	if err == nil {
		return Notice{EmailSent: true}
	}
	logger.Warn(warning, append(args, "error", err)...)
	return Notice{EmailSent: false, Warning: warning}
}

// Lifecycle is the entry point for account registration, verification,
// password management and removal.
type Lifecycle struct {
	deps LifecycleDeps

	register    *RegisterAccountHandler
	verify      *VerifyEmailHandler
	resend      *ResendVerificationHandler
	forgot      *InitializePasswordResetHandler
	reset       *FinalizePasswordResetHandler
	change      *ChangePasswordHandler
	remove      *DeleteAccountHandler
	adminRemove *AdminDeleteAccountHandler
}

// NewLifecycle wires every account command to deps
func NewLifecycle(deps LifecycleDeps) *Lifecycle {
	deps = deps.withDefaults()
	return &Lifecycle{
		deps:        deps,
		register:    NewRegisterAccountHandler(deps),
		verify:      NewVerifyEmailHandler(deps),
		resend:      NewResendVerificationHandler(deps),
		forgot:      NewInitializePasswordResetHandler(deps),
		reset:       NewFinalizePasswordResetHandler(deps),
		change:      NewChangePasswordHandler(deps),
		remove:      NewDeleteAccountHandler(deps),
		adminRemove: NewAdminDeleteAccountHandler(deps),
	}
}

func (l *Lifecycle) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	var result *RegisterResult
	err := l.register.Execute(ctx, RegisterAccountMessage{
		Name:      input.Name,
		Email:     input.Email,
		Password:  input.Password,
		UseHashid: l.deps.UseHashidIDs,
		OnResult:  func(r *RegisterResult) { result = r },
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (l *Lifecycle) VerifyEmail(ctx context.Context, token string) (*VerifyEmailResult, error) {
	var result *VerifyEmailResult
	err := l.verify.Execute(ctx, VerifyEmailMessage{
		Token:    token,
		OnResult: func(r *VerifyEmailResult) { result = r },
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (l *Lifecycle) ResendVerification(ctx context.Context, email string) (Notice, error) {
	var notice Notice
	err := l.resend.Execute(ctx, ResendVerificationMessage{
		Email:    email,
		OnResult: func(n Notice) { notice = n },
	})
	return notice, err
}

// ForgotPassword never reveals whether the email is registered
func (l *Lifecycle) ForgotPassword(ctx context.Context, email string) error {
	return l.forgot.Execute(ctx, InitializePasswordResetMessage{Email: email})
}

func (l *Lifecycle) ResetPassword(ctx context.Context, token, password string) error {
	return l.reset.Execute(ctx, FinalizePasswordResetMessage{Token: token, Password: password})
}

func (l *Lifecycle) ChangePassword(ctx context.Context, account *Account, current, next string) error {
	return l.change.Execute(ctx, ChangePasswordMessage{
		Account:         account,
		CurrentPassword: current,
		NewPassword:     next,
	})
}

// DeleteAccount removes the caller's own account
func (l *Lifecycle) DeleteAccount(ctx context.Context, account *Account) error {
	return l.remove.Execute(ctx, DeleteAccountMessage{Account: account})
}

// AdminDeleteAccount removes another account on behalf of actor
func (l *Lifecycle) AdminDeleteAccount(ctx context.Context, actor *Account, target uuid.UUID) error {
	return l.adminRemove.Execute(ctx, AdminDeleteAccountMessage{Actor: actor, TargetID: target})
}

// Profile returns the account with its provider linkages
func (l *Lifecycle) Profile(ctx context.Context, id uuid.UUID) (*Account, error) {
	ctx, cancel := context.WithTimeout(ctx, l.deps.Timeout)
	defer cancel()

	account, err := l.deps.Repo.Accounts().GetWithLinkages(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, DependencyError(err, "profile")
	}
	return account, nil
}

func (l *Lifecycle) UpdateProfile(ctx context.Context, id uuid.UUID, input ProfileInput) (*Account, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	if err := l.update(ctx, "update profile", func(ctx context.Context, tx bun.Tx) error {
		return l.deps.Repo.Accounts().UpdateProfileTx(ctx, tx, id, input.Update())
	}); err != nil {
		return nil, err
	}

	return l.Profile(ctx, id)
}

// AccountPage is one page of the admin account listing
type AccountPage struct {
	Accounts []*Account `json:"accounts"`
	Total    int        `json:"total"`
	Limit    int        `json:"limit"`
	Offset   int        `json:"offset"`
}

func (l *Lifecycle) ListAccounts(ctx context.Context, limit, offset int) (*AccountPage, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := context.WithTimeout(ctx, l.deps.Timeout)
	defer cancel()

	records, total, err := l.deps.Repo.Accounts().List(ctx, limit, offset)
	if err != nil {
		return nil, DependencyError(err, "list accounts")
	}

	return &AccountPage{
		Accounts: records,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	}, nil
}

// UpdateStatus changes the active flag and/or role of target
func (l *Lifecycle) UpdateStatus(ctx context.Context, target uuid.UUID, input StatusInput) (*Account, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	if err := l.update(ctx, "update status", func(ctx context.Context, tx bun.Tx) error {
		return l.deps.Repo.Accounts().UpdateStatusTx(ctx, tx, target, input.Update())
	}); err != nil {
		return nil, err
	}

	return l.Profile(ctx, target)
}

func (l *Lifecycle) update(ctx context.Context, operation string, fn func(ctx context.Context, tx bun.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, l.deps.Timeout)
	defer cancel()

	if err := l.deps.Repo.RunInTx(ctx, nil, fn); err != nil {
		if isNotFound(err) {
			return ErrAccountNotFound
		}
		return DependencyError(err, operation)
	}
	return nil
}

// tokenError hides whether a secret token was unknown or expired
func tokenError(err error, operation string) error {
	if IsKind(err, ErrTokenNotFound) || IsKind(err, ErrTokenExpired) {
		return ErrInvalidOrExpiredToken
	}
	return DependencyError(err, operation)
}

// UnlinkProvider removes the account's linkage to provider. An account
// without a password keeps its last linkage.
func (l *Lifecycle) UnlinkProvider(ctx context.Context, account *Account, provider string) error {
	if account == nil {
		return ErrUnauthenticated
	}

	ctx, cancel := context.WithTimeout(ctx, l.deps.Timeout)
	defer cancel()

	err := l.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current, err := l.deps.Repo.Accounts().GetByIDTx(ctx, tx, account.ID)
		if err != nil {
			return err
		}

		links, err := l.deps.Repo.Linkages().ListByAccountTx(ctx, tx, account.ID)
		if err != nil {
			return err
		}

		found := false
		for _, link := range links {
			if link.Provider == provider {
				found = true
				break
			}
		}

		if !found {
			return ErrLinkageNotFound
		}

		if !HasPassword(current) && len(links) == 1 {
			return ErrLastAuthMethod
		}

		return l.deps.Repo.Linkages().DeleteByAccountProviderTx(ctx, tx, account.ID, provider)
	})
	if err != nil {
		if IsKind(err, ErrLinkageNotFound) || IsKind(err, ErrLastAuthMethod) {
			return err
		}
		if isNotFound(err) {
			return ErrAccountNotFound
		}
		return DependencyError(err, "unlink provider")
	}

	l.deps.Logger.Info("provider unlinked", "account_id", account.ID, "provider", provider)
	return nil
}
