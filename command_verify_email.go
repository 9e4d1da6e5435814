package auth

import (
	"context"

	"github.com/uptrace/bun"
)

type VerifyEmailMessage struct {
	Token    string                     `json:"token"`
	OnResult func(r *VerifyEmailResult) `json:"-"`
}

func (e VerifyEmailMessage) Type() string { return "account.verify_email" }

// VerifyEmailResult is the verified account and the outcome of the
// welcome email
type VerifyEmailResult struct {
	Account *Account `json:"account"`
	Notice
}

type VerifyEmailHandler struct {
	deps LifecycleDeps
}

func NewVerifyEmailHandler(deps LifecycleDeps) *VerifyEmailHandler {
	return &VerifyEmailHandler{deps: deps.withDefaults()}
}

func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) error {
	select {
	case <-ctx.Done():
		return DependencyError(ctx.Err(), "verify email")
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) error {
	if event.Token == "" {
		return ErrInvalidOrExpiredToken
	}

	opCtx, cancel := context.WithTimeout(ctx, h.deps.Timeout)
	defer cancel()

	accountID, err := h.deps.Secrets.Consume(opCtx, event.Token, PurposeVerifyEmail)
	if err != nil {
		return tokenError(err, "verify email")
	}

	var account *Account
	err = h.deps.Repo.RunInTx(opCtx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := h.deps.Repo.Accounts().MarkEmailVerifiedTx(ctx, tx, accountID); err != nil {
			return err
		}
		account, err = h.deps.Repo.Accounts().GetByIDTx(ctx, tx, accountID)
		return err
	})
	if err != nil {
		// the token was redeemed but its account is gone
		if isNotFound(err) {
			return ErrInvalidOrExpiredToken
		}
		return DependencyError(err, "verify email")
	}

	h.deps.Logger.Info("email verified", "account_id", account.ID)

	sendErr := h.deps.Notifier.SendWelcome(ctx, account)

	if event.OnResult != nil {
		event.OnResult(&VerifyEmailResult{
			Account: account,
			Notice: noticeFrom(h.deps.Logger, sendErr,
				"email verified but the welcome email could not be sent",
				"account_id", account.ID),
		})
	}

	return nil
}

type ResendVerificationMessage struct {
	Email    string         `json:"email"`
	OnResult func(n Notice) `json:"-"`
}

func (e ResendVerificationMessage) Type() string { return "account.resend_verification" }

type ResendVerificationHandler struct {
	deps LifecycleDeps
}

func NewResendVerificationHandler(deps LifecycleDeps) *ResendVerificationHandler {
	return &ResendVerificationHandler{deps: deps.withDefaults()}
}

func (h *ResendVerificationHandler) Execute(ctx context.Context, event ResendVerificationMessage) error {
	select {
	case <-ctx.Done():
		return DependencyError(ctx.Err(), "resend verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResendVerificationHandler) execute(ctx context.Context, event ResendVerificationMessage) error {
	if err := (EmailInput{Email: event.Email}).Validate(); err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, h.deps.Timeout)
	defer cancel()

	account, err := h.deps.Repo.Accounts().GetByEmailTx(opCtx, h.deps.Repo.DB(), event.Email)
	if err != nil {
		if isNotFound(err) {
			return ErrAccountNotFound
		}
		return DependencyError(err, "resend verification")
	}

	if account.EmailVerified {
		return ErrAlreadyVerified
	}

	raw, err := h.deps.Secrets.Issue(opCtx, account.ID, PurposeVerifyEmail, h.deps.VerificationTTL)
	if err != nil {
		return DependencyError(err, "resend verification")
	}

	sendErr := h.deps.Notifier.SendVerification(ctx, account, raw, h.deps.VerificationTTL)

	if event.OnResult != nil {
		event.OnResult(noticeFrom(h.deps.Logger, sendErr,
			"verification token reissued but the email could not be sent",
			"account_id", account.ID))
	}

	return nil
}
