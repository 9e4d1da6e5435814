package auth

import (
	"context"
)

type InitializePasswordResetMessage struct {
	Email string `json:"email" example:"ann@example.com" doc:"Account email."`
}

func (p InitializePasswordResetMessage) Type() string { return "account.password_reset" }

// InitializePasswordResetHandler issues a reset token and emails it. The
// outcome is the same whether or not the email is registered.
type InitializePasswordResetHandler struct {
	deps LifecycleDeps
}

func NewInitializePasswordResetHandler(deps LifecycleDeps) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{deps: deps.withDefaults()}
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return DependencyError(ctx.Err(), "forgot password")
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	if err := (EmailInput{Email: event.Email}).Validate(); err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, h.deps.Timeout)
	defer cancel()

	account, err := h.deps.Repo.Accounts().GetByEmailTx(opCtx, h.deps.Repo.DB(), event.Email)
	if err != nil {
		if isNotFound(err) {
			h.deps.Logger.Debug("password reset requested for unknown email")
			return nil
		}
		return DependencyError(err, "forgot password")
	}

	raw, err := h.deps.Secrets.Issue(opCtx, account.ID, PurposeResetPassword, h.deps.PasswordResetTTL)
	if err != nil {
		return DependencyError(err, "forgot password")
	}

	if err := h.deps.Notifier.SendPasswordReset(ctx, account, raw, h.deps.PasswordResetTTL); err != nil {
		h.deps.Logger.Error("failed to send password reset email", "account_id", account.ID, "error", err)
	}

	return nil
}
