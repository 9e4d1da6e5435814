package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Token    string `json:"token" example:"9f86d081884c7d659a2feaa0c55ad015" doc:"Reset password token"`
	Password string `json:"password" example:"N3wSecret" doc:"New password"`
}

func (e FinalizePasswordResetMessage) Type() string { return "account.password_reset_finalize" }

// FinalizePasswordResetHandler redeems a reset token and replaces the
// password. Sessions issued before the reset remain valid until they expire.
type FinalizePasswordResetHandler struct {
	deps LifecycleDeps
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(deps LifecycleDeps) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{deps: deps.withDefaults()}
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return DependencyError(ctx.Err(), "reset password")
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	input := ResetPasswordInput{Token: event.Token, Password: event.Password}
	if err := input.Validate(); err != nil {
		return err
	}

	hash, err := h.deps.Hasher.HashPassword(event.Password)
	if err != nil {
		if HasTextCode(err, TextCodeValidation) {
			return err
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	ctx, cancel := context.WithTimeout(ctx, h.deps.Timeout)
	defer cancel()

	accountID, err := h.deps.Secrets.Consume(ctx, event.Token, PurposeResetPassword)
	if err != nil {
		return tokenError(err, "reset password")
	}

	err = h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return h.deps.Repo.Accounts().ResetPasswordTx(ctx, tx, accountID, hash)
	})
	if err != nil {
		if isNotFound(err) {
			return ErrInvalidOrExpiredToken
		}
		return DependencyError(err, "reset password")
	}

	h.deps.Logger.Info("password reset", "account_id", accountID)

	return nil
}
