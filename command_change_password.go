package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type ChangePasswordMessage struct {
	Account         *Account `json:"-"`
	CurrentPassword string   `json:"current_password"`
	NewPassword     string   `json:"new_password"`
}

func (e ChangePasswordMessage) Type() string { return "account.change_password" }

type ChangePasswordHandler struct {
	deps LifecycleDeps
}

func NewChangePasswordHandler(deps LifecycleDeps) *ChangePasswordHandler {
	return &ChangePasswordHandler{deps: deps.withDefaults()}
}

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return DependencyError(ctx.Err(), "change password")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	if event.Account == nil {
		return ErrUnauthenticated
	}

	input := ChangePasswordInput{CurrentPassword: event.CurrentPassword, NewPassword: event.NewPassword}
	if err := input.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, h.deps.Timeout)
	defer cancel()

	// reload so a stale caller copy cannot be used to skip the check
	account, err := h.deps.Repo.Accounts().GetByIDTx(ctx, h.deps.Repo.DB(), event.Account.ID)
	if err != nil {
		if isNotFound(err) {
			return ErrAccountNotFound
		}
		return DependencyError(err, "change password")
	}

	if !VerifyPassword(h.deps.Hasher, account, event.CurrentPassword) {
		return ErrInvalidCredentials
	}

	hash, err := h.deps.Hasher.HashPassword(event.NewPassword)
	if err != nil {
		if HasTextCode(err, TextCodeValidation) {
			return err
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	err = h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return h.deps.Repo.Accounts().SetPasswordTx(ctx, tx, account.ID, hash)
	})
	if err != nil {
		return DependencyError(err, "change password")
	}

	h.deps.Logger.Info("password changed", "account_id", account.ID)

	return nil
}
