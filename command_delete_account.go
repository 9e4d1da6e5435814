package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type DeleteAccountMessage struct {
	Account *Account `json:"-"`
}

func (e DeleteAccountMessage) Type() string { return "account.delete" }

// DeleteAccountHandler removes the caller's own account together with its
// linkages and outstanding secret tokens.
type DeleteAccountHandler struct {
	deps LifecycleDeps
}

func NewDeleteAccountHandler(deps LifecycleDeps) *DeleteAccountHandler {
	return &DeleteAccountHandler{deps: deps.withDefaults()}
}

func (h *DeleteAccountHandler) Execute(ctx context.Context, event DeleteAccountMessage) error {
	select {
	case <-ctx.Done():
		return DependencyError(ctx.Err(), "delete account")
	default:
		return h.execute(ctx, event)
	}
}

func (h *DeleteAccountHandler) execute(ctx context.Context, event DeleteAccountMessage) error {
	if event.Account == nil {
		return ErrUnauthenticated
	}

	ctx, cancel := context.WithTimeout(ctx, h.deps.Timeout)
	defer cancel()

	if err := deleteAccount(ctx, h.deps.Repo, event.Account.ID); err != nil {
		return err
	}

	h.deps.Logger.Info("account deleted", "account_id", event.Account.ID)
	return nil
}

type AdminDeleteAccountMessage struct {
	Actor    *Account  `json:"-"`
	TargetID uuid.UUID `json:"id"`
}

func (e AdminDeleteAccountMessage) Type() string { return "account.admin_delete" }

// AdminDeleteAccountHandler removes any account except the actor's own
type AdminDeleteAccountHandler struct {
	deps LifecycleDeps
}

func NewAdminDeleteAccountHandler(deps LifecycleDeps) *AdminDeleteAccountHandler {
	return &AdminDeleteAccountHandler{deps: deps.withDefaults()}
}

func (h *AdminDeleteAccountHandler) Execute(ctx context.Context, event AdminDeleteAccountMessage) error {
	select {
	case <-ctx.Done():
		return DependencyError(ctx.Err(), "admin delete account")
	default:
		return h.execute(ctx, event)
	}
}

func (h *AdminDeleteAccountHandler) execute(ctx context.Context, event AdminDeleteAccountMessage) error {
	if event.Actor == nil {
		return ErrUnauthenticated
	}

	if !IsAdmin(event.Actor) {
		return ErrForbidden
	}

	if event.Actor.ID == event.TargetID {
		return ErrCannotDeleteSelf
	}

	ctx, cancel := context.WithTimeout(ctx, h.deps.Timeout)
	defer cancel()

	if err := deleteAccount(ctx, h.deps.Repo, event.TargetID); err != nil {
		return err
	}

	h.deps.Logger.Info("account deleted by admin", "account_id", event.TargetID, "actor_id", event.Actor.ID)
	return nil
}

func deleteAccount(ctx context.Context, repo RepositoryManager, id uuid.UUID) error {
	err := repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := repo.SecretTokens().DeleteByAccountTx(ctx, tx, id); err != nil {
			return err
		}
		if err := repo.Linkages().DeleteByAccountTx(ctx, tx, id); err != nil {
			return err
		}
		return repo.Accounts().DeleteTx(ctx, tx, id)
	})
	if err != nil {
		if isNotFound(err) {
			return ErrAccountNotFound
		}
		return DependencyError(err, "delete account")
	}
	return nil
}
