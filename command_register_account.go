package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterAccountMessage struct {
	Name      string                  `json:"name"`
	Email     string                  `json:"email"`
	Password  string                  `json:"password"`
	UseHashid bool                    `json:"-"`
	OnResult  func(r *RegisterResult) `json:"-"`
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

// RegisterResult is the created account and the outcome of the
// verification email
type RegisterResult struct {
	Account *Account `json:"account"`
	Notice
}

type RegisterAccountHandler struct {
	deps LifecycleDeps
}

// NewRegisterAccountHandler creates a handler with sane defaults.
func NewRegisterAccountHandler(deps LifecycleDeps) *RegisterAccountHandler {
	return &RegisterAccountHandler{deps: deps.withDefaults()}
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return DependencyError(ctx.Err(), "register")
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	input := RegisterInput{Name: event.Name, Email: event.Email, Password: event.Password}
	if err := input.Validate(); err != nil {
		return err
	}

	email := NormalizeEmail(event.Email)

	opCtx, cancel := context.WithTimeout(ctx, h.deps.Timeout)
	defer cancel()

	if _, err := h.deps.Repo.Accounts().GetByEmailTx(opCtx, h.deps.Repo.DB(), email); err == nil {
		return ErrEmailTaken
	} else if !isNotFound(err) {
		return DependencyError(err, "register")
	}

	hash, err := h.deps.Hasher.HashPassword(event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	account := &Account{
		Email:        email,
		Name:         event.Name,
		PasswordHash: hash,
		Active:       true,
		Role:         RoleUser,
	}

	if event.UseHashid {
		if id, err := hashid.NewUUID(email); err == nil {
			account.ID = id
		}
	}

	var raw string
	err = h.deps.Repo.RunInTx(opCtx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := h.deps.Repo.Accounts().CreateTx(ctx, tx, account)
		if err != nil {
			if IsKind(err, ErrDuplicateIdentity) {
				return ErrEmailTaken
			}
			return err
		}
		account = created

		raw, err = h.deps.Secrets.IssueTx(ctx, tx, account.ID, PurposeVerifyEmail, h.deps.VerificationTTL)
		return err
	})
	if err != nil {
		return DependencyError(err, "register")
	}

	h.deps.Logger.Info("account registered", "account_id", account.ID)

	sendErr := h.deps.Notifier.SendVerification(ctx, account, raw, h.deps.VerificationTTL)

	if event.OnResult != nil {
		event.OnResult(&RegisterResult{
			Account: account,
			Notice: noticeFrom(h.deps.Logger, sendErr,
				"account created but the verification email could not be sent",
				"account_id", account.ID),
		})
	}

	return nil
}
