package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/curenova/go-auth/storage"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	DB() *bun.DB
	Accounts() Accounts
	Linkages() Linkages
	SecretTokens() SecretTokens
}

type mngr struct {
	db           *bun.DB
	accounts     Accounts
	linkages     Linkages
	secretTokens SecretTokens
}

// NewRepositoryManager wires every repository to db
func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:           db,
		accounts:     NewAccountsRepository(db),
		linkages:     NewLinkagesRepository(db),
		secretTokens: NewSecretTokensRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository db should be initialized")
	}

	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.linkages == nil {
		return errors.New("repository linkages should be initialized")
	}

	if m.secretTokens == nil {
		return errors.New("repository secretTokens should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) DB() *bun.DB {
	return m.db
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}

func (m mngr) Linkages() Linkages {
	return m.linkages
}

func (m mngr) SecretTokens() SecretTokens {
	return m.secretTokens
}

func duplicateIdentity(constraint storage.Constraint, source error) error {
	clone := ErrDuplicateIdentity.Clone()
	if clone == nil {
		return ErrDuplicateIdentity
	}
	clone.Source = source
	clone.WithMetadata(map[string]any{"constraint": string(constraint)})
	return clone
}

// DuplicateConstraint returns the constraint behind an ErrDuplicateIdentity
func DuplicateConstraint(err error) storage.Constraint {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil || richErr.TextCode != TextCodeDuplicateIdentity {
		return storage.ConstraintUnknown
	}
	if c, ok := richErr.Metadata["constraint"].(string); ok {
		return storage.Constraint(c)
	}
	return storage.ConstraintUnknown
}
