package auth

import (
	"context"

	"github.com/curenova/go-auth/storage"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SecretTokens persists hashed secret tokens
type SecretTokens interface {
	GetByHashTx(ctx context.Context, tx bun.IDB, hash string, purpose TokenPurpose) (*SecretToken, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *SecretToken) (*SecretToken, error)
	// DeleteByIDTx reports whether a row was removed
	DeleteByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (bool, error)
	DeleteByAccountPurposeTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, purpose TokenPurpose) error
	DeleteByAccountTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) error
}

type secretTokens struct {
	db *bun.DB
}

var _ SecretTokens = (*secretTokens)(nil)

// NewSecretTokensRepository returns the bun backed SecretTokens store
func NewSecretTokensRepository(db *bun.DB) SecretTokens {
	return &secretTokens{db: db}
}

func (s *secretTokens) GetByHashTx(ctx context.Context, tx bun.IDB, hash string, purpose TokenPurpose) (*SecretToken, error) {
	record := &SecretToken{}
	err := tx.NewSelect().
		Model(record).
		Where("token_hash = ?", hash).
		Where("purpose = ?", purpose).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return record, nil
}

func (s *secretTokens) CreateTx(ctx context.Context, tx bun.IDB, record *SecretToken) (*SecretToken, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		if constraint, ok := storage.UniqueViolation(err); ok {
			return nil, duplicateIdentity(constraint, err)
		}
		return nil, err
	}

	return record, nil
}

func (s *secretTokens) DeleteByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (bool, error) {
	res, err := tx.NewDelete().
		Model((*SecretToken)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (s *secretTokens) DeleteByAccountPurposeTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, purpose TokenPurpose) error {
	_, err := tx.NewDelete().
		Model((*SecretToken)(nil)).
		Where("account_id = ?", accountID).
		Where("purpose = ?", purpose).
		Exec(ctx)
	return err
}

func (s *secretTokens) DeleteByAccountTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*SecretToken)(nil)).
		Where("account_id = ?", accountID).
		Exec(ctx)
	return err
}
