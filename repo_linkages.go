package auth

import (
	"context"
	"time"

	"github.com/curenova/go-auth/storage"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Linkages persists provider linkages
type Linkages interface {
	GetBySubjectTx(ctx context.Context, tx bun.IDB, provider, subject string) (*AccountLinkage, error)
	GetByAccountProviderTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, provider string) (*AccountLinkage, error)
	ListByAccountTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) ([]*AccountLinkage, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *AccountLinkage) (*AccountLinkage, error)
	DeleteByAccountProviderTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, provider string) error
	DeleteByAccountTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) error
}

type linkages struct {
	db  *bun.DB
	now func() time.Time
}

var _ Linkages = (*linkages)(nil)

// NewLinkagesRepository returns the bun backed Linkages store
func NewLinkagesRepository(db *bun.DB) Linkages {
	return &linkages{db: db, now: time.Now}
}

func (l *linkages) GetBySubjectTx(ctx context.Context, tx bun.IDB, provider, subject string) (*AccountLinkage, error) {
	record := &AccountLinkage{}
	err := tx.NewSelect().
		Model(record).
		Where("provider = ?", provider).
		Where("provider_subject = ?", subject).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, linkageNotFound(provider, subject)
		}
		return nil, err
	}
	return record, nil
}

func (l *linkages) GetByAccountProviderTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, provider string) (*AccountLinkage, error) {
	record := &AccountLinkage{}
	err := tx.NewSelect().
		Model(record).
		Where("account_id = ?", accountID).
		Where("provider = ?", provider).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, linkageNotFound(provider, accountID.String())
		}
		return nil, err
	}
	return record, nil
}

func (l *linkages) ListByAccountTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) ([]*AccountLinkage, error) {
	records := make([]*AccountLinkage, 0)
	err := tx.NewSelect().
		Model(&records).
		Where("account_id = ?", accountID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	return records, nil
}

// CreateTx inserts record. Clashes on either linkage constraint are
// reported as ErrDuplicateIdentity.
func (l *linkages) CreateTx(ctx context.Context, tx bun.IDB, record *AccountLinkage) (*AccountLinkage, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = l.now()
	}
	record.Email = NormalizeEmail(record.Email)

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		if constraint, ok := storage.UniqueViolation(err); ok {
			return nil, duplicateIdentity(constraint, err)
		}
		return nil, err
	}

	return record, nil
}

func (l *linkages) DeleteByAccountProviderTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, provider string) error {
	res, err := tx.NewDelete().
		Model((*AccountLinkage)(nil)).
		Where("account_id = ?", accountID).
		Where("provider = ?", provider).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res, linkageNotFound(provider, accountID.String()))
}

func (l *linkages) DeleteByAccountTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*AccountLinkage)(nil)).
		Where("account_id = ?", accountID).
		Exec(ctx)
	return err
}

func linkageNotFound(provider, key string) error {
	return repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"provider": provider,
			"key":      key,
		})
}
