package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/curenova/go-auth/storage"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Accounts persists Account records
type Accounts interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	GetWithLinkages(ctx context.Context, id uuid.UUID) (*Account, error)
	List(ctx context.Context, limit, offset int) ([]*Account, int, error)

	CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error)
	TouchLastLoginTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) error
	MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
	ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
	UpdateProfileTx(ctx context.Context, tx bun.IDB, id uuid.UUID, update ProfileUpdate) error
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, update StatusUpdate) error
	DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

// ProfileUpdate carries the optional profile fields to change
type ProfileUpdate struct {
	Name      *string
	AvatarURL *string
}

// Empty reports whether the update changes nothing
func (u ProfileUpdate) Empty() bool {
	return u.Name == nil && u.AvatarURL == nil
}

// StatusUpdate carries the optional admin-controlled fields to change
type StatusUpdate struct {
	Active *bool
	Role   *AccountRole
}

// Empty reports whether the update changes nothing
func (u StatusUpdate) Empty() bool {
	return u.Active == nil && u.Role == nil
}

type accounts struct {
	repository.Repository[*Account]
	db  *bun.DB
	now func() time.Time
}

var _ Accounts = (*accounts)(nil)

// NewAccountsRepository returns the bun backed Accounts store
func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

func (a *accounts) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	record, err := a.Repository.GetByID(ctx, id.String())
	if err != nil {
		if isNotFound(err) {
			return nil, accountNotFound("id", id.String())
		}
		return nil, err
	}
	return record, nil
}

func (a *accounts) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error) {
	return a.getBy(ctx, tx, "id", id)
}

func (a *accounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *accounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	return a.getBy(ctx, tx, "email", NormalizeEmail(email))
}

func (a *accounts) getBy(ctx context.Context, tx bun.IDB, column string, value any) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, accountNotFound(column, value)
		}
		return nil, err
	}
	return record, nil
}

func (a *accounts) GetWithLinkages(ctx context.Context, id uuid.UUID) (*Account, error) {
	record := &Account{}
	err := a.db.NewSelect().
		Model(record).
		Relation("Linkages").
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, accountNotFound("id", id.String())
		}
		return nil, err
	}
	return record, nil
}

func (a *accounts) List(ctx context.Context, limit, offset int) ([]*Account, int, error) {
	records := make([]*Account, 0)
	total, err := a.db.NewSelect().
		Model(&records).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, 0, err
	}
	return records, total, nil
}

// CreateTx inserts record. A clash on the email constraint is reported as
// ErrDuplicateIdentity.
func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error) {
	prepareAccountDefaults(record, a.now())

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		if constraint, ok := storage.UniqueViolation(err); ok {
			return nil, duplicateIdentity(constraint, err)
		}
		return nil, err
	}

	return record, nil
}

func (a *accounts) TouchLastLoginTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) error {
	return a.update(ctx, tx, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("last_login_at = ?", at)
	})
}

func (a *accounts) MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	return a.update(ctx, tx, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("is_email_verified = ?", true)
	})
}

func (a *accounts) SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	return a.update(ctx, tx, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("password_hash = ?", passwordHash)
	})
}

// ResetPasswordTx replaces the password and marks the email verified, the
// reset link proved control of the inbox.
func (a *accounts) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	return a.update(ctx, tx, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.
			Set("password_hash = ?", passwordHash).
			Set("is_email_verified = ?", true)
	})
}

func (a *accounts) UpdateProfileTx(ctx context.Context, tx bun.IDB, id uuid.UUID, update ProfileUpdate) error {
	return a.update(ctx, tx, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		if update.Name != nil {
			q = q.Set("name = ?", *update.Name)
		}
		if update.AvatarURL != nil {
			q = q.Set("avatar_url = ?", nullString(*update.AvatarURL))
		}
		return q
	})
}

func (a *accounts) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, update StatusUpdate) error {
	return a.update(ctx, tx, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		if update.Active != nil {
			q = q.Set("is_active = ?", *update.Active)
		}
		if update.Role != nil {
			q = q.Set("account_role = ?", *update.Role)
		}
		return q
	})
}

func (a *accounts) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewDelete().
		Model((*Account)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res, accountNotFound("id", id.String()))
}

func (a *accounts) update(ctx context.Context, tx bun.IDB, id uuid.UUID, apply func(*bun.UpdateQuery) *bun.UpdateQuery) error {
	q := tx.NewUpdate().
		Model(&Account{}).
		Set("updated_at = ?", a.now()).
		Where("id = ?", id)

	res, err := apply(q).Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res, accountNotFound("id", id.String()))
}

func accountNotFound(column string, value any) error {
	return repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			column: value,
		})
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err)
}

func expectAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// IsNotFound reports whether err is a missing-record error from a store
func IsNotFound(err error) bool {
	return isNotFound(err)
}
