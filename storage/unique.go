package storage

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Constraint names the unique constraints of the schema
type Constraint string

const (
	ConstraintUnknown                Constraint = ""
	ConstraintAccountEmail           Constraint = "uq_accounts_email"
	ConstraintLinkageSubject         Constraint = "uq_account_linkages_subject"
	ConstraintLinkageAccountProvider Constraint = "uq_account_linkages_account_provider"
	ConstraintTokenHash              Constraint = "uq_secret_tokens_hash"
	ConstraintTokenAccountPurpose    Constraint = "uq_secret_tokens_account_purpose"
)

const pgUniqueViolation = "23505"

// SQLite reports the columns, not the constraint name
var sqliteColumns = []struct {
	columns    string
	constraint Constraint
}{
	{"accounts.email", ConstraintAccountEmail},
	{"account_linkages.provider, account_linkages.provider_subject", ConstraintLinkageSubject},
	{"account_linkages.account_id, account_linkages.provider", ConstraintLinkageAccountProvider},
	{"secret_tokens.token_hash", ConstraintTokenHash},
	{"secret_tokens.account_id, secret_tokens.purpose", ConstraintTokenAccountPurpose},
}

// UniqueViolation reports whether err is a unique-constraint violation and,
// when it can tell, which constraint fired.
func UniqueViolation(err error) (Constraint, bool) {
	if err == nil {
		return ConstraintUnknown, false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return ConstraintUnknown, false
		}
		return Constraint(pgErr.ConstraintName), true
	}

	message := strings.ToLower(err.Error())
	if !strings.Contains(message, "unique constraint failed") {
		return ConstraintUnknown, false
	}

	for _, c := range sqliteColumns {
		if strings.Contains(message, c.columns) {
			return c.constraint, true
		}
	}

	return ConstraintUnknown, true
}

// IsUniqueViolation reports whether err is any unique-constraint violation
func IsUniqueViolation(err error) bool {
	_, ok := UniqueViolation(err)
	return ok
}
