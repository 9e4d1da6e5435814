package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

// AccountLocalsKey is the router Locals key holding the authenticated account
const AccountLocalsKey = "account"

var accountCtxKey = &contextKey{"account"}

type contextKey struct {
	name string
}

// WithContext sets the Account in the given context
func WithContext(r context.Context, account *Account) context.Context {
	return context.WithValue(r, accountCtxKey, account)
}

// FromContext finds the account from the context.
func FromContext(ctx context.Context) (*Account, bool) {
	raw, ok := ctx.Value(accountCtxKey).(*Account)
	return raw, ok && raw != nil
}

// CurrentAccount returns the account set by the bearer middleware
func CurrentAccount(c router.Context) (*Account, bool) {
	raw, ok := c.Locals(AccountLocalsKey).(*Account)
	return raw, ok && raw != nil
}
