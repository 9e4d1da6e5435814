package auth_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/curenova/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

func TestLoginIssuesSession(t *testing.T) {
	f := newFixture(t)
	account := f.seed(t, &auth.Account{Name: "Ada", Email: "ada@example.com", Active: true})

	session, got, err := f.auther.Login(context.Background(), "  ADA@example.com ", testPassword)
	require.NoError(t, err)

	assert.Equal(t, account.ID, got.ID)
	assert.Equal(t, "Bearer", session.TokenType)
	assert.Equal(t, f.clock.Now().Add(auth.DefaultSessionTTL).Unix(), session.ExpiresAt.Unix())
	require.NotNil(t, got.LastLoginAt)
	assert.True(t, got.LastLoginAt.Equal(f.clock.Now()))

	accountID, err := f.tokens.Validate(session.Token)
	require.NoError(t, err)
	assert.Equal(t, account.ID.String(), accountID)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &auth.Account{Name: "Ada", Email: "ada@example.com", Active: true})
	f.seed(t, &auth.Account{Name: "Off", Email: "off@example.com", Active: false})
	seedAccount(t, f.repo, &auth.Account{Name: "Social", Email: "social@example.com", Active: true})

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{name: "unknown email", email: "nobody@example.com", password: testPassword},
		{name: "wrong password", email: "ada@example.com", password: "Wrong1234"},
		{name: "inactive account", email: "off@example.com", password: testPassword},
		{name: "account without password", email: "social@example.com", password: testPassword},
	}

	var messages []string
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			session, account, err := f.auther.Login(context.Background(), tc.email, tc.password)
			assert.Nil(t, session)
			assert.Nil(t, account)
			require.Error(t, err)
			assert.True(t, auth.IsKind(err, auth.ErrInvalidCredentials))
			messages = append(messages, err.Error())
		})
	}

	for _, msg := range messages {
		assert.Equal(t, messages[0], msg)
	}
}

type countingHasher struct {
	auth.BcryptHasher
	compares atomic.Int32
}

func (h *countingHasher) ComparePasswordAndHash(password, hash string) error {
	h.compares.Add(1)
	return h.BcryptHasher.ComparePasswordAndHash(password, hash)
}

func TestLoginFailuresAllCompareADigest(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &auth.Account{Name: "Ada", Email: "ada@example.com", Active: true})
	f.seed(t, &auth.Account{Name: "Off", Email: "off@example.com", Active: false})
	seedAccount(t, f.repo, &auth.Account{Name: "Social", Email: "social@example.com", Active: true})

	hasher := &countingHasher{BcryptHasher: auth.NewBcryptHasher(bcrypt.MinCost)}
	auther := auth.NewAuthenticator(f.repo, f.tokens, hasher)

	for _, email := range []string{
		"nobody@example.com",
		"ada@example.com",
		"off@example.com",
		"social@example.com",
	} {
		before := hasher.compares.Load()
		_, _, err := auther.Login(context.Background(), email, "Wrong1234")
		require.Error(t, err, email)
		assert.True(t, auth.IsKind(err, auth.ErrInvalidCredentials), email)
		assert.Equal(t, before+1, hasher.compares.Load(), email)
	}
}

func TestAuthenticateResolvesCurrentAccount(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &auth.Account{Name: "Ada", Email: "ada@example.com", Active: true})

	session, _, err := f.auther.Login(context.Background(), "ada@example.com", testPassword)
	require.NoError(t, err)

	account, err := f.auther.Authenticate(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", account.Email)
}

func TestAuthenticateSeesDeactivation(t *testing.T) {
	f := newFixture(t)
	account := f.seed(t, &auth.Account{Name: "Ada", Email: "ada@example.com", Active: true})

	session, _, err := f.auther.Login(context.Background(), "ada@example.com", testPassword)
	require.NoError(t, err)

	inactive := false
	err = f.repo.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		return f.repo.Accounts().UpdateStatusTx(ctx, tx, account.ID, auth.StatusUpdate{Active: &inactive})
	})
	require.NoError(t, err)

	_, err = f.auther.Authenticate(context.Background(), session.Token)
	assert.True(t, auth.IsKind(err, auth.ErrAccountInactive))
}

func TestAuthenticateDeletedAccount(t *testing.T) {
	f := newFixture(t)
	account := f.seed(t, &auth.Account{Name: "Ada", Email: "ada@example.com", Active: true})

	session, _, err := f.auther.Login(context.Background(), "ada@example.com", testPassword)
	require.NoError(t, err)

	require.NoError(t, f.lifecycle.DeleteAccount(context.Background(), account))

	_, err = f.auther.Authenticate(context.Background(), session.Token)
	assert.True(t, auth.IsKind(err, auth.ErrUnauthenticated))
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	f := newFixture(t)

	notUUID, _, err := f.tokens.Issue("not-a-uuid")
	require.NoError(t, err)

	expired, _, err := f.tokens.Issue("9b2c7d3e-2f55-4f0e-b0d9-8c2a2b6f1e11")
	require.NoError(t, err)
	f.clock.Advance(auth.DefaultSessionTTL + time.Second)

	for name, token := range map[string]string{
		"empty":   "",
		"garbage": "not.a.token",
		"subject": notUUID,
		"expired": expired,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.auther.Authenticate(context.Background(), token)
			assert.True(t, auth.IsKind(err, auth.ErrUnauthenticated))
		})
	}
}
