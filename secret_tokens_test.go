package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/curenova/go-auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSecrets(t *testing.T) (*auth.SecretTokenService, auth.RepositoryManager, *clock, *auth.Account) {
	t.Helper()

	repo := newRepo(t)
	c := newClock()
	account := seedAccount(t, repo, &auth.Account{Name: "Ada", Email: "ada@example.com", Active: true})
	return auth.NewSecretTokenService(repo).WithClock(c.Now), repo, c, account
}

func TestSecretTokenIsSingleUse(t *testing.T) {
	secrets, _, _, account := newSecrets(t)
	ctx := context.Background()

	raw, err := secrets.Issue(ctx, account.ID, auth.PurposeVerifyEmail, time.Hour)
	require.NoError(t, err)
	assert.Len(t, raw, 64)

	accountID, err := secrets.Consume(ctx, raw, auth.PurposeVerifyEmail)
	require.NoError(t, err)
	assert.Equal(t, account.ID, accountID)

	_, err = secrets.Consume(ctx, raw, auth.PurposeVerifyEmail)
	assert.True(t, auth.IsKind(err, auth.ErrTokenNotFound))
}

func TestSecretTokenStoresOnlyHash(t *testing.T) {
	secrets, repo, _, account := newSecrets(t)
	ctx := context.Background()

	raw, err := secrets.Issue(ctx, account.ID, auth.PurposeResetPassword, time.Hour)
	require.NoError(t, err)

	_, err = repo.SecretTokens().GetByHashTx(ctx, repo.DB(), raw, auth.PurposeResetPassword)
	assert.True(t, auth.IsKind(err, auth.ErrTokenNotFound))

	record, err := repo.SecretTokens().GetByHashTx(ctx, repo.DB(), auth.HashSecret(raw), auth.PurposeResetPassword)
	require.NoError(t, err)
	assert.Equal(t, account.ID, record.AccountID)
}

func TestSecretTokenIsScopedToPurpose(t *testing.T) {
	secrets, _, _, account := newSecrets(t)
	ctx := context.Background()

	raw, err := secrets.Issue(ctx, account.ID, auth.PurposeVerifyEmail, time.Hour)
	require.NoError(t, err)

	_, err = secrets.Consume(ctx, raw, auth.PurposeResetPassword)
	assert.True(t, auth.IsKind(err, auth.ErrTokenNotFound))

	_, err = secrets.Consume(ctx, raw, auth.PurposeVerifyEmail)
	assert.NoError(t, err)
}

func TestSecretTokenExpiry(t *testing.T) {
	secrets, _, c, account := newSecrets(t)
	ctx := context.Background()

	early, err := secrets.Issue(ctx, account.ID, auth.PurposeResetPassword, time.Hour)
	require.NoError(t, err)

	c.Advance(59 * time.Minute)

	owner, err := secrets.Consume(ctx, early, auth.PurposeResetPassword)
	require.NoError(t, err)
	assert.Equal(t, account.ID, owner)

	raw, err := secrets.Issue(ctx, account.ID, auth.PurposeResetPassword, time.Hour)
	require.NoError(t, err)

	c.Advance(61 * time.Minute)

	_, err = secrets.Consume(ctx, raw, auth.PurposeResetPassword)
	assert.True(t, auth.IsKind(err, auth.ErrTokenExpired))

	_, err = secrets.Consume(ctx, raw, auth.PurposeResetPassword)
	assert.True(t, auth.IsKind(err, auth.ErrTokenNotFound))
}

func TestSecretTokenReissueReplacesPrevious(t *testing.T) {
	secrets, _, _, account := newSecrets(t)
	ctx := context.Background()

	first, err := secrets.Issue(ctx, account.ID, auth.PurposeVerifyEmail, time.Hour)
	require.NoError(t, err)

	reset, err := secrets.Issue(ctx, account.ID, auth.PurposeResetPassword, time.Hour)
	require.NoError(t, err)

	second, err := secrets.Issue(ctx, account.ID, auth.PurposeVerifyEmail, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = secrets.Consume(ctx, first, auth.PurposeVerifyEmail)
	assert.True(t, auth.IsKind(err, auth.ErrTokenNotFound))

	_, err = secrets.Consume(ctx, second, auth.PurposeVerifyEmail)
	assert.NoError(t, err)

	// other purposes are untouched
	_, err = secrets.Consume(ctx, reset, auth.PurposeResetPassword)
	assert.NoError(t, err)
}

func TestSecretTokenConcurrentConsume(t *testing.T) {
	secrets, _, _, account := newSecrets(t)
	ctx := context.Background()

	raw, err := secrets.Issue(ctx, account.ID, auth.PurposeResetPassword, time.Hour)
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan uuid.UUID, workers)
	failures := make(chan error, workers)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := secrets.Consume(ctx, raw, auth.PurposeResetPassword)
			if err != nil {
				failures <- err
				return
			}
			results <- id
		}()
	}
	wg.Wait()
	close(results)
	close(failures)

	assert.Len(t, results, 1)
	for err := range failures {
		assert.True(t, auth.IsKind(err, auth.ErrTokenNotFound), "unexpected error: %v", err)
	}
}

func TestSecretTokenEmptyValue(t *testing.T) {
	secrets, _, _, _ := newSecrets(t)

	_, err := secrets.Consume(context.Background(), "", auth.PurposeVerifyEmail)
	assert.True(t, auth.IsKind(err, auth.ErrTokenNotFound))
}
