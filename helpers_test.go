package auth_test

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/curenova/go-auth"
	"github.com/curenova/go-auth/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSigningKey = "0123456789abcdef0123456789abcdef"
	testPassword   = "Secret123"
	testFrontend   = "https://app.example.com"
)

var tokenParam = regexp.MustCompile(`token=([0-9a-f]+)`)

func newRepo(t *testing.T) auth.RepositoryManager {
	t.Helper()

	db, err := storage.OpenAndMigrate(context.Background(), storage.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return auth.NewRepositoryManager(db)
}

func seedAccount(t *testing.T, repo auth.RepositoryManager, record *auth.Account) *auth.Account {
	t.Helper()

	var created *auth.Account
	err := repo.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		created, err = repo.Accounts().CreateTx(ctx, tx, record)
		return err
	})
	require.NoError(t, err)
	return created
}

func seedLinkage(t *testing.T, repo auth.RepositoryManager, accountID uuid.UUID, provider, subject string) {
	t.Helper()

	err := repo.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := repo.Linkages().CreateTx(ctx, tx, &auth.AccountLinkage{
			AccountID:       accountID,
			Provider:        provider,
			ProviderSubject: subject,
		})
		return err
	})
	require.NoError(t, err)
}

// clock is a settable time source shared by the services under test
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	repo      auth.RepositoryManager
	hasher    auth.BcryptHasher
	tokens    *auth.TokenServiceImpl
	mailer    *auth.RecordingMailer
	clock     *clock
	lifecycle *auth.Lifecycle
	auther    *auth.Auther
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repo:   newRepo(t),
		hasher: auth.NewBcryptHasher(bcrypt.MinCost),
		mailer: &auth.RecordingMailer{},
		clock:  newClock(),
	}

	f.tokens = auth.NewTokenService([]byte(testSigningKey), auth.DefaultSessionTTL, auth.WithTokenClock(f.clock.Now))

	f.lifecycle = auth.NewLifecycle(auth.LifecycleDeps{
		Repo:     f.repo,
		Hasher:   f.hasher,
		Secrets:  auth.NewSecretTokenService(f.repo).WithClock(f.clock.Now),
		Notifier: auth.NewNotifier(f.mailer, testFrontend),
	})

	f.auther = auth.NewAuthenticator(f.repo, f.tokens, f.hasher).WithClock(f.clock.Now)

	return f
}

// register creates an account through the lifecycle and returns it with
// the raw verification token from the email
func (f *fixture) register(t *testing.T, name, email string) (*auth.Account, string) {
	t.Helper()

	before := len(f.mailer.Sent())
	result, err := f.lifecycle.Register(context.Background(), auth.RegisterInput{
		Name:     name,
		Email:    email,
		Password: testPassword,
	})
	require.NoError(t, err)

	sent := f.mailer.Sent()
	require.Len(t, sent, before+1)
	return result.Account, lastToken(t, f.mailer)
}

// seed inserts an account with testPassword directly through the store
func (f *fixture) seed(t *testing.T, record *auth.Account) *auth.Account {
	t.Helper()

	if record.PasswordHash == "" {
		hash, err := f.hasher.HashPassword(testPassword)
		require.NoError(t, err)
		record.PasswordHash = hash
	}
	return seedAccount(t, f.repo, record)
}

func lastToken(t *testing.T, mailer *auth.RecordingMailer) string {
	t.Helper()

	sent := mailer.Sent()
	require.NotEmpty(t, sent)
	match := tokenParam.FindStringSubmatch(sent[len(sent)-1].Text)
	require.Len(t, match, 2, "no token link in %q", sent[len(sent)-1].Text)
	return match[1]
}
