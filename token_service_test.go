package auth_test

import (
	"testing"
	"time"

	"github.com/curenova/go-auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenServiceIssueAndValidate(t *testing.T) {
	c := newClock()
	ts := auth.NewTokenService([]byte(testSigningKey), time.Hour,
		auth.WithTokenClock(c.Now),
		auth.WithTokenIssuer("curenova"),
	)

	token, expiresAt, err := ts.Issue("acc-1")
	require.NoError(t, err)
	assert.Equal(t, c.Now().Add(time.Hour), expiresAt)

	accountID, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", accountID)

	claims, err := ts.ParseClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.Subject)
	assert.Equal(t, "curenova", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, c.Now().Unix(), claims.Issued().Unix())
	assert.Equal(t, expiresAt.Unix(), claims.Expires().Unix())
}

func TestTokenServiceDefaultsToSevenDays(t *testing.T) {
	c := newClock()
	ts := auth.NewTokenService([]byte(testSigningKey), 0, auth.WithTokenClock(c.Now))

	_, expiresAt, err := ts.Issue("acc-1")
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, expiresAt.Sub(c.Now()))
}

func TestTokenServiceExpiry(t *testing.T) {
	c := newClock()
	ts := auth.NewTokenService([]byte(testSigningKey), time.Hour, auth.WithTokenClock(c.Now))

	token, _, err := ts.Issue("acc-1")
	require.NoError(t, err)

	c.Advance(59 * time.Minute)
	_, err = ts.Validate(token)
	assert.NoError(t, err)

	c.Advance(2 * time.Minute)
	_, err = ts.Validate(token)
	assert.True(t, auth.IsKind(err, auth.ErrInvalidToken))
}

func TestTokenServiceRejectsForeignTokens(t *testing.T) {
	ts := auth.NewTokenService([]byte(testSigningKey), time.Hour, auth.WithTokenIssuer("curenova"))

	other := auth.NewTokenService([]byte("another-signing-key-another-key!"), time.Hour, auth.WithTokenIssuer("curenova"))
	wrongKey, _, err := other.Issue("acc-1")
	require.NoError(t, err)

	elsewhere := auth.NewTokenService([]byte(testSigningKey), time.Hour, auth.WithTokenIssuer("elsewhere"))
	wrongIssuer, _, err := elsewhere.Issue("acc-1")
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "acc-1",
		Issuer:    "curenova",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "acc-1",
		Issuer:  "curenova",
	}).SignedString([]byte(testSigningKey))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":        "",
		"malformed":    "abc.def.ghi",
		"wrong key":    wrongKey,
		"wrong issuer": wrongIssuer,
		"alg none":     unsigned,
		"no expiry":    noExpiry,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ts.Validate(token)
			assert.True(t, auth.IsKind(err, auth.ErrInvalidToken))
		})
	}
}

func TestTokenServiceRejectsEmptySubject(t *testing.T) {
	ts := auth.NewTokenService([]byte(testSigningKey), time.Hour)

	_, _, err := ts.Issue("")
	assert.True(t, auth.IsKind(err, auth.ErrInvalidToken))
}
