package auth_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/curenova/go-auth"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuardedApp(t *testing.T) (*fiber.App, *fixture) {
	t.Helper()

	f := newFixture(t)
	guard := auth.NewHTTPAuthenticator(f.auther)

	whoami := func(c router.Context) error {
		email := ""
		if account, ok := auth.CurrentAccount(c); ok {
			email = account.Email
		}
		return c.JSON(http.StatusOK, map[string]any{"email": email})
	}

	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		return fiber.New()
	})
	api := srv.Router().Group("/api")
	api.Get("/optional", whoami, guard.OptionalRoute())
	api.Get("/verified", whoami, guard.ProtectedRoute(), guard.RequireVerifiedEmail())

	return srv.WrappedRouter(), f
}

func TestOptionalRouteWithAndWithoutToken(t *testing.T) {
	app, f := newGuardedApp(t)
	f.seed(t, &auth.Account{Name: "Ada", Email: "ada@example.com", Active: true})

	status, body := call(t, app, http.MethodGet, "/api/optional", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "", body["email"])

	session, _, err := f.auther.Login(context.Background(), "ada@example.com", testPassword)
	require.NoError(t, err)

	status, body = call(t, app, http.MethodGet, "/api/optional", session.Token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ada@example.com", body["email"])
}

func TestRequireVerifiedEmail(t *testing.T) {
	app, f := newGuardedApp(t)
	f.seed(t, &auth.Account{Name: "Ada", Email: "ada@example.com", Active: true})
	f.seed(t, &auth.Account{Name: "Grace", Email: "grace@example.com", Active: true, EmailVerified: true})

	status, body := call(t, app, http.MethodGet, "/api/verified", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, auth.TextCodeUnauthenticated, body["code"])

	unverified, _, err := f.auther.Login(context.Background(), "ada@example.com", testPassword)
	require.NoError(t, err)

	status, body = call(t, app, http.MethodGet, "/api/verified", unverified.Token, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, auth.TextCodeEmailNotVerified, body["code"])

	verified, _, err := f.auther.Login(context.Background(), "grace@example.com", testPassword)
	require.NoError(t, err)

	status, body = call(t, app, http.MethodGet, "/api/verified", verified.Token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "grace@example.com", body["email"])
}
