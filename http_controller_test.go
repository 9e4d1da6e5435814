package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/curenova/go-auth"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccountApp(t *testing.T) (*fiber.App, *fixture) {
	t.Helper()

	f := newFixture(t)
	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		return fiber.New()
	})
	auth.RegisterAccountRoutes(srv.Router().Group("/api"), auth.NewAccountController(f.lifecycle, f.auther))
	return srv.WrappedRouter(), f
}

func call(t *testing.T, app *fiber.App, method, target, token string, payload any) (int, map[string]any) {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func login(t *testing.T, app *fiber.App, email string) string {
	t.Helper()

	status, body := call(t, app, http.MethodPost, "/api/auth/login", "", fiber.Map{
		"email":    email,
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, status, body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestHTTPRegister(t *testing.T) {
	app, f := newAccountApp(t)

	status, body := call(t, app, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"name":     "Ada",
		"email":    "ada@example.com",
		"password": testPassword,
	})
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, true, body["email_sent"])

	account, _ := body["account"].(map[string]any)
	assert.Equal(t, "ada@example.com", account["email"])
	assert.Equal(t, false, account["is_email_verified"])
	assert.NotContains(t, account, "password_hash")
	assert.Len(t, f.mailer.Sent(), 1)

	status, body = call(t, app, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"name":     "Ada",
		"email":    "ADA@example.com",
		"password": testPassword,
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, auth.TextCodeEmailTaken, body["code"])
}

func TestHTTPRegisterValidation(t *testing.T) {
	app, _ := newAccountApp(t)

	status, body := call(t, app, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"name":  "Ada",
		"email": "nope",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, auth.TextCodeValidation, body["code"])

	details, _ := body["details"].(map[string]any)
	fields, _ := details["fields"].(map[string]any)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
}

func TestHTTPRegisterDegradedEmail(t *testing.T) {
	app, f := newAccountApp(t)
	f.mailer.SetErr(assert.AnError)

	status, body := call(t, app, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"name":     "Ada",
		"email":    "ada@example.com",
		"password": testPassword,
	})
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, false, body["email_sent"])
	assert.NotEmpty(t, body["warning"])
}

func TestHTTPLoginAndMe(t *testing.T) {
	app, f := newAccountApp(t)
	f.seed(t, &auth.Account{Name: "Ada", Email: "ada@example.com", Active: true})

	status, body := call(t, app, http.MethodPost, "/api/auth/login", "", fiber.Map{
		"email":    "ada@example.com",
		"password": "Wrong1234",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, auth.TextCodeInvalidCredentials, body["code"])

	token := login(t, app, "ada@example.com")

	status, body = call(t, app, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	account, _ := body["account"].(map[string]any)
	assert.Equal(t, "ada@example.com", account["email"])

	status, body = call(t, app, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, auth.TextCodeUnauthenticated, body["code"])

	status, body = call(t, app, http.MethodGet, "/api/auth/me", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, auth.TextCodeUnauthenticated, body["code"])
}

func TestHTTPDeactivatedAccountIsRejected(t *testing.T) {
	app, f := newAccountApp(t)
	account := f.seed(t, &auth.Account{Name: "Ada", Email: "ada@example.com", Active: true})
	token := login(t, app, "ada@example.com")

	inactive := false
	_, err := f.lifecycle.UpdateStatus(context.Background(), account.ID, auth.StatusInput{IsActive: &inactive})
	require.NoError(t, err)

	status, body := call(t, app, http.MethodGet, "/api/user/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, auth.TextCodeAccountInactive, body["code"])
}

func TestHTTPVerifyAndReset(t *testing.T) {
	app, f := newAccountApp(t)
	_, token := f.register(t, "Ada", "ada@example.com")

	status, body := call(t, app, http.MethodPost, "/api/auth/verify-email", "", fiber.Map{"token": token})
	require.Equal(t, http.StatusOK, status)
	account, _ := body["account"].(map[string]any)
	assert.Equal(t, true, account["is_email_verified"])

	status, body = call(t, app, http.MethodPost, "/api/auth/verify-email", "", fiber.Map{"token": token})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, auth.TextCodeInvalidOrExpiredToken, body["code"])

	status, _ = call(t, app, http.MethodPost, "/api/auth/forgot-password", "", fiber.Map{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusOK, status)

	status, _ = call(t, app, http.MethodPost, "/api/auth/forgot-password", "", fiber.Map{"email": "ada@example.com"})
	require.Equal(t, http.StatusOK, status)

	status, _ = call(t, app, http.MethodPost, "/api/auth/reset-password", "", fiber.Map{
		"token":    lastToken(t, f.mailer),
		"password": "N3wSecret",
	})
	assert.Equal(t, http.StatusOK, status)

	status, _ = call(t, app, http.MethodPost, "/api/auth/login", "", fiber.Map{
		"email":    "ada@example.com",
		"password": "N3wSecret",
	})
	assert.Equal(t, http.StatusOK, status)
}

func TestHTTPProfileAndPassword(t *testing.T) {
	app, f := newAccountApp(t)
	f.seed(t, &auth.Account{Name: "Ada", Email: "ada@example.com", Active: true})
	token := login(t, app, "ada@example.com")

	status, body := call(t, app, http.MethodPut, "/api/user/profile", token, fiber.Map{"name": "Ada Lovelace"})
	require.Equal(t, http.StatusOK, status)
	account, _ := body["account"].(map[string]any)
	assert.Equal(t, "Ada Lovelace", account["name"])

	status, body = call(t, app, http.MethodPut, "/api/user/change-password", token, fiber.Map{
		"current_password": "Wrong1234",
		"new_password":     "N3wSecret",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, auth.TextCodeInvalidCredentials, body["code"])

	status, _ = call(t, app, http.MethodPut, "/api/user/change-password", token, fiber.Map{
		"current_password": testPassword,
		"new_password":     "N3wSecret",
	})
	assert.Equal(t, http.StatusOK, status)

	status, _ = call(t, app, http.MethodDelete, "/api/user/account", token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = call(t, app, http.MethodGet, "/api/user/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, auth.TextCodeUnauthenticated, body["code"])
}

func TestHTTPAdminRoutes(t *testing.T) {
	app, f := newAccountApp(t)
	admin := f.seed(t, &auth.Account{Name: "Root", Email: "root@example.com", Active: true, Role: auth.RoleAdmin})
	user := f.seed(t, &auth.Account{Name: "Ada", Email: "ada@example.com", Active: true})

	adminToken := login(t, app, "root@example.com")
	userToken := login(t, app, "ada@example.com")

	status, body := call(t, app, http.MethodGet, "/api/user/all", userToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, auth.TextCodeForbidden, body["code"])

	status, body = call(t, app, http.MethodGet, "/api/user/all", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["total"])

	status, body = call(t, app, http.MethodDelete, "/api/user/"+admin.ID.String(), adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, auth.TextCodeCannotDeleteSelf, body["code"])

	status, _ = call(t, app, http.MethodPut, "/api/user/"+user.ID.String()+"/status", adminToken, fiber.Map{"role": "admin"})
	assert.Equal(t, http.StatusOK, status)

	status, _ = call(t, app, http.MethodDelete, "/api/user/"+user.ID.String(), adminToken, nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = call(t, app, http.MethodDelete, "/api/user/"+user.ID.String(), adminToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, auth.TextCodeAccountNotFound, body["code"])
}
