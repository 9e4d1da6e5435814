package jwtware_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curenova/go-auth/middleware/jwtware"
)

var errRejected = errors.New("rejected")

type subject struct {
	ID string
}

func staticAuthenticator(valid string) jwtware.AuthenticateFunc {
	return func(ctx context.Context, token string) (any, error) {
		if token != valid {
			return nil, errRejected
		}
		return &subject{ID: "acc-1"}, nil
	}
}

func newServer() router.Server[*fiber.App] {
	return router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		return fiber.New()
	})
}

func newApp(cfg jwtware.Config) *fiber.App {
	srv := newServer()
	srv.Router().Get("/", func(ctx router.Context) error {
		s, ok := ctx.Locals("account").(*subject)
		if !ok {
			return ctx.SendString("anonymous")
		}
		return ctx.SendString(s.ID)
	}, jwtware.New(cfg))
	return srv.WrappedRouter()
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, string) {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestJWTWare_BasicHeaderExtraction(t *testing.T) {
	app := newApp(jwtware.Config{Authenticate: staticAuthenticator("good")})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	status, body := do(t, app, req)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "acc-1", body)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	status, body = do(t, app, req)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, jwtware.ErrJWTMissingOrMalformed.Error(), body)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad")
	status, body = do(t, app, req)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid or expired token", body)
}

func TestJWTWare_WrongScheme(t *testing.T) {
	app := newApp(jwtware.Config{Authenticate: staticAuthenticator("good")})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic good")
	status, _ := do(t, app, req)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestJWTWare_CustomTokenLookup(t *testing.T) {
	app := newApp(jwtware.Config{
		Authenticate: staticAuthenticator("good"),
		TokenLookup:  "query:auth_token,cookie:session",
	})

	req := httptest.NewRequest(http.MethodGet, "/?auth_token=good", nil)
	status, body := do(t, app, req)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "acc-1", body)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "good"})
	status, body = do(t, app, req)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "acc-1", body)
}

func TestJWTWare_FilterFunction(t *testing.T) {
	app := newApp(jwtware.Config{
		Authenticate: staticAuthenticator("good"),
		Filter: func(ctx router.Context) bool {
			return ctx.Query("skip", "") == "1"
		},
	})

	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/?skip=1", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "anonymous", body)
}

func TestJWTWare_Optional(t *testing.T) {
	app := newApp(jwtware.Config{
		Authenticate: staticAuthenticator("good"),
		Optional:     true,
	})

	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "anonymous", body)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad")
	status, _ = do(t, app, req)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestJWTWare_CustomErrorHandler(t *testing.T) {
	var seen error
	app := newApp(jwtware.Config{
		Authenticate: staticAuthenticator("good"),
		ErrorHandler: func(ctx router.Context, err error) error {
			seen = err
			return ctx.Status(http.StatusTeapot).SendString("teapot")
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad")
	status, _ := do(t, app, req)
	assert.Equal(t, http.StatusTeapot, status)
	assert.ErrorIs(t, seen, errRejected)
}

func TestJWTWare_ValidationListenerAndEnricher(t *testing.T) {
	type key struct{}
	var listened any

	srv := newServer()
	srv.Router().Get("/", func(ctx router.Context) error {
		s, _ := ctx.Context().Value(key{}).(*subject)
		if s == nil {
			return ctx.Status(http.StatusInternalServerError).SendString("missing subject")
		}
		return ctx.SendString(s.ID)
	}, jwtware.New(jwtware.Config{
		Authenticate: staticAuthenticator("good"),
		ValidationListeners: []jwtware.ValidationListener{
			nil,
			func(ctx router.Context, s any) error {
				listened = s
				return nil
			},
		},
		ContextEnricher: func(ctx context.Context, s any) context.Context {
			return context.WithValue(ctx, key{}, s)
		},
	}))
	app := srv.WrappedRouter()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	status, body := do(t, app, req)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "acc-1", body)
	assert.NotNil(t, listened)
}

func TestJWTWare_ListenerRejects(t *testing.T) {
	app := newApp(jwtware.Config{
		Authenticate: staticAuthenticator("good"),
		ValidationListeners: []jwtware.ValidationListener{
			func(ctx router.Context, s any) error { return errRejected },
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	status, _ := do(t, app, req)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestJWTWare_RequiresAuthenticate(t *testing.T) {
	assert.Panics(t, func() {
		jwtware.New(jwtware.Config{})
	})
}

func TestJWTWare_SuccessHandler(t *testing.T) {
	app := newApp(jwtware.Config{
		Authenticate: staticAuthenticator("good"),
		SuccessHandler: func(ctx router.Context) error {
			return ctx.Status(http.StatusAccepted).SendString("intercepted")
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	status, body := do(t, app, req)
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, "intercepted", body)
}

func TestJWTWare_Extractors(t *testing.T) {
	extractors := jwtware.GetExtractors("header:Authorization, query:token, param:token, cookie:jwt, bogus")
	assert.Len(t, extractors, 4)
}
