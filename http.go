package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/curenova/go-auth/middleware/jwtware"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// RouteAuthenticator guards routes with bearer authentication
type RouteAuthenticator struct {
	auth         Authenticator
	Logger       Logger
	ErrorHandler router.ErrorHandler
}

func NewHTTPAuthenticator(auther Authenticator) *RouteAuthenticator {
	a := &RouteAuthenticator{
		auth:   auther,
		Logger: DefaultLogger(),
	}
	a.ErrorHandler = a.defaultErrHandler
	return a
}

// WithLogger sets the logger used by the error handler
func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	a.Logger = orDefaultLogger(logger)
	return a
}

// ProtectedRoute rejects requests without a valid bearer token for an
// active account. The account is stored under AccountLocalsKey.
func (a *RouteAuthenticator) ProtectedRoute() router.MiddlewareFunc {
	return jwtware.New(a.jwtConfig(false))
}

// OptionalRoute authenticates when a token is present
func (a *RouteAuthenticator) OptionalRoute() router.MiddlewareFunc {
	return jwtware.New(a.jwtConfig(true))
}

func (a *RouteAuthenticator) jwtConfig(optional bool) jwtware.Config {
	return jwtware.Config{
		Optional:   optional,
		ContextKey: AccountLocalsKey,
		Authenticate: func(ctx context.Context, token string) (any, error) {
			return a.auth.Authenticate(ctx, token)
		},
		ContextEnricher: func(ctx context.Context, subject any) context.Context {
			if account, ok := subject.(*Account); ok {
				return WithContext(ctx, account)
			}
			return ctx
		},
		ErrorHandler: func(c router.Context, err error) error {
			if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
				err = ErrUnauthenticated
			}
			return a.ErrorHandler(c, err)
		},
	}
}

// RequireAdmin must run after ProtectedRoute
func (a *RouteAuthenticator) RequireAdmin() router.MiddlewareFunc {
	return a.require(func(account *Account) error {
		if !IsAdmin(account) {
			return ErrForbidden
		}
		return nil
	})
}

// RequireVerifiedEmail must run after ProtectedRoute
func (a *RouteAuthenticator) RequireVerifiedEmail() router.MiddlewareFunc {
	return a.require(func(account *Account) error {
		if !account.EmailVerified {
			return ErrEmailNotVerified
		}
		return nil
	})
}

func (a *RouteAuthenticator) require(check func(*Account) error) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			account, ok := CurrentAccount(c)
			if !ok {
				return a.ErrorHandler(c, ErrUnauthenticated)
			}
			if err := check(account); err != nil {
				return a.ErrorHandler(c, err)
			}
			return next(c)
		}
	}
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	return WriteError(c, a.Logger, err)
}

// WriteError renders err as an ErrorResponse. Errors without a taxonomy
// entry become a generic 500 and their detail only reaches the log.
func WriteError(c router.Context, logger Logger, err error) error {
	status, resp := ResolveError(logger, c.Path(), err)
	return c.JSON(status, resp)
}

// ResolveError maps err to the status and body WriteError sends
func ResolveError(logger Logger, path string, err error) (int, ErrorResponse) {
	logger = orDefaultLogger(logger)

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return fiberErr.Code, ErrorResponse{
				Error: fiberErr.Message,
				Code:  http.StatusText(fiberErr.Code),
			}
		}
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal).
			WithTextCode("INTERNAL_ERROR")
	}

	status := richErr.Code
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}

	if status >= 500 {
		logger.Error(
			"request failed",
			"path", path,
			"error", err,
			"category", richErr.Category,
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)
	} else {
		logger.Debug(
			"request rejected",
			"path", path,
			"error", richErr.Message,
			"text_code", richErr.TextCode,
		)
	}

	resp := ErrorResponse{
		Error: richErr.Message,
		Code:  richErr.TextCode,
	}

	if fields := ValidationFields(richErr); len(fields) > 0 {
		resp.Details = map[string]any{"fields": fields}
	}

	if status >= 500 && richErr.TextCode != TextCodeDependency {
		resp.Error = "An unexpected server error occurred"
	}

	return status, resp
}
