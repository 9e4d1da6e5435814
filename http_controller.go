package auth

import (
	"net/http"
	"time"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// AccountController serves the account JSON API
type AccountController struct {
	Logger       Logger
	Lifecycle    *Lifecycle
	Auther       Authenticator
	Guard        *RouteAuthenticator
	ErrorHandler router.ErrorHandler
	Now          func() time.Time
}

type AccountControllerOption func(*AccountController) *AccountController

func WithControllerLogger(logger Logger) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Logger = orDefaultLogger(logger)
		return c
	}
}

func WithControllerErrorHandler(handler router.ErrorHandler) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		if handler != nil {
			c.ErrorHandler = handler
		}
		return c
	}
}

func NewAccountController(lifecycle *Lifecycle, auther Authenticator, opts ...AccountControllerOption) *AccountController {
	if lifecycle == nil {
		panic("Missing Lifecycle in account controller...")
	}

	if auther == nil {
		panic("Missing Authenticator in account controller...")
	}

	c := &AccountController{
		Logger:    DefaultLogger(),
		Lifecycle: lifecycle,
		Auther:    auther,
		Now:       time.Now,
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Guard == nil {
		c.Guard = NewHTTPAuthenticator(auther).WithLogger(c.Logger)
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = func(ctx router.Context, err error) error {
			return WriteError(ctx, c.Logger, err)
		}
	}
	c.Guard.ErrorHandler = c.ErrorHandler

	return c
}

// RegisterAccountRoutes mounts /auth and /user under app
func RegisterAccountRoutes[T any](app router.Router[T], c *AccountController) {
	protected := c.Guard.ProtectedRoute()
	admin := c.Guard.RequireAdmin()

	auth := app.Group("/auth")
	auth.Post("/register", c.Register).SetName("auth.register")
	auth.Post("/login", c.Login).SetName("auth.login")
	auth.Post("/verify-email", c.VerifyEmail).SetName("auth.verify-email")
	auth.Post("/resend-verification", c.ResendVerification).SetName("auth.resend-verification")
	auth.Post("/forgot-password", c.ForgotPassword).SetName("auth.forgot-password")
	auth.Post("/reset-password", c.ResetPassword).SetName("auth.reset-password")
	auth.Get("/me", c.Me, protected).SetName("auth.me")
	auth.Post("/logout", c.Logout, protected).SetName("auth.logout")

	user := app.Group("/user")
	user.Get("/profile", c.GetProfile, protected).SetName("user.profile.get")
	user.Put("/profile", c.UpdateProfile, protected).SetName("user.profile.put")
	user.Put("/change-password", c.ChangePassword, protected).SetName("user.change-password")
	user.Delete("/account", c.DeleteAccount, protected).SetName("user.account.delete")
	user.Delete("/linkages/:provider", c.UnlinkProvider, protected).SetName("user.linkages.delete")

	user.Get("/all", c.ListAccounts, protected, admin).SetName("admin.accounts.list")
	user.Put("/:id/status", c.UpdateStatus, protected, admin).SetName("admin.accounts.status")
	user.Delete("/:id", c.AdminDeleteAccount, protected, admin).SetName("admin.accounts.delete")
}

type messageResponse struct {
	Message string `json:"message"`
}

// SessionResponse is returned by every endpoint that signs an account in
type SessionResponse struct {
	Message   string    `json:"message,omitempty"`
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresIn int64     `json:"expires_in"`
	ExpiresAt time.Time `json:"expires_at"`
	Account   *Account  `json:"account"`
}

func (a *AccountController) sessionResponse(msg string, session *Session, account *Account) SessionResponse {
	return SessionResponse{
		Message:   msg,
		Token:     session.Token,
		TokenType: session.TokenType,
		ExpiresIn: int64(session.ExpiresIn(a.Now()).Seconds()),
		ExpiresAt: session.ExpiresAt,
		Account:   account,
	}
}

func (a *AccountController) bind(c router.Context, payload any) error {
	if err := c.Bind(payload); err != nil {
		a.Logger.Debug("failed to parse payload", "path", c.Path(), "error", err)
		return NewValidationError(map[string]string{"body": "invalid request body"})
	}
	return nil
}

func (a *AccountController) Register(c router.Context) error {
	payload := new(RegisterInput)
	if err := a.bind(c, payload); err != nil {
		return a.ErrorHandler(c, err)
	}

	result, err := a.Lifecycle.Register(c.Context(), *payload)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	msg := "Registration successful. Please check your email to verify your account."
	if !result.EmailSent {
		msg = "Registration successful, but the verification email could not be sent."
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"message":    msg,
		"account":    result.Account,
		"email_sent": result.EmailSent,
		"warning":    result.Warning,
	})
}

func (a *AccountController) Login(c router.Context) error {
	payload := new(LoginInput)
	if err := a.bind(c, payload); err != nil {
		return a.ErrorHandler(c, err)
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(c, err)
	}

	session, account, err := a.Auther.Login(c.Context(), payload.Email, payload.Password)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(http.StatusOK, a.sessionResponse("Login successful", session, account))
}

func (a *AccountController) VerifyEmail(c router.Context) error {
	payload := new(TokenInput)
	if err := a.bind(c, payload); err != nil {
		return a.ErrorHandler(c, err)
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(c, err)
	}

	result, err := a.Lifecycle.VerifyEmail(c.Context(), payload.Token)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message":    "Email verified successfully",
		"account":    result.Account,
		"email_sent": result.EmailSent,
		"warning":    result.Warning,
	})
}

func (a *AccountController) ResendVerification(c router.Context) error {
	payload := new(EmailInput)
	if err := a.bind(c, payload); err != nil {
		return a.ErrorHandler(c, err)
	}

	notice, err := a.Lifecycle.ResendVerification(c.Context(), payload.Email)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message":    "Verification email sent",
		"email_sent": notice.EmailSent,
		"warning":    notice.Warning,
	})
}

func (a *AccountController) ForgotPassword(c router.Context) error {
	payload := new(EmailInput)
	if err := a.bind(c, payload); err != nil {
		return a.ErrorHandler(c, err)
	}

	if err := a.Lifecycle.ForgotPassword(c.Context(), payload.Email); err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(http.StatusOK, messageResponse{
		Message: "If an account with that email exists, a password reset link has been sent.",
	})
}

func (a *AccountController) ResetPassword(c router.Context) error {
	payload := new(ResetPasswordInput)
	if err := a.bind(c, payload); err != nil {
		return a.ErrorHandler(c, err)
	}

	if err := a.Lifecycle.ResetPassword(c.Context(), payload.Token, payload.Password); err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(http.StatusOK, messageResponse{Message: "Password reset successful"})
}

func (a *AccountController) Me(c router.Context) error {
	account, ok := CurrentAccount(c)
	if !ok {
		return a.ErrorHandler(c, ErrUnauthenticated)
	}
	return c.JSON(http.StatusOK, map[string]any{"account": account})
}

// Logout is stateless, the client drops its token
func (a *AccountController) Logout(c router.Context) error {
	return c.JSON(http.StatusOK, messageResponse{Message: "Logout successful"})
}

func (a *AccountController) GetProfile(c router.Context) error {
	account, ok := CurrentAccount(c)
	if !ok {
		return a.ErrorHandler(c, ErrUnauthenticated)
	}

	profile, err := a.Lifecycle.Profile(c.Context(), account.ID)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{"account": profile})
}

func (a *AccountController) UpdateProfile(c router.Context) error {
	account, ok := CurrentAccount(c)
	if !ok {
		return a.ErrorHandler(c, ErrUnauthenticated)
	}

	payload := new(ProfileInput)
	if err := a.bind(c, payload); err != nil {
		return a.ErrorHandler(c, err)
	}

	profile, err := a.Lifecycle.UpdateProfile(c.Context(), account.ID, *payload)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"account": profile,
	})
}

func (a *AccountController) ChangePassword(c router.Context) error {
	account, ok := CurrentAccount(c)
	if !ok {
		return a.ErrorHandler(c, ErrUnauthenticated)
	}

	payload := new(ChangePasswordInput)
	if err := a.bind(c, payload); err != nil {
		return a.ErrorHandler(c, err)
	}

	if err := a.Lifecycle.ChangePassword(c.Context(), account, payload.CurrentPassword, payload.NewPassword); err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(http.StatusOK, messageResponse{Message: "Password changed successfully"})
}

func (a *AccountController) DeleteAccount(c router.Context) error {
	account, ok := CurrentAccount(c)
	if !ok {
		return a.ErrorHandler(c, ErrUnauthenticated)
	}

	if err := a.Lifecycle.DeleteAccount(c.Context(), account); err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(http.StatusOK, messageResponse{Message: "Account deleted successfully"})
}

func (a *AccountController) UnlinkProvider(c router.Context) error {
	account, ok := CurrentAccount(c)
	if !ok {
		return a.ErrorHandler(c, ErrUnauthenticated)
	}

	if err := a.Lifecycle.UnlinkProvider(c.Context(), account, c.Param("provider")); err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(http.StatusOK, messageResponse{Message: "Provider unlinked"})
}

func (a *AccountController) ListAccounts(c router.Context) error {
	page, err := a.Lifecycle.ListAccounts(c.Context(), c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return a.ErrorHandler(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

func (a *AccountController) UpdateStatus(c router.Context) error {
	target, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return a.ErrorHandler(c, ErrAccountNotFound)
	}

	payload := new(StatusInput)
	if err := a.bind(c, payload); err != nil {
		return a.ErrorHandler(c, err)
	}

	account, err := a.Lifecycle.UpdateStatus(c.Context(), target, *payload)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message": "Account status updated",
		"account": account,
	})
}

func (a *AccountController) AdminDeleteAccount(c router.Context) error {
	actor, ok := CurrentAccount(c)
	if !ok {
		return a.ErrorHandler(c, ErrUnauthenticated)
	}

	target, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return a.ErrorHandler(c, ErrAccountNotFound)
	}

	if err := a.Lifecycle.AdminDeleteAccount(c.Context(), actor, target); err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(http.StatusOK, messageResponse{Message: "Account deleted successfully"})
}
