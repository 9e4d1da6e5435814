package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/curenova/go-auth"
	"github.com/curenova/go-auth/social"
	"github.com/curenova/go-auth/social/providers/github"
	"github.com/curenova/go-auth/social/providers/google"
	"github.com/curenova/go-auth/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
)

type App struct {
	config Config
	db     *bun.DB
	repo   auth.RepositoryManager
	tokens auth.TokenService
	logger *glog.BaseLogger
	srv    router.Server[*fiber.App]
}

type Config = auth.Config

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("auth"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
	logger := lgr.GetLogger("app")

	cfg, err := auth.LoadConfig()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Debug("configuration loaded", "config", print.MaybePrettyJSON(redacted(cfg)))

	app := &App{
		config: cfg,
		logger: lgr,
	}

	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer app.db.Close()

	WithHTTPServer(app)

	if err := WithRoutes(app); err != nil {
		logger.Error("failed to register routes", "error", err)
		os.Exit(1)
	}

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("listening", "addr", addr)
		if err := app.srv.Serve(addr); err != nil {
			logger.Error("server stopped", "error", err)
		}
	}()

	sig := WaitExitSignal()
	logger.Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := storage.OpenAndMigrate(ctx, app.config.DatabaseURL)
	if err != nil {
		return err
	}

	app.db = db
	app.repo = auth.NewRepositoryManager(db)
	return nil
}

func WithHTTPServer(app *App) {
	cfg := app.config
	errLogger := app.GetLogger("http")

	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		f := fiber.New(fiber.Config{
			AppName:               cfg.AppName,
			DisableStartupMessage: true,
			ErrorHandler: func(c *fiber.Ctx, err error) error {
				status, resp := auth.ResolveError(errLogger, c.Path(), err)
				return c.Status(status).JSON(resp)
			},
		})

		f.Use(recover.New())
		f.Use(helmet.New())

		origins := strings.Join(cfg.CORSOrigins, ",")
		if origins == "" {
			origins = cfg.FrontendURL
		}
		f.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
			AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
			AllowCredentials: origins != "*",
		}))

		f.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimitMax,
			Expiration: cfg.RateLimitWindow,
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(auth.ErrorResponse{
					Error: "Too many requests, please try again later",
					Code:  "RATE_LIMITED",
				})
			},
		}))

		return f
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	app.srv = srv
}

func WithRoutes(app *App) error {
	cfg := app.config

	app.tokens = auth.NewTokenService(
		[]byte(cfg.JWTSecret),
		cfg.SessionTTL,
		auth.WithTokenIssuer(cfg.JWTIssuer),
		auth.WithTokenLogger(app.GetLogger("tokens")),
	)

	hasher := auth.NewBcryptHasher(cfg.BcryptCost)

	var mailer auth.Mailer
	if smtp, ok := cfg.SMTP(); ok {
		mailer = auth.NewSMTPMailer(smtp)
	} else {
		app.GetLogger("mailer").Warn("EMAIL_HOST not set, emails are written to the log")
		mailer = auth.NewConsoleMailer(app.GetLogger("mailer"))
	}

	notifier := auth.NewNotifier(mailer, cfg.FrontendURL).
		WithAppName(cfg.AppName).
		WithTimeout(cfg.EmailTimeout)

	lifecycle := auth.NewLifecycle(auth.LifecycleDeps{
		Repo:             app.repo,
		Hasher:           hasher,
		Notifier:         notifier,
		Logger:           app.GetLogger("accounts"),
		Timeout:          cfg.OperationTimeout,
		VerificationTTL:  cfg.VerificationTokenTTL,
		PasswordResetTTL: cfg.PasswordResetTokenTTL,
		UseHashidIDs:     cfg.UseHashidIDs,
	})

	auther := auth.NewAuthenticator(app.repo, app.tokens, hasher).
		WithLogger(app.GetLogger("auth")).
		WithTimeout(cfg.OperationTimeout)

	controller := auth.NewAccountController(lifecycle, auther,
		auth.WithControllerLogger(app.GetLogger("http")),
	)

	api := app.srv.Router().Group("/api")
	api.Get("/health", func(ctx router.Context) error {
		if err := app.db.PingContext(ctx.Context()); err != nil {
			return auth.WriteError(ctx, app.GetLogger("http"), auth.DependencyError(err, "health"))
		}
		return ctx.JSON(http.StatusOK, map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
		})
	}).SetName("health")

	auth.RegisterAccountRoutes(api, controller)

	social.NewHTTPController(newSocialAuthenticator(app), social.HTTPConfig{
		FrontendURL: cfg.FrontendURL,
		Logger:      app.GetLogger("oauth"),
	}).RegisterRoutes(api.Group("/oauth"))

	return nil
}

func newSocialAuthenticator(app *App) *social.SocialAuthenticator {
	cfg := app.config

	opts := []social.SocialAuthOption{
		social.WithAuthLogger(app.GetLogger("oauth")),
	}

	if cfg.Google.Enabled() {
		opts = append(opts, social.WithProvider(google.New(google.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			CallbackURL:  cfg.Google.CallbackURL,
		})))
	} else {
		app.GetLogger("oauth").Info("google sign-in disabled, GOOGLE_CLIENT_ID not set")
	}

	if cfg.GitHub.Enabled() {
		opts = append(opts, social.WithProvider(github.New(github.Config{
			ClientID:     cfg.GitHub.ClientID,
			ClientSecret: cfg.GitHub.ClientSecret,
			CallbackURL:  cfg.GitHub.CallbackURL,
		})))
	} else {
		app.GetLogger("oauth").Info("github sign-in disabled, GITHUB_CLIENT_ID not set")
	}

	reconciler := social.NewReconciler(app.repo).
		WithLogger(app.GetLogger("oauth")).
		WithTimeout(cfg.OperationTimeout)

	return social.NewSocialAuthenticator(
		reconciler,
		app.tokens,
		social.NewStateManager(cfg.StateKey(), social.DefaultStateTTL),
		opts...,
	)
}

func redacted(cfg Config) Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "***"
	}
	cfg.JWTSecret = mask(cfg.JWTSecret)
	cfg.OAuthStateKey = mask(cfg.OAuthStateKey)
	cfg.EmailPass = mask(cfg.EmailPass)
	cfg.Google.ClientSecret = mask(cfg.Google.ClientSecret)
	cfg.GitHub.ClientSecret = mask(cfg.GitHub.ClientSecret)
	return cfg
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
