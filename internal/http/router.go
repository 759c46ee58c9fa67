package http

import (
	"log/slog"
	"net/http"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"

	"github.com/flower-app/flower/internal/config"
	"github.com/flower-app/flower/internal/http/features/email"
	"github.com/flower-app/flower/internal/http/features/me"
	"github.com/flower-app/flower/internal/http/features/password"
	"github.com/flower-app/flower/internal/http/features/session"
	wateringfeature "github.com/flower-app/flower/internal/http/features/watering"
	"github.com/flower-app/flower/internal/http/middleware"
	"github.com/flower-app/flower/internal/httputil"
	"github.com/flower-app/flower/internal/notification"
	"github.com/flower-app/flower/pkg/auth"
	"github.com/flower-app/flower/pkg/directory"
	"github.com/flower-app/flower/pkg/repository"
	"github.com/flower-app/flower/pkg/watering"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger              *slog.Logger
	PasswordService     *auth.PasswordService
	SessionService      *auth.SessionService
	VerificationService *auth.VerificationService
	EmailService        *notification.EmailService
	WateringService     *watering.Service
	WateringFeed        *watering.Feed
	DirectoryService    *directory.Service
	NameCache           *directory.NameCache
	UsersRepo           *repository.UsersRepository
	ProfilesRepo        *repository.ProfilesRepository
	AppBaseURL          string
	DryAfter            time.Duration
	TickInterval        time.Duration
	MaxRequestBodySize  int64
	RateLimitConfig     config.RateLimitConfig
	SentryEnabled       bool
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBodySize))
	if cfg.SentryEnabled {
		r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)

	passwordHandler := password.NewHandler(
		cfg.Logger,
		cfg.PasswordService,
		cfg.SessionService,
		cfg.VerificationService,
		cfg.EmailService,
		cfg.AppBaseURL,
	)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["auth"])
		r.Post("/v1/auth/password/register", passwordHandler.Register)
		r.Post("/v1/auth/password/login", passwordHandler.Login)
	})

	sessionHandler := session.NewHandler(cfg.Logger, cfg.SessionService, cfg.UsersRepo)
	r.With(rateLimiters["refresh"]).Post("/v1/auth/refresh", sessionHandler.Refresh)
	r.Post("/v1/auth/logout", sessionHandler.Logout)
	r.With(middleware.Auth(cfg.SessionService)).Post("/v1/auth/logout/all", sessionHandler.LogoutAll)

	if cfg.EmailService != nil {
		emailHandler := email.NewHandler(
			cfg.Logger,
			cfg.VerificationService,
			cfg.EmailService,
			cfg.UsersRepo,
			cfg.AppBaseURL,
		)
		r.With(rateLimiters["verify"]).Post("/v1/auth/email/verify", emailHandler.Verify)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.SessionService))
			r.Use(rateLimiters["verify"])
			r.Post("/v1/auth/email/resend", emailHandler.Resend)
		})
	}

	meHandler := me.NewHandler(cfg.Logger, cfg.UsersRepo, cfg.ProfilesRepo, cfg.DirectoryService, cfg.NameCache)
	r.With(middleware.Auth(cfg.SessionService)).Get("/v1/me", meHandler.GetMe)

	// Watering routes: authenticated and verified, never rate limited.
	wateringHandler := wateringfeature.NewHandler(
		cfg.Logger,
		cfg.WateringService,
		cfg.WateringFeed,
		watering.NewWatchers(),
		cfg.NameCache,
		cfg.DryAfter,
		cfg.TickInterval,
	)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.SessionService))
		r.Use(middleware.RequireVerified())
		r.Post("/v1/couples/{coupleID}/waterings", wateringHandler.Record)
		r.Get("/v1/couples/{coupleID}/waterings/today", wateringHandler.Today)
		r.Get("/v1/couples/{coupleID}/waterings/latest", wateringHandler.Latest)
		r.Get("/v1/couples/{coupleID}/watch", wateringHandler.Watch)
	})

	return r
}
