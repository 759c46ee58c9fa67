package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"github.com/flower-app/flower/internal/config"
	httpserver "github.com/flower-app/flower/internal/http"
	"github.com/flower-app/flower/internal/notification"
	"github.com/flower-app/flower/pkg/auth"
	"github.com/flower-app/flower/pkg/directory"
	"github.com/flower-app/flower/pkg/repository"
	"github.com/flower-app/flower/pkg/watering"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize Sentry if configured
	sentryEnabled := false
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			logger.Error("failed to init sentry", "error", err)
		} else {
			sentryEnabled = true
			defer sentry.Flush(2 * time.Second)
			logger.Info("sentry enabled")
		}
	}

	// Connect to database
	dbConfig := repository.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}
	db, err := repository.NewDB(dbConfig)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := repository.EnsureSchema(context.Background(), db); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	logger.Info("connected to database")

	// Initialize repositories
	usersRepo := repository.NewUsersRepository(db)
	credsRepo := repository.NewCredentialsRepository(db)
	usernamesRepo := repository.NewUsernamesRepository(db)
	profilesRepo := repository.NewProfilesRepository(db)
	sessionsRepo := repository.NewSessionsRepository(db)
	verificationTokensRepo := repository.NewVerificationTokensRepository(db)
	wateringsRepo := repository.NewWateringsRepository(db)

	// Initialize services
	directoryService := directory.NewService(usernamesRepo)
	nameCache := directory.NewNameCache(profilesRepo)

	inTx := func(ctx context.Context, fn func(tx *sql.Tx) error) error {
		return repository.Tx(ctx, db, fn)
	}
	passwordService := auth.NewPasswordService(usersRepo, credsRepo, profilesRepo, directoryService, inTx)
	sessionService := auth.NewSessionService(sessionsRepo, []byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	verificationService := auth.NewVerificationService(verificationTokensRepo, usersRepo)

	broker := watering.NewBroker()
	wateringService := watering.NewService(wateringsRepo, broker)
	wateringFeed := watering.NewFeed(wateringsRepo, broker, logger)

	// Bridge database change notifications into the broker so feeds see
	// writes from every replica.
	notifierCtx, stopNotifier := context.WithCancel(context.Background())
	defer stopNotifier()
	notifier := watering.NewPostgresNotifier(dbConfig.DSN(), repository.WateringsChannel, broker, logger)
	go func() {
		if err := notifier.Run(notifierCtx); err != nil && notifierCtx.Err() == nil {
			logger.Error("watering notifier stopped", "error", err)
		}
	}()

	// Initialize email service if configured
	var emailService *notification.EmailService
	if cfg.HasSMTP() {
		emailService = notification.NewEmailService(notification.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		})
		logger.Info("email service enabled")
	}

	// Create router
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:              logger,
		PasswordService:     passwordService,
		SessionService:      sessionService,
		VerificationService: verificationService,
		EmailService:        emailService,
		WateringService:     wateringService,
		WateringFeed:        wateringFeed,
		DirectoryService:    directoryService,
		NameCache:           nameCache,
		UsersRepo:           usersRepo,
		ProfilesRepo:        profilesRepo,
		AppBaseURL:          cfg.AppBaseURL,
		DryAfter:            cfg.DryAfter,
		TickInterval:        cfg.TickInterval,
		MaxRequestBodySize:  cfg.MaxRequestBodySize,
		RateLimitConfig:     cfg.RateLimit,
		SentryEnabled:       sentryEnabled,
	})

	// Create HTTP server. WriteTimeout stays 0: the watch endpoint holds
	// long-lived SSE streams.
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	stopNotifier()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
