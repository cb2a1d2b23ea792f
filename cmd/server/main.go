package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"todocal/docs" // swagger docs
	"todocal/internal/auth"
	"todocal/internal/cache"
	"todocal/internal/config"
	"todocal/internal/db"
	"todocal/internal/handler"
	"todocal/internal/kms"
	"todocal/internal/logging"
	"todocal/internal/mail"
	"todocal/internal/reminder"
	"todocal/internal/repository"
	"todocal/internal/router"
	"todocal/internal/service"
	"todocal/internal/storage"
)

const shutdownTimeout = 15 * time.Second

// @title Todo Calendar API
// @version 1.0
// @description Calendar-based todo API with JWT sessions, encrypted titles, image uploads and email reminders.
// @host localhost:3000
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	if err := cfg.Validate(); err != nil {
		logger.Error(ctx, "invalid configuration", "error", err)
		os.Exit(1)
	}
	loc, _ := cfg.Location()

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		logger.Error(ctx, "database init", "error", err)
		os.Exit(1)
	}
	if cfg.ResetDB {
		logger.Warn(ctx, "RESET_DB=true detected, dropping all tables")
		if err := db.Reset(gormDB); err != nil {
			logger.Warn(ctx, "drop tables", "error", err)
		}
	}
	if err := db.Migrate(gormDB); err != nil {
		logger.Error(ctx, "migrate", "error", err)
		os.Exit(1)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := cacheClient.Ping(ctx); err != nil {
		logger.Warn(ctx, "redis unavailable, running without cache", "addr", cfg.RedisAddr, "error", err)
	}

	store, err := storage.NewS3Store(ctx, storage.Config{
		Endpoint:  cfg.StorageEndpoint,
		Region:    cfg.StorageRegion,
		Bucket:    cfg.StorageBucket,
		AccessKey: cfg.NCPAccessKey,
		SecretKey: cfg.NCPSecretKey,
	})
	if err != nil {
		logger.Error(ctx, "object storage init", "error", err)
		os.Exit(1)
	}

	titles := kms.NewTitleCodec(kms.NewNCPClient(kms.NCPConfig{
		Endpoint:  cfg.KMSEndpoint,
		KeyTag:    cfg.KMSKeyTag,
		AccessKey: cfg.NCPAccessKey,
		SecretKey: cfg.NCPSecretKey,
		Timeout:   cfg.KMSTimeout,
	}), logger.With("component", "kms"))

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	todoRepo := repository.NewTodoRepository(gormDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Initialize services
	authService := service.NewAuthService(userRepo, jwtService, tokenStore)
	todoService := service.NewTodoService(todoRepo, titles, cacheClient, loc)
	attachmentService := service.NewAttachmentService(store, cfg.UploadMaxBytes)

	e := echo.New()
	e.HideBanner = true
	router.Register(
		e,
		cfg,
		logger,
		jwtService,
		tokenStore,
		handler.NewAuthHandler(authService),
		handler.NewTodoHandler(todoService),
		handler.NewUploadHandler(attachmentService, cfg.UploadMaxBytes),
	)

	if cfg.SwaggerHost != "" {
		host := strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "https://"), "http://")
		docs.SwaggerInfo.Host = host
	}
	logger.Info(ctx, "swagger documentation available", "url", "http://"+docs.SwaggerInfo.Host+"/swagger/index.html")

	schedCtx, stopScheduler := context.WithCancel(ctx)
	schedDone := make(chan struct{})
	if cfg.MailEnabled() {
		sender := mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.MailFrom,
		})
		schedCfg := reminder.Config{
			Interval:  cfg.ReminderInterval,
			CatchUp:   cfg.ReminderCatchUp,
			MaxOffset: cfg.ReminderMaxOffset,
			Location:  loc,
		}
		scheduler := reminder.New(
			todoRepo,
			titles,
			sender,
			reminder.NewCacheClaimer(cacheClient, reminder.ClaimTTL(schedCfg)),
			reminder.SystemClock{Location: loc},
			logger,
			schedCfg,
		)
		go func() {
			defer close(schedDone)
			scheduler.Run(schedCtx)
		}()
	} else {
		close(schedDone)
		logger.Warn(ctx, "SMTP credentials missing, email reminders disabled")
	}

	go func() {
		addr := ":" + cfg.ServerPort
		logger.Info(ctx, "server listening", "addr", addr, "timezone", loc.String())
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "server start", "error", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(ctx, shutdownTimeout, map[string]gfshutdown.Operation{
		"http": func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
		"reminder": func(ctx context.Context) error {
			stopScheduler()
			select {
			case <-schedDone:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})

	exitCode := <-wait

	if err := cacheClient.Close(); err != nil {
		logger.Warn(ctx, "close redis", "error", err)
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info(ctx, "shutdown complete", "exit_code", exitCode)
	os.Exit(exitCode)
}
