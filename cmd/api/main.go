package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/channel-account-api/api/swagger"
	"github.com/noah-isme/channel-account-api/internal/handler"
	"github.com/noah-isme/channel-account-api/internal/repository"
	"github.com/noah-isme/channel-account-api/internal/service"
	"github.com/noah-isme/channel-account-api/pkg/cache"
	"github.com/noah-isme/channel-account-api/pkg/config"
	"github.com/noah-isme/channel-account-api/pkg/database"
	"github.com/noah-isme/channel-account-api/pkg/events"
	"github.com/noah-isme/channel-account-api/pkg/jobs"
	"github.com/noah-isme/channel-account-api/pkg/logger"
	"github.com/noah-isme/channel-account-api/pkg/storage"
	"github.com/noah-isme/channel-account-api/pkg/validation"
)

// @title Channel Account API
// @version 1.0.0
// @description Account, session and channel profile service
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db.DB); err != nil {
			return err
		}
	}

	checks := map[string]handler.ReadinessCheck{"postgres": db.PingContext}

	var cacheClient redis.Cmdable
	if cfg.Channel.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, channel cache disabled", zap.Error(err))
		} else {
			defer client.Close() //nolint:errcheck
			cacheClient = client
			checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		}
	}

	media, err := newMediaStore(ctx, cfg)
	if err != nil {
		return err
	}

	metrics := service.NewMetricsService()

	janitor := service.NewMediaJanitor(media, nil, metrics, logger.Named(logr, "janitor"), cfg.Media.Timeout)
	janitorQueue := jobs.NewQueue("media-janitor", janitor.Handle, jobs.QueueConfig{
		Workers:    cfg.Janitor.Workers,
		BufferSize: cfg.Janitor.BufferSize,
		JobTimeout: cfg.Media.Timeout,
		Logger:     logr,
	})
	janitor.SetQueue(janitorQueue)
	janitorQueue.Start(ctx)

	publisher := events.New(cfg.Events, logger.Named(logr, "events"))

	accountsRepo := repository.NewAccountRepository(db)
	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(cacheClient, "channel"),
		metrics,
		cfg.Channel.CacheTTL,
		logger.Named(logr, "cache"),
		cacheClient != nil,
	)
	tokens := service.NewTokenService(service.TokenConfig{
		AccessSecret:  cfg.JWT.AccessSecret,
		AccessExpiry:  cfg.JWT.AccessExpiration,
		RefreshSecret: cfg.JWT.RefreshSecret,
		RefreshExpiry: cfg.JWT.RefreshExpiration,
		Issuer:        cfg.JWT.Issuer,
	})
	creds := service.NewCredentialStore(accountsRepo, 0)

	sessions := service.NewSessionService(service.SessionDeps{
		Repo:        accountsRepo,
		Tokens:      tokens,
		Credentials: creds,
		Janitor:     janitor,
		Cache:       cacheSvc,
		Events:      publisher,
		Metrics:     metrics,
		Logger:      logger.Named(logr, "session"),
	})
	accounts := service.NewAccountService(service.AccountDeps{
		Repo:            accountsRepo,
		Credentials:     creds,
		Media:           media,
		Janitor:         janitor,
		Cache:           cacheSvc,
		Events:          publisher,
		Metrics:         metrics,
		Validator:       validation.New(),
		Logger:          logger.Named(logr, "account"),
		MediaTimeout:    cfg.Media.Timeout,
		ChannelCacheTTL: cfg.Channel.CacheTTL,
	})

	uploads := handler.NewUploadLimits(cfg.Media)
	router := handler.NewRouter(handler.RouterDeps{
		Config:   cfg,
		Logger:   logr,
		Metrics:  metrics,
		Tokens:   tokens,
		Auth:     handler.NewAuthHandler(sessions, accounts, handler.NewCookieSettings(cfg.Cookie), uploads),
		Accounts: handler.NewAccountHandler(accounts, uploads),
		Health:   handler.NewMetricsHandler(metrics, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "media_driver", cfg.Media.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown incomplete", zap.Error(err))
	}
	janitorQueue.Stop()
	if err := publisher.Close(); err != nil {
		logr.Warn("event publisher close failed", zap.Error(err))
	}
	return nil
}

func newMediaStore(ctx context.Context, cfg *config.Config) (service.MediaStore, error) {
	switch cfg.Media.Driver {
	case config.MediaDriverS3:
		store, err := storage.NewS3Storage(ctx, cfg.Media)
		if err != nil {
			return nil, fmt.Errorf("init s3 media store: %w", err)
		}
		return store, nil
	default:
		store, err := storage.NewLocalStorage(cfg.Media.LocalDir, cfg.Media.PublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("init local media store: %w", err)
		}
		return store, nil
	}
}
