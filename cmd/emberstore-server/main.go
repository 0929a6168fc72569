// Package main is the entry point for the Emberstore server, an
// S3-compatible authentication and authorization gateway.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/emberstore/emberstore/internal/auth"
	memorycache "github.com/emberstore/emberstore/internal/cache/memory"
	rediscache "github.com/emberstore/emberstore/internal/cache/redis"
	"github.com/emberstore/emberstore/internal/config"
	"github.com/emberstore/emberstore/internal/handler"
	"github.com/emberstore/emberstore/internal/iam"
	"github.com/emberstore/emberstore/internal/lock"
	"github.com/emberstore/emberstore/internal/metrics"
	"github.com/emberstore/emberstore/internal/pkg/crypto"
	"github.com/emberstore/emberstore/internal/repository"
	"github.com/emberstore/emberstore/internal/repository/postgres"
	"github.com/emberstore/emberstore/internal/repository/sqlite"
	"github.com/emberstore/emberstore/internal/service"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration directory")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Logging)
	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("starting Emberstore server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	// Database
	repos, dbHealth, err := setupDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer dbHealth.Close()

	// Cache and locking
	var (
		cache  repository.Cache
		locker lock.Locker
	)
	if cfg.Redis.Enabled {
		client, err := rediscache.NewClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer client.Close()

		cache = rediscache.NewCache(client)
		locker = lock.NewRedisLocker(rediscache.NewDistributedLock(client))
		logger.Info().Str("addr", cfg.Redis.Addr()).Msg("using redis cache and locks")
	} else {
		cache = memorycache.NewCache()
		locker = lock.NewMemoryLocker()
		logger.Info().Msg("using in-memory cache and locks")
	}

	// Secret key encryption
	encryptionKey, err := cfg.Auth.GetEncryptionKey()
	if err != nil {
		return fmt.Errorf("auth encryption key: %w", err)
	}
	encryptor, err := crypto.NewEncryptor(encryptionKey)
	if err != nil {
		return fmt.Errorf("auth encryptor: %w", err)
	}

	// Services
	userService := service.NewUserService(repos.User, logger)
	iamService := service.NewIAMService(repos.AccessKey, repos.User, encryptor, logger)
	bucketService := service.NewBucketService(repos.Bucket, repos.Policy, logger)
	policyService := service.NewPolicyService(repos.Policy, repos.Bucket, repos.User, cache, locker, logger)

	// Metrics
	m := metrics.New()

	// Authentication
	accessKeyStore := service.NewCachedAccessKeyStore(
		service.NewAccessKeyStoreAdapter(iamService),
		cache,
		cfg.Auth.AccessKeyCacheTTL,
		logger,
	)
	authConfig := auth.DefaultConfig()
	authConfig.Region = cfg.Auth.Region
	authConfig.Service = cfg.Auth.Service
	authConfig.Metrics = m
	authMiddleware := auth.Middleware(accessKeyStore, authConfig)

	// Authorization
	authorizer := iam.NewAuthorizer(policyService, m, logger)

	// HTTP routing
	router := handler.NewRouter(handler.RouterConfig{
		BucketHandler: handler.NewBucketHandler(handler.BucketHandlerConfig{
			BucketService: bucketService,
			PolicyService: policyService,
			Authorizer:    authorizer,
			Logger:        logger,
		}),
		AdminHandler: handler.NewAdminHandler(handler.AdminHandlerConfig{
			UserService:   userService,
			IAMService:    iamService,
			PolicyService: policyService,
			Logger:        logger,
		}),
		AuthMiddleware: authMiddleware,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("API server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	// Metrics listener (separate port, no auth)
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, m.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			logger.Info().Str("addr", metricsServer.Addr).Msg("metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

// setupDatabase connects to the configured backend, runs migrations, and
// builds the repository bundle.
func setupDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*repository.Repositories, repository.DatabaseHealth, error) {
	if cfg.Database.Driver == "postgres" {
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("postgres migrate: %w", err)
		}
		return &repository.Repositories{
			User:      postgres.NewUserRepository(db),
			AccessKey: postgres.NewAccessKeyRepository(db),
			Bucket:    postgres.NewBucketRepository(db),
			Policy:    postgres.NewPolicyRepository(db),
		}, db, nil
	}

	sqliteCfg := sqlite.DefaultConfig(cfg.Database.Path)
	if cfg.Database.JournalMode != "" {
		sqliteCfg.JournalMode = cfg.Database.JournalMode
	}
	if cfg.Database.BusyTimeout > 0 {
		sqliteCfg.BusyTimeout = cfg.Database.BusyTimeout
	}

	db, err := sqlite.NewDB(ctx, sqliteCfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return &repository.Repositories{
		User:      sqlite.NewUserRepository(db),
		AccessKey: sqlite.NewAccessKeyRepository(db),
		Bucket:    sqlite.NewBucketRepository(db),
		Policy:    sqlite.NewPolicyRepository(db),
	}, db, nil
}

// setupLogger configures the process logger from config.
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	return logger.Level(level)
}
