// Package app wires configuration, storage and services into one unit shared
// by the server and the admin CLI.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/appsync/internal/config"
	"github.com/prudhvinik1/appsync/internal/database"
	"github.com/prudhvinik1/appsync/internal/playstore"
	"github.com/prudhvinik1/appsync/internal/repositories"
	"github.com/prudhvinik1/appsync/internal/services"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type App struct {
	Config *config.Config
	Logger *zap.Logger

	Postgres *pgxpool.Pool
	Redis    *redis.Client

	Apps       *repositories.PostgresAppRepository
	Categories *repositories.PostgresCategoryRepository
	Status     *repositories.RedisSyncStatusRepository

	Engine       *services.SyncEngine
	Orchestrator *services.Orchestrator
	Scheduler    *services.Scheduler
	Importer     *services.BulkImporter
	Auth         *services.AuthService
}

// New connects to Postgres and Redis, applies migrations and builds the
// services.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}

	apps := repositories.NewPostgresAppRepository(pool)
	status := repositories.NewRedisSyncStatusRepository(redisClient)

	play := playstore.NewClient(playstore.Config{
		BaseURL:       cfg.Play.BaseURL,
		Lang:          cfg.Play.Lang,
		Country:       cfg.Play.Country,
		RatePerMinute: cfg.Play.RatePerMinute,
		Timeout:       cfg.Play.Timeout,
	}, logger.Named("playstore"))

	engine := services.NewSyncEngine(apps, play,
		services.WithLocker(repositories.NewRedisLocker(redisClient, logger.Named("lock")), cfg.Sync.LockTTL),
		services.WithStatusRepository(status),
		services.WithEngineLogger(logger.Named("engine")),
	)
	orchestrator := services.NewOrchestrator(engine, apps, status, services.OrchestratorConfig{
		BatchSize:  cfg.Sync.BatchSize,
		BatchDelay: cfg.Sync.BatchDelay,
	}, logger.Named("orchestrator"))

	return &App{
		Config:       cfg,
		Logger:       logger,
		Postgres:     pool,
		Redis:        redisClient,
		Apps:         apps,
		Categories:   repositories.NewPostgresCategoryRepository(pool),
		Status:       status,
		Engine:       engine,
		Orchestrator: orchestrator,
		Scheduler:    services.NewScheduler(orchestrator, cfg.Sync.Timezone, logger.Named("scheduler")),
		Importer:     services.NewBulkImporter(apps, orchestrator, logger.Named("import")),
		Auth:         services.NewAuthService(cfg.AdminEmail, cfg.AdminPasswordHash, cfg.JWTSecret, cfg.JWTExpiry),
	}, nil
}

func (a *App) Close() {
	if err := a.Redis.Close(); err != nil {
		a.Logger.Warn("failed to close redis client", zap.Error(err))
	}
	a.Postgres.Close()
}
