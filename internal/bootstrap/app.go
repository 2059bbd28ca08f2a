package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	confirmationApp "github.com/seatswap/escrow/internal/application/confirmation"
	disputeApp "github.com/seatswap/escrow/internal/application/dispute"
	escrowApp "github.com/seatswap/escrow/internal/application/escrow"
	pricingApp "github.com/seatswap/escrow/internal/application/pricing"
	"github.com/seatswap/escrow/internal/infrastructure/config"
	"github.com/seatswap/escrow/internal/infrastructure/directory"
	"github.com/seatswap/escrow/internal/infrastructure/observability"
	infraRedis "github.com/seatswap/escrow/internal/infrastructure/redis"
	"github.com/seatswap/escrow/internal/infrastructure/storage"
	"github.com/seatswap/escrow/internal/repository/postgres"
)

// App holds the wired dependency graph shared by the api and worker
// binaries. Construction order matters: config, observability, stores,
// then services from the bottom up.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics

	SnapshotRepo     *postgres.SnapshotRepository
	TransactionRepo  *postgres.TransactionRepository
	ConfirmationRepo *postgres.ConfirmationRepository
	DisputeRepo      *postgres.DisputeRepository
	OutboxRepo       *postgres.OutboxRepository
	IdempotencyRepo  *postgres.IdempotencyRepository
	Listings         *postgres.ListingCatalog

	PricingService      *pricingApp.Service
	EscrowService       *escrowApp.Service
	ConfirmationService *confirmationApp.Service
	DisputeService      *disputeApp.Service

	tracerShutdown func(context.Context) error
}

func New(ctx context.Context, serviceName string, metricsNamespace string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info().Str("service", serviceName).Msg("Starting")

	app := &App{Config: cfg, Logger: logger}

	if cfg.Observability.EnableTracing {
		shutdown, err := observability.InitTracer(serviceName, cfg.InstanceID, cfg.Observability.JaegerEndpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		} else {
			app.tracerShutdown = shutdown
			logger.Info().Msg("Tracing enabled")
		}
	}

	app.Metrics = observability.NewMetrics(metricsNamespace, nil)

	pool, err := postgres.NewPool(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	app.Pool = pool
	logger.Info().Msg("Connected to PostgreSQL")

	redisClient, err := infraRedis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	app.Redis = redisClient
	logger.Info().Msg("Connected to Redis")

	proofStore, err := storage.NewFilesystemStore(cfg.Storage.ProofDir)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init proof storage: %w", err)
	}

	app.SnapshotRepo = postgres.NewSnapshotRepository(pool)
	app.TransactionRepo = postgres.NewTransactionRepository(pool)
	app.ConfirmationRepo = postgres.NewConfirmationRepository(pool)
	app.DisputeRepo = postgres.NewDisputeRepository(pool)
	app.OutboxRepo = postgres.NewOutboxRepository(pool)
	app.IdempotencyRepo = postgres.NewIdempotencyRepository(pool)
	app.Listings = postgres.NewListingCatalog(pool)
	methodCatalog := postgres.NewMethodCatalog(pool)
	platformSettings := postgres.NewSettingsRepository(pool)
	txManager := postgres.NewTxManager(pool)

	locker := infraRedis.NewLocker(
		redisClient,
		cfg.Escrow.LockTTL,
		cfg.Escrow.MaxRetries,
		cfg.Escrow.RetryDelay,
		logger,
	)

	userDirectory := directory.NewClient(&cfg.Directory, logger)

	app.PricingService = pricingApp.NewService(
		app.SnapshotRepo,
		methodCatalog,
		platformSettings,
		locker,
		cfg.Escrow.SnapshotTTL,
		logger,
	)
	app.EscrowService = escrowApp.NewService(
		app.TransactionRepo,
		app.OutboxRepo,
		app.PricingService,
		app.Listings,
		txManager,
		locker,
		cfg.Escrow.AutoReleaseDelay,
		logger,
	)
	app.ConfirmationService = confirmationApp.NewService(
		app.ConfirmationRepo,
		app.TransactionRepo,
		app.EscrowService,
		proofStore,
		userDirectory,
		locker,
		logger,
	)
	app.DisputeService = disputeApp.NewService(
		app.DisputeRepo,
		app.TransactionRepo,
		app.OutboxRepo,
		app.EscrowService,
		locker,
		logger,
	)

	return app, nil
}

func (a *App) Close() {
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(context.Background()); err != nil {
			a.Logger.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
