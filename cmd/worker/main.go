package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	escrowApp "github.com/seatswap/escrow/internal/application/escrow"
	pricingApp "github.com/seatswap/escrow/internal/application/pricing"
	"github.com/seatswap/escrow/internal/bootstrap"
	"github.com/seatswap/escrow/internal/infrastructure/observability"
	infraRedis "github.com/seatswap/escrow/internal/infrastructure/redis"
	"github.com/seatswap/escrow/internal/repository/postgres"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "escrow-worker", "escrow_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	workerCfg := app.Config.Worker
	txManager := postgres.NewTxManager(app.Pool)
	streamProducer := infraRedis.NewStreamProducer(app.Redis)

	// Audit consumer: tails the event stream so published events show up in
	// worker logs and metrics even with no downstream service attached yet.
	consumer := infraRedis.NewStreamConsumer(
		app.Redis,
		infraRedis.EscrowEventStream,
		workerCfg.ConsumerGroup,
		app.Config.InstanceID,
		workerCfg.BatchSize,
		workerCfg.BlockDuration,
	)
	if err := consumer.CreateGroup(ctx); err != nil {
		app.Logger.Error().Err(err).Msg("Failed to create consumer group (may already exist)")
	}

	app.Logger.Info().
		Str("stream", infraRedis.EscrowEventStream).
		Str("group", workerCfg.ConsumerGroup).
		Str("consumer", app.Config.InstanceID).
		Msg("Worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Outbox publisher: polls the outbox table and pushes to Redis Streams.
	g.Go(func() error {
		return runOutboxPublisher(gCtx, app.Logger, txManager, app.OutboxRepo, streamProducer, workerCfg.OutboxPollInterval)
	})

	// 2. Auto-release sweep: completes transferred transactions whose
	// deemed-accepted deadline has passed.
	g.Go(func() error {
		return runAutoRelease(gCtx, app.Logger, app.Metrics, app.EscrowService, workerCfg.AutoReleaseInterval, workerCfg.AutoReleaseBatch)
	})

	// 3. Snapshot sweep: deletes expired, never-consumed quotes.
	g.Go(func() error {
		return runSnapshotSweep(gCtx, app.Logger, app.PricingService, workerCfg.SnapshotSweepInterval)
	})

	// 4. Idempotency key cleanup.
	g.Go(func() error {
		return runIdempotencyCleanup(gCtx, app.Logger, app.IdempotencyRepo, workerCfg.IdempotencyTTL)
	})

	// 5. Event stream audit log.
	g.Go(func() error {
		return runEventAudit(gCtx, app.Logger, app.Metrics, consumer)
	})

	// 6. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}

func runOutboxPublisher(
	ctx context.Context,
	logger zerolog.Logger,
	txManager *postgres.TxManager,
	outboxRepo *postgres.OutboxRepository,
	producer *infraRedis.StreamProducer,
	pollInterval time.Duration,
) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		err := txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			entries, err := outboxRepo.GetPending(txCtx, 10)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				if err := producer.PublishEscrowEvent(
					ctx, entry.AggregateID.String(), entry.EventType, entry.Payload,
				); err != nil {
					logger.Error().Err(err).Str("outbox_id", entry.ID.String()).Msg("Failed to publish outbox event")
					outboxRepo.MarkFailed(txCtx, entry.ID)
					continue
				}
				outboxRepo.MarkPublished(txCtx, entry.ID)
			}
			return nil
		})
		if err != nil {
			logger.Error().Err(err).Msg("Outbox publisher error")
		}
	}
}

func runAutoRelease(
	ctx context.Context,
	logger zerolog.Logger,
	metrics *observability.Metrics,
	escrowSvc *escrowApp.Service,
	interval time.Duration,
	batch int,
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		released, err := escrowSvc.AutoReleaseDue(ctx, batch)
		if err != nil {
			logger.Error().Err(err).Msg("Auto-release sweep error")
			continue
		}
		if released > 0 {
			metrics.AutoReleasesTotal.Add(float64(released))
			logger.Info().Int("released", released).Msg("Auto-released transferred transactions")
		}
	}
}

func runSnapshotSweep(
	ctx context.Context,
	logger zerolog.Logger,
	pricingSvc *pricingApp.Service,
	interval time.Duration,
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		swept, err := pricingSvc.SweepExpired(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Snapshot sweep error")
			continue
		}
		if swept > 0 {
			logger.Info().Int64("swept", swept).Msg("Swept expired pricing snapshots")
		}
	}
}

func runIdempotencyCleanup(
	ctx context.Context,
	logger zerolog.Logger,
	repo *postgres.IdempotencyRepository,
	interval time.Duration,
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		deleted, err := repo.Cleanup(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Idempotency cleanup error")
			continue
		}
		if deleted > 0 {
			logger.Info().Int64("deleted", deleted).Msg("Cleaned up expired idempotency keys")
		}
	}
}

func runEventAudit(
	ctx context.Context,
	logger zerolog.Logger,
	metrics *observability.Metrics,
	consumer *infraRedis.StreamConsumer,
) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		streams, err := consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error().Err(err).Msg("Failed to read from event stream")
			time.Sleep(1 * time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				eventType, _ := msg.Values["event_type"].(string)
				aggregateID, _ := msg.Values["aggregate_id"].(string)
				logger.Info().
					Str("event_type", eventType).
					Str("aggregate_id", aggregateID).
					Msg("Escrow event published")
				metrics.WorkerMessagesProcessed.WithLabelValues(infraRedis.EscrowEventStream, "success").Inc()
				consumer.Ack(ctx, msg.ID)
			}
		}
	}
}
