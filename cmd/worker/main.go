// Package main is the entry point for the tsdstock background worker. It
// relays committed ledger events from the outbox and prunes expired rows.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tsdstock/internal/infrastructure/storage/postgres"
	"tsdstock/pkg/config"
	"tsdstock/pkg/logger"
)

// publishedRetention is how long relayed outbox rows are kept.
const publishedRetention = 7 * 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	if cfg.DB.Driver != "postgres" {
		log.Fatalw("worker requires the postgres driver", "driver", cfg.DB.Driver)
	}

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	log.Info("starting tsdstock worker")

	poolCfg := postgres.DefaultPoolConfig(cfg.DB.ConnectionString())
	poolCfg.ApplicationName = cfg.App.Name + "-worker"
	poolCfg.MaxConns = 4
	poolCfg.MinConns = 1
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txm := postgres.NewTxManager(pool, postgres.DefaultTxOptions())
	worker := NewWorker(
		postgres.NewOutboxRelay(txm, cfg.Worker.BatchSize, postgres.OutboxHandlerFunc(logEvent)),
		postgres.NewIdempotencyStore(txm, cfg.Idempotency.TTL),
		pool,
		cfg.Worker.PollInterval,
		log,
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// logEvent is the relay sink: every committed ledger event is written to the
// structured log, where log shipping picks it up.
func logEvent(ctx context.Context, msg *postgres.OutboxMessage) error {
	logger.Info(ctx, "ledger event",
		"event_id", msg.ID,
		"event_type", msg.EventType,
		"aggregate_type", msg.AggregateType,
		"aggregate_id", msg.AggregateID,
		"user_id", msg.UserID,
		"payload", string(msg.Payload),
		"created_at", msg.CreatedAt)
	return nil
}

// Worker runs the periodic jobs.
type Worker struct {
	relay        *postgres.OutboxRelay
	idempotency  *postgres.IdempotencyStore
	pool         *postgres.Pool
	pollInterval time.Duration
	log          *logger.Logger
}

// NewWorker creates a worker.
func NewWorker(
	relay *postgres.OutboxRelay,
	idem *postgres.IdempotencyStore,
	pool *postgres.Pool,
	pollInterval time.Duration,
	log *logger.Logger,
) *Worker {
	return &Worker{
		relay:        relay,
		idempotency:  idem,
		pool:         pool,
		pollInterval: pollInterval,
		log:          log.WithComponent("worker"),
	}
}

// Run polls the outbox until ctx is cancelled. Cleanup runs hourly.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(time.Hour)
	defer cleanupTicker.Stop()

	w.cleanup(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.relayOutbox(ctx)
		case <-cleanupTicker.C:
			w.cleanup(ctx)
		}
	}
}

// relayOutbox drains full batches so a backlog clears within one tick.
func (w *Worker) relayOutbox(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := w.relay.ProcessBatch(ctx)
		if err != nil {
			w.log.Errorw("outbox batch failed", "error", err)
			return
		}
		if n == 0 {
			return
		}
		w.log.Debugw("processed outbox batch", "count", n)
	}
}

func (w *Worker) cleanup(ctx context.Context) {
	if n, err := w.idempotency.CleanupExpired(ctx); err != nil {
		w.log.Errorw("idempotency cleanup failed", "error", err)
	} else if n > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", n)
	}

	if n, err := w.relay.PurgePublished(ctx, time.Now().Add(-publishedRetention)); err != nil {
		w.log.Errorw("outbox purge failed", "error", err)
	} else if n > 0 {
		w.log.Infow("purged published outbox messages", "count", n)
	}

	postgres.LogPoolStats(ctx, w.pool)
}
