package main

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/log"
	"fintrack/internal/worker"
)

const (
	reconnectDelay = 5 * time.Second
	statsInterval  = time.Minute
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel, log.ComponentWorker)

	logger.Info("Starting fintrack-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	res, svc := cli.InitBackend(context.Background(), logger, cfg, true)
	defer res.Cleanup()

	// The backend's client is optional and may be missing; the worker needs
	// its own consumer connection regardless.
	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer consumer.Close()

	if res.Ledger == nil {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}
	w := worker.NewSyncWorker(svc.Cascade, res.Store, res.Ledger)

	var handled, failed atomic.Int64
	handle := func(ctx context.Context, msg *amqp.ExpenseChangedMessage) error {
		if err := w.HandleChangeMessage(ctx, msg); err != nil {
			failed.Add(1)
			return err
		}
		handled.Add(1)
		return nil
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			err := consumer.ConsumeExpenseChanges(gctx, handle)
			if gctx.Err() != nil {
				return nil
			}
			logger.Error("Message consumption stopped, reconnecting", log.FieldError, err)
			select {
			case <-gctx.Done():
				return nil
			case <-time.After(reconnectDelay):
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				logger.Info("Worker stats",
					"handled", handled.Load(),
					"failed", failed.Load())
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully",
		"handled", handled.Load(),
		"failed", failed.Load())
}
