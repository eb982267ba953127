// Command worker runs the aggregation pipeline on a schedule. Each tick is a
// full per-locale run: feed download, enrichment, persistence, and artifact
// publication.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Saul-Punybz/newswire/internal/aggregator"
	"github.com/Saul-Punybz/newswire/internal/config"
	"github.com/Saul-Punybz/newswire/internal/db"
	"github.com/Saul-Punybz/newswire/internal/storage"
	"github.com/Saul-Punybz/newswire/internal/store"
)

func main() {
	// Structured JSON logging.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("worker: starting aggregation worker")

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		slog.Error("worker: database connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	storageClient, err := storage.NewClient(ctx, cfg.S3, cfg.Aggregate.NoUpload)
	if err != nil {
		slog.Error("worker: storage client creation failed", "err", err)
		os.Exit(1)
	}

	st := store.NewStore(pool)

	runOnce := func(jobCtx context.Context) {
		// A fresh Aggregator per tick: each run gets its own id and clock.
		ag := aggregator.New(cfg.Aggregate, st, storageClient)
		if err := ag.Run(jobCtx); err != nil {
			slog.Error("worker: aggregation run failed", "err", err)
		}
	}

	// Track in-flight runs for graceful shutdown.
	var wg sync.WaitGroup

	c := cron.New()
	_, err = c.AddFunc("0 * * * *", func() {
		wg.Add(1)
		defer wg.Done()

		jobCtx, jobCancel := context.WithTimeout(ctx, 45*time.Minute)
		defer jobCancel()

		slog.Info("cron: aggregation run triggered")
		runOnce(jobCtx)
	})
	if err != nil {
		slog.Error("worker: add aggregation cron", "err", err)
		os.Exit(1)
	}

	c.Start()
	slog.Info("worker: cron scheduler started", "jobs", len(c.Entries()))

	// Run once on startup so the first artifact doesn't wait for the next
	// scheduled tick.
	wg.Add(1)
	go func() {
		defer wg.Done()

		select {
		case <-time.After(5 * time.Second):
		case <-ctx.Done():
			return
		}

		jobCtx, jobCancel := context.WithTimeout(ctx, 45*time.Minute)
		defer jobCancel()

		slog.Info("worker: running initial aggregation on startup")
		runOnce(jobCtx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	slog.Info("worker: received shutdown signal", "signal", sig.String())

	slog.Info("worker: stopping cron scheduler")
	cronCtx := c.Stop()
	cancel()

	select {
	case <-cronCtx.Done():
		slog.Info("worker: cron scheduler stopped")
	case <-time.After(30 * time.Second):
		slog.Warn("worker: cron scheduler stop timed out")
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("worker: in-flight run complete")
	case <-time.After(60 * time.Second):
		slog.Warn("worker: timed out waiting for in-flight run")
	}

	pool.Close()
	slog.Info("worker: shutdown complete")
}
