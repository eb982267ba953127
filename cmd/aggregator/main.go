// Command aggregator runs one aggregation pass for one locale: download the
// catalog's feeds, normalize and enrich the entries, persist them, and publish
// the feed artifacts. It exits non-zero when the run cannot complete.
package main

import (
	"context"
	"log/slog"
	"os"

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

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		slog.Error("aggregator: database connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	storageClient, err := storage.NewClient(ctx, cfg.S3, cfg.Aggregate.NoUpload)
	if err != nil {
		slog.Error("aggregator: storage client creation failed", "err", err)
		os.Exit(1)
	}

	ag := aggregator.New(cfg.Aggregate, store.NewStore(pool), storageClient)
	if err := ag.Run(ctx); err != nil {
		slog.Error("aggregator: run failed", "err", err)
		os.Exit(1)
	}
}
