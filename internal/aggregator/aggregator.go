// Package aggregator sequences the per-locale aggregation run: download,
// parse, enrich, image, scrub, rank, persist, emit.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Saul-Punybz/newswire/internal/article"
	"github.com/Saul-Punybz/newswire/internal/config"
	"github.com/Saul-Punybz/newswire/internal/feed"
	"github.com/Saul-Punybz/newswire/internal/fetch"
	"github.com/Saul-Punybz/newswire/internal/images"
	"github.com/Saul-Punybz/newswire/internal/services"
	"github.com/Saul-Punybz/newswire/internal/store"
)

// Store is the persistence surface the pipeline needs. *store.Store implements
// it; tests substitute an in-memory fake.
type Store interface {
	EnsureLocale(ctx context.Context, locale string) error
	InsertAggregationStats(ctx context.Context, id uuid.UUID, startTime time.Time, locale string) error
	UpdateAggregationStats(ctx context.Context, id uuid.UUID, upd store.AggregationUpdate) error
	GetCachedArticle(ctx context.Context, urlHash, locale string) (*article.Article, error)
	UpdateOrInsertArticle(ctx context.Context, a *article.Article, locale string, aggregationID uuid.UUID) error
	InsertExternalChannels(ctx context.Context, urlHash string, channels []string, rawJSON []byte) error
	GetChannels(ctx context.Context) ([]string, error)
}

// Uploader is the object-store surface for publishing run artifacts.
type Uploader interface {
	UploadBytes(ctx context.Context, key string, body []byte, contentType string) error
	PublishFile(ctx context.Context, path, key string) error
	Configured() bool
}

// Aggregator owns one aggregation run for one locale.
type Aggregator struct {
	cfg      config.AggregateConfig
	store    Store
	uploader Uploader

	fetch      *fetch.Client
	popularity *services.Popularity
	channels   *services.Channels
	og         *images.OGExtractor

	// ID identifies the run in aggregation_stats and on every record the run
	// writes.
	ID        uuid.UUID
	StartTime time.Time
}

// New builds an Aggregator from configuration.
func New(cfg config.AggregateConfig, st Store, up Uploader) *Aggregator {
	client := fetch.NewClient(cfg.RequestTimeout, cfg.DefaultHeaders)
	return &Aggregator{
		cfg:        cfg,
		store:      st,
		uploader:   up,
		fetch:      client,
		popularity: services.NewPopularity(cfg.PopularityURL, cfg.RequestTimeout),
		channels:   services.NewChannels(cfg.ChannelsURL, cfg.ExternalChannelsURL, cfg.RequestTimeout),
		og:         images.NewOGExtractor(client.UserAgent(), cfg.RequestTimeout),
		ID:         uuid.New(),
		StartTime:  time.Now().UTC(),
	}
}

// Run executes the full pipeline and writes the feed artifact, channel list,
// and report. Per-item failures are absorbed; only a missing catalog or an
// unwritable output is fatal.
func (ag *Aggregator) Run(ctx context.Context) error {
	locale := ag.cfg.Locale()

	publishers, err := feed.LoadPublishers(filepath.Join(ag.cfg.OutputPath, ag.cfg.FeedSourcesPath))
	if err != nil {
		// Fatal: no run row is created for a run that cannot start.
		return fmt.Errorf("aggregate: load publishers: %w", err)
	}

	slog.Info("aggregate: starting",
		"id", ag.ID, "locale", locale, "publishers", len(publishers))

	if err := ag.store.EnsureLocale(ctx, locale); err != nil {
		slog.Error("aggregate: ensure locale", "err", err)
	}
	if err := ag.store.InsertAggregationStats(ctx, ag.ID, ag.StartTime, locale); err != nil {
		slog.Error("aggregate: insert aggregation stats", "err", err)
	}

	stats := make(map[string]*feed.Report)

	// Stage: download + parse.
	bodies := feed.Download(ctx, ag.fetch, publishers, ag.cfg.ThreadPoolSize, stats)
	ag.updateStats(ctx, store.AggregationUpdate{FeedCount: i64(len(bodies))})

	parsed := feed.Parse(bodies, publishers, ag.cfg.Concurrency, stats)

	// Stage: per-entry normalization.
	entries := article.ProcessFeeds(parsed, publishers, ag.cfg.Concurrency, stats)
	ag.updateStats(ctx, store.AggregationUpdate{StartArticleCount: i64(len(entries))})

	// Stage: unshorten + cache split.
	newArts, cached := article.Unshorten(ctx, ag.fetch, ag.store, locale, entries, ag.cfg.ThreadPoolSize)
	ag.updateStats(ctx, store.AggregationUpdate{CacheHitCount: i64(len(cached))})

	// Stage: popularity, normalized per stream.
	newArts = ag.popularity.ScoreBatch(ctx, newArts, ag.cfg.ThreadPoolSize)
	services.Normalize(newArts, ag.cfg.PopScoreRange)
	cached = ag.popularity.ScoreBatch(ctx, cached, ag.cfg.ThreadPoolSize)
	services.Normalize(cached, ag.cfg.PopScoreRange)

	// Stage: channel prediction, locale gated.
	if locale == config.PredictedChannelsLocale {
		ag.channels.PredictBatch(ctx, newArts, ag.cfg.ThreadPoolSize)
	}

	// Stage: image pipeline.
	pipeline := &images.Pipeline{
		Fetch:       ag.fetch,
		OG:          ag.og,
		Putter:      ag.uploader,
		CDNBase:     ag.cfg.PCDNURLBase,
		IOPoolSize:  ag.cfg.ThreadPoolSize,
		CPUPoolSize: ag.cfg.Concurrency,
	}
	imaged := pipeline.Run(ctx, newArts, publishers)

	// Stage: scrub new articles.
	article.Scrub(imaged, ag.cfg.Concurrency)

	// Stage: merge, dedupe, rank.
	merged := make([]*article.Article, 0, len(imaged)+len(cached))
	merged = append(merged, imaged...)
	merged = append(merged, cached...)

	pubScores := make(map[string]float64, len(publishers))
	for id, p := range publishers {
		pubScores[id] = p.Score
	}
	ranked := article.DedupeAndRank(merged, pubScores, time.Now().UTC())

	// Stage: persist.
	ag.persist(ctx, ranked, locale)

	// Stage: external classification, locale gated, new articles only.
	if locale == config.PredictedChannelsLocale {
		ag.externalChannels(ctx, imaged)
	}

	// Emit artifacts.
	if err := ag.emit(ctx, ranked, stats); err != nil {
		return err
	}

	runSecs := int64(time.Since(ag.StartTime).Seconds())
	ag.updateStats(ctx, store.AggregationUpdate{
		RunTimeSecs:     &runSecs,
		Success:         boolPtr(true),
		EndArticleCount: i64(len(ranked)),
	})

	slog.Info("aggregate: complete",
		"id", ag.ID, "articles", len(ranked), "run_time_secs", runSecs)
	return nil
}

// persist upserts every ranked article plus its cache record on the I/O pool.
// A store failure drops the record from the database, never from the artifact.
func (ag *Aggregator) persist(ctx context.Context, ranked []*article.Article, locale string) {
	pool := ag.cfg.ThreadPoolSize
	if pool <= 0 {
		pool = 1
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, pool)
	for _, a := range ranked {
		wg.Add(1)
		go func(a *article.Article) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ag.store.UpdateOrInsertArticle(ctx, a, locale, ag.ID); err != nil {
				slog.Error("aggregate: persist article", "url_hash", a.URLHash, "err", err)
			}
		}(a)
	}
	wg.Wait()
}

// externalChannels fetches and stores the external classifier output for each
// new article. Failures are non-fatal.
func (ag *Aggregator) externalChannels(ctx context.Context, arts []*article.Article) {
	pool := ag.cfg.ThreadPoolSize
	if pool <= 0 {
		pool = 1
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, pool)
	for _, a := range arts {
		wg.Add(1)
		go func(a *article.Article) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			channels, raw, err := ag.channels.External(ctx, a.URL)
			if err != nil {
				slog.Debug("aggregate: external channels", "url", a.URL, "err", err)
				return
			}
			rawJSON, err := json.Marshal(raw)
			if err != nil {
				slog.Error("aggregate: marshal external channels", "err", err)
				return
			}
			if err := ag.store.InsertExternalChannels(ctx, a.URLHash, channels, rawJSON); err != nil {
				slog.Error("aggregate: insert external channels", "url_hash", a.URLHash, "err", err)
			}
		}(a)
	}
	wg.Wait()
}

// emit writes the feed artifact, channel list, and report to disk, then
// publishes them to the public bucket unless uploads are disabled.
func (ag *Aggregator) emit(ctx context.Context, ranked []*article.Article, stats map[string]*feed.Report) error {
	if err := os.MkdirAll(ag.cfg.OutputFeedPath, 0o755); err != nil {
		return fmt.Errorf("aggregate: create output dir: %w", err)
	}
	if err := os.MkdirAll(ag.cfg.OutputPath, 0o755); err != nil {
		return fmt.Errorf("aggregate: create output dir: %w", err)
	}

	feedJSON, err := json.Marshal(ranked)
	if err != nil {
		return fmt.Errorf("aggregate: marshal feed: %w", err)
	}

	feedPath := filepath.Join(ag.cfg.OutputFeedPath, ag.cfg.FeedPath+".json")
	tmpPath := feedPath + "-tmp"
	if err := os.WriteFile(tmpPath, feedJSON, 0o644); err != nil {
		return fmt.Errorf("aggregate: write feed: %w", err)
	}
	if err := os.Rename(tmpPath, feedPath); err != nil {
		return fmt.Errorf("aggregate: finalize feed: %w", err)
	}

	channels, err := ag.store.GetChannels(ctx)
	if err != nil {
		slog.Error("aggregate: get channels", "err", err)
	}
	if channels == nil {
		channels = []string{}
	}
	sort.Strings(channels)
	channelsJSON, err := json.Marshal(channels)
	if err != nil {
		return fmt.Errorf("aggregate: marshal channels: %w", err)
	}
	channelPath := filepath.Join(ag.cfg.OutputPath, ag.cfg.ChannelFile)
	if err := os.WriteFile(channelPath, channelsJSON, 0o644); err != nil {
		return fmt.Errorf("aggregate: write channels: %w", err)
	}

	report := map[string]any{"feed_stats": stats}
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("aggregate: marshal report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(ag.cfg.OutputPath, "report.json"), reportJSON, 0o644); err != nil {
		return fmt.Errorf("aggregate: write report: %w", err)
	}

	if ag.uploader != nil && ag.uploader.Configured() {
		// "sources.en_US" -> ".en_US"; the legacy no-dot key is kept for old
		// clients that request "feed.en_USjson".
		suffix := strings.TrimPrefix(ag.cfg.SourcesFile, "sources")
		keys := []string{
			"brave-today/" + ag.cfg.FeedPath + suffix + ".json",
			"brave-today/" + ag.cfg.FeedPath + suffix + "json",
		}
		for _, key := range keys {
			if err := ag.uploader.PublishFile(ctx, feedPath, key); err != nil {
				slog.Error("aggregate: publish feed", "key", key, "err", err)
			}
		}
		if err := ag.uploader.PublishFile(ctx, channelPath, "brave-today/"+ag.cfg.ChannelFile); err != nil {
			slog.Error("aggregate: publish channels", "err", err)
		}
	}

	return nil
}

func (ag *Aggregator) updateStats(ctx context.Context, upd store.AggregationUpdate) {
	if err := ag.store.UpdateAggregationStats(ctx, ag.ID, upd); err != nil {
		slog.Error("aggregate: update aggregation stats", "err", err)
	}
}

func i64(v int) *int64 {
	n := int64(v)
	return &n
}

func boolPtr(v bool) *bool {
	return &v
}
