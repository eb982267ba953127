package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Saul-Punybz/newswire/internal/fetch"
)

// maxFeedBytes caps a single feed body. Oversized feeds are treated as a
// download failure.
const maxFeedBytes = 10 * 1024 * 1024

// Body is a downloaded raw feed, discarded after parsing.
type Body struct {
	PublisherID string
	Raw         []byte
	FetchedAt   time.Time
}

// Report holds per-feed statistics surfaced in report.json.
type Report struct {
	SizeBefore      int  `json:"size_before"`
	SizeAfterInsert int  `json:"size_after_insert"`
	DownloadFailed  bool `json:"download_failed,omitempty"`
	ParseFailed     bool `json:"parse_failed,omitempty"`
}

// Download fetches every publisher's feed with up to poolSize in-flight
// requests. A failed feed is dropped and flagged in stats; it never aborts the
// run.
func Download(ctx context.Context, client *fetch.Client, publishers map[string]Publisher, poolSize int, stats map[string]*Report) []Body {
	if poolSize <= 0 {
		poolSize = 1
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		bodies []Body
	)
	sem := make(chan struct{}, poolSize)

	for id, pub := range publishers {
		wg.Add(1)
		go func(id string, pub Publisher) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			raw, err := client.Fetch(ctx, pub.FeedURL, maxFeedBytes)
			mu.Lock()
			defer mu.Unlock()
			if _, ok := stats[id]; !ok {
				stats[id] = &Report{}
			}
			if err != nil {
				stats[id].DownloadFailed = true
				slog.Warn("feed: download failed", "publisher", pub.PublisherName, "kind", fetch.KindOf(err), "err", err)
				return
			}
			bodies = append(bodies, Body{PublisherID: id, Raw: raw, FetchedAt: time.Now().UTC()})
		}(id, pub)
	}
	wg.Wait()

	slog.Info("feed: downloaded", "requested", len(publishers), "ok", len(bodies))
	return bodies
}
