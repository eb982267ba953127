package feed

import (
	"bytes"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
)

// Parsed is one successfully parsed feed: its metadata plus the entry list,
// already truncated to the publisher's entry cap.
type Parsed struct {
	PublisherID string
	Meta        *gofeed.Feed
	Entries     []*gofeed.Item
}

// Parse decodes the downloaded bodies across a CPU-sized worker pool. RSS and
// Atom are autodetected by gofeed. Feeds that fail to parse or contain zero
// entries are dropped and flagged in stats.
func Parse(bodies []Body, publishers map[string]Publisher, workers int, stats map[string]*Report) []Parsed {
	if workers <= 0 {
		workers = 1
	}

	jobs := make(chan Body)
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		parsed []Parsed
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			parser := gofeed.NewParser()
			for body := range jobs {
				pub, ok := publishers[body.PublisherID]
				if !ok {
					continue
				}

				f, err := parser.Parse(bytes.NewReader(body.Raw))
				mu.Lock()
				if _, statOK := stats[body.PublisherID]; !statOK {
					stats[body.PublisherID] = &Report{}
				}
				if err != nil || f == nil || len(f.Items) == 0 {
					stats[body.PublisherID].ParseFailed = true
					mu.Unlock()
					slog.Warn("feed: parse failed", "publisher", pub.PublisherName, "err", err)
					continue
				}

				items := truncateRecent(f.Items, pub.EntryCap())
				stats[body.PublisherID].SizeBefore = len(f.Items)
				if len(items) > 0 {
					parsed = append(parsed, Parsed{
						PublisherID: body.PublisherID,
						Meta:        f,
						Entries:     items,
					})
				}
				mu.Unlock()
			}
		}()
	}

	for _, b := range bodies {
		jobs <- b
	}
	close(jobs)
	wg.Wait()

	slog.Info("feed: parsed", "bodies", len(bodies), "feeds", len(parsed))
	return parsed
}

// truncateRecent keeps at most cap entries, most recent first. Entries without
// a parsed timestamp sort last so they are the first to be cut.
func truncateRecent(items []*gofeed.Item, cap int) []*gofeed.Item {
	if cap <= 0 {
		return nil
	}

	sorted := make([]*gofeed.Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return itemTime(sorted[i]).After(itemTime(sorted[j]))
	})

	if len(sorted) > cap {
		sorted = sorted[:cap]
	}
	return sorted
}

func itemTime(item *gofeed.Item) time.Time {
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	return time.Time{}
}
