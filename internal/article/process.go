package article

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/Saul-Punybz/newswire/internal/feed"
)

var reWhitespace = regexp.MustCompile(`\s+`)

// cleanField trims a feed text field and collapses runs of whitespace. Markup
// survives here; the scrub stage strips it after enrichment.
func cleanField(s string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}

// dateFormats covers the timestamp shapes seen in the wild across RSS and Atom
// feeds.
var dateFormats = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"02 Jan 2006 15:04:05 -0700",
	"02 Jan 2006 15:04:05 MST",
}

// ParseDate tries each known feed date format and returns the timestamp in
// UTC, or the zero time when nothing matches.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, f := range dateFormats {
		if t, err := time.Parse(f, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// entryTime resolves the entry timestamp, preferring what gofeed already
// parsed and falling back to the raw strings.
func entryTime(item *gofeed.Item) time.Time {
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if t := ParseDate(item.Updated); !t.IsZero() {
		return t
	}
	return ParseDate(item.Published)
}

// entryImage picks the primary image URL: a media enclosure first, then the
// first <img> in the entry content. Publishers with og_images enabled get a
// page-level fallback later, in the image stage.
func entryImage(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" && strings.HasPrefix(enc.Type, "image/") {
			return strings.TrimSpace(enc.URL)
		}
	}
	if item.Image != nil && item.Image.URL != "" {
		return strings.TrimSpace(item.Image.URL)
	}

	for _, html := range []string{item.Content, item.Description} {
		if html == "" {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			continue
		}
		if src, ok := doc.Find("img").First().Attr("src"); ok && strings.TrimSpace(src) != "" {
			return strings.TrimSpace(src)
		}
	}
	return ""
}

// ProcessEntry normalizes one feed entry against its publisher record. It
// returns nil when the entry is rejected: empty or profane title, missing
// link, or no parsable timestamp.
func ProcessEntry(item *gofeed.Item, pub feed.Publisher) *Article {
	title := cleanField(item.Title)
	if title == "" || ContainsProfanity(title) {
		return nil
	}

	link := strings.TrimSpace(item.Link)
	if link == "" {
		return nil
	}

	updated := entryTime(item)
	if updated.IsZero() {
		return nil
	}

	return &Article{
		Title:              title,
		PublishTime:        updated,
		Img:                entryImage(item),
		Category:           pub.Category,
		Description:        cleanField(item.Description),
		Content:            item.Content,
		ContentType:        pub.ContentType,
		PublisherID:        pub.PublisherID,
		PublisherName:      pub.PublisherName,
		Channels:           pub.Channels,
		CreativeInstanceID: pub.CreativeInstanceID,
		Link:               link,
	}
}

// ProcessFeeds runs ProcessEntry across all parsed feeds on a CPU-sized worker
// pool. Accepted entries bump the publisher's size_after_insert stat.
func ProcessFeeds(parsed []feed.Parsed, publishers map[string]feed.Publisher, workers int, stats map[string]*feed.Report) []*Article {
	if workers <= 0 {
		workers = 1
	}

	type job struct {
		item *gofeed.Item
		pub  feed.Publisher
		key  string
	}

	jobs := make(chan job)
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		entries []*Article
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				a := ProcessEntry(j.item, j.pub)
				if a == nil {
					continue
				}
				mu.Lock()
				entries = append(entries, a)
				if st, ok := stats[j.key]; ok {
					st.SizeAfterInsert++
				}
				mu.Unlock()
			}
		}()
	}

	for _, pf := range parsed {
		pub, ok := publishers[pf.PublisherID]
		if !ok {
			continue
		}
		for _, item := range pf.Entries {
			jobs <- job{item: item, pub: pub, key: pf.PublisherID}
		}
	}
	close(jobs)
	wg.Wait()

	slog.Info("article: processed entries", "accepted", len(entries))
	return entries
}
