// Package images implements the cover-image pipeline: size-capped download,
// small-image rejection, canvas padding, and content-addressed upload.
package images

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
)

// OGExtractor fetches a page and pulls the og:image (or twitter:image) meta
// tag. Used as the image fallback for publishers with og_images enabled.
type OGExtractor struct {
	userAgent string
	timeout   time.Duration
}

// NewOGExtractor creates an extractor with the given per-page timeout.
func NewOGExtractor(userAgent string, timeout time.Duration) *OGExtractor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OGExtractor{userAgent: userAgent, timeout: timeout}
}

// ImageURL returns the page's og:image URL, or "" on any failure — extraction
// is best-effort and never errors.
func (e *OGExtractor) ImageURL(ctx context.Context, pageURL string) string {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	c := colly.NewCollector(
		colly.UserAgent(e.userAgent),
		colly.AllowURLRevisit(),
		colly.MaxDepth(1),
	)

	var (
		imageURL string
		mu       sync.Mutex
	)

	c.OnHTML(`meta[property="og:image"]`, func(el *colly.HTMLElement) {
		mu.Lock()
		if imageURL == "" {
			imageURL = strings.TrimSpace(el.Attr("content"))
		}
		mu.Unlock()
	})

	c.OnHTML(`meta[name="twitter:image"]`, func(el *colly.HTMLElement) {
		mu.Lock()
		if imageURL == "" {
			imageURL = strings.TrimSpace(el.Attr("content"))
		}
		mu.Unlock()
	})

	c.OnError(func(r *colly.Response, err error) {
		// Best-effort: missing pages and blocks are silently ignored.
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Visit(pageURL)
		c.Wait()
	}()

	select {
	case <-ctx.Done():
		return ""
	case <-done:
	}

	mu.Lock()
	defer mu.Unlock()
	return imageURL
}
