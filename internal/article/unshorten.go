package article

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Saul-Punybz/newswire/internal/fetch"
)

// CacheLookup answers whether an article is already known for a locale. A hit
// returns the stored enriched article (with its prior image and scores) and
// increments the cache counter as a side effect.
type CacheLookup interface {
	GetCachedArticle(ctx context.Context, urlHash, locale string) (*Article, error)
}

// Unshorten resolves every entry's link through its redirect chain, derives
// the canonical URL and url_hash, and splits the set into new and cached
// streams. Entries whose link cannot be resolved are dropped.
func Unshorten(ctx context.Context, client *fetch.Client, cache CacheLookup, locale string, entries []*Article, poolSize int) (newArticles, cached []*Article) {
	if poolSize <= 0 {
		poolSize = 1
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	sem := make(chan struct{}, poolSize)

	for _, a := range entries {
		wg.Add(1)
		go func(a *Article) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			resolved, err := client.Resolve(ctx, a.Link)
			if err != nil {
				slog.Debug("article: unshorten failed", "link", a.Link, "err", err)
				return
			}
			a.URL = resolved
			a.URLHash = HashURL(resolved)

			if cache != nil {
				stored, err := cache.GetCachedArticle(ctx, a.URLHash, locale)
				if err != nil {
					slog.Warn("article: cache lookup failed", "url_hash", a.URLHash, "err", err)
				} else if stored != nil {
					stored.Cached = true
					mu.Lock()
					cached = append(cached, stored)
					mu.Unlock()
					return
				}
			}

			mu.Lock()
			newArticles = append(newArticles, a)
			mu.Unlock()
		}(a)
	}
	wg.Wait()

	slog.Info("article: unshortened", "in", len(entries), "new", len(newArticles), "cached", len(cached))
	return newArticles, cached
}
