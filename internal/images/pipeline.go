package images

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"sync"

	"github.com/Saul-Punybz/newswire/internal/article"
	"github.com/Saul-Punybz/newswire/internal/feed"
	"github.com/Saul-Punybz/newswire/internal/fetch"
)

const (
	// maxImageBytes caps a single cover download.
	maxImageBytes = 5 * 1024 * 1024

	// padThresholdBytes marks an image as needing the pad/recompress pass.
	// Anything smaller is served as-is.
	padThresholdBytes = 24 * 1024

	// coverKeyPrefix is the content-addressed object-store prefix for padded
	// covers.
	coverKeyPrefix = "brave-today/cover_images/"
)

// ObjectPutter uploads one object. Uploads are content-addressed, so repeated
// puts of the same key are idempotent.
type ObjectPutter interface {
	UploadBytes(ctx context.Context, key string, body []byte, contentType string) error
}

// Pipeline drives the three image phases for the new-article stream.
type Pipeline struct {
	Fetch       *fetch.Client
	OG          *OGExtractor
	Putter      ObjectPutter
	CDNBase     string
	IOPoolSize  int
	CPUPoolSize int
}

type fetched struct {
	art     *article.Article
	data    []byte
	isLarge bool
}

// Run resolves, validates, and normalizes every article's primary image.
// Articles whose image is missing, undownloadable, too small, or undecodable
// are dropped. Survivors have padded_img set (the CDN URL for padded covers,
// the original URL for small pass-through images).
func (p *Pipeline) Run(ctx context.Context, articles []*article.Article, publishers map[string]feed.Publisher) []*article.Article {
	downloaded := p.download(ctx, articles, publishers)
	return p.process(ctx, downloaded)
}

// download is the I/O phase: og:image fallback lookup plus the size-capped
// cover fetch.
func (p *Pipeline) download(ctx context.Context, articles []*article.Article, publishers map[string]feed.Publisher) []fetched {
	pool := p.IOPoolSize
	if pool <= 0 {
		pool = 1
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out []fetched
	)
	sem := make(chan struct{}, pool)

	for _, a := range articles {
		wg.Add(1)
		go func(a *article.Article) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if a.Img == "" && p.OG != nil {
				if pub, ok := publishers[a.PublisherID]; ok && pub.OGImages {
					a.Img = p.OG.ImageURL(ctx, a.URL)
				}
			}
			if a.Img == "" || !strings.HasPrefix(a.Img, "http") {
				slog.Debug("images: no usable image, dropping", "url", a.URL)
				return
			}

			data, err := p.Fetch.Fetch(ctx, a.Img, maxImageBytes)
			if err != nil {
				slog.Debug("images: download failed, dropping", "img", a.Img, "err", err)
				return
			}

			mu.Lock()
			out = append(out, fetched{art: a, data: data, isLarge: len(data) > padThresholdBytes})
			mu.Unlock()
		}(a)
	}
	wg.Wait()

	slog.Info("images: downloaded", "in", len(articles), "ok", len(out))
	return out
}

// process is the CPU phase: decode, size check, pad, and upload.
func (p *Pipeline) process(ctx context.Context, items []fetched) []*article.Article {
	pool := p.CPUPoolSize
	if pool <= 0 {
		pool = 1
	}

	jobs := make(chan fetched)
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out []*article.Article
	)

	for i := 0; i < pool; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				a, ok := p.processOne(ctx, item)
				if !ok {
					continue
				}
				mu.Lock()
				out = append(out, a)
				mu.Unlock()
			}
		}()
	}
	for _, item := range items {
		jobs <- item
	}
	close(jobs)
	wg.Wait()

	slog.Info("images: processed", "in", len(items), "ok", len(out))
	return out
}

func (p *Pipeline) processOne(ctx context.Context, item fetched) (*article.Article, bool) {
	img, format, err := Decode(item.data)
	if err != nil {
		slog.Debug("images: decode failed, dropping", "img", item.art.Img, "err", err)
		return nil, false
	}
	if TooSmall(img) {
		slog.Debug("images: too small, dropping", "img", item.art.Img)
		return nil, false
	}

	if !item.isLarge {
		item.art.PaddedImg = item.art.Img
		return item.art, true
	}

	padded, contentType, err := Pad(img, format)
	if err != nil {
		slog.Debug("images: pad failed, dropping", "img", item.art.Img, "err", err)
		return nil, false
	}

	sum := sha256.Sum256(padded)
	key := coverKeyPrefix + hex.EncodeToString(sum[:]) + ".pad"

	if p.Putter != nil {
		if err := p.Putter.UploadBytes(ctx, key, padded, contentType); err != nil {
			slog.Warn("images: upload failed, dropping", "key", key, "err", err)
			return nil, false
		}
	}

	item.art.PaddedImg = strings.TrimRight(p.CDNBase, "/") + "/" + key
	return item.art, true
}
