// Package services wraps the external HTTP enrichment services: article
// popularity and channel classification.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Saul-Punybz/newswire/internal/article"
)

// Popularity calls the popularity service by canonical URL.
type Popularity struct {
	URL     string
	Timeout time.Duration
	HTTP    *http.Client
}

// NewPopularity creates a popularity client. An empty serviceURL disables the
// client; scoring then fails for every article.
func NewPopularity(serviceURL string, timeout time.Duration) *Popularity {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Popularity{
		URL:     serviceURL,
		Timeout: timeout,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Score posts the article URL and returns the raw popularity score: the sum of
// every numeric component in the (nested) response.
func (p *Popularity) Score(ctx context.Context, articleURL string) (float64, error) {
	if p.URL == "" {
		return 0, fmt.Errorf("services: popularity service not configured")
	}

	payload, err := json.Marshal(map[string]string{"url": articleURL})
	if err != nil {
		return 0, fmt.Errorf("services: marshal popularity request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("services: popularity request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.HTTP.Do(req)
	if err != nil {
		return 0, fmt.Errorf("services: popularity call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("services: popularity call: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("services: popularity read: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return 0, fmt.Errorf("services: popularity decode: %w", err)
	}

	return sumNumbers(decoded), nil
}

// sumNumbers walks an arbitrary decoded JSON value and sums every number in
// it. The popularity service nests its score components by provider.
func sumNumbers(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case map[string]any:
		var sum float64
		for _, inner := range t {
			sum += sumNumbers(inner)
		}
		return sum
	case []any:
		var sum float64
		for _, inner := range t {
			sum += sumNumbers(inner)
		}
		return sum
	default:
		return 0
	}
}

// ScoreBatch scores every article on an I/O pool. New articles whose call
// fails are dropped from the returned slice; cached articles keep their stored
// score instead. The survivors carry raw (un-normalized) scores.
func (p *Popularity) ScoreBatch(ctx context.Context, articles []*article.Article, poolSize int) []*article.Article {
	if poolSize <= 0 {
		poolSize = 1
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out []*article.Article
	)
	sem := make(chan struct{}, poolSize)

	for _, a := range articles {
		wg.Add(1)
		go func(a *article.Article) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			raw, err := p.Score(ctx, a.URL)
			if err != nil {
				if a.Cached {
					// Keep the prior normalized score for cached articles.
					mu.Lock()
					out = append(out, a)
					mu.Unlock()
					return
				}
				slog.Debug("services: popularity failed, dropping", "url", a.URL, "err", err)
				return
			}

			a.PopScore = raw
			mu.Lock()
			out = append(out, a)
			mu.Unlock()
		}(a)
	}
	wg.Wait()

	slog.Info("services: popularity scored", "in", len(articles), "out", len(out))
	return out
}

// Normalize rescales raw popularity scores into [1, popRange] with a min-max
// transform over the batch. When every raw score is equal the whole batch
// collapses to 1.0. Each stream (new, cached) is normalized independently.
func Normalize(articles []*article.Article, popRange float64) {
	if len(articles) == 0 {
		return
	}

	min, max := articles[0].PopScore, articles[0].PopScore
	for _, a := range articles[1:] {
		if a.PopScore < min {
			min = a.PopScore
		}
		if a.PopScore > max {
			max = a.PopScore
		}
	}

	for _, a := range articles {
		if max == min {
			a.PopScore = 1.0
			continue
		}
		normalized := popRange * (a.PopScore - min) / (max - min)
		if normalized < 1.0 {
			normalized = 1.0
		}
		a.PopScore = normalized
	}
}
