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

// ChannelConfidence is one entry of the external classifier's raw output.
type ChannelConfidence struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Channels calls the channel classification services. The internal service
// returns predicted channel names; the external one adds raw confidences that
// are persisted for offline evaluation.
type Channels struct {
	PredictURL  string
	ExternalURL string
	Timeout     time.Duration
	HTTP        *http.Client
}

// NewChannels creates a classification client. Empty URLs disable the
// respective calls.
func NewChannels(predictURL, externalURL string, timeout time.Duration) *Channels {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Channels{
		PredictURL:  predictURL,
		ExternalURL: externalURL,
		Timeout:     timeout,
		HTTP:        &http.Client{Timeout: timeout},
	}
}

func (c *Channels) post(ctx context.Context, serviceURL, articleURL string, out any) error {
	payload, err := json.Marshal(map[string]string{"url": articleURL})
	if err != nil {
		return fmt.Errorf("services: marshal channels request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serviceURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("services: channels request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("services: channels call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("services: channels call: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("services: channels read: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("services: channels decode: %w", err)
	}
	return nil
}

// Predict returns the predicted channel names for an article URL.
func (c *Channels) Predict(ctx context.Context, articleURL string) ([]string, error) {
	if c.PredictURL == "" {
		return nil, fmt.Errorf("services: channel prediction not configured")
	}
	var out struct {
		Channels []string `json:"channels"`
	}
	if err := c.post(ctx, c.PredictURL, articleURL, &out); err != nil {
		return nil, err
	}
	return out.Channels, nil
}

// External returns the external classifier's channels and raw confidences.
func (c *Channels) External(ctx context.Context, articleURL string) ([]string, []ChannelConfidence, error) {
	if c.ExternalURL == "" {
		return nil, nil, fmt.Errorf("services: external classification not configured")
	}
	var out struct {
		Channels []string            `json:"channels"`
		Raw      []ChannelConfidence `json:"raw"`
	}
	if err := c.post(ctx, c.ExternalURL, articleURL, &out); err != nil {
		return nil, nil, err
	}
	return out.Channels, out.Raw, nil
}

// PredictBatch attaches predicted channels to every article on an I/O pool.
// Failures are non-fatal: the article keeps its publisher catalog channels.
func (c *Channels) PredictBatch(ctx context.Context, articles []*article.Article, poolSize int) {
	if poolSize <= 0 {
		poolSize = 1
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, poolSize)

	for _, a := range articles {
		wg.Add(1)
		go func(a *article.Article) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			predicted, err := c.Predict(ctx, a.URL)
			if err != nil {
				slog.Debug("services: channel prediction failed", "url", a.URL, "err", err)
				return
			}
			if len(predicted) > 0 {
				a.Channels = predicted
			}
		}(a)
	}
	wg.Wait()

	slog.Info("services: channels predicted", "count", len(articles))
}
