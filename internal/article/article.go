// Package article holds the per-entry pipeline stages: normalization,
// unshortening, scrubbing, and the final dedupe/rank pass.
package article

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Article is one entry flowing through the pipeline. Early stages leave the
// enrichment fields zeroed; the JSON shape matches the emitted feed artifact.
type Article struct {
	Title              string    `json:"title"`
	PublishTime        time.Time `json:"publish_time"`
	Img                string    `json:"img"`
	Category           string    `json:"category"`
	Description        string    `json:"description"`
	ContentType        string    `json:"content_type"`
	PublisherID        string    `json:"publisher_id"`
	PublisherName      string    `json:"publisher_name"`
	Channels           []string  `json:"channels,omitempty"`
	CreativeInstanceID string    `json:"creative_instance_id"`
	URL                string    `json:"url"`
	URLHash            string    `json:"url_hash"`
	PopScore           float64   `json:"pop_score"`
	PaddedImg          string    `json:"padded_img"`
	Score              float64   `json:"score"`

	// Link is the feed-provided (possibly shortened) URL; the article identity
	// until unshortening resolves URL and URLHash.
	Link string `json:"-"`
	// Content is the feed entry body, scrubbed before emission. Never emitted.
	Content string `json:"-"`
	// Cached marks an article reused from a prior run.
	Cached bool `json:"-"`
}

// HashURL returns the hex SHA-256 of the canonical URL — the global article
// identity.
func HashURL(url string) string {
	h := sha256.Sum256([]byte(url))
	return hex.EncodeToString(h[:])
}
