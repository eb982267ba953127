// Package feed loads the publisher catalog and turns feed URLs into normalized
// article entries.
package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// defaultMaxEntries caps how many entries a publisher contributes per run when
// the catalog does not say otherwise.
const defaultMaxEntries = 20

// Publisher is one catalog record. The catalog is produced by a separate
// ingest job; records are immutable during a run.
type Publisher struct {
	PublisherID        string   `json:"publisher_id"`
	PublisherName      string   `json:"publisher_name"`
	SiteURL            string   `json:"site_url"`
	FeedURL            string   `json:"feed_url"`
	OriginalFeed       string   `json:"original_feed,omitempty"`
	Category           string   `json:"category"`
	Enabled            bool     `json:"enabled"`
	MaxEntries         *int     `json:"max_entries,omitempty"`
	Channels           []string `json:"channels,omitempty"`
	OGImages           bool     `json:"og_images"`
	CreativeInstanceID string   `json:"creative_instance_id"`
	ContentType        string   `json:"content_type"`
	Score              float64  `json:"score"`
	DestinationDomains []string `json:"destination_domains,omitempty"`
}

// EntryCap returns the per-run entry limit for this publisher.
func (p Publisher) EntryCap() int {
	if p.MaxEntries == nil {
		return defaultMaxEntries
	}
	return *p.MaxEntries
}

var reTag = regexp.MustCompile(`<[^>]*>`)

// sanitizeField trims a catalog string and strips any markup that slipped
// through the ingest job.
func sanitizeField(s string) string {
	s = reTag.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return strings.TrimSpace(s)
}

// HashID returns the stable publisher/article identifier: the hex SHA-256 of s.
func HashID(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// LoadPublishers reads the catalog JSON at path and returns the enabled
// publishers keyed by publisher_id. Every string field is sanitized; a missing
// publisher_id is recomputed from the original (or current) feed URL.
func LoadPublishers(path string) (map[string]Publisher, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("feed: read catalog %s: %w", path, err)
	}

	var records []Publisher
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("feed: parse catalog %s: %w", path, err)
	}

	publishers := make(map[string]Publisher, len(records))
	for _, p := range records {
		if !p.Enabled {
			continue
		}

		p.PublisherName = sanitizeField(p.PublisherName)
		p.Category = sanitizeField(p.Category)
		p.ContentType = sanitizeField(p.ContentType)
		if p.ContentType == "" {
			p.ContentType = "article"
		}
		for i, ch := range p.Channels {
			p.Channels[i] = sanitizeField(ch)
		}

		if p.PublisherID == "" {
			src := p.OriginalFeed
			if src == "" {
				src = p.FeedURL
			}
			p.PublisherID = HashID(src)
		}

		if p.PublisherName == "" || p.FeedURL == "" {
			continue
		}

		publishers[p.PublisherID] = p
	}

	return publishers, nil
}
