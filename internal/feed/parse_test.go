package feed

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rssBody(items ...string) []byte {
	return []byte(`<?xml version="1.0"?>
<rss version="2.0"><channel><title>Test</title>` + strings.Join(items, "") + `</channel></rss>`)
}

func rssItem(title string, published time.Time) string {
	return fmt.Sprintf(
		`<item><title>%s</title><link>https://example.com/%s</link><pubDate>%s</pubDate></item>`,
		title, strings.ReplaceAll(title, " ", "-"), published.Format(time.RFC1123Z))
}

func TestParseDecodesRSS(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	bodies := []Body{{PublisherID: "a", Raw: rssBody(
		rssItem("first", now),
		rssItem("second", now.Add(-time.Hour)),
	)}}
	pubs := map[string]Publisher{"a": {PublisherID: "a", PublisherName: "Alpha"}}
	stats := map[string]*Report{}

	parsed := Parse(bodies, pubs, 2, stats)
	require.Len(t, parsed, 1)
	assert.Len(t, parsed[0].Entries, 2)
	assert.Equal(t, 2, stats["a"].SizeBefore)
	assert.False(t, stats["a"].ParseFailed)
}

func TestParseFlagsBrokenFeed(t *testing.T) {
	bodies := []Body{{PublisherID: "a", Raw: []byte("this is not xml")}}
	pubs := map[string]Publisher{"a": {PublisherID: "a", PublisherName: "Alpha"}}
	stats := map[string]*Report{}

	parsed := Parse(bodies, pubs, 1, stats)
	assert.Empty(t, parsed)
	assert.True(t, stats["a"].ParseFailed)
}

func TestParseFlagsEmptyFeed(t *testing.T) {
	bodies := []Body{{PublisherID: "a", Raw: rssBody()}}
	pubs := map[string]Publisher{"a": {PublisherID: "a", PublisherName: "Alpha"}}
	stats := map[string]*Report{}

	parsed := Parse(bodies, pubs, 1, stats)
	assert.Empty(t, parsed)
	assert.True(t, stats["a"].ParseFailed)
}

func TestParseHonorsEntryCap(t *testing.T) {
	now := time.Now().UTC()
	var items []string
	for i := 0; i < 5; i++ {
		items = append(items, rssItem(fmt.Sprintf("item %d", i), now.Add(-time.Duration(i)*time.Hour)))
	}
	two := 2
	bodies := []Body{{PublisherID: "a", Raw: rssBody(items...)}}
	pubs := map[string]Publisher{"a": {PublisherID: "a", PublisherName: "Alpha", MaxEntries: &two}}
	stats := map[string]*Report{}

	parsed := Parse(bodies, pubs, 1, stats)
	require.Len(t, parsed, 1)
	require.Len(t, parsed[0].Entries, 2)
	// The freshest two survive.
	assert.Equal(t, "item 0", parsed[0].Entries[0].Title)
	assert.Equal(t, "item 1", parsed[0].Entries[1].Title)
	assert.Equal(t, 5, stats["a"].SizeBefore)
}

func TestParseZeroCapDropsFeed(t *testing.T) {
	zero := 0
	bodies := []Body{{PublisherID: "a", Raw: rssBody(rssItem("only", time.Now()))}}
	pubs := map[string]Publisher{"a": {PublisherID: "a", PublisherName: "Alpha", MaxEntries: &zero}}
	stats := map[string]*Report{}

	parsed := Parse(bodies, pubs, 1, stats)
	assert.Empty(t, parsed)
	assert.False(t, stats["a"].ParseFailed)
}

func TestTruncateRecentSortsUndatedLast(t *testing.T) {
	now := time.Now().UTC()
	dated := &gofeed.Item{Title: "dated", PublishedParsed: &now}
	undated := &gofeed.Item{Title: "undated"}

	out := truncateRecent([]*gofeed.Item{undated, dated}, 1)
	require.Len(t, out, 1)
	assert.Equal(t, "dated", out[0].Title)
}
