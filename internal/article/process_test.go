package article

import (
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Saul-Punybz/newswire/internal/feed"
)

func testPub() feed.Publisher {
	return feed.Publisher{
		PublisherID:   "pub-1",
		PublisherName: "Alpha News",
		Category:      "Top News",
		ContentType:   "article",
		Channels:      []string{"Top News"},
	}
}

func testItem() *gofeed.Item {
	now := time.Now().UTC()
	return &gofeed.Item{
		Title:           "A perfectly normal headline",
		Link:            "https://alpha.example/story",
		Description:     "Some   summary\n text",
		PublishedParsed: &now,
	}
}

func TestProcessEntryAccepts(t *testing.T) {
	a := ProcessEntry(testItem(), testPub())
	require.NotNil(t, a)
	assert.Equal(t, "A perfectly normal headline", a.Title)
	assert.Equal(t, "Some summary text", a.Description)
	assert.Equal(t, "https://alpha.example/story", a.Link)
	assert.Equal(t, "pub-1", a.PublisherID)
	assert.Equal(t, "Top News", a.Category)
	assert.False(t, a.PublishTime.IsZero())
	// Identity is assigned later, by unshortening.
	assert.Empty(t, a.URL)
	assert.Empty(t, a.URLHash)
}

func TestProcessEntryRejectsEmptyTitle(t *testing.T) {
	item := testItem()
	item.Title = "   "
	assert.Nil(t, ProcessEntry(item, testPub()))
}

func TestProcessEntryRejectsProfaneTitle(t *testing.T) {
	item := testItem()
	item.Title = "This headline is fucking bad"
	assert.Nil(t, ProcessEntry(item, testPub()))
}

func TestProcessEntryRejectsMissingLink(t *testing.T) {
	item := testItem()
	item.Link = ""
	assert.Nil(t, ProcessEntry(item, testPub()))
}

func TestProcessEntryRejectsUnparsableTimestamp(t *testing.T) {
	item := testItem()
	item.PublishedParsed = nil
	item.Published = "not a date"
	assert.Nil(t, ProcessEntry(item, testPub()))
}

func TestProcessEntryFallsBackToRawDate(t *testing.T) {
	item := testItem()
	item.PublishedParsed = nil
	item.Published = "Mon, 2 Jan 2006 15:04:05 -0700"
	a := ProcessEntry(item, testPub())
	require.NotNil(t, a)
	assert.Equal(t, 2006, a.PublishTime.Year())
}

func TestEntryImagePrefersEnclosure(t *testing.T) {
	item := testItem()
	item.Enclosures = []*gofeed.Enclosure{{URL: "https://img.example/enc.jpg", Type: "image/jpeg"}}
	item.Content = `<p><img src="https://img.example/inline.jpg"></p>`
	assert.Equal(t, "https://img.example/enc.jpg", entryImage(item))
}

func TestEntryImageSkipsNonImageEnclosure(t *testing.T) {
	item := testItem()
	item.Enclosures = []*gofeed.Enclosure{{URL: "https://img.example/audio.mp3", Type: "audio/mpeg"}}
	item.Content = `<p><img src="https://img.example/inline.jpg"></p>`
	assert.Equal(t, "https://img.example/inline.jpg", entryImage(item))
}

func TestEntryImageFromDescription(t *testing.T) {
	item := testItem()
	item.Description = `text <img src="https://img.example/desc.png"> more`
	assert.Equal(t, "https://img.example/desc.png", entryImage(item))
}

func TestEntryImageNone(t *testing.T) {
	assert.Empty(t, entryImage(testItem()))
}

func TestParseDate(t *testing.T) {
	cases := map[string]bool{
		"Mon, 02 Jan 2006 15:04:05 -0700": true,
		"2006-01-02T15:04:05Z":            true,
		"2006-01-02":                      true,
		"yesterday":                       false,
		"":                                false,
	}
	for in, ok := range cases {
		got := ParseDate(in)
		assert.Equal(t, ok, !got.IsZero(), "input %q", in)
	}
}

func TestContainsProfanity(t *testing.T) {
	assert.True(t, ContainsProfanity("Total Bullshit Exposed"))
	assert.True(t, ContainsProfanity("what the FUCK happened"))
	// Substrings inside clean words must not match.
	assert.False(t, ContainsProfanity("Scunthorpe council meets again"))
	assert.False(t, ContainsProfanity("Analysis of the market"))
	assert.False(t, ContainsProfanity("Cocktail recipes for summer"))
}

func TestProcessFeedsCountsAccepted(t *testing.T) {
	pub := testPub()
	good := testItem()
	bad := testItem()
	bad.Link = ""

	parsed := []feed.Parsed{{PublisherID: pub.PublisherID, Entries: []*gofeed.Item{good, bad}}}
	pubs := map[string]feed.Publisher{pub.PublisherID: pub}
	stats := map[string]*feed.Report{pub.PublisherID: {SizeBefore: 2}}

	entries := ProcessFeeds(parsed, pubs, 2, stats)
	assert.Len(t, entries, 1)
	assert.Equal(t, 1, stats[pub.PublisherID].SizeAfterInsert)
}
