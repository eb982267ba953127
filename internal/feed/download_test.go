package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Saul-Punybz/newswire/internal/fetch"
)

func TestDownloadCollectsBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("<rss/>"))
	}))
	defer srv.Close()

	pubs := map[string]Publisher{
		"a": {PublisherID: "a", PublisherName: "Alpha", FeedURL: srv.URL + "/a"},
		"b": {PublisherID: "b", PublisherName: "Beta", FeedURL: srv.URL + "/down"},
	}
	stats := map[string]*Report{}

	client := fetch.NewClient(5*time.Second, nil)
	bodies := Download(context.Background(), client, pubs, 4, stats)

	require.Len(t, bodies, 1)
	assert.Equal(t, "a", bodies[0].PublisherID)
	assert.Equal(t, "<rss/>", string(bodies[0].Raw))
	assert.False(t, bodies[0].FetchedAt.IsZero())

	// The failed feed is flagged, never fatal.
	require.Contains(t, stats, "b")
	assert.True(t, stats["b"].DownloadFailed)
	assert.False(t, stats["a"].DownloadFailed)
}
