package article

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

type fakeCache struct {
	stored map[string]*Article
	hits   []string
}

func (f *fakeCache) GetCachedArticle(ctx context.Context, urlHash, locale string) (*Article, error) {
	f.hits = append(f.hits, urlHash)
	return f.stored[urlHash], nil
}

func TestUnshortenResolvesAndHashes(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/short" {
			http.Redirect(w, r, srv.URL+"/full-story", http.StatusFound)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := fetch.NewClient(5*time.Second, nil)
	entries := []*Article{{Title: "one", Link: srv.URL + "/short"}}

	newArts, cached := Unshorten(context.Background(), client, &fakeCache{}, "en_US", entries, 2)
	require.Len(t, newArts, 1)
	assert.Empty(t, cached)
	assert.Equal(t, srv.URL+"/full-story", newArts[0].URL)
	assert.Equal(t, HashURL(srv.URL+"/full-story"), newArts[0].URLHash)
}

func TestUnshortenDropsDeadLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := fetch.NewClient(5*time.Second, nil)
	entries := []*Article{{Title: "gone", Link: srv.URL + "/gone"}}

	newArts, cached := Unshorten(context.Background(), client, &fakeCache{}, "en_US", entries, 1)
	assert.Empty(t, newArts)
	assert.Empty(t, cached)
}

func TestUnshortenSplitsCachedStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	knownHash := HashURL(srv.URL + "/known")
	cache := &fakeCache{stored: map[string]*Article{
		knownHash: {Title: "stored title", URLHash: knownHash, Img: "https://img.example/x.jpg", PopScore: 42},
	}}

	client := fetch.NewClient(5*time.Second, nil)
	entries := []*Article{
		{Title: "known", Link: srv.URL + "/known"},
		{Title: "fresh", Link: srv.URL + "/fresh"},
	}

	newArts, cached := Unshorten(context.Background(), client, cache, "en_US", entries, 2)
	require.Len(t, newArts, 1)
	require.Len(t, cached, 1)
	assert.Equal(t, "fresh", newArts[0].Title)
	// The stored record wins over the freshly parsed entry.
	assert.Equal(t, "stored title", cached[0].Title)
	assert.True(t, cached[0].Cached)
	assert.InDelta(t, 42, cached[0].PopScore, 1e-9)
}
