package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Saul-Punybz/newswire/internal/article"
)

func TestPredictReturnsChannels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"channels": ["Science", "Technology"]}`))
	}))
	defer srv.Close()

	c := NewChannels(srv.URL, "", 5*time.Second)
	got, err := c.Predict(context.Background(), "https://example.com/story")
	require.NoError(t, err)
	assert.Equal(t, []string{"Science", "Technology"}, got)
}

func TestPredictNotConfigured(t *testing.T) {
	c := NewChannels("", "", time.Second)
	_, err := c.Predict(context.Background(), "https://example.com")
	require.Error(t, err)
}

func TestExternalReturnsRawConfidences(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"channels": ["Business"], "raw": [{"name": "Business", "confidence": 0.91}]}`))
	}))
	defer srv.Close()

	c := NewChannels("", srv.URL, 5*time.Second)
	channels, raw, err := c.External(context.Background(), "https://example.com/story")
	require.NoError(t, err)
	assert.Equal(t, []string{"Business"}, channels)
	require.Len(t, raw, 1)
	assert.Equal(t, "Business", raw[0].Name)
	assert.InDelta(t, 0.91, raw[0].Confidence, 1e-9)
}

func TestPredictBatchReplacesOnlyOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URL string `json:"url"`
		}
		require.NoError(t, decodeJSON(r, &req))
		switch req.URL {
		case "https://example.com/ok":
			w.Write([]byte(`{"channels": ["Predicted"]}`))
		case "https://example.com/empty":
			w.Write([]byte(`{"channels": []}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := NewChannels(srv.URL, "", 5*time.Second)
	arts := []*article.Article{
		{URL: "https://example.com/ok", Channels: []string{"Catalog"}},
		{URL: "https://example.com/empty", Channels: []string{"Catalog"}},
		{URL: "https://example.com/fail", Channels: []string{"Catalog"}},
	}
	c.PredictBatch(context.Background(), arts, 3)

	assert.Equal(t, []string{"Predicted"}, arts[0].Channels)
	assert.Equal(t, []string{"Catalog"}, arts[1].Channels)
	assert.Equal(t, []string{"Catalog"}, arts[2].Channels)
}
