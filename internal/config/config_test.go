package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "sources.en_US", cfg.Aggregate.SourcesFile)
	assert.Equal(t, "feed_sources.en_US.json", cfg.Aggregate.FeedSourcesPath)
	assert.Equal(t, 30, cfg.Aggregate.ThreadPoolSize)
	assert.Equal(t, 4, cfg.Aggregate.Concurrency)
	assert.Equal(t, 15*time.Second, cfg.Aggregate.RequestTimeout)
	assert.Equal(t, float64(100), cfg.Aggregate.PopScoreRange)
	assert.False(t, cfg.Aggregate.NoUpload)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SOURCES_FILE", "sources.ja_JP")
	t.Setenv("THREAD_POOL_SIZE", "8")
	t.Setenv("NO_UPLOAD", "true")

	cfg := Load()
	assert.Equal(t, "sources.ja_JP", cfg.Aggregate.SourcesFile)
	assert.Equal(t, "feed_sources.ja_JP.json", cfg.Aggregate.FeedSourcesPath)
	assert.Equal(t, 8, cfg.Aggregate.ThreadPoolSize)
	assert.True(t, cfg.Aggregate.NoUpload)
}

func TestLocale(t *testing.T) {
	assert.Equal(t, "en_US", AggregateConfig{SourcesFile: "sources.en_US"}.Locale())
	assert.Equal(t, "pt_BR", AggregateConfig{SourcesFile: "sources.pt_BR"}.Locale())
}

func TestDSN(t *testing.T) {
	dsn := DBConfig{
		Host: "db", Port: 5432, User: "u", Pass: "p", DBName: "news", SSLMode: "disable",
	}.DSN()
	assert.Equal(t, "postgres://u:p@db:5432/news?sslmode=disable", dsn)
}

func TestEnvHeaders(t *testing.T) {
	t.Setenv("DEFAULT_HEADERS", "Accept: application/rss+xml; Cache-Control: no-cache")
	headers := envHeaders("DEFAULT_HEADERS")
	assert.Equal(t, "application/rss+xml", headers["Accept"])
	assert.Equal(t, "no-cache", headers["Cache-Control"])
}
