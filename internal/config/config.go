// Package config loads application configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the full application configuration.
type Config struct {
	DB        DBConfig
	S3        S3Config
	Aggregate AggregateConfig
}

// DBConfig holds PostgreSQL connection parameters.
type DBConfig struct {
	Host    string
	Port    int
	User    string
	Pass    string
	DBName  string
	SSLMode string
}

// DSN returns a PostgreSQL connection string.
func (c DBConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Pass +
		"@" + c.Host + ":" + strconv.Itoa(c.Port) +
		"/" + c.DBName + "?sslmode=" + c.SSLMode
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint      string
	PrivateBucket string
	PubBucket     string
	AccessKey     string
	SecretKey     string
	Region        string
}

// AggregateConfig holds the parameters of a single aggregation run.
type AggregateConfig struct {
	// SourcesFile names the publisher catalog for one locale, e.g.
	// "sources.en_US". The locale is the part after the first dot.
	SourcesFile     string
	FeedSourcesPath string

	ThreadPoolSize int
	Concurrency    int
	RequestTimeout time.Duration

	PopScoreRange float64

	OutputPath     string
	OutputFeedPath string
	FeedPath       string
	ChannelFile    string

	PCDNURLBase string
	NoUpload    bool

	PopularityURL       string
	ChannelsURL         string
	ExternalChannelsURL string

	DefaultHeaders map[string]string
}

// Locale returns the locale name encoded in SourcesFile ("sources.en_US" ->
// "en_US").
func (c AggregateConfig) Locale() string {
	return strings.TrimPrefix(c.SourcesFile, "sources.")
}

// PredictedChannelsLocale is the only locale for which the channel prediction
// services are called.
const PredictedChannelsLocale = "en_US"

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	sourcesFile := envOr("SOURCES_FILE", "sources.en_US")
	return Config{
		DB: DBConfig{
			Host:    envOr("DB_HOST", "localhost"),
			Port:    envOrInt("DB_PORT", 5432),
			User:    envOr("DB_USER", "newswire"),
			Pass:    envOr("DB_PASS", "newswire"),
			DBName:  envOr("DB_NAME", "newswire"),
			SSLMode: envOr("DB_SSLMODE", "disable"),
		},
		S3: S3Config{
			Endpoint:      envOr("S3_ENDPOINT", ""),
			PrivateBucket: envOr("PRIVATE_S3_BUCKET", "newswire-private"),
			PubBucket:     envOr("PUB_S3_BUCKET", "newswire-pub"),
			AccessKey:     envOr("S3_ACCESS_KEY", ""),
			SecretKey:     envOr("S3_SECRET_KEY", ""),
			Region:        envOr("S3_REGION", "us-east-1"),
		},
		Aggregate: AggregateConfig{
			SourcesFile:         sourcesFile,
			FeedSourcesPath:     envOr("FEED_SOURCES_PATH", "feed_"+sourcesFile+".json"),
			ThreadPoolSize:      envOrInt("THREAD_POOL_SIZE", 30),
			Concurrency:         envOrInt("CONCURRENCY", 4),
			RequestTimeout:      time.Duration(envOrInt("REQUEST_TIMEOUT", 15)) * time.Second,
			PopScoreRange:       envOrFloat("POP_SCORE_RANGE", 100),
			OutputPath:          envOr("OUTPUT_PATH", "output"),
			OutputFeedPath:      envOr("OUTPUT_FEED_PATH", "output/feed"),
			FeedPath:            envOr("FEED_PATH", "feed"),
			ChannelFile:         envOr("CHANNEL_FILE", "channels.json"),
			PCDNURLBase:         envOr("PCDN_URL_BASE", "https://pcdn.brave.com"),
			NoUpload:            envOrBool("NO_UPLOAD", false),
			PopularityURL:       envOr("POPULARITY_URL", ""),
			ChannelsURL:         envOr("CHANNELS_URL", ""),
			ExternalChannelsURL: envOr("EXTERNAL_CHANNELS_URL", ""),
			DefaultHeaders:      envHeaders("DEFAULT_HEADERS"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envOrFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envOrBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// envHeaders parses "Key: Value; Key2: Value2" into a header map.
func envHeaders(key string) map[string]string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	headers := make(map[string]string)
	for _, pair := range strings.Split(v, ";") {
		name, value, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return headers
}
