// Package store is the persistence adapter over the news schema. All
// operations are called best-effort from the pipeline: the caller logs and
// continues on error.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Saul-Punybz/newswire/internal/article"
)

// Store provides data access methods over the news schema.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying connection pool for direct queries.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// EnsureLocale creates the locale row if the catalog-ingest job has not seeded
// it yet.
func (s *Store) EnsureLocale(ctx context.Context, locale string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO news.locales (locale, name) VALUES ($1, $1)
		ON CONFLICT (locale) DO NOTHING
	`, locale)
	if err != nil {
		return fmt.Errorf("store: ensure locale: %w", err)
	}
	return nil
}

// InsertAggregationStats creates the run row at aggregation start.
func (s *Store) InsertAggregationStats(ctx context.Context, id uuid.UUID, startTime time.Time, locale string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO news.aggregation_stats (id, start_time, locale_name)
		VALUES ($1, $2, $3)
	`, id, startTime, locale)
	if err != nil {
		return fmt.Errorf("store: insert aggregation stats: %w", err)
	}
	return nil
}

// AggregationUpdate names the fields of a partial aggregation_stats update.
// Nil fields are left untouched; set fields overwrite, including with zero
// values.
type AggregationUpdate struct {
	RunTimeSecs       *int64
	Success           *bool
	FeedCount         *int64
	StartArticleCount *int64
	EndArticleCount   *int64
	CacheHitCount     *int64
}

// UpdateAggregationStats applies a partial update to the run row. Idempotent.
func (s *Store) UpdateAggregationStats(ctx context.Context, id uuid.UUID, upd AggregationUpdate) error {
	set := ""
	args := []any{id}
	add := func(col string, v any) {
		args = append(args, v)
		if set != "" {
			set += ", "
		}
		set += fmt.Sprintf("%s = $%d", col, len(args))
	}

	if upd.RunTimeSecs != nil {
		add("run_time", *upd.RunTimeSecs)
	}
	if upd.Success != nil {
		add("success", *upd.Success)
	}
	if upd.FeedCount != nil {
		add("feed_count", *upd.FeedCount)
	}
	if upd.StartArticleCount != nil {
		add("start_article_count", *upd.StartArticleCount)
	}
	if upd.EndArticleCount != nil {
		add("end_article_count", *upd.EndArticleCount)
	}
	if upd.CacheHitCount != nil {
		add("cache_hit_count", *upd.CacheHitCount)
	}
	if set == "" {
		return nil
	}

	tag, err := s.pool.Exec(ctx, "UPDATE news.aggregation_stats SET "+set+" WHERE id = $1", args...)
	if err != nil {
		return fmt.Errorf("store: update aggregation stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: update aggregation stats: run %s not found", id)
	}
	return nil
}

// GetCachedArticle returns the stored article for url_hash when the locale is
// associated with its feed and a stored image is present. A hit increments the
// article's cache counter for that locale. Returns (nil, nil) on a miss.
func (s *Store) GetCachedArticle(ctx context.Context, urlHash, locale string) (*article.Article, error) {
	var (
		a         article.Article
		articleID int64
		feedID    int64
		img       *string
		paddedImg *string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT a.id, a.title, a.publish_time, a.img, a.category, a.description,
		       a.content_type, a.creative_instance_id, a.url, a.url_hash,
		       a.pop_score, a.padded_img, a.score, f.id, f.url_hash, f.name
		FROM news.articles a
		JOIN news.feeds f ON f.id = a.feed_id
		JOIN news.feed_locales fl ON fl.feed_id = f.id
		JOIN news.locales l ON l.id = fl.locale_id
		WHERE a.url_hash = $1 AND l.locale = $2
		  AND a.img IS NOT NULL AND a.img <> ''
	`, urlHash, locale).Scan(
		&articleID, &a.Title, &a.PublishTime, &img, &a.Category, &a.Description,
		&a.ContentType, &a.CreativeInstanceID, &a.URL, &a.URLHash,
		&a.PopScore, &paddedImg, &a.Score, &feedID, &a.PublisherID, &a.PublisherName,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get cached article: %w", err)
	}

	if img != nil {
		a.Img = *img
	}
	if paddedImg != nil {
		a.PaddedImg = *paddedImg
	}

	channels, err := s.feedChannels(ctx, feedID, locale)
	if err != nil {
		return nil, err
	}
	a.Channels = channels

	_, err = s.pool.Exec(ctx, `
		UPDATE news.article_cache_records r
		SET cache_hit = r.cache_hit + 1
		FROM news.locales l
		WHERE r.article_id = $1 AND l.locale = $2 AND r.locale_id = l.id
	`, articleID, locale)
	if err != nil {
		return nil, fmt.Errorf("store: bump cache hit: %w", err)
	}

	return &a, nil
}

func (s *Store) feedChannels(ctx context.Context, feedID int64, locale string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT c.name
		FROM news.channels c
		JOIN news.feed_locale_channels flc ON flc.channel_id = c.id
		JOIN news.feed_locales fl ON fl.id = flc.feed_locale_id
		JOIN news.locales l ON l.id = fl.locale_id
		WHERE fl.feed_id = $1 AND l.locale = $2
		ORDER BY c.name
	`, feedID, locale)
	if err != nil {
		return nil, fmt.Errorf("store: feed channels: %w", err)
	}
	defer rows.Close()

	var channels []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("store: feed channels scan: %w", err)
		}
		channels = append(channels, name)
	}
	return channels, rows.Err()
}

// UpdateOrInsertArticle refreshes an existing article's mutable fields or
// inserts a new row, and upserts the per-locale cache record. Safe under
// concurrent callers: the url_hash conflict clause makes same-hash writers
// converge (last writer wins on mutable fields) and the cache record is unique
// on (article_id, locale_id).
func (s *Store) UpdateOrInsertArticle(ctx context.Context, a *article.Article, locale string, aggregationID uuid.UUID) error {
	var (
		articleID int64
		storedImg *string
	)
	err := s.pool.QueryRow(ctx,
		"SELECT id, img FROM news.articles WHERE url_hash = $1", a.URLHash,
	).Scan(&articleID, &storedImg)

	switch {
	case err == nil:
		prevImg := ""
		if storedImg != nil {
			prevImg = *storedImg
		}
		if a.Img != "" && a.Img != prevImg {
			_, err = s.pool.Exec(ctx, `
				UPDATE news.articles
				SET title = $2, publish_time = $3, description = $4,
				    pop_score = $5, score = $6, img = $7, padded_img = $8
				WHERE id = $1
			`, articleID, a.Title, a.PublishTime, a.Description, a.PopScore, a.Score, a.Img, a.PaddedImg)
		} else {
			_, err = s.pool.Exec(ctx, `
				UPDATE news.articles
				SET title = $2, publish_time = $3, description = $4,
				    pop_score = $5, score = $6
				WHERE id = $1
			`, articleID, a.Title, a.PublishTime, a.Description, a.PopScore, a.Score)
		}
		if err != nil {
			return fmt.Errorf("store: update article: %w", err)
		}

	case errors.Is(err, pgx.ErrNoRows):
		feedID, ferr := s.feedIDForLocale(ctx, a.PublisherID, locale)
		if ferr != nil {
			return ferr
		}
		ierr := s.pool.QueryRow(ctx, `
			INSERT INTO news.articles
				(title, publish_time, img, category, description, content_type,
				 creative_instance_id, url, url_hash, pop_score, padded_img,
				 score, feed_id, aggregation_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (url_hash) DO UPDATE
			SET title = EXCLUDED.title, publish_time = EXCLUDED.publish_time,
			    description = EXCLUDED.description, pop_score = EXCLUDED.pop_score,
			    score = EXCLUDED.score
			RETURNING id
		`, a.Title, a.PublishTime, a.Img, a.Category, a.Description, a.ContentType,
			a.CreativeInstanceID, a.URL, a.URLHash, a.PopScore, a.PaddedImg,
			a.Score, feedID, aggregationID,
		).Scan(&articleID)
		if ierr != nil {
			return fmt.Errorf("store: insert article: %w", ierr)
		}

	default:
		return fmt.Errorf("store: lookup article: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO news.article_cache_records (article_id, locale_id, aggregation_id)
		SELECT $1, l.id, $3 FROM news.locales l WHERE l.locale = $2
		ON CONFLICT (article_id, locale_id) DO NOTHING
	`, articleID, locale, aggregationID)
	if err != nil {
		return fmt.Errorf("store: upsert cache record: %w", err)
	}

	return nil
}

// feedIDForLocale resolves the feed row for a publisher_id limited to feeds
// associated with the locale. Returns nil feed (and no error) when the catalog
// does not know the feed; the article is then stored without a feed reference.
func (s *Store) feedIDForLocale(ctx context.Context, publisherID, locale string) (*int64, error) {
	var feedID int64
	err := s.pool.QueryRow(ctx, `
		SELECT f.id
		FROM news.feeds f
		JOIN news.feed_locales fl ON fl.feed_id = f.id
		JOIN news.locales l ON l.id = fl.locale_id
		WHERE f.url_hash = $1 AND l.locale = $2
	`, publisherID, locale).Scan(&feedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: feed lookup: %w", err)
	}
	return &feedID, nil
}

// InsertExternalChannels records the external classifier output for an
// article. No-op when the article does not exist.
func (s *Store) InsertExternalChannels(ctx context.Context, urlHash string, channels []string, rawJSON []byte) error {
	var articleID int64
	err := s.pool.QueryRow(ctx,
		"SELECT id FROM news.articles WHERE url_hash = $1", urlHash,
	).Scan(&articleID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: external channels lookup: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO news.external_article_classifications (article_id, channels, raw_data)
		VALUES ($1, $2, $3)
	`, articleID, channels, rawJSON)
	if err != nil {
		return fmt.Errorf("store: insert external channels: %w", err)
	}
	return nil
}

// GetChannels returns the sorted distinct channel names known to the catalog.
func (s *Store) GetChannels(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT DISTINCT name FROM news.channels ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("store: get channels: %w", err)
	}
	defer rows.Close()

	var channels []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("store: get channels scan: %w", err)
		}
		channels = append(channels, name)
	}
	return channels, rows.Err()
}
