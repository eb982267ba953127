package article

import (
	"log/slog"
	"math"
	"sort"
	"time"
)

// recencyHalfLife controls how fast an article's score decays with age.
const recencyHalfLife = 48 * time.Hour

// ScoreValue computes the composite ranking scalar. It is a pure function of
// the normalized popularity score, the publish time relative to now, and the
// publisher's catalog score.
func ScoreValue(popScore float64, publishTime time.Time, publisherScore float64, now time.Time) float64 {
	age := now.Sub(publishTime)
	if age < 0 {
		age = 0
	}
	decay := math.Exp2(-age.Hours() / recencyHalfLife.Hours())
	return popScore * decay * (1 + publisherScore)
}

// DedupeAndRank sorts articles by publish_time descending, removes url_hash
// duplicates keeping the first occurrence under that order (the freshest), and
// assigns each survivor its composite score. publisherScores maps publisher_id
// to the catalog score.
func DedupeAndRank(articles []*Article, publisherScores map[string]float64, now time.Time) []*Article {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PublishTime.After(articles[j].PublishTime)
	})

	seen := make(map[string]bool, len(articles))
	out := make([]*Article, 0, len(articles))
	for _, a := range articles {
		if a.URLHash == "" || seen[a.URLHash] {
			continue
		}
		seen[a.URLHash] = true
		a.Score = ScoreValue(a.PopScore, a.PublishTime, publisherScores[a.PublisherID], now)
		out = append(out, a)
	}

	slog.Info("article: deduped and ranked", "in", len(articles), "out", len(out))
	return out
}
