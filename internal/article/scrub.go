package article

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// scrubText reduces an HTML fragment to plain text: every tag and attribute is
// dropped, whitespace collapsed.
func scrubText(s string) string {
	if s == "" {
		return ""
	}
	if !strings.ContainsAny(s, "<&") {
		return cleanField(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		// Unparseable markup: fall back to the raw text minus angle brackets.
		return cleanField(strings.NewReplacer("<", " ", ">", " ").Replace(s))
	}
	return cleanField(doc.Text())
}

// ScrubArticle strips markup from the text fields of a single article.
func ScrubArticle(a *Article) {
	a.Title = scrubText(a.Title)
	a.Description = scrubText(a.Description)
	a.Content = scrubText(a.Content)
}

// Scrub sanitizes all articles on a CPU-sized worker pool. Applied to new
// articles only; cached articles were scrubbed by the run that first saw them.
func Scrub(articles []*Article, workers int) {
	if workers <= 0 {
		workers = 1
	}

	jobs := make(chan *Article)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range jobs {
				ScrubArticle(a)
			}
		}()
	}
	for _, a := range articles {
		jobs <- a
	}
	close(jobs)
	wg.Wait()

	slog.Info("article: scrubbed", "count", len(articles))
}
