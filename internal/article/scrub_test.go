package article

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrubTextStripsMarkup(t *testing.T) {
	assert.Equal(t, "Hello world", scrubText(`<p>Hello <b>world</b></p>`))
}

func TestScrubTextDropsAttributes(t *testing.T) {
	in := `<a href="https://evil.example" onclick="x()">link text</a>`
	assert.Equal(t, "link text", scrubText(in))
}

func TestScrubTextDecodesEntities(t *testing.T) {
	assert.Equal(t, "Fish & Chips", scrubText("Fish &amp; Chips"))
}

func TestScrubTextPlainPassthrough(t *testing.T) {
	assert.Equal(t, "already clean", scrubText("  already   clean "))
}

func TestScrubTextEmpty(t *testing.T) {
	assert.Empty(t, scrubText(""))
}

func TestScrubArticle(t *testing.T) {
	a := &Article{
		Title:       "Plain <i>title</i>",
		Description: "<div>desc</div>",
		Content:     "<script>alert(1)</script>body",
	}
	ScrubArticle(a)
	assert.Equal(t, "Plain title", a.Title)
	assert.Equal(t, "desc", a.Description)
	assert.NotContains(t, a.Content, "<script>")
}

func TestScrubPool(t *testing.T) {
	arts := []*Article{
		{Title: "<b>one</b>"},
		{Title: "<b>two</b>"},
		{Title: "<b>three</b>"},
	}
	Scrub(arts, 2)
	for _, a := range arts {
		assert.NotContains(t, a.Title, "<")
	}
}
