package extractor

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Strategy proposes raw price strings found in a DOM snapshot, in document
// order. An empty slice means the strategy found nothing.
type Strategy interface {
	Name() string
	Candidates(doc *goquery.Document) []string
}

// MetaPropertyStrategy reads the OpenGraph product price tag. Only the first
// matching tag counts; when its content is empty the strategy finds nothing.
type MetaPropertyStrategy struct {
	Property string
}

func (s MetaPropertyStrategy) Name() string { return "meta_property" }

func (s MetaPropertyStrategy) Candidates(doc *goquery.Document) []string {
	content := strings.TrimSpace(doc.Find(`meta[property="` + s.Property + `"]`).First().AttrOr("content", ""))
	if content == "" {
		return nil
	}
	return []string{content}
}

// MicrodataStrategy reads schema.org itemprop="price" annotations. Meta tags
// come first; other annotated elements contribute their content attribute or,
// lacking one, their text.
type MicrodataStrategy struct{}

func (MicrodataStrategy) Name() string { return "microdata" }

func (MicrodataStrategy) Candidates(doc *goquery.Document) []string {
	var out []string
	doc.Find(`meta[itemprop="price"]`).Each(func(_ int, sel *goquery.Selection) {
		if content := strings.TrimSpace(sel.AttrOr("content", "")); content != "" {
			out = append(out, content)
		}
	})
	doc.Find(`[itemprop="price"]`).Not("meta").Each(func(_ int, sel *goquery.Selection) {
		value, ok := sel.Attr("content")
		if !ok {
			value = sel.Text()
		}
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	})
	return out
}

// VisibleTextStrategy scans rendered span text for short strings that start
// with the currency marker, e.g. "$ 12.990".
type VisibleTextStrategy struct {
	CurrencyMarker string
	MaxLen         int // exclusive bound on the trimmed text length, in characters
}

func (s VisibleTextStrategy) Name() string { return "visible_text" }

func (s VisibleTextStrategy) Candidates(doc *goquery.Document) []string {
	var out []string
	doc.Find("span").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(strings.ReplaceAll(sel.Text(), "\u00a0", " "))
		if text == "" || !strings.HasPrefix(text, s.CurrencyMarker) {
			return
		}
		if utf8.RuneCountInString(text) >= s.MaxLen {
			return
		}
		out = append(out, text)
	})
	return out
}
