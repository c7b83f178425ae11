// Package htmltext turns post bodies (HTML from the rich editor, or
// markdown) into plain text for excerpts and prompt context.
package htmltext

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

var (
	mdLink     = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	mdHeading  = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	mdEmphasis = regexp.MustCompile("(\\*\\*|__|\\*|`)")
	blockTags  = "p, div, li, h1, h2, h3, h4, h5, h6, blockquote, pre, br, tr"
)

// PlainText strips markup and collapses whitespace to single spaces.
func PlainText(content string) string {
	s := strings.TrimSpace(content)
	if s == "" {
		return ""
	}
	if strings.Contains(s, "<") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			doc.Find("script, style, noscript").Remove()
			doc.Find(blockTags).Each(func(_ int, sel *goquery.Selection) {
				sel.AppendHtml(" ")
			})
			s = doc.Text()
		}
	}
	s = mdLink.ReplaceAllString(s, "$1")
	s = mdHeading.ReplaceAllString(s, "")
	s = mdEmphasis.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// Excerpt is PlainText cut to at most max runes, on a word boundary when one
// is close, with an ellipsis when anything was dropped.
func Excerpt(content string, max int) string {
	s := PlainText(content)
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:max-1])
	if i := strings.LastIndex(cut, " "); i > len(cut)*3/4 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}
