// Package parse splits free-form model output into categorized items.
package parse

import (
	"regexp"
	"strings"
)

// A colon or period ends a label only at a clause boundary, so URLs and
// version numbers survive.
var (
	headingMarker = regexp.MustCompile(`^#{1,6}\s*`)
	headerLine    = regexp.MustCompile(`^([A-Z][A-Z0-9]*(?:[ &/'-]+[A-Z0-9]+)*)\s*:(.*)$`)
	bulletLine    = regexp.MustCompile(`^\s*[-*•–]\s+(.*)$`)
	markdownLink  = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	boldMarker    = regexp.MustCompile(`\*\*|__`)
	colonEnd      = regexp.MustCompile(`:(\s|$)`)
	periodEnd     = regexp.MustCompile(`\.(\s|$)`)
)

// Result is the categorized output for one stage.
type Result struct {
	// Items has exactly the requested categories, each non-nil.
	Items map[string][]string
	// Degraded is set when no expected section was recognized.
	Degraded bool
}

func (r Result) Total() int {
	n := 0
	for _, v := range r.Items {
		n += len(v)
	}
	return n
}

// Parse decomposes text into the given categories. Sections whose header is
// unknown, or known but not requested, are discarded.
func Parse(text string, categories []string) Result {
	want := make(map[string]bool, len(categories))
	res := Result{Items: make(map[string][]string, len(categories)), Degraded: true}
	for _, c := range categories {
		want[c] = true
		res.Items[c] = []string{}
	}

	current := ""
	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if h, ok := sectionHeader(raw); ok {
			current = ""
			if c, known := CategoryForHeader(h); known && want[c] {
				current = c
				res.Degraded = false
			}
			continue
		}
		if current == "" {
			continue
		}
		m := bulletLine.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		if item := Label(m[1]); item != "" {
			res.Items[current] = append(res.Items[current], item)
		}
	}
	return res
}

// sectionHeader reports whether line opens a section, returning its header.
func sectionHeader(line string) (string, bool) {
	s := strings.TrimSpace(line)
	s = headingMarker.ReplaceAllString(s, "")
	s = strings.TrimSpace(strings.TrimPrefix(s, "**"))
	s = strings.Replace(s, "**:", ":", 1)
	s = strings.Replace(s, ":**", ":", 1)
	m := headerLine.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Label reduces a bullet's text to its short label: markdown removed, cut at
// the first clause-ending colon or, failing that, period.
func Label(s string) string {
	s = markdownLink.ReplaceAllString(s, "$1")
	s = boldMarker.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if loc := colonEnd.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	} else if loc := periodEnd.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	return strings.TrimSpace(s)
}

// Render writes sections in the format Parse reads, in category order.
// Empty categories are skipped.
func Render(sections map[string][]string, categories []string) string {
	var b strings.Builder
	for _, c := range categories {
		items := sections[c]
		if len(items) == 0 || Header(c) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(Header(c))
		b.WriteString(":\n")
		for _, it := range items {
			b.WriteString("- ")
			b.WriteString(it)
			b.WriteString("\n")
		}
	}
	return b.String()
}
