package parse

import (
	"strings"
	"unicode"
)

// Category keys as stored in a development record's ideas map.
const (
	ResearchAreas   = "researchAreas"
	Ideas           = "ideas"
	RelatedTopics   = "relatedTopics"
	Audiences       = "audiences"
	ChildPosts      = "childPosts"
	FuturePosts     = "futurePosts"
	CurrentResearch = "currentResearch"
	FutureResearch  = "futureResearch"
	ChildResearch   = "childResearch"
	CurrentPosts    = "currentPosts"
)

// headerAliases maps a normalized section header to its category.
var headerAliases = map[string]string{
	"researchareas":   ResearchAreas,
	"ideas":           Ideas,
	"relatedtopics":   RelatedTopics,
	"audiences":       Audiences,
	"targetaudiences": Audiences,
	"audience":        Audiences,
	"childposts":      ChildPosts,
	"childpostideas":  ChildPosts,
	"futureposts":     FuturePosts,
	"futurepostideas": FuturePosts,
	"currentresearch": CurrentResearch,
	"futureresearch":  FutureResearch,
	"childresearch":   ChildResearch,
	"currentposts":    CurrentPosts,
	"currentpost":     CurrentPosts,
}

// canonicalHeaders is what prompts ask the model to emit.
var canonicalHeaders = map[string]string{
	ResearchAreas:   "RESEARCH AREAS",
	Ideas:           "IDEAS",
	RelatedTopics:   "RELATED TOPICS",
	Audiences:       "TARGET AUDIENCES",
	ChildPosts:      "CHILD POSTS",
	FuturePosts:     "FUTURE POSTS",
	CurrentResearch: "CURRENT RESEARCH",
	FutureResearch:  "FUTURE RESEARCH",
	ChildResearch:   "CHILD RESEARCH",
	CurrentPosts:    "CURRENT POSTS",
}

// AllCategories lists every known category key.
func AllCategories() []string {
	return []string{
		ResearchAreas, Ideas, RelatedTopics, Audiences, ChildPosts,
		FuturePosts, CurrentResearch, FutureResearch, ChildResearch, CurrentPosts,
	}
}

func IsCategory(key string) bool {
	_, ok := canonicalHeaders[key]
	return ok
}

// Header returns the ALL-CAPS section header for a category key.
func Header(category string) string {
	return canonicalHeaders[category]
}

// CategoryForHeader folds case, drops everything but letters and digits,
// and looks the result up in the alias table.
func CategoryForHeader(header string) (string, bool) {
	var b strings.Builder
	for _, r := range header {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	c, ok := headerAliases[b.String()]
	return c, ok
}
