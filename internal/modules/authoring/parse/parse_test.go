package parse

import (
	"reflect"
	"testing"
)

var ideationCategories = []string{ResearchAreas, Ideas, RelatedTopics, Audiences, ChildPosts, FuturePosts}

func TestParseIdeationScenario(t *testing.T) {
	text := "IDEAS:\n- Use caching\n- Add retries.\n\nRELATED TOPICS:\n- Consistency\n- Backpressure"
	res := Parse(text, ideationCategories)
	if res.Degraded {
		t.Fatalf("should not be degraded")
	}
	want := map[string][]string{
		ResearchAreas: {},
		Ideas:         {"Use caching", "Add retries"},
		RelatedTopics: {"Consistency", "Backpressure"},
		Audiences:     {},
		ChildPosts:    {},
		FuturePosts:   {},
	}
	if !reflect.DeepEqual(res.Items, want) {
		t.Fatalf("got %#v", res.Items)
	}
}

func TestParseHeaderVariants(t *testing.T) {
	text := `Here is what I came up with.

## TARGET AUDIENCES:
* **Backend engineers**: people who run services
• [SREs](https://sre.example) on call

**CHILD POST IDEAS:**
– Part two: deeper dive
- Version 1.2 of the API. More text here

NOTES:
- should be dropped
`
	res := Parse(text, ideationCategories)
	if got := res.Items[Audiences]; !reflect.DeepEqual(got, []string{"Backend engineers", "SREs on call"}) {
		t.Fatalf("audiences=%#v", got)
	}
	if got := res.Items[ChildPosts]; !reflect.DeepEqual(got, []string{"Part two", "Version 1.2 of the API"}) {
		t.Fatalf("childPosts=%#v", got)
	}
	if res.Total() != 4 {
		t.Fatalf("unknown section leaked: %#v", res.Items)
	}
}

func TestParseIgnoresCategoriesOutsideStage(t *testing.T) {
	text := "CURRENT POSTS:\n- one\nIDEAS:\n- two"
	res := Parse(text, []string{CurrentPosts, ChildPosts, FuturePosts})
	if !reflect.DeepEqual(res.Items[CurrentPosts], []string{"one"}) {
		t.Fatalf("currentPosts=%#v", res.Items[CurrentPosts])
	}
	if _, ok := res.Items[Ideas]; ok {
		t.Fatalf("ideas is not a Structure category")
	}
}

func TestParseDegradesOnFormatDrift(t *testing.T) {
	res := Parse("Sure! Here are some thoughts:\n1. caching\n2. retries", ideationCategories)
	if !res.Degraded || res.Total() != 0 {
		t.Fatalf("expected degraded empty result, got %#v", res)
	}
	for _, c := range ideationCategories {
		if v, ok := res.Items[c]; !ok || v == nil {
			t.Fatalf("category %s must be present and non-nil", c)
		}
	}
	if res := Parse("", nil); !res.Degraded || len(res.Items) != 0 {
		t.Fatalf("empty input: %#v", res)
	}
}

func TestLabel(t *testing.T) {
	cases := map[string]string{
		"Use caching: it reduces load":          "Use caching",
		"Add retries. Because networks fail.":   "Add retries",
		"**Bold** label":                        "Bold label",
		"See [docs](https://x.example): why":    "See docs",
		"https://example.com/path is a link":    "https://example.com/path is a link",
		"Ratio is 3:2 but: the label ends here": "Ratio is 3:2 but",
		"   ":                                   "",
	}
	for in, want := range cases {
		if got := Label(in); got != want {
			t.Fatalf("Label(%q)=%q want %q", in, got, want)
		}
	}
}

func TestRenderParseRoundTrip(t *testing.T) {
	sections := map[string][]string{
		ResearchAreas: {"Cache invalidation", "Retry budgets"},
		Ideas:         {"Write-through vs write-back"},
		Audiences:     {"Platform teams"},
		FuturePosts:   {"Part 2"},
	}
	res := Parse(Render(sections, ideationCategories), ideationCategories)
	for _, c := range ideationCategories {
		want := sections[c]
		if want == nil {
			want = []string{}
		}
		if !reflect.DeepEqual(res.Items[c], want) {
			t.Fatalf("%s: got %#v want %#v", c, res.Items[c], want)
		}
	}
}

func TestCategoryForHeader(t *testing.T) {
	for header, want := range map[string]string{
		"RESEARCH AREAS":    ResearchAreas,
		"Target Audiences":  Audiences,
		"FUTURE POST IDEAS": FuturePosts,
		"CURRENT POST":      CurrentPosts,
	} {
		if got, ok := CategoryForHeader(header); !ok || got != want {
			t.Fatalf("CategoryForHeader(%q)=%q,%v", header, got, ok)
		}
	}
	if _, ok := CategoryForHeader("SUMMARY"); ok {
		t.Fatalf("SUMMARY is not a category")
	}
}
