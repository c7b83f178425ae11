// Package authoring runs the staged, provider-assisted development workflow
// of a single post.
package authoring

import (
	"fmt"
	"strings"

	types "github.com/yungbote/arcblog-backend/internal/domain"
	"github.com/yungbote/arcblog-backend/internal/modules/authoring/parse"
)

// Stage is one step of the pipeline. Categories are the idea lists the stage
// collects; ArtifactField receives the raw generated text.
type Stage struct {
	Label               string   `json:"label"`
	Description         string   `json:"description"`
	Categories          []string `json:"categories"`
	DefaultSystemPrompt string   `json:"default_system_prompt"`
	ArtifactField       string   `json:"artifact_field"`
	// SearchAugmented stages also consult the first search-capable provider.
	SearchAugmented bool `json:"search_augmented"`
}

// Status is the value persisted in the record when this stage is active.
func (s Stage) Status() string { return strings.ToLower(s.Label) }

var researchCategories = []string{
	parse.ResearchAreas, parse.CurrentResearch, parse.FutureResearch, parse.ChildResearch,
}

var ideationCategories = []string{
	parse.ResearchAreas, parse.Ideas, parse.RelatedTopics, parse.Audiences, parse.ChildPosts, parse.FuturePosts,
}

var structureCategories = []string{
	parse.CurrentPosts, parse.ChildPosts, parse.FuturePosts,
}

var stages = []Stage{
	{
		Label:           "Research",
		Description:     "Gather the facts, open questions, and prior work the post will stand on.",
		Categories:      researchCategories,
		ArtifactField:   types.FieldResearchFindings,
		SearchAugmented: true,
	},
	{
		Label:           "Ideation",
		Description:     "Generate angles, related topics, audiences, and follow-up posts.",
		Categories:      ideationCategories,
		SearchAugmented: true,
	},
	{
		Label:         "Structure",
		Description:   "Decide what belongs in this post and what moves to child or future posts.",
		Categories:    structureCategories,
		ArtifactField: types.FieldPostOutline,
	},
	{
		Label:         "Content",
		Description:   "Draft the body of the post from the outline.",
		ArtifactField: types.FieldContentDraft,
	},
	{
		Label:         "Refutations",
		Description:   "Anticipate the strongest objections and answer them.",
		ArtifactField: types.FieldRefutations,
	},
	{
		Label:         "Images",
		Description:   "Propose figures, diagrams, and illustrations with captions.",
		ArtifactField: types.FieldPostImages,
	},
	{
		Label:         "Enhancement",
		Description:   "Tighten prose, add examples, and improve flow.",
		ArtifactField: types.FieldEnhancements,
	},
	{
		Label:         "Review",
		Description:   "Final editorial pass: accuracy, tone, and readiness to publish.",
		ArtifactField: types.FieldReviewNotes,
	},
}

func init() {
	for i := range stages {
		stages[i].DefaultSystemPrompt = defaultSystemPrompt(stages[i])
	}
}

// Stages returns a copy of the ordered pipeline.
func Stages() []Stage {
	out := make([]Stage, len(stages))
	copy(out, stages)
	return out
}

func FirstStage() Stage { return stages[0] }

// StageIndex matches status case-insensitively against stage labels and
// defaults to the first stage.
func StageIndex(status string) int {
	status = strings.TrimSpace(status)
	for i, s := range stages {
		if strings.EqualFold(s.Label, status) {
			return i
		}
	}
	return 0
}

func stageAt(i int) Stage {
	if i < 0 || i >= len(stages) {
		return stages[0]
	}
	return stages[i]
}

func defaultSystemPrompt(s Stage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are helping an author through the %s stage of writing a blog post. %s\n", s.Label, s.Description)
	if len(s.Categories) == 0 {
		b.WriteString("Answer in well-organized markdown prose. Do not repeat the request back.")
		return b.String()
	}
	b.WriteString("Answer only with the sections below, in this exact format. Each section starts with its header in capital letters followed by a colon, then one item per line starting with \"- \". Begin each item with a short label, then a colon, then at most one sentence of explanation.\n")
	for _, c := range s.Categories {
		fmt.Fprintf(&b, "\n%s:\n- ...\n", parse.Header(c))
	}
	return strings.TrimRight(b.String(), "\n")
}
