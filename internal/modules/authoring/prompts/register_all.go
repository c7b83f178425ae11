package prompts

import "sync"

var registerOnce sync.Once

// RegisterAll installs every authoring prompt. Safe to call repeatedly.
func RegisterAll() {
	registerOnce.Do(registerAll)
}

func registerAll() {
	RegisterSpec(Spec{
		Name:    PromptStageFraming,
		Version: 1,
		Text: `
STAGE: {{.StageLabel}}
POST TITLE: {{.PostTitle}}
{{if .PostBrief}}POST SUMMARY: {{.PostBrief}}{{end}}
{{if .ParentTitle}}THIS POST CONTINUES: {{.ParentTitle}}{{end}}
{{range .Artifacts}}{{if .Text}}
{{.Label}}:
{{.Text}}
{{end}}{{end}}
{{range .Sections}}{{if .Items}}
ALREADY COLLECTED {{.Header}} (do not repeat these):
{{range .Items}}- {{.}}
{{end}}{{end}}{{end}}
AUTHOR REQUEST:
{{.Original}}`,
		Validators: []Validator{
			RequireNonEmpty("Original", func(in Input) string { return in.Original }),
		},
	})

	RegisterSpec(Spec{
		Name:    PromptFactFinding,
		Version: 1,
		Text: `
Research the topic below and report verifiable facts. Cite a source for every claim.

TOPIC: {{.Topic}}
{{if .PostTitle}}FOR A POST TITLED: {{.PostTitle}}{{end}}

Structure the answer in exactly these parts:
1. Current state: where the topic stands today and what changed recently.
2. Statistics: concrete numbers, dates and measurements.
3. Expert analysis: what recognized practitioners and researchers conclude.
4. Examples: real cases, products or incidents that illustrate the topic.`,
		Validators: []Validator{
			RequireNonEmpty("Topic", func(in Input) string { return in.Topic }),
		},
	})
}
