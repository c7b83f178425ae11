package prompts

// Input is the superset of fields any authoring prompt reads.
type Input struct {
	StageLabel string
	Original   string

	PostTitle   string
	PostBrief   string
	ParentTitle string

	// Sections are the record's current categories for the stage.
	Sections []Section
	// Artifacts are earlier stages' outputs carried forward.
	Artifacts []Artifact

	Topic string
}

type Section struct {
	Header string
	Items  []string
}

type Artifact struct {
	Label string
	Text  string
}
