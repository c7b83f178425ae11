package blog

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Ideas maps a category key to its ordered items, newest first.
type Ideas map[string][]string

func (i Ideas) Clone() Ideas {
	out := make(Ideas, len(i))
	for k, v := range i {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// DevelopmentRecord is the persisted state of a post's authoring workflow.
// The most recently created row for a post is the active one.
type DevelopmentRecord struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PostID uuid.UUID `gorm:"type:uuid;not null;index" json:"post_id"`

	Status  string `gorm:"column:status;not null" json:"status"`
	Version int    `gorm:"column:version;not null;default:1" json:"version"`

	Original     string                    `gorm:"column:original;type:text" json:"original"`
	SystemPrompt string                    `gorm:"column:system_prompt;type:text" json:"system_prompt"`
	Ideas        datatypes.JSONType[Ideas] `gorm:"column:ideas" json:"ideas"`

	ResearchPrompt   string `gorm:"column:research_prompt;type:text" json:"research_prompt"`
	ResearchFindings string `gorm:"column:research_findings;type:text" json:"research_findings"`
	PostOutline      string `gorm:"column:post_outline;type:text" json:"post_outline"`
	ContentDraft     string `gorm:"column:content_draft;type:text" json:"content_draft"`
	Refutations      string `gorm:"column:refutations;type:text" json:"refutations"`
	PostImages       string `gorm:"column:post_images;type:text" json:"post_images"`
	Enhancements     string `gorm:"column:enhancements;type:text" json:"enhancements"`
	ReviewNotes      string `gorm:"column:review_notes;type:text" json:"review_notes"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (DevelopmentRecord) TableName() string { return "post_development" }

// IdeaMap returns a copy of the stored categories, never nil.
func (d *DevelopmentRecord) IdeaMap() Ideas {
	if d == nil || d.Ideas.Data() == nil {
		return Ideas{}
	}
	return d.Ideas.Data().Clone()
}

// Artifact field names, as stored.
const (
	FieldResearchPrompt   = "research_prompt"
	FieldResearchFindings = "research_findings"
	FieldPostOutline      = "post_outline"
	FieldContentDraft     = "content_draft"
	FieldRefutations      = "refutations"
	FieldPostImages       = "post_images"
	FieldEnhancements     = "enhancements"
	FieldReviewNotes      = "review_notes"
)

// Artifact reads an artifact field by its stored name.
func (d *DevelopmentRecord) Artifact(field string) string {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case FieldResearchPrompt:
		return d.ResearchPrompt
	case FieldResearchFindings:
		return d.ResearchFindings
	case FieldPostOutline:
		return d.PostOutline
	case FieldContentDraft:
		return d.ContentDraft
	case FieldRefutations:
		return d.Refutations
	case FieldPostImages:
		return d.PostImages
	case FieldEnhancements:
		return d.Enhancements
	case FieldReviewNotes:
		return d.ReviewNotes
	default:
		return ""
	}
}

// DevelopmentPatch is a shallow partial update. Nil fields are left alone;
// Ideas, when set, replaces the whole map.
type DevelopmentPatch struct {
	Status       *string
	Original     *string
	SystemPrompt *string
	Ideas        Ideas
	Artifacts    map[string]string
	BumpVersion  bool
}

func (p DevelopmentPatch) IsEmpty() bool {
	return p.Status == nil && p.Original == nil && p.SystemPrompt == nil &&
		p.Ideas == nil && len(p.Artifacts) == 0 && !p.BumpVersion
}

// Columns renders the patch as a column map for an UPDATE.
func (p DevelopmentPatch) Columns() map[string]any {
	cols := map[string]any{}
	if p.Status != nil {
		cols["status"] = *p.Status
	}
	if p.Original != nil {
		cols["original"] = *p.Original
	}
	if p.SystemPrompt != nil {
		cols["system_prompt"] = *p.SystemPrompt
	}
	if p.Ideas != nil {
		cols["ideas"] = datatypes.NewJSONType(p.Ideas)
	}
	for field, v := range p.Artifacts {
		if IsArtifactField(field) {
			cols[field] = v
		}
	}
	return cols
}

func IsArtifactField(field string) bool {
	switch field {
	case FieldResearchPrompt, FieldResearchFindings, FieldPostOutline, FieldContentDraft,
		FieldRefutations, FieldPostImages, FieldEnhancements, FieldReviewNotes:
		return true
	default:
		return false
	}
}
