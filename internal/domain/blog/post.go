package blog

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Post is one node of an arc. A root has ParentID == nil and ArcID == ID;
// every descendant carries the root's ArcID.
type Post struct {
	ID       uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ArcID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"arc_id"`
	ParentID *uuid.UUID `gorm:"type:uuid;index" json:"parent_id"`
	UserID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`

	Title            string `gorm:"column:title;not null" json:"title"`
	BriefDescription string `gorm:"column:brief_description;type:text" json:"brief_description"`
	Content          string `gorm:"column:content;type:text" json:"content"`

	TagNames      datatypes.JSONSlice[string] `gorm:"column:tag_names" json:"tag_names"`
	InterestNames datatypes.JSONSlice[string] `gorm:"column:interest_names" json:"interest_names"`
	Images        datatypes.JSONSlice[string] `gorm:"column:images" json:"images"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Post) TableName() string { return "post" }

func (p *Post) IsRoot() bool {
	return p != nil && p.ParentID == nil && p.ArcID == p.ID
}

// NormalizeNames trims, drops empties and removes case-insensitive duplicates,
// keeping the first spelling seen.
func NormalizeNames(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, n := range in {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		k := strings.ToLower(n)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, n)
	}
	return out
}
