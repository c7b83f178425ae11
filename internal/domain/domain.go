// Package domain re-exports the persisted types so callers import one path.
package domain

import "github.com/yungbote/arcblog-backend/internal/domain/blog"

type (
	Post               = blog.Post
	DevelopmentRecord  = blog.DevelopmentRecord
	DevelopmentPatch   = blog.DevelopmentPatch
	Ideas              = blog.Ideas
	Blog               = blog.Blog
	ProviderCredential = blog.ProviderCredential
	Session            = blog.Session
	Vocabulary         = blog.Vocabulary
)

var ErrUnknownInterest = blog.ErrUnknownInterest

func NewVocabulary(names []string) Vocabulary { return blog.NewVocabulary(names) }

// NormalizeNames trims and case-insensitively dedupes tag or interest names.
func NormalizeNames(in []string) []string { return blog.NormalizeNames(in) }

const (
	FieldResearchPrompt   = blog.FieldResearchPrompt
	FieldResearchFindings = blog.FieldResearchFindings
	FieldPostOutline      = blog.FieldPostOutline
	FieldContentDraft     = blog.FieldContentDraft
	FieldRefutations      = blog.FieldRefutations
	FieldPostImages       = blog.FieldPostImages
	FieldEnhancements     = blog.FieldEnhancements
	FieldReviewNotes      = blog.FieldReviewNotes
)

// Models lists every table, in migration order.
func Models() []any {
	return []any{
		&Blog{},
		&ProviderCredential{},
		&Post{},
		&DevelopmentRecord{},
	}
}
