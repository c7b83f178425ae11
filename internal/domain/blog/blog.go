package blog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Blog is a user's public profile; one per user.
type Blog struct {
	UserID        uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"user_id"`
	Username      string                      `gorm:"column:username;not null;uniqueIndex" json:"username"`
	DisplayName   string                      `gorm:"column:display_name" json:"display_name"`
	LogoBucketKey string                      `gorm:"column:logo_bucket_key" json:"-"`
	LogoURL       string                      `gorm:"column:logo_url" json:"logo_url"`
	LogoColor     string                      `gorm:"column:logo_color" json:"logo_color"`
	Tagline       string                      `gorm:"column:tagline" json:"tagline"`
	Resume        string                      `gorm:"column:resume;type:text" json:"resume"`
	Interests     datatypes.JSONSlice[string] `gorm:"column:interests" json:"interests"`
	CreatedAt     time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time                   `gorm:"not null" json:"updated_at"`
}

func (Blog) TableName() string { return "blog" }

// ProviderCredential is a stored backend key. Position is the configuration
// order the registry preserves.
type ProviderCredential struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_provider_credential_user_provider" json:"user_id"`
	Provider  string    `gorm:"column:provider;not null;uniqueIndex:idx_provider_credential_user_provider" json:"provider"`
	APIKey    string    `gorm:"column:api_key;not null" json:"-"`
	Model     string    `gorm:"column:model" json:"model"`
	Position  int       `gorm:"column:position;not null;default:0" json:"position"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ProviderCredential) TableName() string { return "provider_credential" }

// Session is the caller identity every core operation takes explicitly.
type Session struct {
	UserID       uuid.UUID
	ViewedBlogID uuid.UUID
}

func (s Session) Authenticated() bool { return s.UserID != uuid.Nil }
