package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/arcblog-backend/internal/data/repos"
	types "github.com/yungbote/arcblog-backend/internal/domain"
	"github.com/yungbote/arcblog-backend/internal/platform/gcp"
	"github.com/yungbote/arcblog-backend/internal/platform/logger"
)

// ProfileInput creates or edits the caller's blog. Nil fields are left alone;
// Username is required only when the blog does not exist yet.
type ProfileInput struct {
	Username    *string   `json:"username"`
	DisplayName *string   `json:"display_name"`
	Tagline     *string   `json:"tagline"`
	Resume      *string   `json:"resume"`
	Interests   *[]string `json:"interests"`
}

type BlogService interface {
	GetByUsername(ctx context.Context, username string) (*types.Blog, error)
	GetMine(ctx context.Context, s types.Session) (*types.Blog, error)
	UpsertProfile(ctx context.Context, s types.Session, in ProfileInput) (*types.Blog, error)
	UpdateLogo(ctx context.Context, s types.Session, raw []byte) (*types.Blog, error)
	// EnsureDefaultLogo renders an initials logo when the blog has none.
	EnsureDefaultLogo(ctx context.Context, s types.Session) (*types.Blog, error)
}

type blogService struct {
	db            *gorm.DB
	log           *logger.Logger
	blogRepo      repos.BlogRepo
	bucketService gcp.BucketService
	logos         *logoRenderer
	interests     types.Vocabulary
	now           func() time.Time
}

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,38}$`)

func NewBlogService(db *gorm.DB, log *logger.Logger, blogRepo repos.BlogRepo, bucketService gcp.BucketService, logoCfg LogoConfig, interestVocabulary []string) (BlogService, error) {
	serviceLog := log.With("service", "BlogService")
	logos, err := newLogoRenderer(logoCfg, time.Now().UnixNano())
	if err != nil {
		return nil, err
	}
	return &blogService{
		db:            db,
		log:           serviceLog,
		blogRepo:      blogRepo,
		bucketService: bucketService,
		logos:         logos,
		interests:     types.NewVocabulary(interestVocabulary),
		now:           time.Now,
	}, nil
}

func (bs *blogService) GetByUsername(ctx context.Context, username string) (*types.Blog, error) {
	b, err := bs.blogRepo.GetByUsername(ctx, nil, username)
	if err != nil {
		return nil, fmt.Errorf("load blog: %w", err)
	}
	if b == nil {
		return nil, ErrBlogNotFound
	}
	return b, nil
}

func (bs *blogService) GetMine(ctx context.Context, s types.Session) (*types.Blog, error) {
	if !s.Authenticated() {
		return nil, ErrUnauthenticated
	}
	b, err := bs.blogRepo.GetByUserID(ctx, nil, s.UserID)
	if err != nil {
		return nil, fmt.Errorf("load blog: %w", err)
	}
	if b == nil {
		return nil, ErrBlogNotFound
	}
	return b, nil
}

func (bs *blogService) UpsertProfile(ctx context.Context, s types.Session, in ProfileInput) (*types.Blog, error) {
	if !s.Authenticated() {
		return nil, ErrUnauthenticated
	}
	var interests []string
	if in.Interests != nil {
		var err error
		if interests, err = bs.interests.Canonicalize(*in.Interests); err != nil {
			return nil, err
		}
	}

	existing, err := bs.blogRepo.GetByUserID(ctx, nil, s.UserID)
	if err != nil {
		return nil, fmt.Errorf("load blog: %w", err)
	}
	if existing == nil {
		if in.Username == nil {
			return nil, ErrUsernameRequired
		}
		username, err := validUsername(*in.Username)
		if err != nil {
			return nil, err
		}
		now := bs.now().UTC()
		b := &types.Blog{
			UserID:    s.UserID,
			Username:  username,
			Interests: datatypes.JSONSlice[string](interests),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if in.DisplayName != nil {
			b.DisplayName = strings.TrimSpace(*in.DisplayName)
		}
		if in.Tagline != nil {
			b.Tagline = strings.TrimSpace(*in.Tagline)
		}
		if in.Resume != nil {
			b.Resume = *in.Resume
		}
		if b.Interests == nil {
			b.Interests = datatypes.JSONSlice[string]{}
		}
		if _, err := bs.blogRepo.Create(ctx, nil, b); err != nil {
			if errors.Is(err, repos.ErrConflict) {
				return nil, ErrUsernameTaken
			}
			return nil, fmt.Errorf("create blog: %w", err)
		}
		bs.log.Info("Created blog", "user_id", s.UserID.String(), "username", b.Username)
		return bs.EnsureDefaultLogo(ctx, s)
	}

	updates := map[string]any{}
	if in.Username != nil {
		username, err := validUsername(*in.Username)
		if err != nil {
			return nil, err
		}
		if username != existing.Username {
			updates["username"] = username
		}
	}
	if in.DisplayName != nil {
		updates["display_name"] = strings.TrimSpace(*in.DisplayName)
	}
	if in.Tagline != nil {
		updates["tagline"] = strings.TrimSpace(*in.Tagline)
	}
	if in.Resume != nil {
		updates["resume"] = *in.Resume
	}
	if in.Interests != nil {
		updates["interests"] = datatypes.JSONSlice[string](interests)
	}
	if len(updates) == 0 {
		return existing, nil
	}
	updates["updated_at"] = bs.now().UTC()
	if err := bs.blogRepo.UpdateFields(ctx, nil, s.UserID, updates); err != nil {
		if errors.Is(err, repos.ErrConflict) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("update blog: %w", err)
	}
	return bs.GetMine(ctx, s)
}

func (bs *blogService) UpdateLogo(ctx context.Context, s types.Session, raw []byte) (*types.Blog, error) {
	b, err := bs.GetMine(ctx, s)
	if err != nil {
		return nil, err
	}
	processed, err := bs.logos.FromUpload(raw)
	if err != nil {
		return nil, err
	}
	return bs.replaceLogo(ctx, b, processed, b.LogoColor)
}

func (bs *blogService) EnsureDefaultLogo(ctx context.Context, s types.Session) (*types.Blog, error) {
	b, err := bs.GetMine(ctx, s)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(b.LogoURL) != "" {
		return b, nil
	}
	hexColor, bg := bs.logos.pickColor(b.LogoColor)
	name := b.DisplayName
	if strings.TrimSpace(name) == "" {
		name = b.Username
	}
	buf, err := bs.logos.Initials(name, bg)
	if err != nil {
		return nil, err
	}
	return bs.replaceLogo(ctx, b, buf, hexColor)
}

// replaceLogo uploads under a versioned key, repoints the blog, then deletes
// the previous object best-effort.
func (bs *blogService) replaceLogo(ctx context.Context, b *types.Blog, buf bytes.Buffer, logoColor string) (*types.Blog, error) {
	oldKey := strings.TrimSpace(b.LogoBucketKey)
	newKey := fmt.Sprintf("blog_logo/%s/%d.png", b.UserID.String(), bs.now().UnixNano())

	if err := bs.bucketService.UploadFile(ctx, gcp.BucketCategoryLogo, newKey, bytes.NewReader(buf.Bytes())); err != nil {
		return nil, fmt.Errorf("failed to upload blog logo: %w", err)
	}
	url := bs.bucketService.GetPublicURL(gcp.BucketCategoryLogo, newKey)
	now := bs.now().UTC()
	if err := bs.blogRepo.UpdateFields(ctx, nil, b.UserID, map[string]any{
		"logo_bucket_key": newKey,
		"logo_url":        url,
		"logo_color":      logoColor,
		"updated_at":      now,
	}); err != nil {
		_ = bs.bucketService.DeleteFile(ctx, gcp.BucketCategoryLogo, newKey)
		return nil, fmt.Errorf("save blog logo: %w", err)
	}
	b.LogoBucketKey = newKey
	b.LogoURL = url
	b.LogoColor = logoColor
	b.UpdatedAt = now

	if oldKey != "" && oldKey != newKey {
		if err := bs.bucketService.DeleteFile(ctx, gcp.BucketCategoryLogo, oldKey); err != nil {
			bs.log.Warn("failed to delete old logo (ignored)", "oldKey", oldKey, "error", err)
		}
	}
	return b, nil
}

func validUsername(raw string) (string, error) {
	u := strings.ToLower(strings.TrimSpace(raw))
	if u == "" {
		return "", ErrUsernameRequired
	}
	if !usernamePattern.MatchString(u) {
		return "", ErrInvalidUsername
	}
	return u, nil
}
