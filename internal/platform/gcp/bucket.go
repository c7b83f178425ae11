package gcp

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/arcblog-backend/internal/platform/logger"
)

type BucketCategory string

const (
	BucketCategoryPostImage BucketCategory = "post_image"
	BucketCategoryLogo      BucketCategory = "logo"
)

type BucketConfig struct {
	Name      string `yaml:"name"`
	CDNDomain string `yaml:"cdn_domain"`
}

// Buckets names the bucket behind every category.
type Buckets struct {
	PostImage BucketConfig `yaml:"post_image"`
	Logo      BucketConfig `yaml:"logo"`
}

func (b Buckets) forCategory(category BucketCategory) (BucketConfig, error) {
	switch category {
	case BucketCategoryPostImage:
		return b.PostImage, nil
	case BucketCategoryLogo:
		return b.Logo, nil
	default:
		return BucketConfig{}, fmt.Errorf("unknown bucket category: %s", category)
	}
}

type BucketService interface {
	UploadFile(ctx context.Context, category BucketCategory, key string, file io.Reader) error
	DeleteFile(ctx context.Context, category BucketCategory, key string) error
	GetPublicURL(category BucketCategory, key string) string
}

type bucketService struct {
	log           *logger.Logger
	storageClient *storage.Client
	storageMode   ObjectStorageMode
	emulatorHost  string
	publicBaseURL string
	buckets       Buckets
}

// NewBucketService picks the implementation for cfg.Mode.
func NewBucketService(ctx context.Context, log *logger.Logger, cfg ObjectStorageConfig, buckets Buckets) (BucketService, error) {
	if err := ValidateObjectStorageConfig(cfg); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	serviceLog := log.With("service", "BucketService")
	if cfg.Mode == ObjectStorageModeMemory {
		serviceLog.Info("Object storage initialized", "mode", cfg.Mode)
		return NewMemoryBucketService(cfg.PublicBaseURL, buckets), nil
	}
	if strings.TrimSpace(buckets.PostImage.Name) == "" {
		return nil, fmt.Errorf("missing POST_IMAGE_GCS_BUCKET_NAME")
	}
	if strings.TrimSpace(buckets.Logo.Name) == "" {
		return nil, fmt.Errorf("missing LOGO_GCS_BUCKET_NAME")
	}

	client, err := newStorageClientForMode(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	publicBase := cfg.PublicBaseURL
	if publicBase == "" && cfg.IsEmulatorMode() {
		publicBase = cfg.EmulatorHost
	}
	serviceLog.Info(
		"Object storage initialized",
		"mode", cfg.Mode,
		"mode_source", cfg.ModeSource(),
		"emulator_host", cfg.EmulatorHost,
		"public_base_url", publicBase,
		"post_image_bucket", buckets.PostImage.Name,
		"logo_bucket", buckets.Logo.Name,
	)
	return &bucketService{
		log:           serviceLog,
		storageClient: client,
		storageMode:   cfg.Mode,
		emulatorHost:  cfg.EmulatorHost,
		publicBaseURL: publicBase,
		buckets:       buckets,
	}, nil
}

func newStorageClientForMode(ctx context.Context, cfg ObjectStorageConfig) (*storage.Client, error) {
	switch cfg.Mode {
	case ObjectStorageModeGCS:
		opts := append(credentialOptions(), option.WithScopes(storage.ScopeReadWrite))
		return storage.NewClient(ctx, opts...)
	case ObjectStorageModeGCSEmulator:
		_ = os.Setenv("STORAGE_EMULATOR_HOST", cfg.EmulatorHost)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, &ObjectStorageConfigError{Code: ObjectStorageConfigErrorInvalidMode, Mode: string(cfg.Mode)}
	}
}

// credentialOptions reads service-account credentials from
// GOOGLE_APPLICATION_CREDENTIALS_JSON (inline) or GOOGLE_APPLICATION_CREDENTIALS
// (path). Neither set means application default credentials.
func credentialOptions() []option.ClientOption {
	if raw := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON")); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); path != "" {
		if strings.HasPrefix(path, "{") {
			return []option.ClientOption{option.WithCredentialsJSON([]byte(path))}
		}
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

func (bs *bucketService) UploadFile(ctx context.Context, category BucketCategory, key string, file io.Reader) error {
	cfg, err := bs.buckets.forCategory(category)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := bs.storageClient.Bucket(cfg.Name).Object(key).NewWriter(ctx)
	if ct := contentTypeForKey(key); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, file); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (bs *bucketService) DeleteFile(ctx context.Context, category BucketCategory, key string) error {
	cfg, err := bs.buckets.forCategory(category)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := bs.storageClient.Bucket(cfg.Name).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", key, cfg.Name, err)
	}
	return nil
}

func (bs *bucketService) GetPublicURL(category BucketCategory, key string) string {
	cfg, err := bs.buckets.forCategory(category)
	if err != nil {
		return key
	}
	return publicURL(bs.storageMode, bs.publicBaseURL, cfg, key)
}

func publicURL(mode ObjectStorageMode, publicBase string, cfg BucketConfig, key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if cfg.CDNDomain != "" {
		return fmt.Sprintf("https://%s/%s", cfg.CDNDomain, key)
	}
	base := strings.TrimRight(strings.TrimSpace(publicBase), "/")
	if mode == ObjectStorageModeGCSEmulator && base != "" {
		return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", base, url.PathEscape(cfg.Name), url.PathEscape(key))
	}
	if base != "" {
		return fmt.Sprintf("%s/%s/%s", base, cfg.Name, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", cfg.Name, key)
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	switch {
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".webp"):
		return "image/webp"
	case strings.HasSuffix(s, ".gif"):
		return "image/gif"
	default:
		return ""
	}
}
