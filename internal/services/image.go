package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	types "github.com/yungbote/arcblog-backend/internal/domain"
	"github.com/yungbote/arcblog-backend/internal/modules/lineage"
	"github.com/yungbote/arcblog-backend/internal/platform/gcp"
	"github.com/yungbote/arcblog-backend/internal/platform/logger"
)

type ImageConfig struct {
	MaxBytes     int64 `yaml:"max_bytes"`
	MaxDimension int   `yaml:"max_dimension"`
}

func (c ImageConfig) withDefaults() ImageConfig {
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 << 20
	}
	if c.MaxDimension <= 0 {
		c.MaxDimension = 1600
	}
	return c
}

// UploadedImage is the stored rendition of an upload.
type UploadedImage struct {
	URL    string      `json:"url"`
	Width  int         `json:"width"`
	Height int         `json:"height"`
	Format string      `json:"format"`
	Post   *types.Post `json:"post"`
}

type ImageService interface {
	UploadPostImage(ctx context.Context, s types.Session, postID uuid.UUID, raw []byte) (*UploadedImage, error)
}

type imageService struct {
	log           *logger.Logger
	cfg           ImageConfig
	lineage       lineage.Service
	bucketService gcp.BucketService
	now           func() time.Time
}

func NewImageService(log *logger.Logger, cfg ImageConfig, lin lineage.Service, bucketService gcp.BucketService) ImageService {
	return &imageService{
		log:           log.With("service", "ImageService"),
		cfg:           cfg.withDefaults(),
		lineage:       lin,
		bucketService: bucketService,
		now:           time.Now,
	}
}

func (is *imageService) UploadPostImage(ctx context.Context, s types.Session, postID uuid.UUID, raw []byte) (*UploadedImage, error) {
	if _, err := is.lineage.OwnedPost(ctx, s, postID); err != nil {
		return nil, err
	}
	if int64(len(raw)) > is.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrImageTooLarge, len(raw), is.cfg.MaxBytes)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrUnsupportedImage)
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	img = downscale(img, is.cfg.MaxDimension)

	var buf bytes.Buffer
	ext := "png"
	switch format {
	case "jpeg":
		ext = "jpg"
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85})
	default:
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ext, err)
	}

	key := fmt.Sprintf("post_image/%s/%d.%s", postID.String(), is.now().UnixNano(), ext)
	if err := is.bucketService.UploadFile(ctx, gcp.BucketCategoryPostImage, key, bytes.NewReader(buf.Bytes())); err != nil {
		return nil, fmt.Errorf("failed to upload post image: %w", err)
	}
	url := is.bucketService.GetPublicURL(gcp.BucketCategoryPostImage, key)

	post, err := is.lineage.AppendImage(ctx, s, postID, url)
	if err != nil {
		if delErr := is.bucketService.DeleteFile(ctx, gcp.BucketCategoryPostImage, key); delErr != nil {
			is.log.Warn("failed to delete orphaned upload (ignored)", "key", key, "error", delErr)
		}
		return nil, err
	}
	b := img.Bounds()
	is.log.Info("Stored post image", "post_id", postID.String(), "key", key, "bytes", buf.Len())
	return &UploadedImage{URL: url, Width: b.Dx(), Height: b.Dy(), Format: ext, Post: post}, nil
}

// downscale fits img inside max x max, keeping the aspect ratio. Smaller
// images are returned as is.
func downscale(img image.Image, max int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= max && h <= max {
		return img
	}
	nw, nh := max, max
	if w >= h {
		nh = h * max / w
	} else {
		nw = w * max / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// IsImageRejected reports errors caused by the upload itself.
func IsImageRejected(err error) bool {
	return errors.Is(err, ErrImageTooLarge) || errors.Is(err, ErrUnsupportedImage)
}
