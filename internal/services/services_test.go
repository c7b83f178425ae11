package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/arcblog-backend/internal/data/repos"
	"github.com/yungbote/arcblog-backend/internal/data/repos/testutil"
	types "github.com/yungbote/arcblog-backend/internal/domain"
	"github.com/yungbote/arcblog-backend/internal/modules/lineage"
	"github.com/yungbote/arcblog-backend/internal/platform/gcp"
	"github.com/yungbote/arcblog-backend/internal/platform/llm"
	"github.com/yungbote/arcblog-backend/internal/platform/logger"
)

type fixture struct {
	ctx     context.Context
	db      *gorm.DB
	log     *logger.Logger
	repos   repos.Repos
	bucket  *gcp.MemoryBucketService
	lineage lineage.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	r := repos.New(db, log)
	return &fixture{
		ctx:     context.Background(),
		db:      db,
		log:     log,
		repos:   r,
		bucket:  gcp.NewMemoryBucketService("http://cdn.test", gcp.Buckets{}),
		lineage: lineage.NewService(db, log, r.Post, r.Development, lineage.Config{}),
	}
}

func (f *fixture) blogs(t *testing.T, vocab ...string) BlogService {
	t.Helper()
	bs, err := NewBlogService(f.db, f.log, f.repos.Blog, f.bucket, LogoConfig{}, vocab)
	require.NoError(t, err)
	return bs
}

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestComputeInitials(t *testing.T) {
	cases := map[string]string{
		"ada lovelace":      "AL",
		"grace":             "G",
		"  ":                "?",
		"jean-luc picard x": "JL",
		"_retry.storms":     "RS",
	}
	for in, want := range cases {
		require.Equal(t, want, computeInitials(in), in)
	}
}

func TestNormalizeHex(t *testing.T) {
	require.Equal(t, "#1F6FEB", normalizeHex("1f6feb"))
	require.Equal(t, "", normalizeHex("#12"))
	require.Equal(t, "", normalizeHex("#GGGGGG"))
}

func TestLogoRendererKeepsKnownColor(t *testing.T) {
	lr, err := newLogoRenderer(LogoConfig{}, 1)
	require.NoError(t, err)
	hexColor, c := lr.pickColor("#0e9f6e")
	require.Equal(t, "#0E9F6E", hexColor)
	require.Equal(t, defaultLogoColors[1], c)

	hexColor, _ = lr.pickColor("#123456")
	require.Contains(t, lr.colorByHex, hexColor)
}

func TestLogoFromUploadIsSquare(t *testing.T) {
	lr, err := newLogoRenderer(LogoConfig{}, 1)
	require.NoError(t, err)
	out, err := lr.FromUpload(encodeJPEG(t, solid(300, 120)))
	require.NoError(t, err)
	img, format, err := image.Decode(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	require.Equal(t, "png", format)
	require.Equal(t, logoSize, img.Bounds().Dx())
	require.Equal(t, logoSize, img.Bounds().Dy())

	_, err = lr.FromUpload([]byte("not an image"))
	require.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestUpsertProfileCreatesBlogWithDefaultLogo(t *testing.T) {
	f := newFixture(t)
	bs := f.blogs(t, "Distributed Systems", "Databases")
	testutil.SeedBlog(t, f.ctx, f.db, "seeded")
	sess := types.Session{UserID: uuid.New()}

	_, err := bs.UpsertProfile(f.ctx, sess, ProfileInput{})
	require.ErrorIs(t, err, ErrUsernameRequired)

	bad := "-nope"
	_, err = bs.UpsertProfile(f.ctx, sess, ProfileInput{Username: &bad})
	require.ErrorIs(t, err, ErrInvalidUsername)

	taken := "seeded"
	_, err = bs.UpsertProfile(f.ctx, sess, ProfileInput{Username: &taken})
	require.ErrorIs(t, err, ErrUsernameTaken)

	name, display := "Ada_L", "Ada Lovelace"
	interests := []string{"databases", "Databases"}
	b, err := bs.UpsertProfile(f.ctx, sess, ProfileInput{Username: &name, DisplayName: &display, Interests: &interests})
	require.NoError(t, err)
	require.Equal(t, "ada_l", b.Username)
	require.Equal(t, []string{"Databases"}, []string(b.Interests))
	require.NotEmpty(t, b.LogoURL)
	require.NotEmpty(t, b.LogoColor)
	_, ok := f.bucket.Object(gcp.BucketCategoryLogo, b.LogoBucketKey)
	require.True(t, ok)

	unknown := []string{"Knitting"}
	_, err = bs.UpsertProfile(f.ctx, sess, ProfileInput{Interests: &unknown})
	require.ErrorIs(t, err, types.ErrUnknownInterest)

	tagline := "  notes on failure  "
	b, err = bs.UpsertProfile(f.ctx, sess, ProfileInput{Tagline: &tagline})
	require.NoError(t, err)
	require.Equal(t, "notes on failure", b.Tagline)
	require.Equal(t, "Ada Lovelace", b.DisplayName)

	got, err := bs.GetByUsername(f.ctx, "ada_l")
	require.NoError(t, err)
	require.Equal(t, sess.UserID, got.UserID)

	_, err = bs.GetByUsername(f.ctx, "nobody")
	require.ErrorIs(t, err, ErrBlogNotFound)
}

func TestUpdateLogoReplacesObject(t *testing.T) {
	f := newFixture(t)
	bs := f.blogs(t)
	seeded := testutil.SeedBlog(t, f.ctx, f.db, "writer")
	sess := types.Session{UserID: seeded.UserID}

	first, err := bs.EnsureDefaultLogo(f.ctx, sess)
	require.NoError(t, err)
	oldKey := first.LogoBucketKey
	again, err := bs.EnsureDefaultLogo(f.ctx, sess)
	require.NoError(t, err)
	require.Equal(t, oldKey, again.LogoBucketKey)

	updated, err := bs.UpdateLogo(f.ctx, sess, encodePNG(t, solid(64, 64)))
	require.NoError(t, err)
	require.NotEqual(t, oldKey, updated.LogoBucketKey)
	require.Equal(t, first.LogoColor, updated.LogoColor)
	_, ok := f.bucket.Object(gcp.BucketCategoryLogo, oldKey)
	require.False(t, ok)
	_, ok = f.bucket.Object(gcp.BucketCategoryLogo, updated.LogoBucketKey)
	require.True(t, ok)

	_, err = bs.UpdateLogo(f.ctx, types.Session{}, nil)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestUploadPostImageDownscalesAndAppends(t *testing.T) {
	f := newFixture(t)
	seeded := testutil.SeedBlog(t, f.ctx, f.db, "writer")
	sess := types.Session{UserID: seeded.UserID}
	post, err := f.lineage.CreateRoot(f.ctx, sess, lineage.PostFields{Title: "Backpressure"})
	require.NoError(t, err)

	is := NewImageService(f.log, ImageConfig{MaxBytes: 1 << 20, MaxDimension: 100}, f.lineage, f.bucket)
	up, err := is.UploadPostImage(f.ctx, sess, post.ID, encodeJPEG(t, solid(400, 200)))
	require.NoError(t, err)
	require.Equal(t, 100, up.Width)
	require.Equal(t, 50, up.Height)
	require.Equal(t, "jpg", up.Format)
	require.Equal(t, []string{up.URL}, []string(up.Post.Images))

	small, err := is.UploadPostImage(f.ctx, sess, post.ID, encodePNG(t, solid(20, 30)))
	require.NoError(t, err)
	require.Equal(t, 20, small.Width)
	require.Equal(t, "png", small.Format)

	stored, err := f.lineage.GetPost(f.ctx, post.ID)
	require.NoError(t, err)
	require.Equal(t, []string{up.URL, small.URL}, []string(stored.Images))
}

func TestUploadPostImageRejects(t *testing.T) {
	f := newFixture(t)
	owner := types.Session{UserID: testutil.SeedBlog(t, f.ctx, f.db, "owner").UserID}
	other := types.Session{UserID: testutil.SeedBlog(t, f.ctx, f.db, "other").UserID}
	post, err := f.lineage.CreateRoot(f.ctx, owner, lineage.PostFields{Title: "Quotas"})
	require.NoError(t, err)

	is := NewImageService(f.log, ImageConfig{MaxBytes: 64}, f.lineage, f.bucket)
	_, err = is.UploadPostImage(f.ctx, owner, post.ID, bytes.Repeat([]byte{1}, 65))
	require.ErrorIs(t, err, ErrImageTooLarge)
	require.True(t, IsImageRejected(err))

	_, err = is.UploadPostImage(f.ctx, owner, post.ID, []byte("plain text"))
	require.ErrorIs(t, err, ErrUnsupportedImage)

	_, err = is.UploadPostImage(f.ctx, other, post.ID, []byte("x"))
	require.ErrorIs(t, err, lineage.ErrForbidden)
}

func TestDownscaleKeepsAspect(t *testing.T) {
	out := downscale(solid(90, 300), 30)
	require.Equal(t, 9, out.Bounds().Dx())
	require.Equal(t, 30, out.Bounds().Dy())
}

func TestProviderCredentials(t *testing.T) {
	f := newFixture(t)
	factory := llm.NewFactory(f.log, llm.FactoryConfig{})
	ps := NewProviderService(f.db, f.log, f.repos.ProviderCredential, factory)
	sess := types.Session{UserID: testutil.SeedBlog(t, f.ctx, f.db, "writer").UserID}

	_, err := ps.Put(f.ctx, sess, "gemini", CredentialInput{APIKey: "k"})
	require.ErrorIs(t, err, llm.ErrInvalidProviderKey)
	_, err = ps.Put(f.ctx, sess, "openai", CredentialInput{APIKey: "  "})
	require.ErrorIs(t, err, ErrAPIKeyRequired)

	v, err := ps.Put(f.ctx, sess, "Anthropic", CredentialInput{APIKey: "sk-ant-12345678"})
	require.NoError(t, err)
	require.Equal(t, "anthropic", v.Provider)
	require.Equal(t, "****5678", v.KeyHint)
	_, err = ps.Put(f.ctx, sess, "serper", CredentialInput{APIKey: "serp-key"})
	require.NoError(t, err)
	_, err = ps.Put(f.ctx, sess, "anthropic", CredentialInput{APIKey: "sk-ant-rotated", Model: "claude-x"})
	require.NoError(t, err)

	list, err := ps.List(f.ctx, sess)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "anthropic", list[0].Provider)
	require.Equal(t, "claude-x", list[0].Model)
	require.True(t, list[1].Searches)

	reg, err := ps.RegistryFor(f.ctx, sess.UserID)
	require.NoError(t, err)
	require.Equal(t, []string{"anthropic", "serper"}, reg.ListAvailable())
	require.Equal(t, "anthropic", reg.CurrentKey())
	require.Equal(t, "serper", reg.FirstSearch().Key())

	require.NoError(t, ps.Delete(f.ctx, sess, "serper"))
	require.ErrorIs(t, ps.Delete(f.ctx, sess, "serper"), ErrCredentialNotFound)

	empty, err := ps.RegistryFor(f.ctx, testutil.SeedBlog(t, f.ctx, f.db, "nokeys").UserID)
	require.NoError(t, err)
	require.Nil(t, empty.Current())
}
