package services

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"os"
	"strings"
	"sync"
	"unicode"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	_ "golang.org/x/image/webp"
)

const logoSize = 512

// LogoConfig points at optional overrides of the built-in font and palette.
type LogoConfig struct {
	FontPath       string `yaml:"font_path"`
	ColorsJSONPath string `yaml:"colors_json_path"`
}

var defaultLogoColors = []color.NRGBA{
	{R: 0x1F, G: 0x6F, B: 0xEB, A: 0xFF},
	{R: 0x0E, G: 0x9F, B: 0x6E, A: 0xFF},
	{R: 0xD9, G: 0x48, B: 0x41, A: 0xFF},
	{R: 0x8E, G: 0x44, B: 0xAD, A: 0xFF},
	{R: 0xE6, G: 0x7E, B: 0x22, A: 0xFF},
	{R: 0x2C, G: 0x3E, B: 0x50, A: 0xFF},
	{R: 0x16, G: 0xA0, B: 0x85, A: 0xFF},
	{R: 0xC0, G: 0x39, B: 0x2B, A: 0xFF},
}

// logoRenderer draws default initials logos and normalizes uploaded ones.
type logoRenderer struct {
	colors     []color.NRGBA
	colorByHex map[string]color.NRGBA
	fontFace   font.Face

	mu   sync.Mutex
	rand *rand.Rand
}

func newLogoRenderer(cfg LogoConfig, seed int64) (*logoRenderer, error) {
	colors := defaultLogoColors
	if p := strings.TrimSpace(cfg.ColorsJSONPath); p != "" {
		loaded, err := loadColorsFromFile(p)
		if err != nil {
			return nil, fmt.Errorf("could not load logo colors: %w", err)
		}
		if len(loaded) == 0 {
			return nil, fmt.Errorf("logo colors list is empty")
		}
		colors = loaded
	}

	fontBytes := gobold.TTF
	if p := strings.TrimSpace(cfg.FontPath); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read font file: %w", err)
		}
		fontBytes = b
	}
	face, err := loadFontFace(fontBytes, 206)
	if err != nil {
		return nil, fmt.Errorf("could not load logo font: %w", err)
	}

	byHex := make(map[string]color.NRGBA, len(colors))
	for _, c := range colors {
		byHex[nrgbaToHex(c)] = c
	}
	return &logoRenderer{
		colors:     colors,
		colorByHex: byHex,
		fontFace:   face,
		rand:       rand.New(rand.NewSource(seed)),
	}, nil
}

// pickColor keeps a valid palette color or picks a random one.
func (lr *logoRenderer) pickColor(hexStr string) (string, color.NRGBA) {
	if h := normalizeHex(hexStr); h != "" {
		if c, ok := lr.colorByHex[h]; ok {
			return h, c
		}
	}
	lr.mu.Lock()
	c := lr.colors[lr.rand.Intn(len(lr.colors))]
	lr.mu.Unlock()
	return nrgbaToHex(c), c
}

// Initials draws up to two initials on a colored disc.
func (lr *logoRenderer) Initials(name string, bg color.NRGBA) (bytes.Buffer, error) {
	// font faces keep glyph caches and are not safe for concurrent use
	lr.mu.Lock()
	defer lr.mu.Unlock()

	dc := gg.NewContext(logoSize, logoSize)

	dc.DrawCircle(float64(logoSize)/2, float64(logoSize)/2, float64(logoSize)/2)
	dc.Clip()

	dc.SetColor(bg)
	dc.DrawRectangle(0, 0, float64(logoSize), float64(logoSize))
	dc.Fill()

	initials := computeInitials(name)
	dc.SetFontFace(lr.fontFace)
	dc.SetColor(color.White)
	dc.DrawStringAnchored(initials, float64(logoSize)/2, float64(logoSize)/2, 0.5, 0.35)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return buf, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf, nil
}

// FromUpload center-crops raw to a square, resizes it and clips it to a circle.
func (lr *logoRenderer) FromUpload(raw []byte) (bytes.Buffer, error) {
	var out bytes.Buffer

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	side := w
	if h < w {
		side = h
	}
	x0 := b.Min.X + (w-side)/2
	y0 := b.Min.Y + (h-side)/2

	cropRect := image.Rect(0, 0, side, side)
	cropped := image.NewRGBA(cropRect)
	draw.Draw(cropped, cropRect, img, image.Point{X: x0, Y: y0}, draw.Src)

	dst := image.NewRGBA(image.Rect(0, 0, logoSize, logoSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), cropped, cropped.Bounds(), draw.Over, nil)

	dc := gg.NewContext(logoSize, logoSize)
	dc.DrawCircle(float64(logoSize)/2, float64(logoSize)/2, float64(logoSize)/2)
	dc.Clip()
	dc.DrawImage(dst, 0, 0)

	if err := dc.EncodePNG(&out); err != nil {
		return out, fmt.Errorf("encode png: %w", err)
	}
	return out, nil
}

func normalizeHex(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	s = strings.ToUpper(s)
	if len(s) != 7 {
		return ""
	}
	if _, err := hex.DecodeString(s[1:]); err != nil {
		return ""
	}
	return s
}

func nrgbaToHex(c color.NRGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// computeInitials takes the first letter of the first two words, or "?".
func computeInitials(name string) string {
	var out []rune
	for _, word := range strings.FieldsFunc(name, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_' || r == '.'
	}) {
		for _, r := range word {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				out = append(out, unicode.ToUpper(r))
				break
			}
		}
		if len(out) == 2 {
			break
		}
	}
	if len(out) == 0 {
		return "?"
	}
	return string(out)
}

func loadColorsFromFile(jsonPath string) ([]color.NRGBA, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read file error: %w", err)
	}
	var colors []color.NRGBA
	if err := json.Unmarshal(data, &colors); err != nil {
		return nil, fmt.Errorf("json unmarshal error: %w", err)
	}
	return colors, nil
}

func loadFontFace(fontBytes []byte, size float64) (font.Face, error) {
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	face := truetype.NewFace(parsedFont, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	return face, nil
}
