// Package cover renders playlist cover images and uploads them.
package cover

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"playlistgen/internal/core"
)

const (
	// JPEGQuality keeps 1500x1500 covers under the 256 KB upload limit
	JPEGQuality = 90
	fontDPI     = 72
	fontCache   = 8
)

var (
	// ErrInvalidSpec is returned by Render for sizes it refuses to draw.
	ErrInvalidSpec = errors.New("invalid cover spec")

	// DefaultBackground is the cover fill color
	DefaultBackground = color.RGBA{R: 73, G: 109, B: 137, A: 255}
	// DefaultForeground is the title color
	DefaultForeground = color.RGBA{R: 255, G: 255, B: 0, A: 255}
)

// Spec describes one cover image.
type Spec struct {
	Text       string
	FontSize   int
	Width      int
	Height     int
	Background color.RGBA
	Foreground color.RGBA
	// FontPath is a TrueType/OpenType file. When it cannot be loaded the
	// embedded Go Bold font is used instead.
	FontPath string
}

// SpecFromConfig fills a Spec from the configured defaults.
func SpecFromConfig(cfg *core.CoverConfig) Spec {
	return Spec{
		Text:       cfg.Text,
		FontSize:   cfg.FontSize,
		Width:      cfg.Size,
		Height:     cfg.Size,
		Background: DefaultBackground,
		Foreground: DefaultForeground,
		FontPath:   cfg.FontPath,
	}
}

// Uploader is the capability needed to publish a cover.
type Uploader interface {
	UploadPlaylistCoverImage(ctx context.Context, playlistID string, jpeg []byte) error
}

// Renderer draws covers. Parsed fonts are cached by path.
type Renderer struct {
	logger *zap.Logger
	fonts  *lru.Cache[string, *opentype.Font]
}

func NewRenderer(logger *zap.Logger) *Renderer {
	fonts, err := lru.New[string, *opentype.Font](fontCache)
	if err != nil {
		panic(err)
	}
	return &Renderer{logger: logger.Named("cover"), fonts: fonts}
}

// Render returns the cover as JPEG bytes.
func (r *Renderer) Render(spec Spec) ([]byte, error) {
	if spec.Width <= 0 || spec.Height <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidSpec, spec.Width, spec.Height)
	}
	// The glyph size may not exceed the canvas.
	if spec.FontSize <= 0 || spec.FontSize > max(spec.Width, spec.Height) {
		return nil, fmt.Errorf("%w: font size %d for a %dx%d cover", ErrInvalidSpec, spec.FontSize, spec.Width, spec.Height)
	}

	face, err := opentype.NewFace(r.font(spec.FontPath), &opentype.FaceOptions{
		Size:    float64(spec.FontSize),
		DPI:     fontDPI,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	defer face.Close()

	img := image.NewRGBA(image.Rect(0, 0, spec.Width, spec.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: spec.Background}, image.Point{}, draw.Src)

	if spec.Text != "" {
		drawer := &font.Drawer{
			Dst:  img,
			Src:  &image.Uniform{C: spec.Foreground},
			Face: face,
		}
		drawer.Dot = centeredDot(face, spec.Text, spec.Width, spec.Height)
		drawer.DrawString(spec.Text)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode cover: %w", err)
	}
	return buf.Bytes(), nil
}

// Publish renders spec and uploads it to playlistID.
func (r *Renderer) Publish(ctx context.Context, uploader Uploader, playlistID string, spec Spec) ([]byte, error) {
	if uploader == nil {
		return nil, core.ErrAuthUnavailable
	}
	if playlistID == "" {
		return nil, errors.New("playlist id is required")
	}

	data, err := r.Render(spec)
	if err != nil {
		return nil, err
	}

	if err := uploader.UploadPlaylistCoverImage(ctx, playlistID, data); err != nil {
		return data, err
	}
	return data, nil
}

// centeredDot places the text's measured bounding box in the middle of the canvas.
func centeredDot(face font.Face, text string, width, height int) fixed.Point26_6 {
	bounds, _ := font.BoundString(face, text)
	textWidth := bounds.Max.X - bounds.Min.X
	textHeight := bounds.Max.Y - bounds.Min.Y

	return fixed.Point26_6{
		X: (fixed.I(width)-textWidth)/2 - bounds.Min.X,
		Y: (fixed.I(height)-textHeight)/2 - bounds.Min.Y,
	}
}

func (r *Renderer) font(path string) *opentype.Font {
	if path != "" {
		if f, ok := r.fonts.Get(path); ok {
			return f
		}

		f, err := loadFont(path)
		if err == nil {
			r.fonts.Add(path, f)
			return f
		}
		r.logger.Warn("Falling back to the built-in font", zap.String("font", path), zap.Error(err))
	}

	if f, ok := r.fonts.Get(""); ok {
		return f
	}
	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		panic(fmt.Sprintf("embedded font: %v", err))
	}
	r.fonts.Add("", f)
	return f
}

func loadFont(path string) (*opentype.Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return opentype.Parse(data)
}
