// Package raster paints the lyric view into an RGBA image with the Go fonts.
// It backs still renders and any surface that shows pixels instead of cells.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"karolbroda.com/lyricfloat/internal/colors"
	"karolbroda.com/lyricfloat/internal/render"
	"karolbroda.com/lyricfloat/internal/textlayout"
)

const (
	DefaultBackground = "#121212"

	// backdrop cover art is darkened to this much of its brightness
	backdropShade = 0.35
	// shadow passes drawn around each glyph run
	shadowTaps = 8
)

var _ render.Canvas = (*Canvas)(nil)

type faceKey struct {
	bold   bool
	italic bool
	// size in half points
	size int
}

// Faces parses the Go fonts once and caches a face per style and size.
type Faces struct {
	mu    sync.Mutex
	fonts map[[2]bool]*opentype.Font
	faces map[faceKey]font.Face
}

func NewFaces() (*Faces, error) {
	sources := map[[2]bool][]byte{
		{false, false}: goregular.TTF,
		{true, false}:  gobold.TTF,
		{false, true}:  goitalic.TTF,
		{true, true}:   gobolditalic.TTF,
	}
	fonts := make(map[[2]bool]*opentype.Font, len(sources))
	for variant, ttf := range sources {
		f, err := opentype.Parse(ttf)
		if err != nil {
			return nil, fmt.Errorf("parse go font: %w", err)
		}
		fonts[variant] = f
	}
	return &Faces{fonts: fonts, faces: make(map[faceKey]font.Face)}, nil
}

func (f *Faces) Face(want textlayout.Font) (font.Face, error) {
	key := faceKey{
		bold:   want.Weight >= 700,
		italic: want.Italic,
		size:   int(math.Round(math.Max(want.Size, 1) * 2)),
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if face, ok := f.faces[key]; ok {
		return face, nil
	}
	face, err := opentype.NewFace(f.fonts[[2]bool{key.bold, key.italic}], &opentype.FaceOptions{
		Size:    float64(key.size) / 2,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("new face %+v: %w", key, err)
	}
	f.faces[key] = face
	return face, nil
}

// Measure returns the advance width of text in pixels. It reports 0 when no
// face can be built.
func (f *Faces) Measure(text string, want textlayout.Font) float64 {
	face, err := f.Face(want)
	if err != nil {
		return 0
	}
	return fixedToFloat(font.MeasureString(face, text))
}

type Option func(*Canvas)

func WithBackground(hex string) Option {
	return func(c *Canvas) {
		if col, ok := parseColor(hex, 1); ok {
			c.background = col
		}
	}
}

// WithBackdrop fills the canvas with a darkened, cover-scaled img.
func WithBackdrop(img image.Image) Option {
	return func(c *Canvas) {
		c.backdrop = img
	}
}

type Canvas struct {
	img        *image.RGBA
	faces      *Faces
	background color.Color
	backdrop   image.Image
	scaled     *image.RGBA

	// Err is the first face error hit while drawing.
	Err error
}

func New(width int, height int, faces *Faces, opts ...Option) (*Canvas, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("canvas size %dx%d must be positive", width, height)
	}
	if faces == nil {
		return nil, errors.New("raster: nil faces")
	}
	bg, _ := parseColor(DefaultBackground, 1)
	c := &Canvas{
		img:        image.NewRGBA(image.Rect(0, 0, width, height)),
		faces:      faces,
		background: bg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Canvas) Size() (float64, float64) {
	b := c.img.Bounds()
	return float64(b.Dx()), float64(b.Dy())
}

func (c *Canvas) Image() *image.RGBA {
	return c.img
}

func (c *Canvas) Clear() {
	if c.backdrop == nil {
		draw.Draw(c.img, c.img.Bounds(), image.NewUniform(c.background), image.Point{}, draw.Src)
		return
	}
	if c.scaled == nil {
		c.scaled = coverScale(c.backdrop, c.img.Bounds())
	}
	draw.Draw(c.img, c.img.Bounds(), c.scaled, image.Point{}, draw.Src)
}

func (c *Canvas) FillText(text string, x float64, y float64, style render.Style) {
	if text == "" {
		return
	}
	face, err := c.faces.Face(style.Font)
	if err != nil {
		if c.Err == nil {
			c.Err = err
		}
		return
	}

	width := fixedToFloat(font.MeasureString(face, text))
	left := x - width/2

	if shadow, ok := parseColor(style.Shadow.Color, style.Alpha); ok && style.Shadow.Blur > 0 {
		c.drawShadow(face, text, left, y, shadow, style.Shadow.Blur)
	}

	fg, ok := parseColor(style.Color, style.Alpha)
	if !ok {
		return
	}
	c.drawString(face, text, left, y, fg)
}

// drawShadow approximates a blurred shadow with faint copies on a ring of
// radius blur/3.
func (c *Canvas) drawShadow(face font.Face, text string, x, y float64, col color.NRGBA, blur float64) {
	radius := blur / 3
	col.A = uint8(float64(col.A) / 4)
	for i := 0; i < shadowTaps; i++ {
		angle := 2 * math.Pi * float64(i) / shadowTaps
		c.drawString(face, text, x+radius*math.Cos(angle), y+radius*math.Sin(angle), col)
	}
}

func (c *Canvas) drawString(face font.Face, text string, x, y float64, col color.NRGBA) {
	d := font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: floatToFixed(x), Y: floatToFixed(y)},
	}
	d.DrawString(text)
}

func (c *Canvas) EncodePNG(w io.Writer) error {
	if err := png.Encode(w, c.img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// coverScale fills bounds with img, cropping the overflow and darkening it.
func coverScale(img image.Image, bounds image.Rectangle) *image.RGBA {
	out := image.NewRGBA(bounds)
	src := img.Bounds()
	if src.Empty() {
		return out
	}

	scale := math.Max(float64(bounds.Dx())/float64(src.Dx()), float64(bounds.Dy())/float64(src.Dy()))
	w := int(math.Ceil(float64(src.Dx()) * scale))
	h := int(math.Ceil(float64(src.Dy()) * scale))
	dst := image.Rect(0, 0, w, h).Add(image.Pt((bounds.Dx()-w)/2, (bounds.Dy()-h)/2))

	draw.CatmullRom.Scale(out, dst, img, src, draw.Src, nil)
	shade := image.NewUniform(color.NRGBA{A: uint8(math.Round((1 - backdropShade) * 255))})
	draw.Draw(out, bounds, shade, image.Point{}, draw.Over)
	return out
}

func parseColor(s string, alpha float64) (color.NRGBA, bool) {
	c, a, ok := colors.Parse(s)
	if !ok {
		return color.NRGBA{}, false
	}
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: uint8(math.Round(clamp01(a*alpha) * 255))}, true
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func floatToFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}

// Still paints f once with the scroll settled on the active line.
func Still(f render.Frame, width int, height int, faces *Faces, opts ...Option) (*Canvas, error) {
	c, err := New(width, height, faces, opts...)
	if err != nil {
		return nil, err
	}
	engine := render.New(c, textlayout.New(faces), nil)
	defer engine.Teardown()

	engine.Draw(f)
	engine.Settle()
	if res := engine.Draw(f); !res.Drawn {
		return nil, errors.New("frame was not drawn")
	}
	return c, c.Err
}
