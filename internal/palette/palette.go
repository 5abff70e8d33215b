// Package palette derives the three-color lyric theme from cover art.
package palette

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"
	"os"
	"strings"

	"github.com/EdlinOrg/prominentcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/nfnt/resize"

	"karolbroda.com/lyricfloat/internal/httpx"
)

const (
	sampleSize    = 50
	minBrightness = 40
	maxBrightness = 220
	romajiHueStep = 30
)

// Palette is the active-line color set. Values are #RRGGBB.
type Palette struct {
	Vibrant     string `json:"vibrant"`
	Translation string `json:"translation"`
	Romaji      string `json:"romaji"`
}

var Default = Palette{
	Vibrant:     "#1DB954",
	Translation: "#A0C0E0",
	Romaji:      "#F5AF19",
}

// Fetch loads cover art from a file:// path or an http(s) url.
func Fetch(ctx context.Context, client *http.Client, artworkURL string) (image.Image, error) {
	if artworkURL == "" {
		return nil, errors.New("empty artwork url")
	}

	var r io.Reader
	if path, ok := strings.CutPrefix(artworkURL, "file://"); ok {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open artwork file: %w", err)
		}
		defer f.Close()
		r = f
	} else {
		body, err := httpx.Get(ctx, client, artworkURL, httpx.BrowserUserAgent)
		if err != nil {
			return nil, fmt.Errorf("fetch artwork: %w", err)
		}
		r = bytes.NewReader(body)
	}

	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode artwork: %w", err)
	}
	return img, nil
}

// Extract averages the mid-brightness pixels of a 50x50 downscale and lifts the
// result into readable colors. When every pixel is too dark or too bright the
// dominant k-means color is used instead. A nil image yields Default.
func Extract(img image.Image) Palette {
	if img == nil {
		return Default
	}

	small := resize.Resize(sampleSize, sampleSize, img, resize.Bilinear)
	base, ok := averageMidtones(small)
	if !ok {
		base, ok = dominant(img)
		if !ok {
			return Default
		}
	}

	h, s, l := base.Hsl()
	return Palette{
		Vibrant:     hex(colorful.Hsl(h, math.Max(s, 0.6), math.Max(l, 0.6))),
		Translation: hex(colorful.Hsl(h, math.Max(s, 0.4), math.Max(l, 0.8))),
		Romaji:      hex(colorful.Hsl(math.Mod(h+romajiHueStep, 360), math.Max(s, 0.6), math.Max(l, 0.8))),
	}
}

func averageMidtones(img image.Image) (colorful.Color, bool) {
	bounds := img.Bounds()
	var sumR, sumG, sumB, count int

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r32, g32, b32, _ := img.At(x, y).RGBA()
			r, g, b := int(r32>>8), int(g32>>8), int(b32>>8)

			brightness := float64(r*299+g*587+b*114) / 1000
			if brightness <= minBrightness || brightness >= maxBrightness {
				continue
			}
			sumR += r
			sumG += g
			sumB += b
			count++
		}
	}

	if count == 0 {
		return colorful.Color{}, false
	}
	return rgb(sumR/count, sumG/count, sumB/count), true
}

func dominant(img image.Image) (colorful.Color, bool) {
	items, err := prominentcolor.KmeansWithAll(1, img, prominentcolor.ArgumentDefault, prominentcolor.DefaultSize, nil)
	if err != nil || len(items) == 0 {
		return colorful.Color{}, false
	}
	c := items[0].Color
	return rgb(int(c.R), int(c.G), int(c.B)), true
}

func rgb(r, g, b int) colorful.Color {
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}

func hex(c colorful.Color) string {
	return strings.ToUpper(c.Clamped().Hex())
}
