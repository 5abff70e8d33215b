package palette

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

func solid(c color.RGBA, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestExtractNilIsDefault(t *testing.T) {
	if got := Extract(nil); got != Default {
		t.Errorf("Extract(nil) = %+v", got)
	}
}

func TestExtractLiftsMidtone(t *testing.T) {
	// luma 72.9, inside the sampling window
	img := solid(color.RGBA{R: 150, G: 40, B: 40, A: 255}, 120, 120)

	got := Extract(img)

	vibrant, err := colorful.Hex(got.Vibrant)
	if err != nil {
		t.Fatalf("vibrant %q: %v", got.Vibrant, err)
	}
	h, s, l := vibrant.Hsl()
	if h > 5 && h < 355 {
		t.Errorf("vibrant hue drifted from red: %v", h)
	}
	if s < 0.59 || l < 0.59 {
		t.Errorf("vibrant not lifted: s=%v l=%v", s, l)
	}

	romaji, _ := colorful.Hex(got.Romaji)
	rh, _, rl := romaji.Hsl()
	if rh < 25 || rh > 35 {
		t.Errorf("romaji hue = %v, want about 30", rh)
	}
	if rl < 0.79 {
		t.Errorf("romaji lightness = %v", rl)
	}

	trans, _ := colorful.Hex(got.Translation)
	if _, _, tl := trans.Hsl(); tl < 0.79 {
		t.Errorf("translation lightness = %v", tl)
	}
}

func TestAverageMidtonesSkipsExtremes(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{A: 255})
	img.Set(1, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	if _, ok := averageMidtones(img); ok {
		t.Error("black and white pixels should not count")
	}

	img.Set(0, 0, color.RGBA{R: 100, G: 100, B: 100, A: 255})
	c, ok := averageMidtones(img)
	if !ok {
		t.Fatal("expected a midtone")
	}
	if got := hex(c); got != "#646464" {
		t.Errorf("average = %s, want #646464", got)
	}
}

func TestFetchFileAndHTTP(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(color.RGBA{R: 10, G: 200, B: 90, A: 255}, 4, 4)); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "cover.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	img, err := Fetch(context.Background(), http.DefaultClient, "file://"+path)
	if err != nil {
		t.Fatalf("file fetch: %v", err)
	}
	if img.Bounds().Dx() != 4 {
		t.Errorf("bounds = %v", img.Bounds())
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	client := &http.Client{Timeout: time.Second}
	if _, err := Fetch(context.Background(), client, srv.URL+"/cover.png"); err != nil {
		t.Fatalf("http fetch: %v", err)
	}

	if _, err := Fetch(context.Background(), client, ""); err == nil {
		t.Error("empty url should fail")
	}
}

func TestRenderHalfBlock(t *testing.T) {
	rows := RenderHalfBlock(solid(color.RGBA{R: 255, A: 255}, 16, 16), 8, 4)
	if len(rows) != 4 {
		t.Fatalf("rows = %d", len(rows))
	}
	if RenderHalfBlock(nil, 8, 4) != nil {
		t.Error("nil image should render nothing")
	}
}
