package term

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/nfnt/resize"
)

const kittyEnv = "LYRICFLOAT_KITTY_GRAPHICS"

type Capabilities struct {
	Interactive           bool
	SupportsKittyGraphics bool
	TermProgram           string
}

// DetectCapabilities inspects the environment. Kitty graphics are opt-in.
func DetectCapabilities(getenv func(string) string) Capabilities {
	caps := Capabilities{
		Interactive: isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()),
		TermProgram: getenv("TERM_PROGRAM"),
	}

	switch strings.ToLower(getenv(kittyEnv)) {
	case "1", "true", "yes", "on":
		caps.SupportsKittyGraphics = true
		if caps.TermProgram == "" {
			caps.TermProgram = "kitty"
		}
	}
	return caps
}

// Reset restores the cursor, attributes, main screen and mouse reporting in
// case the program exited without cleaning up.
func Reset(w io.Writer) {
	io.WriteString(w, "\033[?25h\033[0m\033[?1049l\033[?1000l\033[?1002l\033[?1003l\033[?1006l")
	if f, ok := w.(*os.File); ok {
		f.Sync()
	}
}

// EncodeKitty returns img as a kitty graphics escape sequence sized to
// cols x rows cells, or "" when it cannot be encoded.
func EncodeKitty(img image.Image, cols int, rows int) string {
	if img == nil || cols <= 0 || rows <= 0 {
		return ""
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return ""
	}

	newWidth := uint(cols * int(CellWidth))
	newHeight := uint(rows * int(CellHeight))

	aspect := float64(bounds.Dx()) / float64(bounds.Dy())
	if aspect > float64(newWidth)/float64(newHeight) {
		newHeight = uint(float64(newWidth) / aspect)
	} else {
		newWidth = uint(float64(newHeight) * aspect)
	}
	newWidth = max(newWidth, 10)
	newHeight = max(newHeight, 10)

	var buf bytes.Buffer
	if err := png.Encode(&buf, resize.Resize(newWidth, newHeight, img, resize.Lanczos3)); err != nil {
		return ""
	}
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())

	var out strings.Builder
	const chunkSize = 4096
	for i := 0; i < len(encoded); i += chunkSize {
		end := min(i+chunkSize, len(encoded))
		more := 1
		if end >= len(encoded) {
			more = 0
		}
		if i == 0 {
			fmt.Fprintf(&out, "\x1b_Ga=T,f=100,c=%d,r=%d,m=%d;%s\x1b\\", cols, rows, more, encoded[i:end])
		} else {
			fmt.Fprintf(&out, "\x1b_Gm=%d;%s\x1b\\", more, encoded[i:end])
		}
	}
	return out.String()
}
