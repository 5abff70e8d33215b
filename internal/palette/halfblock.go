package palette

import (
	"fmt"
	"image"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/nfnt/resize"
)

// RenderHalfBlock draws img as rows of "▀" cells, two pixels per cell, for the
// terminal header thumbnail.
func RenderHalfBlock(img image.Image, width int, height int) []string {
	if img == nil || width < 4 || height < 2 {
		return nil
	}

	resized := resize.Resize(uint(width), uint(height*2), img, resize.Lanczos3)
	bounds := resized.Bounds()
	rows := make([]string, height)

	for y := 0; y < height; y++ {
		var row strings.Builder
		top, bottom := y*2, y*2+1

		for x := 0; x < bounds.Dx(); x++ {
			tr, tg, tb, ta := resized.At(bounds.Min.X+x, bounds.Min.Y+top).RGBA()
			br, bg, bb, ba := tr, tg, tb, ta
			if bottom < bounds.Dy() {
				br, bg, bb, ba = resized.At(bounds.Min.X+x, bounds.Min.Y+bottom).RGBA()
			}

			if ta>>8 < 128 && ba>>8 < 128 {
				row.WriteString(" ")
				continue
			}

			style := lipgloss.NewStyle().
				Foreground(lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", tr>>8, tg>>8, tb>>8))).
				Background(lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", br>>8, bg>>8, bb>>8)))
			row.WriteString(style.Render("▀"))
		}
		rows[y] = row.String()
	}

	return rows
}
