// Package colors is hex color math for surfaces that cannot draw translucent
// text themselves.
package colors

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
)

const fallback = "#FFFFFF"

// Parse accepts "#RRGGBB", "#RGB" and "rgba(r, g, b, a)". The alpha of an
// rgba color is returned separately; hex colors are opaque.
func Parse(s string) (colorful.Color, float64, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")") {
		return parseRGBA(s)
	}
	if len(s) == 4 && s[0] == '#' {
		s = "#" + strings.Repeat(s[1:2], 2) + strings.Repeat(s[2:3], 2) + strings.Repeat(s[3:4], 2)
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{}, 0, false
	}
	return c, 1, true
}

func parseRGBA(s string) (colorful.Color, float64, bool) {
	parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(s, "rgba("), ")"), ",")
	if len(parts) != 4 {
		return colorful.Color{}, 0, false
	}
	var rgb [3]float64
	for i := 0; i < 3; i++ {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || v < 0 || v > 255 {
			return colorful.Color{}, 0, false
		}
		rgb[i] = float64(v) / 255
	}
	a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
	if err != nil || a < 0 || a > 1 {
		return colorful.Color{}, 0, false
	}
	return colorful.Color{R: rgb[0], G: rgb[1], B: rgb[2]}, a, true
}

func HexToRGB(hex string) (int, int, int) {
	c, _, ok := Parse(hex)
	if !ok {
		return 255, 255, 255
	}
	r, g, b := c.RGB255()
	return int(r), int(g), int(b)
}

func RGBToHex(r int, g int, b int) string {
	return fmt.Sprintf("#%02X%02X%02X", clampInt(r, 0, 255), clampInt(g, 0, 255), clampInt(b, 0, 255))
}

// Blend mixes two colors in Lab space; t=0 is a, t=1 is b.
func Blend(a string, b string, t float64) string {
	ca, _, okA := Parse(a)
	cb, _, okB := Parse(b)
	switch {
	case !okA && !okB:
		return fallback
	case !okA:
		return hex(cb)
	case !okB:
		return hex(ca)
	}
	return hex(ca.BlendLab(cb, clamp(t, 0, 1)).Clamped())
}

// Over composites fg at alpha onto an opaque bg.
func Over(fg string, bg string, alpha float64) string {
	return Blend(bg, fg, alpha)
}

// AddGlow lifts a color toward white.
func AddGlow(hexColor string, intensity float64) string {
	return Blend(hexColor, "#FFFFFF", clamp(intensity, 0, 1)*0.6)
}

// Gradient returns steps colors from start to end, interpolated in HCL so the
// hue takes the short way round.
func Gradient(start string, end string, steps int) []string {
	if steps < 2 {
		steps = 2
	}
	cs, _, okS := Parse(start)
	ce, _, okE := Parse(end)
	if !okS || !okE {
		out := make([]string, steps)
		for i := range out {
			out[i] = fallback
		}
		return out
	}

	out := make([]string, steps)
	for i := range out {
		t := float64(i) / float64(steps-1)
		out[i] = hex(cs.BlendHcl(ce, t).Clamped())
	}
	return out
}

// RenderGradientText colors each rune of text with the matching gradient stop.
func RenderGradientText(text string, gradient []string, bold bool) string {
	runes := []rune(text)
	if len(runes) == 0 || len(gradient) == 0 {
		return text
	}

	var b strings.Builder
	for i, r := range runes {
		idx := i * len(gradient) / len(runes)
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(gradient[idx])).Bold(bold)
		b.WriteString(style.Render(string(r)))
	}
	return b.String()
}

func hex(c colorful.Color) string {
	return strings.ToUpper(c.Hex())
}

func clamp(val float64, min float64, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

func clampInt(val int, min int, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
