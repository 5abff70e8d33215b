package term

import (
	"strings"
	"testing"

	"karolbroda.com/lyricfloat/internal/colors"
	"karolbroda.com/lyricfloat/internal/render"
	"karolbroda.com/lyricfloat/internal/textlayout"
)

func plain(color string) render.Style {
	return render.Style{Font: textlayout.Font{Weight: 600}, Color: color, Alpha: 1}
}

func TestFillTextCentersOnX(t *testing.T) {
	c := NewCanvas("")
	c.Resize(20, 3)

	c.FillText("abcd", 10*CellWidth, 1.5*CellHeight, plain("#FFFFFF"))

	if got, want := c.Text(1), "        abcd        "; got != want {
		t.Errorf("row 1 = %q, want %q", got, want)
	}
	if strings.TrimSpace(c.Text(0)) != "" || strings.TrimSpace(c.Text(2)) != "" {
		t.Error("text leaked into other rows")
	}
}

func TestFillTextWideRunes(t *testing.T) {
	c := NewCanvas("")
	c.Resize(20, 1)

	c.FillText("夜空", 10*CellWidth, 0, plain("#FFFFFF"))

	if got, want := c.Text(0), "        夜空        "; got != want {
		t.Errorf("row = %q, want %q", got, want)
	}
}

func TestFillTextClips(t *testing.T) {
	c := NewCanvas("")
	c.Resize(6, 2)

	c.FillText("abcdefghij", 0, 0, plain("#FFFFFF"))
	if got := c.Text(0); got != "fghij " {
		t.Errorf("clipped row = %q", got)
	}

	c.FillText("gone", 30, -5, plain("#FFFFFF"))
	c.FillText("gone", 30, 2*CellHeight, plain("#FFFFFF"))
	if strings.Contains(c.Text(1), "g") {
		t.Error("rows outside the grid should be dropped")
	}
}

func TestFillTextBlendsAlphaAndGlow(t *testing.T) {
	c := NewCanvas("#000000")
	c.Resize(10, 1)

	style := plain("#FFFFFF")
	style.Alpha = 0.5
	c.FillText("a", 5*CellWidth, 0, style)

	got := c.cells[5]
	if got.fg != colors.Over("#FFFFFF", "#000000", 0.5) || got.fg == "#FFFFFF" {
		t.Errorf("fg = %s", got.fg)
	}
	if got.bold {
		t.Error("inactive weight should not be bold")
	}

	style.Alpha = 1
	style.Shadow = render.Shadow{Color: "#1DB954", Blur: 15}
	c.FillText("a", 5*CellWidth, 0, style)
	if !c.cells[5].bold {
		t.Error("glow pass should draw bold")
	}
	if c.cells[5].fg != colors.AddGlow("#FFFFFF", glowLift) {
		t.Errorf("glow fg = %s", c.cells[5].fg)
	}

	style.Color = "#1DB954"
	c.FillText("a", 5*CellWidth, 0, style)
	r, g, b := colors.HexToRGB(c.cells[5].fg)
	if r <= 0x1D || g <= 0xB9 || b <= 0x54 {
		t.Errorf("glow should lift toward white, got %s", c.cells[5].fg)
	}
}

func TestClearAndLines(t *testing.T) {
	c := NewCanvas("")
	c.Resize(12, 2)
	c.FillText("hi", 6*CellWidth, 0, plain("#FFFFFF"))

	lines := c.Lines()
	if len(lines) != 2 || !strings.Contains(lines[0], "hi") {
		t.Fatalf("lines = %q", lines)
	}

	c.Clear()
	if strings.TrimSpace(c.Text(0)) != "" {
		t.Error("clear left text behind")
	}
	if w, h := c.Size(); w != 12*CellWidth || h != 2*CellHeight {
		t.Errorf("size = %v x %v", w, h)
	}
}

func TestMeasureUsesCellWidth(t *testing.T) {
	if got := Measure("ab夜", textlayout.Font{Size: 99}); got != 4*CellWidth {
		t.Errorf("measure = %v", got)
	}
}
