package term

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"karolbroda.com/lyricfloat/internal/colors"
	"karolbroda.com/lyricfloat/internal/render"
	"karolbroda.com/lyricfloat/internal/textlayout"
)

// One terminal cell in canvas units. Cells are roughly twice as tall as they
// are wide.
const (
	CellWidth  = 10.0
	CellHeight = 20.0

	DefaultBackground = "#000000"

	// blur at or above this is the active-line glow pass
	glowBlur = 12
	glowLift = 0.35
)

type cell struct {
	r      rune
	fg     string
	bold   bool
	italic bool
	// wide is the trailing half of a double-width rune
	wide bool
}

// Canvas is a grid of terminal cells. Alpha is emulated by blending against
// the background color, and the glow pass is drawn bold.
type Canvas struct {
	cols       int
	rows       int
	background string
	cells      []cell
}

var _ render.Canvas = (*Canvas)(nil)

func NewCanvas(background string) *Canvas {
	if _, _, ok := colors.Parse(background); !ok {
		background = DefaultBackground
	}
	return &Canvas{background: background}
}

// Resize sets the grid size in cells and blanks it.
func (c *Canvas) Resize(cols int, rows int) {
	if cols < 0 {
		cols = 0
	}
	if rows < 0 {
		rows = 0
	}
	c.cols, c.rows = cols, rows
	c.cells = make([]cell, cols*rows)
}

func (c *Canvas) Cols() int {
	return c.cols
}

func (c *Canvas) Rows() int {
	return c.rows
}

func (c *Canvas) Size() (float64, float64) {
	return float64(c.cols) * CellWidth, float64(c.rows) * CellHeight
}

func (c *Canvas) Clear() {
	clear(c.cells)
}

// FillText writes text centered on x in the row holding baseline y. Cells
// outside the grid are dropped.
func (c *Canvas) FillText(text string, x float64, y float64, style render.Style) {
	row := int(math.Floor(y / CellHeight))
	if row < 0 || row >= c.rows || text == "" {
		return
	}

	width := runewidth.StringWidth(text)
	col := int(math.Round(x/CellWidth - float64(width)/2))

	alpha := style.Alpha
	if _, a, ok := colors.Parse(style.Color); ok {
		alpha *= a
	}
	fg := colors.Over(style.Color, c.background, alpha)
	glow := style.Shadow.Blur >= glowBlur
	if glow {
		fg = colors.AddGlow(fg, glowLift)
	}
	bold := style.Font.Weight >= 700 || glow

	for _, r := range text {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if col >= 0 && col+w <= c.cols {
			c.set(col, row, cell{r: r, fg: fg, bold: bold, italic: style.Font.Italic})
			if w == 2 {
				c.set(col+1, row, cell{wide: true})
			}
		}
		col += w
	}
}

func (c *Canvas) set(col int, row int, v cell) {
	idx := row*c.cols + col
	// overwriting half of a wide rune leaves a stray half behind
	if old := c.cells[idx]; old.wide && col > 0 {
		c.cells[idx-1] = cell{}
	}
	c.cells[idx] = v
}

// Text returns row as plain text, for tests and debugging.
func (c *Canvas) Text(row int) string {
	if row < 0 || row >= c.rows {
		return ""
	}
	var b strings.Builder
	for _, v := range c.cells[row*c.cols : (row+1)*c.cols] {
		switch {
		case v.wide:
		case v.r == 0:
			b.WriteByte(' ')
		default:
			b.WriteRune(v.r)
		}
	}
	return b.String()
}

// Lines renders every row with styling, merging runs of identically styled
// cells.
func (c *Canvas) Lines() []string {
	out := make([]string, c.rows)
	for row := 0; row < c.rows; row++ {
		var b strings.Builder
		var run strings.Builder
		var current cell
		flush := func() {
			if run.Len() == 0 {
				return
			}
			if current.r == 0 {
				b.WriteString(run.String())
			} else {
				style := lipgloss.NewStyle().
					Foreground(lipgloss.Color(current.fg)).
					Bold(current.bold).
					Italic(current.italic)
				b.WriteString(style.Render(run.String()))
			}
			run.Reset()
		}

		for _, v := range c.cells[row*c.cols : (row+1)*c.cols] {
			if v.wide {
				continue
			}
			if !sameStyle(v, current) {
				flush()
				current = v
			}
			if v.r == 0 {
				run.WriteByte(' ')
			} else {
				run.WriteRune(v.r)
			}
		}
		flush()
		out[row] = strings.TrimRight(b.String(), " ")
	}
	return out
}

func sameStyle(a cell, b cell) bool {
	if a.r == 0 || b.r == 0 {
		return a.r == 0 && b.r == 0
	}
	return a.fg == b.fg && a.bold == b.bold && a.italic == b.italic
}

// Measure is the text measurer for a cell grid. Font size is ignored: every
// row is one cell tall.
func Measure(text string, _ textlayout.Font) float64 {
	return float64(runewidth.StringWidth(text)) * CellWidth
}

var Measurer = textlayout.MeasureFunc(Measure)
