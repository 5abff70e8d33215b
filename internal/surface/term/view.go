package term

import (
	"fmt"
	"image"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"karolbroda.com/lyricfloat/internal/colors"
	"karolbroda.com/lyricfloat/internal/palette"
)

const (
	dimColor   = "#6C757D"
	errorColor = "#FF6B6B"

	infoRows = 4
)

type headerLayout struct {
	visible     bool
	kitty       bool
	height      int
	artCols     int
	artRows     int
	infoRow     int
	progressRow int
	barWidth    int
}

// barStart is the first column of the bar, after the elapsed time.
func (l headerLayout) barStart(elapsed float64) int {
	return 2 + runewidth.StringWidth(formatTime(elapsed)) + 2
}

func (m Model) headerLayout() headerLayout {
	if m.hideHeader || m.height < 12 || m.width < 30 {
		return headerLayout{}
	}

	l := headerLayout{visible: true, artCols: 12, artRows: 6}
	if m.width < 80 {
		l.artCols, l.artRows = 8, 4
	}
	if m.width < 50 || m.height < 25 {
		l.artCols, l.artRows = 0, 0
	}
	l.kitty = m.caps.SupportsKittyGraphics && l.artCols > 0

	rows := max(l.artRows, infoRows)
	l.infoRow = 1
	if l.kitty {
		rows = l.artRows + infoRows
		l.infoRow = 1 + l.artRows
	}
	l.progressRow = 1 + rows + 1
	l.height = l.progressRow + 2
	l.barWidth = max(m.width-20, 10)
	return l
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	width, height := m.width, m.height
	if width == 0 || height == 0 {
		width, height = 80, 24
	}

	if !m.track.IsValid() {
		return m.renderWaiting(width, height)
	}

	var lines []string
	layout := m.headerLayout()
	if layout.visible {
		lines = append(lines, m.renderHeader(layout, width)...)
	}

	if len(m.frame.Lines) == 0 {
		lines = append(lines, m.renderLoading(height-len(lines), width)...)
	} else {
		lines = append(lines, m.canvas.Lines()...)
	}

	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines[:height], "\n")
}

func (m Model) renderWaiting(width int, height int) string {
	if height < 3 {
		return ""
	}
	lines := make([]string, height)
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(dimColor)).Italic(true)
	text := "awaiting music"
	lines[height/2-1] = centerText(style.Render(text), runewidth.StringWidth(text), width)
	lines[height/2] = centerText(m.spinner.View(), 1, width)
	return strings.Join(lines, "\n")
}

func (m Model) renderLoading(height int, width int) []string {
	if height <= 0 {
		return nil
	}
	lines := make([]string, height)
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(dimColor))
	text := m.spinner.View() + style.Render(" loading")
	lines[height/2] = centerText(text, 9, width)
	return lines
}

func (m Model) renderHeader(l headerLayout, width int) []string {
	p := m.frame.Palette
	if p.Vibrant == "" {
		p = palette.Default
	}

	lines := []string{""}
	info := m.renderTrackInfo(p, width)
	cover := m.driverCover()

	if l.kitty {
		seq := EncodeKitty(cover, l.artCols, l.artRows)
		lines = append(lines, "  "+seq)
		for i := 1; i < l.artRows; i++ {
			lines = append(lines, "")
		}
		for _, line := range info {
			lines = append(lines, "  "+line)
		}
	} else {
		art := palette.RenderHalfBlock(cover, l.artCols, l.artRows)
		for i := 0; i < max(l.artRows, infoRows); i++ {
			var b strings.Builder
			if l.artCols > 0 {
				b.WriteString("  ")
				if i < len(art) {
					b.WriteString(art[i])
				} else {
					b.WriteString(strings.Repeat(" ", l.artCols))
				}
				b.WriteString("  ")
			}
			if i < len(info) {
				b.WriteString(info[i])
			}
			lines = append(lines, b.String())
		}
	}

	lines = append(lines, "", m.renderProgress(p, l), "")
	return lines
}

func (m Model) driverCover() image.Image {
	if m.driver == nil {
		return nil
	}
	return m.driver.Cover()
}

func (m Model) renderTrackInfo(p palette.Palette, width int) []string {
	maxWidth := max(width-20, 20)
	fit := func(s string) string {
		return runewidth.Truncate(s, maxWidth, "…")
	}

	titleText := fit(m.track.Title)
	gradient := colors.Gradient(p.Vibrant, p.Romaji, runewidth.StringWidth(titleText))
	artist := lipgloss.NewStyle().Foreground(lipgloss.Color(colors.Blend(p.Vibrant, "#FFFFFF", 0.5)))
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color(dimColor))

	lines := []string{
		colors.RenderGradientText(titleText, gradient, true),
		artist.Render(fit(m.track.Artist)),
		dim.Render(fit(m.track.Album)),
		m.renderStatus(p),
	}
	return lines
}

// renderStatus is the sync badge, offset, translation and playback flags,
// followed by the last command notice.
func (m Model) renderStatus(p palette.Palette) string {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color(dimColor))
	badge := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Vibrant)).Bold(true)

	status := m.overlays.status
	var parts []string
	switch status {
	case "":
	case "LOADING":
		parts = append(parts, m.spinner.View()+badge.Render(status))
	case "ERROR":
		parts = append(parts, lipgloss.NewStyle().Foreground(lipgloss.Color(errorColor)).Bold(true).Render(status))
	default:
		parts = append(parts, badge.Render(status))
	}

	parts = append(parts, dim.Render(fmt.Sprintf("%+dms", m.frame.OffsetMs)))
	if m.frame.ShowTranslation {
		parts = append(parts, lipgloss.NewStyle().Foreground(lipgloss.Color(p.Translation)).Render("translation"))
	}
	if m.overlays.paused {
		parts = append(parts, dim.Render("paused"))
	}
	if m.overlays.muted {
		parts = append(parts, dim.Render("muted"))
	}
	if m.notice != "" {
		parts = append(parts, lipgloss.NewStyle().Italic(true).Render(m.notice))
	}
	return strings.Join(parts, dim.Render(" · "))
}

func (m Model) renderProgress(p palette.Palette, l headerLayout) string {
	state := m.frame.State
	if state.Duration <= 0 {
		return ""
	}
	elapsed := m.elapsed()

	bar := m.progress
	bar.Width = l.barWidth
	bar.FullColor = p.Vibrant

	timeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(dimColor))
	return fmt.Sprintf("  %s  %s  %s",
		timeStyle.Render(formatTime(elapsed)),
		bar.ViewAs(m.overlays.progress),
		timeStyle.Render(formatTime(state.Duration)))
}

// elapsed is the offset-adjusted position shown next to the bar.
func (m Model) elapsed() float64 {
	return min(max(m.result.CurrentTime, 0), max(m.frame.State.Duration, 0))
}

func formatTime(secs float64) string {
	total := int(max(secs, 0))
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func centerText(text string, visualWidth int, screenWidth int) string {
	padding := max((screenWidth-visualWidth)/2, 0)
	return strings.Repeat(" ", padding) + text
}
