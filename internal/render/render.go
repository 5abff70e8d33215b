// Package render lays out and paints the scrolling lyric view. It knows
// nothing about terminals or images: a surface supplies a Canvas, a text
// measurer and optional overlay widgets, and calls Draw once per frame.
package render

import (
	"math"
	"sync"

	"karolbroda.com/lyricfloat/internal/lyrics"
	"karolbroda.com/lyricfloat/internal/palette"
	"karolbroda.com/lyricfloat/internal/textlayout"
	"karolbroda.com/lyricfloat/internal/timeline"
)

const (
	FontFamily = "sans"

	scrollFactor = 0.1
	minAlpha     = 0.3
	alphaFalloff = 0.3

	maxWidthRatio = 0.94
	mainActive    = 7.2
	mainInactive  = 4.2
	subActive     = 6.2
	subInactive   = 3.6
	lineSpacing   = 1.2
	blockSpacing  = 3.0
	romajiGap     = 9.2
	transGap      = 8.2

	weightActive   = 700
	weightInactive = 600

	inactiveMain   = "#FFFFFF"
	inactiveRomaji = "#DDDDDD"
	inactiveTrans  = "#CCCCCC"
	shadowColor    = "rgba(0, 0, 0, 0.8)"
	shadowBlur     = 8
	glowBlur       = 15
)

type Shadow struct {
	Color string
	Blur  float64
}

// Style is everything a canvas needs to draw one row of text. Text is centered
// horizontally on x and y is the baseline.
type Style struct {
	Font   textlayout.Font
	Color  string
	Alpha  float64
	Shadow Shadow
}

type Canvas interface {
	// Size is the drawable area in canvas units. Zero means not laid out yet.
	Size() (width float64, height float64)
	Clear()
	FillText(text string, x float64, y float64, style Style)
}

// Overlays are the controls drawn around the lyrics. Setters are only called
// when the value changes.
type Overlays interface {
	SetProgress(ratio float64)
	SetPaused(paused bool)
	SetMuted(muted bool)
	SetStatus(status string)
}

// Frame is the input for one paint.
type Frame struct {
	Lines           []lyrics.Line
	Generation      uint64
	Palette         palette.Palette
	State           timeline.State
	Muted           bool
	OffsetMs        int
	ShowTranslation bool
	Status          string
}

type Result struct {
	// Drawn is false when the frame was skipped; the caller should try again
	// next frame unless Closed is set.
	Drawn       bool
	Closed      bool
	ActiveIndex int
	CurrentTime float64
}

type layoutKey struct {
	width           float64
	height          float64
	active          int
	count           int
	generation      uint64
	showTranslation bool
	romaji          int
	translations    int
}

type overlayState struct {
	progress float64
	paused   bool
	muted    bool
	status   string
}

type Engine struct {
	layout   *textlayout.Engine
	overlays Overlays

	mu       sync.Mutex
	canvas   Canvas
	closed   bool
	key      layoutKey
	valid    bool
	offsets  []float64
	target   float64
	scroll   float64
	rebuilds int

	published    overlayState
	hasPublished bool
}

func New(canvas Canvas, layout *textlayout.Engine, overlays Overlays) *Engine {
	return &Engine{
		canvas:   canvas,
		layout:   layout,
		overlays: overlays,
	}
}

// Teardown detaches the canvas. Every later Draw is a no-op.
func (e *Engine) Teardown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.canvas = nil
	e.offsets = nil
	e.valid = false
}

func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Rebuilds counts layout cache rebuilds.
func (e *Engine) Rebuilds() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rebuilds
}

func (e *Engine) Offsets() []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]float64, len(e.offsets))
	copy(out, e.offsets)
	return out
}

// Settle moves the scroll straight to its target. Still renders call it
// between two draws.
func (e *Engine) Settle() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scroll = e.target
}

func (e *Engine) ScrollPosition() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scroll
}

// CurrentTime applies the sync offset to a playback estimate. Paused playback
// is shown as-is.
func CurrentTime(state timeline.State, offsetMs int) float64 {
	if state.Paused {
		return state.CurrentTime
	}
	return state.CurrentTime + float64(offsetMs)/1000
}

func (e *Engine) Draw(f Frame) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return Result{Closed: true}
	}
	if e.canvas == nil {
		return Result{}
	}
	w, h := e.canvas.Size()
	if w <= 0 || h <= 0 {
		return Result{}
	}

	now := CurrentTime(f.State, f.OffsetMs)
	progressState := f.State
	progressState.CurrentTime = now
	e.publish(overlayState{
		progress: progressState.Progress(),
		paused:   f.State.Paused,
		muted:    f.Muted,
		status:   f.Status,
	})

	active := lyrics.FindActiveIndex(f.Lines, now)

	key := layoutKey{
		width:           w,
		height:          h,
		active:          active,
		count:           len(f.Lines),
		generation:      f.Generation,
		showTranslation: f.ShowTranslation,
	}
	for _, line := range f.Lines {
		if line.Romaji != "" {
			key.romaji++
		}
		if line.Translation != "" {
			key.translations++
		}
	}
	if !e.valid || key != e.key {
		e.offsets = e.computeOffsets(f.Lines, active, w, h, f.ShowTranslation)
		e.key = key
		e.valid = true
		e.rebuilds++
		e.target = 0
		if active < len(e.offsets) {
			e.target = e.offsets[active]
		}
	}

	e.scroll += (e.target - e.scroll) * scrollFactor

	e.canvas.Clear()
	e.paint(f, active, w, h)

	return Result{Drawn: true, ActiveIndex: active, CurrentTime: now}
}

func (e *Engine) publish(next overlayState) {
	if e.overlays == nil {
		return
	}
	first := !e.hasPublished
	if first || next.progress != e.published.progress {
		e.overlays.SetProgress(next.progress)
	}
	if first || next.paused != e.published.paused {
		e.overlays.SetPaused(next.paused)
	}
	if first || next.muted != e.published.muted {
		e.overlays.SetMuted(next.muted)
	}
	if first || next.status != e.published.status {
		e.overlays.SetStatus(next.status)
	}
	e.published = next
	e.hasPublished = true
}

type metrics struct {
	vmin     float64
	maxWidth float64
}

func newMetrics(w, h float64) metrics {
	return metrics{vmin: math.Min(w, h) / 100, maxWidth: w * maxWidthRatio}
}

func (m metrics) mainFont(active bool) textlayout.Font {
	if active {
		return textlayout.Font{Family: FontFamily, Size: m.vmin * mainActive, Weight: weightActive}
	}
	return textlayout.Font{Family: FontFamily, Size: m.vmin * mainInactive, Weight: weightInactive}
}

func (m metrics) subFont(active bool, italic bool) textlayout.Font {
	size := m.vmin * subInactive
	if active {
		size = m.vmin * subActive
	}
	return textlayout.Font{Family: FontFamily, Size: size, Weight: weightInactive, Italic: italic}
}

func translationText(line lyrics.Line) string {
	return "(" + line.Translation + ")"
}

// computeOffsets returns the baseline y of each line's main text relative to
// the top of the lyric column. The top of a block is anchored to a single main
// row so wrapping only ever pushes later lines down.
func (e *Engine) computeOffsets(lines []lyrics.Line, active int, w, h float64, showTranslation bool) []float64 {
	m := newMetrics(w, h)
	offsets := make([]float64, 0, len(lines))
	y := 0.0

	for i, line := range lines {
		isActive := i == active
		main := m.mainFont(isActive)
		mainLH := main.Size * lineSpacing

		mainRows := e.layout.LineCount(line.Text, m.maxWidth, main)
		wrapShift := 0.0
		if mainRows > 1 {
			wrapShift = float64(mainRows-1) * mainLH
		}
		half := main.Size * 0.6

		top := half
		if line.Romaji != "" {
			romaji := m.subFont(isActive, true)
			rows := e.layout.LineCount(line.Romaji, m.maxWidth, romaji)
			top = m.vmin*romajiGap + float64(rows)*romaji.Size*lineSpacing
		}

		bottom := half + wrapShift
		if showTranslation && line.Translation != "" {
			trans := m.subFont(isActive, false)
			rows := e.layout.LineCount(translationText(line), m.maxWidth, trans)
			bottom = wrapShift + m.vmin*transGap + float64(rows)*trans.Size*lineSpacing
		}

		offsets = append(offsets, y+top)
		y += top + bottom + m.vmin*blockSpacing
	}
	return offsets
}

func (e *Engine) paint(f Frame, active int, w, h float64) {
	m := newMetrics(w, h)
	cx := w / 2
	originY := h/2 - e.scroll
	base := Shadow{Color: shadowColor, Blur: shadowBlur}

	for i, line := range f.Lines {
		if i >= len(e.offsets) {
			break
		}
		y := originY + e.offsets[i]
		// generous margin: a block never extends a full viewport past its anchor
		if y < -h || y > 2*h {
			continue
		}

		isActive := i == active
		dist := math.Abs(float64(i - active))
		alpha := math.Max(minAlpha, 1-dist*alphaFalloff)

		if line.Romaji != "" {
			font := m.subFont(isActive, true)
			color := inactiveRomaji
			if isActive {
				color = f.Palette.Romaji
			}
			rows := e.layout.Wrap(line.Romaji, m.maxWidth, font)
			lh := font.Size * lineSpacing
			startY := y - m.vmin*romajiGap - float64(len(rows)-1)*lh
			e.fillRows(rows, cx, startY, lh, Style{Font: font, Color: color, Alpha: alpha, Shadow: base})
		}

		main := m.mainFont(isActive)
		mainLH := main.Size * lineSpacing
		rows := e.layout.Wrap(line.Text, m.maxWidth, main)
		if isActive {
			e.fillRows(rows, cx, y, mainLH, Style{Font: main, Color: f.Palette.Vibrant, Alpha: alpha, Shadow: base})
			e.fillRows(rows, cx, y, mainLH, Style{Font: main, Color: f.Palette.Vibrant, Alpha: alpha, Shadow: Shadow{Color: f.Palette.Vibrant, Blur: glowBlur}})
		} else {
			e.fillRows(rows, cx, y, mainLH, Style{Font: main, Color: inactiveMain, Alpha: alpha, Shadow: base})
		}

		if f.ShowTranslation && line.Translation != "" {
			wrapShift := 0.0
			if len(rows) > 1 {
				wrapShift = float64(len(rows)-1) * mainLH
			}
			font := m.subFont(isActive, false)
			color := inactiveTrans
			if isActive {
				color = f.Palette.Translation
			}
			trows := e.layout.Wrap(translationText(line), m.maxWidth, font)
			e.fillRows(trows, cx, y+wrapShift+m.vmin*transGap, font.Size*lineSpacing, Style{Font: font, Color: color, Alpha: alpha, Shadow: base})
		}
	}
}

func (e *Engine) fillRows(rows []string, x, y, lineHeight float64, style Style) {
	for _, row := range rows {
		e.canvas.FillText(row, x, y, style)
		y += lineHeight
	}
}
