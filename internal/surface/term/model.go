// Package term is the terminal surface: a bubbletea program that paints the
// lyric view into a cell grid under a header with the cover, track info and a
// progress bar.
package term

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"karolbroda.com/lyricfloat/internal/control"
	"karolbroda.com/lyricfloat/internal/logging"
	"karolbroda.com/lyricfloat/internal/palette"
	"karolbroda.com/lyricfloat/internal/render"
	"karolbroda.com/lyricfloat/internal/textlayout"
	"karolbroda.com/lyricfloat/internal/track"
)

const (
	DefaultFrameInterval = 33 * time.Millisecond

	noticeTTL = 3 * time.Second
)

// Driver is what the surface needs from the running viewer.
type Driver interface {
	Frame() render.Frame
	Track() track.Identity
	Cover() image.Image
	Handle(ctx context.Context, cmd control.Command) (control.Reply, error)
}

type frameMsg time.Time

type replyMsg struct {
	kind  control.Kind
	reply control.Reply
	err   error
}

type Config struct {
	Driver        Driver
	FrameInterval time.Duration
	HideHeader    bool
	Background    string
	Capabilities  Capabilities
	Logger        *slog.Logger
}

// overlays receives the widget state published by the render engine.
type overlays struct {
	progress float64
	paused   bool
	muted    bool
	status   string
}

func (o *overlays) SetProgress(ratio float64) { o.progress = ratio }

func (o *overlays) SetPaused(paused bool) { o.paused = paused }

func (o *overlays) SetMuted(muted bool) { o.muted = muted }

func (o *overlays) SetStatus(status string) { o.status = status }

type Model struct {
	driver     Driver
	interval   time.Duration
	hideHeader bool
	caps       Capabilities
	logger     *slog.Logger

	canvas   *Canvas
	engine   *render.Engine
	overlays *overlays
	spinner  spinner.Model
	progress progress.Model

	width     int
	height    int
	frame     render.Frame
	result    render.Result
	track     track.Identity
	notice    string
	noticeAt  time.Time
	tickCount int
	quitting  bool
}

func NewModel(cfg Config) Model {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}

	canvas := NewCanvas(cfg.Background)
	ov := &overlays{}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Default.Vibrant))

	bar := progress.New(progress.WithSolidFill(palette.Default.Vibrant), progress.WithoutPercentage())
	bar.Full = '━'
	bar.Empty = '─'
	bar.EmptyColor = dimColor

	return Model{
		driver:     cfg.Driver,
		interval:   cfg.FrameInterval,
		hideHeader: cfg.HideHeader,
		caps:       cfg.Capabilities,
		logger:     logging.NewComponentLogger(cfg.Logger, "term"),
		canvas:     canvas,
		engine:     render.New(canvas, textlayout.New(Measurer), ov),
		overlays:   ov,
		spinner:    sp,
		progress:   bar,
		frame:      render.Frame{Palette: palette.Default},
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.spinner.Tick)
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

// Close detaches the canvas from the render engine.
func (m Model) Close() {
	m.engine.Teardown()
}

func (m Model) Frame() render.Frame {
	return m.frame
}

func (m Model) Result() render.Result {
	return m.result
}

func (m Model) Notice() string {
	return m.notice
}

func (m Model) HideHeader() bool {
	return m.hideHeader
}

func (m Model) IsQuitting() bool {
	return m.quitting
}
