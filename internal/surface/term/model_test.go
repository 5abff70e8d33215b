package term

import (
	"context"
	"image"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"karolbroda.com/lyricfloat/internal/control"
	"karolbroda.com/lyricfloat/internal/lyrics"
	"karolbroda.com/lyricfloat/internal/palette"
	"karolbroda.com/lyricfloat/internal/render"
	"karolbroda.com/lyricfloat/internal/timeline"
	"karolbroda.com/lyricfloat/internal/track"
)

type fakeDriver struct {
	mu    sync.Mutex
	frame render.Frame
	track track.Identity
	cmds  []control.Command
	err   error
}

func (d *fakeDriver) Frame() render.Frame { return d.frame }

func (d *fakeDriver) Track() track.Identity { return d.track }

func (d *fakeDriver) Cover() image.Image { return nil }

func (d *fakeDriver) Handle(ctx context.Context, cmd control.Command) (control.Reply, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cmds = append(d.cmds, cmd)
	return control.Reply{OffsetMs: 500, TrackKey: d.track.Key()}, d.err
}

func newDriver() *fakeDriver {
	return &fakeDriver{
		track: track.Identity{Title: "Song", Artist: "Band", Album: "Album", DurationSecs: 100},
		frame: render.Frame{
			Lines: []lyrics.Line{
				{Time: 0, Text: "first line"},
				{Time: 10, Text: "second line"},
			},
			Palette: palette.Default,
			State:   timeline.State{CurrentTime: 2, Duration: 100},
			Status:  "SYNCED",
		},
	}
}

func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestKeyCommand(t *testing.T) {
	tests := []struct {
		key  string
		want control.Command
	}{
		{" ", control.Transport{Action: control.ActionPlayPause}},
		{"n", control.Transport{Action: control.ActionNext}},
		{"p", control.Transport{Action: control.ActionPrevious}},
		{"m", control.Transport{Action: control.ActionMute}},
		{"c", control.ToggleTranslation{}},
		{"+", control.AdjustOffset{DeltaMs: 100}},
		{"-", control.AdjustOffset{DeltaMs: -100}},
		{"right", control.AdjustOffset{DeltaMs: 500}},
		{"left", control.AdjustOffset{DeltaMs: -500}},
		{"r", control.ClearOverride{}},
	}
	for _, tt := range tests {
		got, ok := KeyCommand(tt.key)
		if !ok || got != tt.want {
			t.Errorf("KeyCommand(%q) = %#v, %v", tt.key, got, ok)
		}
	}

	if _, ok := KeyCommand("x"); ok {
		t.Error("unbound key should not map to a command")
	}
}

func TestFramePaintsLyrics(t *testing.T) {
	m := NewModel(Config{Driver: newDriver()})
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 80, Height: 40})
	m, cmd := step(t, m, frameMsg{})

	if cmd == nil {
		t.Error("frame should schedule the next tick")
	}
	if !m.Result().Drawn || m.Result().ActiveIndex != 0 {
		t.Fatalf("result = %+v", m.Result())
	}

	var found bool
	for row := 0; row < m.canvas.Rows(); row++ {
		if strings.Contains(m.canvas.Text(row), "first line") {
			found = true
		}
	}
	if !found {
		t.Error("active line not painted")
	}

	view := m.View()
	for _, want := range []string{"Song", "Band", "SYNCED", "first line"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestHeaderToggleResizesCanvas(t *testing.T) {
	m := NewModel(Config{Driver: newDriver()})
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 80, Height: 40})
	withHeader := m.canvas.Rows()

	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if !m.HideHeader() || m.canvas.Rows() != 40 || withHeader >= 40 {
		t.Errorf("rows = %d (with header %d)", m.canvas.Rows(), withHeader)
	}
}

func TestKeysSendCommands(t *testing.T) {
	d := newDriver()
	m := NewModel(Config{Driver: d})

	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'+'}})
	if cmd == nil {
		t.Fatal("expected a command")
	}
	msg := cmd()
	if len(d.cmds) != 1 || d.cmds[0] != (control.AdjustOffset{DeltaMs: 100}) {
		t.Fatalf("sent = %#v", d.cmds)
	}

	m, _ = step(t, m, msg)
	if m.Notice() != "offset +500ms" {
		t.Errorf("notice = %q", m.Notice())
	}

	m, cmd = step(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if !m.IsQuitting() || cmd == nil {
		t.Fatal("ctrl+c should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.Quit")
	}
	if m.View() != "" {
		t.Error("view should be empty after quitting")
	}
}

func TestClickOnProgressSeeks(t *testing.T) {
	d := newDriver()
	m := NewModel(Config{Driver: d})
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m, _ = step(t, m, frameMsg{})

	l := m.headerLayout()
	x := l.barStart(m.elapsed()) + (l.barWidth-1)/2
	_, cmd := step(t, m, tea.MouseMsg{X: x, Y: l.progressRow, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	if cmd == nil {
		t.Fatal("click on the bar should seek")
	}
	cmd()

	seek, ok := d.cmds[0].(control.Transport)
	if !ok || seek.Action != control.ActionSeek || seek.Fraction < 0.45 || seek.Fraction > 0.55 {
		t.Errorf("sent = %#v", d.cmds)
	}

	if _, cmd := step(t, m, tea.MouseMsg{X: x, Y: l.progressRow + 3, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft}); cmd != nil {
		t.Error("click off the bar should do nothing")
	}
}

func TestWaitingScreenWithoutTrack(t *testing.T) {
	d := newDriver()
	d.track = track.Identity{}
	m := NewModel(Config{Driver: d})
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 60, Height: 20})

	if !strings.Contains(m.View(), "awaiting music") {
		t.Error("expected the waiting screen")
	}
}

func TestCommandErrorsBecomeNotice(t *testing.T) {
	m := NewModel(Config{})
	m = m.handleReply(replyMsg{kind: control.KindClearOverride, err: context.DeadlineExceeded})
	if !strings.Contains(m.Notice(), "clear_override") {
		t.Errorf("notice = %q", m.Notice())
	}
}
