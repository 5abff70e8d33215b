package term

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"karolbroda.com/lyricfloat/internal/control"
	"karolbroda.com/lyricfloat/internal/logging"
	"karolbroda.com/lyricfloat/internal/settings"
)

const (
	offsetStepMs   = settings.OffsetStepMs
	offsetJumpMs   = 500
	commandTimeout = 15 * time.Second
)

// KeyCommand maps a key press to the command it sends to the viewer.
func KeyCommand(key string) (control.Command, bool) {
	switch key {
	case " ":
		return control.Transport{Action: control.ActionPlayPause}, true
	case "n":
		return control.Transport{Action: control.ActionNext}, true
	case "p":
		return control.Transport{Action: control.ActionPrevious}, true
	case "m":
		return control.Transport{Action: control.ActionMute}, true
	case "c", "t":
		return control.ToggleTranslation{}, true
	case "up", "k", "+", "=":
		return control.AdjustOffset{DeltaMs: offsetStepMs}, true
	case "down", "j", "-":
		return control.AdjustOffset{DeltaMs: -offsetStepMs}, true
	case "right", "l":
		return control.AdjustOffset{DeltaMs: offsetJumpMs}, true
	case "left", "h":
		return control.AdjustOffset{DeltaMs: -offsetJumpMs}, true
	case "r":
		return control.ClearOverride{}, true
	}
	return nil, false
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case frameMsg:
		return m.handleFrame(time.Time(msg))

	case replyMsg:
		return m.handleReply(msg), nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		m.engine.Teardown()
		return m, tea.Quit

	case "tab", "i":
		m.hideHeader = !m.hideHeader
		m.resize()
		return m, nil
	}

	if cmd, ok := KeyCommand(msg.String()); ok {
		return m, m.send(cmd)
	}
	return m, nil
}

// handleMouse seeks when the progress bar is clicked.
func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}
	layout := m.headerLayout()
	if !layout.visible || msg.Y != layout.progressRow {
		return m, nil
	}
	start := layout.barStart(m.elapsed())
	if msg.X < start || msg.X >= start+layout.barWidth {
		return m, nil
	}
	fraction := float64(msg.X-start) / float64(max(layout.barWidth-1, 1))
	return m, m.send(control.Transport{Action: control.ActionSeek, Fraction: fraction})
}

func (m Model) handleFrame(now time.Time) (tea.Model, tea.Cmd) {
	m.tickCount++
	if m.driver != nil {
		m.frame = m.driver.Frame()
		m.track = m.driver.Track()
	}
	m.result = m.engine.Draw(m.frame)

	if m.notice != "" && now.Sub(m.noticeAt) > noticeTTL {
		m.notice = ""
	}
	if m.result.Closed {
		return m, nil
	}
	return m, m.tick()
}

func (m Model) handleReply(msg replyMsg) Model {
	m.noticeAt = time.Now()
	if msg.err != nil {
		m.logger.Warn("command failed", "kind", string(msg.kind), logging.Error(msg.err))
		if errors.Is(msg.err, control.ErrInvalidCommand) {
			m.notice = msg.err.Error()
		} else {
			m.notice = fmt.Sprintf("%s: %v", msg.kind, msg.err)
		}
		return m
	}

	switch msg.kind {
	case control.KindAdjustOffset:
		m.notice = fmt.Sprintf("offset %+dms", msg.reply.OffsetMs)
	case control.KindToggleTranslation:
		if msg.reply.ShowTranslation {
			m.notice = "translation " + msg.reply.TranslationLang
		} else {
			m.notice = "translation off"
		}
	case control.KindClearOverride:
		m.notice = "override cleared"
	default:
		m.notice = ""
	}
	return m
}

func (m Model) send(cmd control.Command) tea.Cmd {
	if m.driver == nil {
		return nil
	}
	driver := m.driver
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		reply, err := driver.Handle(ctx, cmd)
		return replyMsg{kind: cmd.Kind(), reply: reply, err: err}
	}
}

// resize fits the canvas to the space left under the header.
func (m *Model) resize() {
	rows := m.height - m.headerLayout().height
	m.canvas.Resize(m.width, max(rows, 0))
}
