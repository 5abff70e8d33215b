package timeline

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// State is the playback position estimate for one frame.
type State struct {
	CurrentTime float64
	Duration    float64
	Paused      bool
	Muted       bool
}

// Progress is the seek-bar fill ratio, clamped to [0, 1].
func (s State) Progress() float64 {
	if s.Duration <= 0 {
		return 0
	}
	r := s.CurrentTime / s.Duration
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// Default is returned when the host exposes nothing usable. Duration is 1 so
// progress ratios never divide by zero.
var Default = State{CurrentTime: 0, Duration: 1, Paused: false}

// MediaElement is an inspectable audio or video element on the host.
type MediaElement struct {
	// Ready means enough data is loaded to report position (readyState >= 2).
	Ready       bool
	Paused      bool
	Muted       bool
	CurrentTime float64
	Duration    float64
}

// Page is read-only access to the host's media elements and DOM.
type Page interface {
	MediaElements() []MediaElement
	Text(selector string) (string, bool)
	Attr(selector string, name string) (string, bool)
}

// Selectors locate the playback text labels for hosts that render position as
// text instead of exposing a media element.
type Selectors struct {
	Position    string
	Duration    string
	PlayPause   string
	PausedLabel string
}

var SpotifySelectors = Selectors{
	Position:    `[data-testid="playback-position"]`,
	Duration:    `[data-testid="playback-duration"]`,
	PlayPause:   `[data-testid="control-button-playpause"]`,
	PausedLabel: "Play",
}

// SelectorsFor returns the text fallback for a host profile, or nil when the
// host is expected to always expose a media element.
func SelectorsFor(profile string) *Selectors {
	switch strings.ToLower(profile) {
	case "spotify", "":
		sel := SpotifySelectors
		return &sel
	}
	return nil
}

type Option func(*Tracker)

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// Tracker turns polled page signals into a smooth current-time estimate.
type Tracker struct {
	page      Page
	selectors *Selectors
	now       func() time.Time

	mu         sync.Mutex
	lastText   string
	lastValue  float64
	lastUpdate time.Time
}

func NewTracker(page Page, selectors *Selectors, opts ...Option) *Tracker {
	t := &Tracker{
		page:      page,
		selectors: selectors,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.lastUpdate = t.now()
	return t
}

// State reads the page once and returns the position estimate together with
// the mute flag of the element a direct read would pick.
func (t *Tracker) State() State {
	if t.page == nil {
		return Default
	}

	elements := t.page.MediaElements()
	state, ok := directRead(elements)
	if !ok {
		state, ok = t.interpolate()
	}
	if !ok {
		state = Default
	}

	if el, found := pickElement(elements); found {
		state.Muted = el.Muted
	}
	return state
}

func directRead(elements []MediaElement) (State, bool) {
	el, ok := pickElement(elements)
	if !ok {
		return State{}, false
	}
	if el.Duration > 0 && el.CurrentTime >= 0 {
		return State{CurrentTime: el.CurrentTime, Duration: el.Duration, Paused: el.Paused}, true
	}
	return State{}, false
}

func pickElement(elements []MediaElement) (MediaElement, bool) {
	for _, el := range elements {
		if el.Ready && !el.Paused {
			return el, true
		}
	}
	for _, el := range elements {
		if el.Ready {
			return el, true
		}
	}
	return MediaElement{}, false
}

func (t *Tracker) interpolate() (State, bool) {
	if t.selectors == nil {
		return State{}, false
	}

	positionText, ok := t.page.Text(t.selectors.Position)
	if !ok {
		return State{}, false
	}
	durationText, ok := t.page.Text(t.selectors.Duration)
	if !ok {
		return State{}, false
	}

	state := State{Duration: 1}
	if d, ok := ParseClock(durationText); ok && d > 0 {
		state.Duration = d
	}

	if t.selectors.PlayPause != "" {
		if label, ok := t.page.Attr(t.selectors.PlayPause, "aria-label"); ok {
			state.Paused = label == t.selectors.PausedLabel
		}
	}

	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if positionText != t.lastText {
		t.lastText = positionText
		t.lastValue, _ = ParseClock(positionText)
		t.lastUpdate = now
	}

	state.CurrentTime = t.lastValue
	if state.Paused {
		// hold the baseline so resuming does not jump by the paused interval
		t.lastUpdate = now
	} else {
		state.CurrentTime += now.Sub(t.lastUpdate).Seconds()
	}

	return state, true
}

// ParseClock parses "M:SS" or "H:MM:SS" into seconds.
func ParseClock(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}

	total := 0.0
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + float64(n)
	}
	return total, true
}

// FormatClock renders seconds as M:SS, or H:MM:SS past an hour.
func FormatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	s := int64(seconds)
	h, m, sec := s/3600, (s%3600)/60, s%60
	if h > 0 {
		return strconv.FormatInt(h, 10) + ":" + pad2(m) + ":" + pad2(sec)
	}
	return strconv.FormatInt(m, 10) + ":" + pad2(sec)
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
