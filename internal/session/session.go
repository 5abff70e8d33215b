// Package session holds the state shared between the resolver pipeline, the
// enrichment workers and the render loop for the track that is playing now.
package session

import (
	"sync"

	"karolbroda.com/lyricfloat/internal/enrich"
	"karolbroda.com/lyricfloat/internal/lyrics"
	"karolbroda.com/lyricfloat/internal/palette"
	"karolbroda.com/lyricfloat/internal/track"
)

type Status int

const (
	StatusIdle Status = iota
	StatusResolving
	StatusSynced
	StatusUnsynced
	StatusNoSync
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusResolving:
		return "LOADING"
	case StatusSynced:
		return "SYNCED"
	case StatusUnsynced:
		return "UNSYNCED"
	case StatusNoSync:
		return "NO SYNC"
	case StatusError:
		return "ERROR"
	default:
		return ""
	}
}

// StatusFor derives the sync indicator for a resolved line array.
func StatusFor(lines []lyrics.Line, synced bool) Status {
	if text, ok := lyrics.SentinelText(lines); ok {
		if text == lyrics.TextNetworkError {
			return StatusError
		}
		return StatusNoSync
	}
	if synced {
		return StatusSynced
	}
	return StatusUnsynced
}

// Snapshot is a copy of the session taken once per frame.
type Snapshot struct {
	Track           track.Identity
	Key             string
	Generation      uint64
	Lines           []lyrics.Line
	Palette         palette.Palette
	OffsetMs        int
	Status          Status
	Origin          string
	ShowTranslation bool
	TranslationLang string
	ArtworkURL      string
}

type Session struct {
	mu sync.RWMutex

	track           track.Identity
	key             string
	generation      uint64
	lines           []lyrics.Line
	palette         palette.Palette
	offsetMs        int
	status          Status
	origin          string
	showTranslation bool
	translationLang string
	artworkURL      string
}

func New() *Session {
	return &Session{palette: palette.Default}
}

// BeginResolve makes t the live track and returns the generation any result
// for it must carry. The previous lines stay visible until Install replaces
// them.
func (s *Session) BeginResolve(t track.Identity) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.track = t
	s.key = t.Key()
	s.status = StatusResolving
	s.origin = ""
	return s.generation
}

// Install stores the resolved lines for generation gen. It reports false and
// changes nothing when a newer resolve has started since.
func (s *Session) Install(gen uint64, lines []lyrics.Line, status Status, origin string, offsetMs int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return false
	}
	s.lines = lyrics.Clone(lines)
	s.status = status
	s.origin = origin
	s.offsetMs = offsetMs
	return true
}

// Apply writes an enrichment result back into the live lines. Results for
// another track, an older line array, or a line whose text no longer matches
// are dropped. A translation into a language other than the live one is
// dropped too; romaji from the same result still lands.
func (s *Session) Apply(r enrich.Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.TrackKey != s.key || r.Generation != s.generation {
		return false
	}
	if r.Index < 0 || r.Index >= len(s.lines) || s.lines[r.Index].Text != r.Text {
		return false
	}

	applied := false
	if r.Romaji != "" {
		s.lines[r.Index].Romaji = r.Romaji
		applied = true
	}
	if r.Translation != "" && r.TranslateTo == s.translationLang {
		s.lines[r.Index].Translation = r.Translation
		applied = true
	}
	return applied
}

// ClearTranslations drops translated text so a language change can refill it.
func (s *Session) ClearTranslations() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.lines {
		s.lines[i].Translation = ""
	}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Track:           s.track,
		Key:             s.key,
		Generation:      s.generation,
		Lines:           lyrics.Clone(s.lines),
		Palette:         s.palette,
		OffsetMs:        s.offsetMs,
		Status:          s.status,
		Origin:          s.origin,
		ShowTranslation: s.showTranslation,
		TranslationLang: s.translationLang,
		ArtworkURL:      s.artworkURL,
	}
}

func (s *Session) Track() track.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.track
}

func (s *Session) Key() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// SetArtwork records url and reports whether it differs from the current one.
func (s *Session) SetArtwork(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if url == s.artworkURL {
		return false
	}
	s.artworkURL = url
	return true
}

// SetPalette applies p only if the artwork it came from is still current.
func (s *Session) SetPalette(artworkURL string, p palette.Palette) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if artworkURL != s.artworkURL {
		return false
	}
	s.palette = p
	return true
}

func (s *Session) SetOffset(ms int) {
	s.mu.Lock()
	s.offsetMs = ms
	s.mu.Unlock()
}

func (s *Session) SetTranslation(show bool, lang string) {
	s.mu.Lock()
	s.showTranslation = show
	s.translationLang = lang
	s.mu.Unlock()
}
