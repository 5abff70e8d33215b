// Package settings persists the user-tunable viewer preferences and notifies
// subscribers when they change, whether the change came from this process or
// from another one editing the same file.
package settings

import (
	"errors"
	"fmt"
	"maps"
)

const (
	DefaultLang     = "id"
	DefaultOffsetMs = 400
	OffsetStepMs    = 100
)

type OverrideKind string

const (
	OverrideLocal   OverrideKind = "local"
	OverrideNetwork OverrideKind = "network"
)

// Override pins the lyrics shown for one track. Local overrides carry the
// text itself; network overrides name a catalog entry.
type Override struct {
	Kind   OverrideKind `toml:"kind" json:"kind"`
	Text   string       `toml:"text,omitempty" json:"text,omitempty"`
	Source string       `toml:"source,omitempty" json:"source,omitempty"`
	ID     string       `toml:"id,omitempty" json:"id,omitempty"`
}

func (o Override) Validate() error {
	switch o.Kind {
	case OverrideLocal:
		if o.Text == "" {
			return errors.New("local override has no text")
		}
	case OverrideNetwork:
		if o.Source == "" || o.ID == "" {
			return errors.New("network override needs source and id")
		}
	default:
		return fmt.Errorf("unknown override kind %q", o.Kind)
	}
	return nil
}

type Settings struct {
	ShowTranslation bool                `toml:"show_translation" json:"show_translation"`
	TranslationLang string              `toml:"translation_lang" json:"translation_lang"`
	SyncOffsetMs    int                 `toml:"sync_offset_ms" json:"sync_offset_ms"`
	TrackOffsets    map[string]int      `toml:"track_offsets,omitempty" json:"track_offsets,omitempty"`
	Overrides       map[string]Override `toml:"overrides,omitempty" json:"overrides,omitempty"`
}

func Default() Settings {
	return Settings{
		ShowTranslation: false,
		TranslationLang: DefaultLang,
		SyncOffsetMs:    DefaultOffsetMs,
	}
}

// OffsetFor returns the per-track offset, or the global one when the track has
// none.
func (s Settings) OffsetFor(key string) int {
	if v, ok := s.TrackOffsets[key]; ok {
		return v
	}
	return s.SyncOffsetMs
}

func (s Settings) OverrideFor(key string) (Override, bool) {
	o, ok := s.Overrides[key]
	return o, ok
}

// EnrichLang is the translation target, empty when translation is off.
func (s Settings) EnrichLang() string {
	if !s.ShowTranslation {
		return ""
	}
	return s.TranslationLang
}

func (s *Settings) SetTrackOffset(key string, ms int) {
	if s.TrackOffsets == nil {
		s.TrackOffsets = make(map[string]int)
	}
	s.TrackOffsets[key] = ms
}

func (s *Settings) SetOverride(key string, o Override) {
	if s.Overrides == nil {
		s.Overrides = make(map[string]Override)
	}
	s.Overrides[key] = o
}

func (s *Settings) ClearOverride(key string) bool {
	if _, ok := s.Overrides[key]; !ok {
		return false
	}
	delete(s.Overrides, key)
	return true
}

func (s Settings) Clone() Settings {
	out := s
	out.TrackOffsets = maps.Clone(s.TrackOffsets)
	out.Overrides = maps.Clone(s.Overrides)
	return out
}

func (s *Settings) normalize() {
	if s.TranslationLang == "" {
		s.TranslationLang = DefaultLang
	}
}
