// Package control defines the commands a running viewer accepts from the
// command line, the terminal keymap and the control socket.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"karolbroda.com/lyricfloat/internal/lyrics"
)

type Kind string

const (
	KindToggleTranslation Kind = "toggle_translation"
	KindSetLanguage       Kind = "set_language"
	KindAdjustOffset      Kind = "adjust_offset"
	KindSelectResult      Kind = "select_result"
	KindUploadLocal       Kind = "upload_local"
	KindClearOverride     Kind = "clear_override"
	KindSearch            Kind = "search"
	KindQueryState        Kind = "query_state"
	KindTransport         Kind = "transport"
)

var ErrInvalidCommand = errors.New("invalid command")

// Command is one of the concrete command types in this package.
type Command interface {
	Kind() Kind
	Validate() error
	command()
}

// ToggleTranslation flips translation, or sets it when Enabled is given.
type ToggleTranslation struct {
	Enabled *bool `json:"enabled,omitempty"`
}

type SetLanguage struct {
	Lang string `json:"lang"`
}

// AdjustOffset moves the current track's sync offset by DeltaMs.
type AdjustOffset struct {
	DeltaMs int `json:"delta_ms"`
}

// SelectResult pins a search candidate as the current track's lyrics.
type SelectResult struct {
	Source string `json:"source"`
	ID     string `json:"id"`
}

type UploadLocal struct {
	Text string `json:"text"`
}

type ClearOverride struct{}

// Search runs the candidate search. Empty fields default to the current track.
type Search struct {
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
}

type QueryState struct{}

type TransportAction string

const (
	ActionPlayPause TransportAction = "play_pause"
	ActionNext      TransportAction = "next"
	ActionPrevious  TransportAction = "previous"
	ActionMute      TransportAction = "mute"
	ActionCaptions  TransportAction = "captions"
	ActionSeek      TransportAction = "seek"
)

type Transport struct {
	Action TransportAction `json:"action"`
	// Fraction is the seek target in [0, 1]; only used by ActionSeek.
	Fraction float64 `json:"fraction,omitempty"`
}

func (ToggleTranslation) Kind() Kind { return KindToggleTranslation }
func (SetLanguage) Kind() Kind       { return KindSetLanguage }
func (AdjustOffset) Kind() Kind      { return KindAdjustOffset }
func (SelectResult) Kind() Kind      { return KindSelectResult }
func (UploadLocal) Kind() Kind       { return KindUploadLocal }
func (ClearOverride) Kind() Kind     { return KindClearOverride }
func (Search) Kind() Kind            { return KindSearch }
func (QueryState) Kind() Kind        { return KindQueryState }
func (Transport) Kind() Kind         { return KindTransport }

func (ToggleTranslation) command() {}
func (SetLanguage) command()       {}
func (AdjustOffset) command()      {}
func (SelectResult) command()      {}
func (UploadLocal) command()       {}
func (ClearOverride) command()     {}
func (Search) command()            {}
func (QueryState) command()        {}
func (Transport) command()         {}

func (ToggleTranslation) Validate() error { return nil }
func (ClearOverride) Validate() error     { return nil }
func (Search) Validate() error            { return nil }
func (QueryState) Validate() error        { return nil }

func (c SetLanguage) Validate() error {
	lang := strings.TrimSpace(c.Lang)
	if lang == "" {
		return fmt.Errorf("%w: language is empty", ErrInvalidCommand)
	}
	if len(lang) > 16 || strings.ContainsAny(lang, " /?&") {
		return fmt.Errorf("%w: bad language code %q", ErrInvalidCommand, c.Lang)
	}
	return nil
}

func (c AdjustOffset) Validate() error {
	if c.DeltaMs == 0 {
		return fmt.Errorf("%w: offset delta is zero", ErrInvalidCommand)
	}
	return nil
}

func (c SelectResult) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: result id is empty", ErrInvalidCommand)
	}
	if _, err := lyrics.ParseSource(c.Source); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	return nil
}

func (c UploadLocal) Validate() error {
	if strings.TrimSpace(c.Text) == "" {
		return fmt.Errorf("%w: uploaded text is empty", ErrInvalidCommand)
	}
	return nil
}

func (c Transport) Validate() error {
	switch c.Action {
	case ActionPlayPause, ActionNext, ActionPrevious, ActionMute, ActionCaptions:
		return nil
	case ActionSeek:
		if c.Fraction < 0 || c.Fraction > 1 {
			return fmt.Errorf("%w: seek fraction %v outside [0, 1]", ErrInvalidCommand, c.Fraction)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown transport action %q", ErrInvalidCommand, c.Action)
}

// Reply is the viewer's answer to any command.
type Reply struct {
	TrackKey        string             `json:"track_key"`
	OffsetMs        int                `json:"offset_ms"`
	ShowTranslation bool               `json:"show_translation"`
	TranslationLang string             `json:"translation_lang"`
	Status          string             `json:"status"`
	Origin          string             `json:"origin,omitempty"`
	Candidates      []lyrics.Candidate `json:"candidates,omitempty"`
}

type Handler interface {
	Handle(ctx context.Context, cmd Command) (Reply, error)
}

type HandlerFunc func(ctx context.Context, cmd Command) (Reply, error)

func (f HandlerFunc) Handle(ctx context.Context, cmd Command) (Reply, error) {
	return f(ctx, cmd)
}

// Envelope is the wire form of a command.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func Encode(cmd Command) (Envelope, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", cmd.Kind(), err)
	}
	return Envelope{Kind: cmd.Kind(), Payload: payload}, nil
}

// Decode turns an envelope back into a validated command.
func Decode(env Envelope) (Command, error) {
	var (
		cmd Command
		err error
	)

	switch env.Kind {
	case KindToggleTranslation:
		cmd, err = decodePayload[ToggleTranslation](env.Payload)
	case KindSetLanguage:
		cmd, err = decodePayload[SetLanguage](env.Payload)
	case KindAdjustOffset:
		cmd, err = decodePayload[AdjustOffset](env.Payload)
	case KindSelectResult:
		cmd, err = decodePayload[SelectResult](env.Payload)
	case KindUploadLocal:
		cmd, err = decodePayload[UploadLocal](env.Payload)
	case KindClearOverride:
		cmd = ClearOverride{}
	case KindSearch:
		cmd, err = decodePayload[Search](env.Payload)
	case KindQueryState:
		cmd = QueryState{}
	case KindTransport:
		cmd, err = decodePayload[Transport](env.Payload)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidCommand, env.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrInvalidCommand, env.Kind, err)
	}

	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func decodePayload[T Command](payload json.RawMessage) (Command, error) {
	var v T
	if len(payload) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, err
	}
	return v, nil
}
