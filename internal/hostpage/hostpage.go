// Package hostpage describes the media host the viewer follows: where
// now-playing metadata, the playback position and the transport controls come
// from.
package hostpage

import (
	"context"
	"errors"

	"karolbroda.com/lyricfloat/internal/timeline"
	"karolbroda.com/lyricfloat/internal/track"
)

// ErrUnsupported is returned by transport actions the host cannot perform.
var ErrUnsupported = errors.New("not supported by this host")

type Transport interface {
	PlayPause() error
	Next() error
	Previous() error
	ToggleMute() error
	// SeekFraction jumps to fraction of the current track, in [0, 1].
	SeekFraction(fraction float64) error
}

// Host is one now-playing source. NowPlaying is read once per frame; the
// page view feeds the timeline tracker.
type Host interface {
	timeline.Page
	Transport
	// NowPlaying includes the cover art url when the host exposes one.
	NowPlaying() (track.Identity, error)
	Close() error
}

// Notifier is implemented by hosts that can push track changes instead of
// waiting for the next poll.
type Notifier interface {
	Watch(ctx context.Context, fn func(track.Identity)) error
}
