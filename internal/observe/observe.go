// Package observe turns repeated now-playing reads into track-change events.
package observe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"karolbroda.com/lyricfloat/internal/track"
)

var ErrRetryExhausted = errors.New("now-playing metadata unavailable")

type Source interface {
	NowPlaying() (track.Identity, error)
}

// Detector reports a change edge whenever the observed identity stops being the
// same track as the previous one. Reads that fail or are incomplete never
// produce an edge.
type Detector struct {
	src Source

	mu   sync.Mutex
	last track.Identity
}

func NewDetector(src Source) *Detector {
	return &Detector{src: src}
}

// Poll reads the source once. The bool is true on a track change.
func (d *Detector) Poll() (track.Identity, bool) {
	id, err := d.src.NowPlaying()
	if err != nil {
		return track.Identity{}, false
	}
	return id, d.Observe(id)
}

// Observe feeds an identity pushed by the host instead of polled.
func (d *Detector) Observe(id track.Identity) bool {
	if !id.IsValid() {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.last.IsValid() && d.last.IsSameTrack(id) {
		// keep late-arriving fields such as the artwork url
		d.last = id
		return false
	}
	d.last = id
	return true
}

func (d *Detector) Current() track.Identity {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Retry bounds the metadata read at startup.
type Retry struct {
	Attempts int
	Interval time.Duration
}

var DefaultRetry = Retry{Attempts: 5, Interval: time.Second}

// Identity reads src until it yields a valid identity, waiting Interval
// between attempts.
func (r Retry) Identity(ctx context.Context, src Source) (track.Identity, error) {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return track.Identity{}, ctx.Err()
			case <-time.After(r.Interval):
			}
		}

		id, err := src.NowPlaying()
		if err == nil && id.IsValid() {
			return id, nil
		}
		if err == nil {
			err = errors.New("incomplete metadata")
		}
		lastErr = err
	}

	return track.Identity{}, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempts, lastErr)
}
