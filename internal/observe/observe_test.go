package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"karolbroda.com/lyricfloat/internal/track"
)

type scripted struct {
	ids   []track.Identity
	errs  []error
	calls int
}

func (s *scripted) NowPlaying() (track.Identity, error) {
	i := s.calls
	s.calls++
	if i >= len(s.ids) {
		i = len(s.ids) - 1
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return s.ids[i], err
}

func TestDetectorEdges(t *testing.T) {
	a := track.Identity{Title: "A", Artist: "X"}
	aWithArt := track.Identity{Title: "A", Artist: "X", ArtworkURL: "https://img/a.jpg"}
	b := track.Identity{Title: "B", Artist: "X"}

	src := &scripted{
		ids:  []track.Identity{a, aWithArt, {}, b, b},
		errs: []error{nil, nil, errors.New("gone"), nil, nil},
	}
	d := NewDetector(src)

	want := []bool{true, false, false, true, false}
	for i, w := range want {
		if _, changed := d.Poll(); changed != w {
			t.Errorf("poll %d changed = %v, want %v", i, changed, w)
		}
	}
	if d.Current().Title != "B" {
		t.Errorf("current = %+v", d.Current())
	}
}

func TestDetectorKeepsLateFields(t *testing.T) {
	d := NewDetector(nil)
	d.Observe(track.Identity{Title: "A", Artist: "X"})
	d.Observe(track.Identity{Title: "A", Artist: "X", ArtworkURL: "https://img/a.jpg"})

	if d.Current().ArtworkURL != "https://img/a.jpg" {
		t.Errorf("artwork not kept: %+v", d.Current())
	}
}

func TestDetectorTrackID(t *testing.T) {
	d := NewDetector(nil)
	d.Observe(track.Identity{Title: "A", Artist: "X", TrackID: "1"})

	if d.Observe(track.Identity{Title: "A (Remastered)", Artist: "X", TrackID: "1"}) {
		t.Error("same track id should not be a change")
	}
	if !d.Observe(track.Identity{Title: "A", Artist: "X", TrackID: "2"}) {
		t.Error("different track id should be a change")
	}
}

func TestRetrySucceedsEventually(t *testing.T) {
	want := track.Identity{Title: "A", Artist: "X"}
	src := &scripted{
		ids:  []track.Identity{{}, {}, want},
		errs: []error{errors.New("no player"), nil, nil},
	}

	id, err := Retry{Attempts: 5, Interval: time.Millisecond}.Identity(context.Background(), src)
	if err != nil {
		t.Fatalf("Identity: %v", err)
	}
	if id != want || src.calls != 3 {
		t.Errorf("id = %+v after %d calls", id, src.calls)
	}
}

func TestRetryExhausted(t *testing.T) {
	src := &scripted{
		ids:  []track.Identity{{}},
		errs: []error{errors.New("no player")},
	}

	_, err := Retry{Attempts: 5, Interval: time.Millisecond}.Identity(context.Background(), src)
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("err = %v, want ErrRetryExhausted", err)
	}
	if src.calls != 5 {
		t.Errorf("calls = %d, want 5", src.calls)
	}
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &scripted{ids: []track.Identity{{}}, errs: []error{errors.New("no player")}}
	_, err := Retry{Attempts: 5, Interval: time.Hour}.Identity(ctx, src)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
	if src.calls != 1 {
		t.Errorf("calls = %d", src.calls)
	}
}
