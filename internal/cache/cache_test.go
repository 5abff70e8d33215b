package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestPutGetRoundTripsThroughDisk(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}

	key := SourceKey("lrclib", "42")
	if err := store.Put(key, &Entry{Title: "Song", Artist: "Band", Raw: "[00:01.00]hi", Synced: true}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	fresh, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := fresh.Get(key)
	if err != nil {
		t.Fatalf("Get from disk: %v", err)
	}
	if got.Raw != "[00:01.00]hi" || !got.Synced || got.Source != "lrclib" || got.ID != "42" {
		t.Errorf("entry = %+v", got)
	}
}

func TestKeysDoNotCollideAcrossSources(t *testing.T) {
	store := NewMemory()
	store.Put(SourceKey("lrclib", "1"), &Entry{Raw: "a"})
	store.Put(SourceKey("netease", "1"), &Entry{Raw: "b"})

	a, _ := store.Get(SourceKey("lrclib", "1"))
	b, _ := store.Get(SourceKey("netease", "1"))
	if a.Raw != "a" || b.Raw != "b" {
		t.Errorf("got %q and %q", a.Raw, b.Raw)
	}
}

func TestTrackKeyIgnoresCase(t *testing.T) {
	if TrackKey("Band", "Song") != TrackKey("band", "SONG") {
		t.Error("track keys should be case-insensitive")
	}
}

func TestMissAndExpiry(t *testing.T) {
	c := &clock{t: time.Unix(1_000_000, 0)}
	store, err := New(t.TempDir(), WithClock(c.now), WithTTL(time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.Get(SourceKey("lrclib", "nope")); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("missing key err = %v", err)
	}
	if _, err := store.Get(Key{}); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("empty key err = %v", err)
	}

	key := SourceKey("lrclib", "7")
	store.Put(key, &Entry{Raw: "x"})

	c.t = c.t.Add(2 * time.Hour)
	if _, err := store.Get(key); !errors.Is(err, ErrCacheExpired) {
		t.Errorf("expired err = %v", err)
	}
}

func TestCorruptFileIsReported(t *testing.T) {
	dir := t.TempDir()
	store, _ := New(dir)
	key := SourceKey("lrclib", "9")

	if err := os.WriteFile(filepath.Join(dir, key.hash()+fileSuffix), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(key); !errors.Is(err, ErrCacheCorrupt) {
		t.Errorf("err = %v, want corrupt", err)
	}
}

func TestPruneStatsListDeleteClear(t *testing.T) {
	c := &clock{t: time.Unix(2_000_000, 0)}
	dir := t.TempDir()
	store, _ := New(dir, WithClock(c.now), WithTTL(time.Hour))

	store.Put(SourceKey("lrclib", "old"), &Entry{Raw: "old"})
	c.t = c.t.Add(50 * time.Minute)
	store.Put(SourceKey("lrclib", "new"), &Entry{Raw: "new"})
	store.Put(SourceKey("netease", "gone"), &Entry{Raw: "gone"})

	st, err := store.Stats()
	if err != nil || st.Count != 3 || st.SizeBytes == 0 {
		t.Fatalf("stats = %+v, %v", st, err)
	}

	if err := store.Delete(SourceKey("netease", "gone")); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	c.t = c.t.Add(20 * time.Minute)
	n, err := store.Prune()
	if err != nil || n != 1 {
		t.Fatalf("Prune = %d, %v; want 1", n, err)
	}

	list, err := store.List()
	if err != nil || len(list) != 1 || list[0].ID != "new" {
		t.Fatalf("List = %+v, %v", list, err)
	}

	if err := store.Clear(); err != nil {
		t.Fatal(err)
	}
	if st, _ := store.Stats(); st.Count != 0 {
		t.Errorf("count after clear = %d", st.Count)
	}
}
