package resolver

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"karolbroda.com/lyricfloat/internal/cache"
	"karolbroda.com/lyricfloat/internal/logging"
	"karolbroda.com/lyricfloat/internal/lyrics"
	"karolbroda.com/lyricfloat/internal/settings"
	"karolbroda.com/lyricfloat/internal/track"
)

type fakeCatalog struct {
	source lyrics.Source
	texts  map[string]string
	errs   map[string]error
	calls  atomic.Int64
}

func (f *fakeCatalog) Source() lyrics.Source { return f.source }

func (f *fakeCatalog) Search(ctx context.Context, q lyrics.Query) ([]lyrics.Candidate, error) {
	return nil, nil
}

func (f *fakeCatalog) Lyrics(ctx context.Context, id string) (string, error) {
	f.calls.Add(1)
	if err := f.errs[id]; err != nil {
		return "", err
	}
	return f.texts[id], nil
}

type fakeSearch struct {
	candidates []lyrics.Candidate
	catalogs   map[lyrics.Source]*fakeCatalog
	searches   atomic.Int64
	panicking  bool
}

func (f *fakeSearch) SearchAndScore(ctx context.Context, q lyrics.Query) []lyrics.Candidate {
	f.searches.Add(1)
	if f.panicking {
		panic("boom")
	}
	return f.candidates
}

func (f *fakeSearch) Catalog(src lyrics.Source) (lyrics.Catalog, bool) {
	c, ok := f.catalogs[src]
	return c, ok
}

type fakeTitle struct {
	text  string
	err   error
	calls atomic.Int64
}

func (f *fakeTitle) LyricsByTitleArtist(ctx context.Context, title, artist string) (string, error) {
	f.calls.Add(1)
	return f.text, f.err
}

var song = track.Identity{Title: "Song", Artist: "Band", DurationSecs: 180}

func newSearch(candidates ...lyrics.Candidate) (*fakeSearch, *fakeCatalog, *fakeCatalog) {
	primary := &fakeCatalog{source: lyrics.PrimaryCatalog, texts: map[string]string{}, errs: map[string]error{}}
	regional := &fakeCatalog{source: lyrics.RegionalCatalog, texts: map[string]string{}, errs: map[string]error{}}
	return &fakeSearch{
		candidates: candidates,
		catalogs: map[lyrics.Source]*fakeCatalog{
			lyrics.PrimaryCatalog:  primary,
			lyrics.RegionalCatalog: regional,
		},
	}, primary, regional
}

func TestLocalOverrideBypassesNetwork(t *testing.T) {
	search, primary, _ := newSearch(lyrics.Candidate{ID: "1", Source: lyrics.PrimaryCatalog})
	title := &fakeTitle{text: "should not be used"}
	r := New(search, logging.NewNop(), WithTitleLookup(title))

	s := settings.Default()
	s.SetOverride(song.Key(), settings.Override{Kind: settings.OverrideLocal, Text: "[00:05.00]mine\n[00:01.00]first"})

	res := r.Resolve(context.Background(), song, s)

	if search.searches.Load() != 0 || primary.calls.Load() != 0 || title.calls.Load() != 0 {
		t.Error("local override touched the network")
	}
	if res.Origin != OriginLocal || !res.Synced {
		t.Errorf("result = %+v", res)
	}
	if len(res.Lines) != 2 || res.Lines[0].Text != "first" {
		t.Errorf("lines = %+v", res.Lines)
	}
	if res.ResolveID == "" {
		t.Error("missing resolve id")
	}
}

func TestNetworkOverride(t *testing.T) {
	search, _, regional := newSearch()
	regional.texts["99"] = "[00:01.00]from netease"
	r := New(search, logging.NewNop())

	s := settings.Default()
	s.SetOverride(song.Key(), settings.Override{Kind: settings.OverrideNetwork, Source: "netease", ID: "99"})

	res := r.Resolve(context.Background(), song, s)
	if res.Origin != "override:netease:99" || res.Lines[0].Text != "from netease" {
		t.Errorf("result = %+v", res)
	}
	if search.searches.Load() != 0 {
		t.Error("override should skip search")
	}
}

func TestNoOverrideAndEmptySourcesIsNotFound(t *testing.T) {
	search, _, _ := newSearch()
	title := &fakeTitle{}
	r := New(search, logging.NewNop(), WithTitleLookup(title))

	res := r.Resolve(context.Background(), song, settings.Default())

	if text, ok := lyrics.SentinelText(res.Lines); !ok || text != lyrics.TextNotFound {
		t.Errorf("lines = %+v", res.Lines)
	}
	if res.Origin != OriginNotFound {
		t.Errorf("origin = %q", res.Origin)
	}
	if title.calls.Load() != 1 {
		t.Error("title lookup should run as the last network step")
	}
}

func TestTriesNextCandidates(t *testing.T) {
	search, primary, regional := newSearch(
		lyrics.Candidate{ID: "a", Source: lyrics.PrimaryCatalog, Score: 90},
		lyrics.Candidate{ID: "b", Source: lyrics.PrimaryCatalog, Score: 80},
		lyrics.Candidate{ID: "c", Source: lyrics.RegionalCatalog, Score: 70},
		lyrics.Candidate{ID: "d", Source: lyrics.RegionalCatalog, Score: 60},
	)
	primary.errs["a"] = errors.New("timeout")
	regional.texts["c"] = "line one\nline two\nline three"
	regional.texts["d"] = "[00:01.00]never reached"

	r := New(search, logging.NewNop())
	res := r.Resolve(context.Background(), song, settings.Default())

	if res.Origin != "netease:c" || res.Synced {
		t.Fatalf("result = %+v", res)
	}
	want := []float64{0, 60, 120}
	for i, line := range res.Lines {
		if line.Time != want[i] {
			t.Errorf("line %d time = %v, want %v", i, line.Time, want[i])
		}
	}
}

func TestAttemptsAreBounded(t *testing.T) {
	search, primary, _ := newSearch(
		lyrics.Candidate{ID: "1", Source: lyrics.PrimaryCatalog},
		lyrics.Candidate{ID: "2", Source: lyrics.PrimaryCatalog},
		lyrics.Candidate{ID: "3", Source: lyrics.PrimaryCatalog},
		lyrics.Candidate{ID: "4", Source: lyrics.PrimaryCatalog},
	)
	primary.texts["4"] = "too far down"

	r := New(search, logging.NewNop())
	res := r.Resolve(context.Background(), song, settings.Default())

	if primary.calls.Load() != DefaultAttempts {
		t.Errorf("fetched %d candidates, want %d", primary.calls.Load(), DefaultAttempts)
	}
	if res.Origin != OriginNotFound {
		t.Errorf("origin = %q", res.Origin)
	}
}

func TestErrorsBecomeNetworkError(t *testing.T) {
	t.Run("every candidate failed", func(t *testing.T) {
		search, primary, _ := newSearch(lyrics.Candidate{ID: "1", Source: lyrics.PrimaryCatalog})
		primary.errs["1"] = errors.New("connection refused")

		res := New(search, logging.NewNop()).Resolve(context.Background(), song, settings.Default())
		if text, _ := lyrics.SentinelText(res.Lines); text != lyrics.TextNetworkError {
			t.Errorf("lines = %+v", res.Lines)
		}
	})

	t.Run("override fetch failed", func(t *testing.T) {
		search, primary, _ := newSearch()
		primary.errs["5"] = errors.New("503")
		s := settings.Default()
		s.SetOverride(song.Key(), settings.Override{Kind: settings.OverrideNetwork, Source: "lrclib", ID: "5"})

		res := New(search, logging.NewNop()).Resolve(context.Background(), song, s)
		if res.Origin != OriginError {
			t.Errorf("origin = %q", res.Origin)
		}
	})

	t.Run("panic", func(t *testing.T) {
		search, _, _ := newSearch()
		search.panicking = true

		res := New(search, logging.NewNop()).Resolve(context.Background(), song, settings.Default())
		if text, _ := lyrics.SentinelText(res.Lines); text != lyrics.TextNetworkError {
			t.Errorf("lines = %+v", res.Lines)
		}
	})
}

func TestTitleLookupFallback(t *testing.T) {
	search, _, _ := newSearch()
	title := &fakeTitle{text: "[00:02.00]by title"}
	r := New(search, logging.NewNop(), WithTitleLookup(title))

	res := r.Resolve(context.Background(), song, settings.Default())
	if res.Origin != "lrclib:title" || res.Lines[0].Text != "by title" {
		t.Errorf("result = %+v", res)
	}

	title.err = errors.New("down")
	title.text = ""
	if res := r.Resolve(context.Background(), song, settings.Default()); res.Origin != OriginNotFound {
		t.Errorf("title errors should be soft, got %q", res.Origin)
	}
}

func TestCacheAvoidsRefetch(t *testing.T) {
	search, primary, _ := newSearch(lyrics.Candidate{ID: "7", Source: lyrics.PrimaryCatalog, Name: "Song", Artist: "Band"})
	primary.texts["7"] = "[00:01.00]cached"
	store := cache.NewMemory()
	r := New(search, logging.NewNop(), WithCache(store))

	r.Resolve(context.Background(), song, settings.Default())
	r.Resolve(context.Background(), song, settings.Default())

	if primary.calls.Load() != 1 {
		t.Errorf("catalog called %d times, want 1", primary.calls.Load())
	}
	entry, err := store.Get(cache.SourceKey("lrclib", "7"))
	if err != nil || entry.Title != "Song" || !entry.Synced {
		t.Errorf("cache entry = %+v, %v", entry, err)
	}
}

func TestOffsetLookup(t *testing.T) {
	search, _, _ := newSearch()
	r := New(search, logging.NewNop())

	s := settings.Default()
	if res := r.Resolve(context.Background(), song, s); res.OffsetMs != 400 {
		t.Errorf("default offset = %d", res.OffsetMs)
	}

	s.SetTrackOffset(song.Key(), 1200)
	if res := r.Resolve(context.Background(), song, s); res.OffsetMs != 1200 {
		t.Errorf("track offset = %d", res.OffsetMs)
	}
}
