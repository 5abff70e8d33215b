// Package resolver turns a track identity into lyric lines by walking the
// override, search and fallback chain.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"karolbroda.com/lyricfloat/internal/cache"
	"karolbroda.com/lyricfloat/internal/logging"
	"karolbroda.com/lyricfloat/internal/lyrics"
	"karolbroda.com/lyricfloat/internal/settings"
	"karolbroda.com/lyricfloat/internal/track"
)

// DefaultAttempts is how many ranked candidates are fetched before giving up
// on search.
const DefaultAttempts = 3

const (
	OriginLocal    = "override:local"
	OriginNotFound = "none"
	OriginError    = "error"
)

// Searcher ranks candidates across catalogs and hands out catalogs by source.
type Searcher interface {
	SearchAndScore(ctx context.Context, q lyrics.Query) []lyrics.Candidate
	Catalog(src lyrics.Source) (lyrics.Catalog, bool)
}

// TitleLookup is the exact artist/title lookup tried after search.
type TitleLookup interface {
	LyricsByTitleArtist(ctx context.Context, title string, artist string) (string, error)
}

type Result struct {
	Lines     []lyrics.Line
	Raw       string
	Synced    bool
	Origin    string
	OffsetMs  int
	ResolveID string
}

type Resolver struct {
	search   Searcher
	byTitle  TitleLookup
	store    *cache.Store
	logger   *slog.Logger
	attempts int
}

type Option func(*Resolver)

func WithCache(store *cache.Store) Option {
	return func(r *Resolver) {
		r.store = store
	}
}

func WithTitleLookup(lookup TitleLookup) Option {
	return func(r *Resolver) {
		r.byTitle = lookup
	}
}

func WithAttempts(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.attempts = n
		}
	}
}

func New(search Searcher, logger *slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		search:   search,
		logger:   logging.NewComponentLogger(logger, "resolver"),
		attempts: DefaultAttempts,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve never fails. Missing lyrics become the "No lyrics found" line and
// any fetch error or panic becomes the "Network Error" line.
func (r *Resolver) Resolve(ctx context.Context, t track.Identity, s settings.Settings) (res Result) {
	key := t.Key()
	res.ResolveID = uuid.NewString()
	res.OffsetMs = s.OffsetFor(key)

	log := r.logger.With("resolve_id", res.ResolveID, "track", key)

	defer func() {
		if p := recover(); p != nil {
			log.Error("resolve panicked", "panic", p)
			res.Lines = lyrics.Sentinel(lyrics.TextNetworkError)
			res.Raw = ""
			res.Synced = false
			res.Origin = OriginError
		}
	}()

	raw, origin, err := r.fetch(ctx, log, t, s)
	if err != nil {
		log.Warn("resolve failed", logging.Error(err))
		res.Lines = lyrics.Sentinel(lyrics.TextNetworkError)
		res.Origin = OriginError
		return res
	}

	if raw == "" {
		log.Info("no lyrics found")
		res.Lines = lyrics.Sentinel(lyrics.TextNotFound)
		res.Origin = OriginNotFound
		return res
	}

	res.Raw = raw
	res.Origin = origin
	res.Synced = lyrics.IsSynced(raw)
	res.Lines = lyrics.Parse(raw, t.DurationSecs)

	log.Info("lyrics resolved", "origin", origin, "synced", res.Synced, "lines", len(res.Lines))
	return res
}

// Candidates runs the ranked search for t without fetching any lyrics.
func (r *Resolver) Candidates(ctx context.Context, t track.Identity) []lyrics.Candidate {
	return r.search.SearchAndScore(ctx, lyrics.Query{
		Title:        t.Title,
		Artist:       t.Artist,
		DurationSecs: t.DurationSecs,
	})
}

// Fetch returns the raw transcript for one catalog entry, using the cache.
func (r *Resolver) Fetch(ctx context.Context, src lyrics.Source, id string) (string, error) {
	return r.fetchEntry(ctx, src, id, cache.Entry{})
}

func (r *Resolver) fetchEntry(ctx context.Context, src lyrics.Source, id string, meta cache.Entry) (string, error) {
	catalog, ok := r.search.Catalog(src)
	if !ok {
		return "", fmt.Errorf("no %s catalog configured", src)
	}

	k := cache.SourceKey(src.String(), id)
	if raw, ok := r.cached(k); ok {
		return raw, nil
	}

	raw, err := catalog.Lyrics(ctx, id)
	if err != nil {
		return "", err
	}
	r.remember(k, raw, meta)
	return raw, nil
}

func (r *Resolver) fetch(ctx context.Context, log *slog.Logger, t track.Identity, s settings.Settings) (string, string, error) {
	key := t.Key()

	if o, ok := s.OverrideFor(key); ok {
		raw, origin, err := r.fromOverride(ctx, o)
		if err != nil {
			return "", "", fmt.Errorf("override: %w", err)
		}
		if raw != "" {
			return raw, origin, nil
		}
		log.Debug("override yielded nothing, searching", "kind", o.Kind)
	}

	if !t.IsValid() {
		return "", "", nil
	}

	candidates := r.Candidates(ctx, t)
	log.Debug("search finished", "candidates", len(candidates))

	var lastErr error
	for i, c := range candidates {
		if i >= r.attempts {
			break
		}
		raw, err := r.fetchEntry(ctx, c.Source, c.ID, cache.Entry{Title: c.Name, Artist: c.Artist})
		if err != nil {
			log.Debug("candidate fetch failed", "source", c.Source.String(), "id", c.ID, logging.Error(err))
			lastErr = err
			continue
		}
		if raw != "" {
			return raw, c.Source.String() + ":" + c.ID, nil
		}
	}

	if raw := r.fromTitle(ctx, log, t); raw != "" {
		return raw, lyrics.PrimaryCatalog.String() + ":title", nil
	}

	return "", "", lastErr
}

func (r *Resolver) fromOverride(ctx context.Context, o settings.Override) (string, string, error) {
	switch o.Kind {
	case settings.OverrideLocal:
		return o.Text, OriginLocal, nil
	case settings.OverrideNetwork:
		src, err := lyrics.ParseSource(o.Source)
		if err != nil {
			return "", "", err
		}
		raw, err := r.Fetch(ctx, src, o.ID)
		if err != nil {
			return "", "", err
		}
		return raw, "override:" + src.String() + ":" + o.ID, nil
	}
	return "", "", errors.New("unknown override kind")
}

// fromTitle is soft: a failure just means there is nothing more to try.
func (r *Resolver) fromTitle(ctx context.Context, log *slog.Logger, t track.Identity) string {
	if r.byTitle == nil {
		return ""
	}

	k := cache.TrackKey(t.Artist, t.Title)
	if raw, ok := r.cached(k); ok {
		return raw
	}

	raw, err := r.byTitle.LyricsByTitleArtist(ctx, t.Title, t.Artist)
	if err != nil {
		log.Debug("title lookup failed", logging.Error(err))
		return ""
	}
	r.remember(k, raw, cache.Entry{Title: t.Title, Artist: t.Artist})
	return raw
}

func (r *Resolver) cached(k cache.Key) (string, bool) {
	if r.store == nil {
		return "", false
	}
	entry, err := r.store.Get(k)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			r.logger.Debug("cache read failed", "source", k.Source, "id", k.ID, logging.Error(err))
		}
		return "", false
	}
	return entry.Raw, true
}

func (r *Resolver) remember(k cache.Key, raw string, meta cache.Entry) {
	if r.store == nil || raw == "" {
		return
	}
	entry := meta
	entry.Raw = raw
	entry.Synced = lyrics.IsSynced(raw)
	if err := r.store.Put(k, &entry); err != nil {
		r.logger.Warn("cache write failed", "source", k.Source, "id", k.ID, logging.Error(err))
	}
}
