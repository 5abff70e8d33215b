// Package app owns the live session: it reacts to track and artwork changes,
// applies settings as they change and executes control commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"karolbroda.com/lyricfloat/internal/control"
	"karolbroda.com/lyricfloat/internal/enrich"
	"karolbroda.com/lyricfloat/internal/hostpage"
	"karolbroda.com/lyricfloat/internal/logging"
	"karolbroda.com/lyricfloat/internal/lyrics"
	"karolbroda.com/lyricfloat/internal/observe"
	"karolbroda.com/lyricfloat/internal/palette"
	"karolbroda.com/lyricfloat/internal/render"
	"karolbroda.com/lyricfloat/internal/resolver"
	"karolbroda.com/lyricfloat/internal/session"
	"karolbroda.com/lyricfloat/internal/settings"
	"karolbroda.com/lyricfloat/internal/timeline"
	"karolbroda.com/lyricfloat/internal/track"
)

var ErrNoTrack = errors.New("nothing is playing")

// Resolver is the part of resolver.Resolver the controller drives.
type Resolver interface {
	Resolve(ctx context.Context, t track.Identity, s settings.Settings) resolver.Result
	Candidates(ctx context.Context, t track.Identity) []lyrics.Candidate
}

type ArtworkLoader func(ctx context.Context, url string) (image.Image, error)

type Config struct {
	Host       hostpage.Host
	Selectors  *timeline.Selectors
	Resolver   Resolver
	Settings   *settings.Store
	Translator enrich.Translator
	HTTPClient *http.Client
	Artwork    ArtworkLoader
	Logger     *slog.Logger
	Clock      func() time.Time
}

type Controller struct {
	host      hostpage.Host
	detector  *observe.Detector
	tracker   *timeline.Tracker
	resolver  Resolver
	store     *settings.Store
	session   *session.Session
	scheduler *enrich.Scheduler
	artwork   ArtworkLoader
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	applied settings.Settings
	cover   image.Image
}

func New(cfg Config) (*Controller, error) {
	if cfg.Host == nil {
		return nil, errors.New("app: nil host")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("app: nil resolver")
	}
	if cfg.Settings == nil {
		return nil, errors.New("app: nil settings store")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Artwork == nil {
		client := cfg.HTTPClient
		if client == nil {
			client = http.DefaultClient
		}
		cfg.Artwork = func(ctx context.Context, url string) (image.Image, error) {
			return palette.Fetch(ctx, client, url)
		}
	}

	var trackerOpts []timeline.Option
	if cfg.Clock != nil {
		trackerOpts = append(trackerOpts, timeline.WithClock(cfg.Clock))
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		host:     cfg.Host,
		detector: observe.NewDetector(cfg.Host),
		tracker:  timeline.NewTracker(cfg.Host, cfg.Selectors, trackerOpts...),
		resolver: cfg.Resolver,
		store:    cfg.Settings,
		session:  session.New(),
		artwork:  cfg.Artwork,
		logger:   logging.NewComponentLogger(cfg.Logger, "app"),
		ctx:      ctx,
		cancel:   cancel,
	}
	if cfg.Translator != nil {
		c.scheduler = enrich.New(cfg.Translator, c.session, logging.NewComponentLogger(cfg.Logger, "enrich"))
	}

	initial := cfg.Settings.Get()
	c.applied = initial
	c.session.SetTranslation(initial.ShowTranslation, initial.TranslationLang)
	c.session.SetOffset(initial.SyncOffsetMs)
	return c, nil
}

func (c *Controller) Session() *session.Session {
	return c.session
}

// Track is the track the session is following.
func (c *Controller) Track() track.Identity {
	return c.session.Track()
}

func (c *Controller) Scheduler() *enrich.Scheduler {
	return c.scheduler
}

// Cover is the last cover image fetched for the current artwork.
func (c *Controller) Cover() image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cover
}

// Run drives the background work until ctx is done: the enrichment workers,
// settings change notifications and, when the host supports it, pushed
// track changes.
func (c *Controller) Run(ctx context.Context, watchInterval time.Duration) error {
	defer c.wait()
	defer c.cancel()

	go func() {
		select {
		case <-ctx.Done():
			c.cancel()
		case <-c.ctx.Done():
		}
	}()

	if c.scheduler != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := c.scheduler.Run(c.ctx); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Warn("enrichment stopped", logging.Error(err))
			}
		}()
	}

	updates, unsubscribe := c.store.Subscribe()
	defer unsubscribe()

	if c.store.Path() != "" {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.store.Watch(c.ctx, watchInterval)
		}()
	}

	if n, ok := c.host.(hostpage.Notifier); ok {
		err := n.Watch(c.ctx, func(id track.Identity) {
			if c.detector.Observe(id) {
				c.OnTrackChange(id)
			}
		})
		if err != nil && !errors.Is(err, hostpage.ErrUnsupported) {
			c.logger.Warn("track change notifications unavailable", logging.Error(err))
		}
	}

	for {
		select {
		case <-c.ctx.Done():
			return nil
		case next := <-updates:
			c.applySettings(next)
		}
	}
}

// Close stops background work started outside Run.
func (c *Controller) Close() {
	c.cancel()
	c.wait()
}

func (c *Controller) wait() {
	c.wg.Wait()
}

// Start waits for the host to report a track at launch and begins resolving
// it.
func (c *Controller) Start(ctx context.Context, retry observe.Retry) (track.Identity, error) {
	id, err := retry.Identity(ctx, c.host)
	if err != nil {
		return track.Identity{}, err
	}
	if c.detector.Observe(id) {
		c.OnTrackChange(id)
	}
	c.OnArtwork(id.ArtworkURL)
	return id, nil
}

// Frame advances observation by one tick and returns what to paint. It polls
// the host but never waits on the network.
func (c *Controller) Frame() render.Frame {
	if id, changed := c.detector.Poll(); changed {
		c.OnTrackChange(id)
		c.OnArtwork(id.ArtworkURL)
	} else if id.IsValid() {
		c.OnArtwork(id.ArtworkURL)
	}

	state := c.tracker.State()
	snap := c.session.Snapshot()

	return render.Frame{
		Lines:           snap.Lines,
		Generation:      snap.Generation,
		Palette:         snap.Palette,
		State:           state,
		Muted:           state.Muted,
		OffsetMs:        snap.OffsetMs,
		ShowTranslation: snap.ShowTranslation,
		Status:          snap.Status.String(),
	}
}

// OnTrackChange starts resolving t. Results for any earlier track are dropped
// when they arrive.
func (c *Controller) OnTrackChange(t track.Identity) {
	gen := c.session.BeginResolve(t)
	if c.scheduler != nil {
		if n := c.scheduler.Clear(); n > 0 {
			c.logger.Debug("dropped queued enrichment", "count", n)
		}
	}

	c.logger.Info("track changed", "track", t.Key(), "generation", gen)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.resolve(gen, t)
	}()
}

func (c *Controller) resolve(gen uint64, t track.Identity) {
	s := c.store.Get()
	res := c.resolver.Resolve(c.ctx, t, s)
	status := session.StatusFor(res.Lines, res.Synced)

	// the offset may have been adjusted while the fetch was running
	offset := c.store.Get().OffsetFor(t.Key())
	if !c.session.Install(gen, res.Lines, status, res.Origin, offset) {
		c.logger.Debug("discarded stale resolve", "track", t.Key(), "generation", gen, "resolve_id", res.ResolveID)
		return
	}
	c.logger.Info("lyrics installed",
		"track", t.Key(),
		"generation", gen,
		"origin", res.Origin,
		"status", status.String(),
		"lines", len(res.Lines),
		"resolve_id", res.ResolveID,
	)
	c.enrich(gen, t.Key(), res.Lines, s.EnrichLang())
}

func (c *Controller) enrich(gen uint64, key string, lines []lyrics.Line, lang string) {
	if c.scheduler == nil {
		return
	}
	tasks := enrich.Plan(key, gen, lines, lang)
	if len(tasks) > 0 {
		c.logger.Debug("queued enrichment", "track", key, "generation", gen, "tasks", len(tasks))
	}
	c.scheduler.Enqueue(tasks...)
}

// OnArtwork refreshes the palette when the cover art url changes.
func (c *Controller) OnArtwork(url string) {
	if !c.session.SetArtwork(url) {
		return
	}
	if url == "" {
		c.session.SetPalette(url, palette.Default)
		c.setCover(nil)
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		img, err := c.artwork(c.ctx, url)
		if err != nil {
			c.logger.Debug("artwork fetch failed", "url", url, logging.Error(err))
		}
		if c.session.SetPalette(url, palette.Extract(img)) {
			c.setCover(img)
		}
	}()
}

func (c *Controller) setCover(img image.Image) {
	c.mu.Lock()
	c.cover = img
	c.mu.Unlock()
}

// Handle executes one control command and answers with the resulting state.
func (c *Controller) Handle(ctx context.Context, cmd control.Command) (control.Reply, error) {
	if err := cmd.Validate(); err != nil {
		return control.Reply{}, err
	}

	var candidates []lyrics.Candidate
	var err error

	switch cmd := cmd.(type) {
	case control.ToggleTranslation:
		err = c.update(func(s *settings.Settings) error {
			if cmd.Enabled != nil {
				s.ShowTranslation = *cmd.Enabled
			} else {
				s.ShowTranslation = !s.ShowTranslation
			}
			return nil
		})

	case control.SetLanguage:
		err = c.update(func(s *settings.Settings) error {
			s.TranslationLang = cmd.Lang
			return nil
		})

	case control.AdjustOffset:
		key := c.session.Key()
		err = c.update(func(s *settings.Settings) error {
			if key == "" {
				s.SyncOffsetMs += cmd.DeltaMs
				return nil
			}
			s.SetTrackOffset(key, s.OffsetFor(key)+cmd.DeltaMs)
			return nil
		})

	case control.SelectResult:
		err = c.setOverride(settings.Override{Kind: settings.OverrideNetwork, Source: cmd.Source, ID: cmd.ID})

	case control.UploadLocal:
		err = c.setOverride(settings.Override{Kind: settings.OverrideLocal, Text: cmd.Text})

	case control.ClearOverride:
		key := c.session.Key()
		if key == "" {
			return control.Reply{}, ErrNoTrack
		}
		err = c.update(func(s *settings.Settings) error {
			s.ClearOverride(key)
			return nil
		})

	case control.Search:
		candidates, err = c.search(ctx, cmd)

	case control.QueryState:

	case control.Transport:
		err = c.transport(cmd)

	default:
		return control.Reply{}, fmt.Errorf("%w: unhandled kind %q", control.ErrInvalidCommand, cmd.Kind())
	}
	if err != nil {
		return control.Reply{}, err
	}

	reply := c.reply()
	reply.Candidates = candidates
	return reply, nil
}

func (c *Controller) setOverride(o settings.Override) error {
	key := c.session.Key()
	if key == "" {
		return ErrNoTrack
	}
	return c.update(func(s *settings.Settings) error {
		s.SetOverride(key, o)
		return nil
	})
}

func (c *Controller) search(ctx context.Context, cmd control.Search) ([]lyrics.Candidate, error) {
	t := c.session.Track()
	if cmd.Title != "" {
		t = track.Identity{Title: cmd.Title, Artist: cmd.Artist}
	} else if cmd.Artist != "" {
		t.Artist = cmd.Artist
	}
	if t.Title == "" {
		return nil, ErrNoTrack
	}
	return c.resolver.Candidates(ctx, t), nil
}

func (c *Controller) transport(cmd control.Transport) error {
	switch cmd.Action {
	case control.ActionPlayPause:
		return c.host.PlayPause()
	case control.ActionNext:
		return c.host.Next()
	case control.ActionPrevious:
		return c.host.Previous()
	case control.ActionMute:
		return c.host.ToggleMute()
	case control.ActionSeek:
		return c.host.SeekFraction(cmd.Fraction)
	case control.ActionCaptions:
		return c.update(func(s *settings.Settings) error {
			s.ShowTranslation = !s.ShowTranslation
			return nil
		})
	}
	return fmt.Errorf("%w: unknown transport action %q", control.ErrInvalidCommand, cmd.Action)
}

// update persists a settings change and applies it without waiting for the
// change notification.
func (c *Controller) update(fn func(*settings.Settings) error) error {
	next, err := c.store.Update(fn)
	if err != nil {
		return err
	}
	c.applySettings(next)
	return nil
}

func (c *Controller) reply() control.Reply {
	snap := c.session.Snapshot()
	return control.Reply{
		TrackKey:        snap.Key,
		OffsetMs:        snap.OffsetMs,
		ShowTranslation: snap.ShowTranslation,
		TranslationLang: snap.TranslationLang,
		Status:          snap.Status.String(),
		Origin:          snap.Origin,
	}
}

// applySettings reacts to the difference between next and what was last
// applied. It runs for local commands and for edits made by other processes.
func (c *Controller) applySettings(next settings.Settings) {
	c.mu.Lock()
	prev := c.applied
	c.applied = next.Clone()
	c.mu.Unlock()

	snap := c.session.Snapshot()
	key := snap.Key

	if prev.ShowTranslation != next.ShowTranslation || prev.TranslationLang != next.TranslationLang {
		c.session.SetTranslation(next.ShowTranslation, next.TranslationLang)
		if prev.TranslationLang != next.TranslationLang {
			c.session.ClearTranslations()
		}
		if key != "" && next.EnrichLang() != "" {
			if c.scheduler != nil {
				c.scheduler.Clear()
			}
			c.enrich(snap.Generation, key, c.session.Snapshot().Lines, next.EnrichLang())
		}
	}

	if key == "" {
		return
	}

	if prev.OffsetFor(key) != next.OffsetFor(key) {
		c.session.SetOffset(next.OffsetFor(key))
	}

	prevOverride, hadPrev := prev.OverrideFor(key)
	nextOverride, hasNext := next.OverrideFor(key)
	if hadPrev != hasNext || prevOverride != nextOverride {
		c.logger.Info("override changed, resolving again", "track", key)
		c.OnTrackChange(snap.Track)
	}
}
