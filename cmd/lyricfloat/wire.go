package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"karolbroda.com/lyricfloat/internal/cache"
	"karolbroda.com/lyricfloat/internal/config"
	"karolbroda.com/lyricfloat/internal/hostpage"
	"karolbroda.com/lyricfloat/internal/hostpage/mpris"
	"karolbroda.com/lyricfloat/internal/hostpage/snapshot"
	"karolbroda.com/lyricfloat/internal/httpx"
	"karolbroda.com/lyricfloat/internal/logging"
	"karolbroda.com/lyricfloat/internal/lyrics"
	"karolbroda.com/lyricfloat/internal/resolver"
	"karolbroda.com/lyricfloat/internal/settings"
	"karolbroda.com/lyricfloat/internal/sources/lrclib"
	"karolbroda.com/lyricfloat/internal/sources/netease"
	"karolbroda.com/lyricfloat/internal/timeline"
	"karolbroda.com/lyricfloat/internal/translate"
)

// newLogger writes to stderr for one-shot commands. The interactive viewer
// owns the terminal, so its logs go to the configured file.
func newLogger(cfg *config.Config, interactive bool) (*slog.Logger, error) {
	opts := logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if interactive {
		opts.OutputPaths = []string{cfg.Logging.File}
	}
	logger, err := logging.New(opts)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}

type openedHost struct {
	host      hostpage.Host
	selectors *timeline.Selectors
	name      string
}

// openHost binds the configured now-playing source. In auto mode the mpris
// player is tried first, then the snapshot when one is configured.
func openHost(cfg *config.Config, logger *slog.Logger) (*openedHost, error) {
	switch cfg.Host.Kind {
	case config.HostMPRIS:
		return openMPRIS(cfg)
	case config.HostSnapshot:
		return openSnapshot(cfg)
	}

	h, err := openMPRIS(cfg)
	if err == nil {
		return h, nil
	}
	if cfg.Host.SnapshotPath == "" {
		return nil, err
	}
	logger.Info("mpris unavailable, using snapshot", logging.Error(err), "snapshot", cfg.Host.SnapshotPath)
	return openSnapshot(cfg)
}

func openMPRIS(cfg *config.Config) (*openedHost, error) {
	h, err := mpris.Connect(cfg.Host.MprisService)
	if err != nil {
		return nil, fmt.Errorf("connect to player: %w", err)
	}
	return &openedHost{host: h, name: cfg.Host.MprisService}, nil
}

func openSnapshot(cfg *config.Config) (*openedHost, error) {
	if cfg.Host.SnapshotPath == "" {
		return nil, errors.New("no snapshot path configured (use --snapshot)")
	}
	h, err := snapshot.Open(cfg.Host.SnapshotPath, cfg.Host.Profile)
	if err != nil {
		return nil, err
	}
	return &openedHost{host: h, selectors: h.Selectors(), name: cfg.Host.SnapshotPath}, nil
}

// openCache returns nil when caching is disabled.
func openCache(cfg *config.Config) (*cache.Store, error) {
	dir := cfg.CacheDir()
	if dir == "" {
		return nil, nil
	}
	store, err := cache.New(dir)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return store, nil
}

// requireCache is for the cache subcommands, which only make sense on disk.
func requireCache(cfg *config.Config) (*cache.Store, error) {
	store, err := openCache(cfg)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("the lyrics cache is disabled")
	}
	return store, nil
}

type services struct {
	client     *http.Client
	primary    *lrclib.Client
	engine     *lyrics.Engine
	resolver   *resolver.Resolver
	translator *translate.Client
	cache      *cache.Store
}

func newServices(cfg *config.Config, logger *slog.Logger) (*services, error) {
	client := httpx.NewClient(cfg.HTTPTimeout())
	primary := lrclib.New(cfg.Sources.LrclibURL, client)
	regional := netease.New(cfg.Sources.RegionalURL, client)
	engine := lyrics.NewEngine(primary, regional, logging.NewComponentLogger(logger, "search"))

	store, err := openCache(cfg)
	if err != nil {
		return nil, err
	}

	opts := []resolver.Option{resolver.WithTitleLookup(primary)}
	if store != nil {
		opts = append(opts, resolver.WithCache(store))
	}

	return &services{
		client:     client,
		primary:    primary,
		engine:     engine,
		resolver:   resolver.New(engine, logging.NewComponentLogger(logger, "resolver"), opts...),
		translator: translate.New(cfg.Sources.TranslateURL, client),
		cache:      store,
	}, nil
}

func openSettings(cfg *config.Config, logger *slog.Logger) (*settings.Store, error) {
	store, err := settings.Open(cfg.Paths.Settings, logging.NewComponentLogger(logger, "settings"))
	if err != nil {
		return nil, fmt.Errorf("open settings: %w", err)
	}
	return store, nil
}
