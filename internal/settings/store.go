package settings

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"
)

const DefaultWatchInterval = time.Second

// Store holds the current settings. With a path it is backed by a TOML file
// that other processes may edit; updates take an exclusive file lock and
// re-read the file first so concurrent writers do not lose each other's
// changes.
type Store struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger

	mu      sync.Mutex
	current Settings
	modTime time.Time
	subs    map[int]chan Settings
	nextSub int
}

func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "lyricfloat", "settings.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "lyricfloat", "settings.toml"), nil
}

// Open loads the settings file at path. A missing file yields defaults; it is
// created on the first update.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("settings path is empty")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create settings dir: %w", err)
	}

	s := &Store{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger,
		subs:   make(map[int]chan Settings),
	}

	if err := s.lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock settings: %w", err)
	}
	defer s.lock.Unlock()

	cur, mod, err := readFile(path)
	if err != nil {
		return nil, err
	}
	s.current = cur
	s.modTime = mod
	return s, nil
}

// NewMemory returns a store that is never persisted.
func NewMemory(initial Settings) *Store {
	initial.normalize()
	return &Store{
		current: initial.Clone(),
		logger:  slog.New(slog.DiscardHandler),
		subs:    make(map[int]chan Settings),
	}
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Update applies fn to the latest settings and persists the result. If fn
// returns an error nothing is written.
func (s *Store) Update(fn func(*Settings) error) (Settings, error) {
	if s.path == "" {
		s.mu.Lock()
		next := s.current.Clone()
		if err := fn(&next); err != nil {
			s.mu.Unlock()
			return Settings{}, err
		}
		next.normalize()
		s.current = next
		s.mu.Unlock()

		s.publish(next)
		return next.Clone(), nil
	}

	if err := s.lock.Lock(); err != nil {
		return Settings{}, fmt.Errorf("lock settings: %w", err)
	}
	defer s.lock.Unlock()

	latest, _, err := readFile(s.path)
	if err != nil {
		return Settings{}, err
	}
	if err := fn(&latest); err != nil {
		return Settings{}, err
	}
	latest.normalize()

	mod, err := writeFile(s.path, latest)
	if err != nil {
		return Settings{}, err
	}

	s.mu.Lock()
	s.current = latest
	s.modTime = mod
	s.mu.Unlock()

	s.publish(latest)
	return latest.Clone(), nil
}

// Reload re-reads the file if its modification time moved and reports whether
// the settings were replaced.
func (s *Store) Reload() (bool, error) {
	if s.path == "" {
		return false, nil
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat settings: %w", err)
	}

	s.mu.Lock()
	unchanged := info.ModTime().Equal(s.modTime)
	s.mu.Unlock()
	if unchanged {
		return false, nil
	}

	if err := s.lock.RLock(); err != nil {
		return false, fmt.Errorf("lock settings: %w", err)
	}
	next, mod, err := readFile(s.path)
	s.lock.Unlock()
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	s.current = next
	s.modTime = mod
	s.mu.Unlock()

	s.publish(next)
	return true, nil
}

// Watch polls the file until ctx is done.
func (s *Store) Watch(ctx context.Context, interval time.Duration) {
	if s.path == "" {
		return
	}
	if interval <= 0 {
		interval = DefaultWatchInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed, err := s.Reload()
			if err != nil {
				s.logger.Warn("settings reload failed", "path", s.path, "error", err)
				continue
			}
			if changed {
				s.logger.Debug("settings changed on disk", "path", s.path)
			}
		}
	}
}

// Subscribe returns a channel that receives the settings after every change.
// Slow readers only see the newest value.
func (s *Store) Subscribe() (<-chan Settings, func()) {
	ch := make(chan Settings, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
	return ch, cancel
}

func (s *Store) publish(next Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- next.Clone()
	}
}

func readFile(path string) (Settings, time.Time, error) {
	cur := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cur, time.Time{}, nil
		}
		return Settings{}, time.Time{}, fmt.Errorf("read settings: %w", err)
	}

	if err := toml.NewDecoder(bytes.NewReader(data)).Decode(&cur); err != nil {
		return Settings{}, time.Time{}, fmt.Errorf("parse settings: %w", err)
	}
	cur.normalize()

	info, err := os.Stat(path)
	if err != nil {
		return Settings{}, time.Time{}, fmt.Errorf("stat settings: %w", err)
	}
	return cur, info.ModTime(), nil
}

func writeFile(path string, s Settings) (time.Time, error) {
	data, err := toml.Marshal(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("encode settings: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return time.Time{}, fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return time.Time{}, fmt.Errorf("replace settings: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat settings: %w", err)
	}
	return info.ModTime(), nil
}
