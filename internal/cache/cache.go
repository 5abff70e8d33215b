package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	cacheVersion = 2
	defaultTTL   = 30 * 24 * time.Hour
	cacheDirName = "lyricfloat"
	lyricsDir    = "lyrics"
	fileSuffix   = ".bin"

	// trackSource marks entries stored under an artist/title key instead of a
	// catalog id.
	trackSource = "track"
)

var (
	ErrCacheMiss    = errors.New("cache miss")
	ErrCacheExpired = errors.New("cache expired")
	ErrCacheCorrupt = errors.New("cache corrupt")
)

// Key addresses one cached transcript.
type Key struct {
	Source string
	ID     string
}

func SourceKey(source string, id string) Key {
	return Key{Source: source, ID: id}
}

// TrackKey addresses a transcript found by exact artist/title lookup rather
// than through a catalog id.
func TrackKey(artist string, title string) Key {
	return Key{Source: trackSource, ID: strings.ToLower(artist) + "|" + strings.ToLower(title)}
}

func (k Key) valid() bool {
	return k.Source != "" && k.ID != ""
}

func (k Key) hash() string {
	sum := sha256.Sum256([]byte(k.Source + "\x00" + k.ID))
	return hex.EncodeToString(sum[:12])
}

// Entry is a raw lyric transcript as the catalog returned it.
type Entry struct {
	Version   uint8
	Source    string
	ID        string
	Title     string
	Artist    string
	Raw       string
	Synced    bool
	CreatedAt int64
	ExpiresAt int64
}

func (e *Entry) Expired(now time.Time) bool {
	return e.ExpiresAt <= now.Unix()
}

type Stats struct {
	Count     int
	SizeBytes int64
}

type Option func(*Store)

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store keeps transcripts in memory and, when it has a directory, as one gob
// file per key.
type Store struct {
	dir string
	ttl time.Duration
	now func() time.Time

	mu  sync.RWMutex
	mem map[string]*Entry
}

// New opens a store rooted at dir. An empty dir keeps entries in memory only.
func New(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		dir: dir,
		ttl: defaultTTL,
		now: time.Now,
		mem: make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(s)
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	return s, nil
}

func NewMemory(opts ...Option) *Store {
	s, _ := New("", opts...)
	return s
}

// DefaultDir follows XDG_CACHE_HOME, falling back to ~/.cache.
func DefaultDir() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, cacheDirName, lyricsDir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", cacheDirName, lyricsDir), nil
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) Get(k Key) (*Entry, error) {
	if !k.valid() {
		return nil, ErrCacheMiss
	}

	name := k.hash()
	now := s.now()

	s.mu.RLock()
	entry, ok := s.mem[name]
	s.mu.RUnlock()

	if ok {
		if !entry.Expired(now) {
			return entry, nil
		}
		s.mu.Lock()
		delete(s.mem, name)
		s.mu.Unlock()
	}

	if s.dir == "" {
		if ok {
			return nil, ErrCacheExpired
		}
		return nil, ErrCacheMiss
	}

	path := s.path(name)
	entry, err := readEntry(path)
	if err != nil {
		return nil, err
	}
	if entry.Expired(now) {
		_ = os.Remove(path)
		return nil, ErrCacheExpired
	}

	s.mu.Lock()
	s.mem[name] = entry
	s.mu.Unlock()

	return entry, nil
}

// Put stores e under k, stamping version and expiry.
func (s *Store) Put(k Key, e *Entry) error {
	if !k.valid() || e == nil {
		return errors.New("invalid cache entry")
	}

	now := s.now()
	e.Version = cacheVersion
	e.Source = k.Source
	e.ID = k.ID
	e.CreatedAt = now.Unix()
	e.ExpiresAt = now.Add(s.ttl).Unix()

	name := k.hash()
	s.mu.Lock()
	s.mem[name] = e
	s.mu.Unlock()

	if s.dir == "" {
		return nil
	}
	return writeEntry(s.path(name), e)
}

func (s *Store) Delete(k Key) error {
	if !k.valid() {
		return errors.New("invalid cache key")
	}

	name := k.hash()
	s.mu.Lock()
	delete(s.mem, name)
	s.mu.Unlock()

	if s.dir == "" {
		return nil
	}
	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Store) Clear() error {
	s.mu.Lock()
	s.mem = make(map[string]*Entry)
	s.mu.Unlock()

	files, err := s.files()
	if err != nil {
		return err
	}
	for _, path := range files {
		_ = os.Remove(path)
	}
	return nil
}

// Prune removes expired and unreadable files and reports how many went.
func (s *Store) Prune() (int, error) {
	files, err := s.files()
	if err != nil {
		return 0, err
	}

	now := s.now()
	pruned := 0
	for _, path := range files {
		entry, err := readEntry(path)
		if err != nil || entry.Expired(now) {
			_ = os.Remove(path)
			pruned++
		}
	}

	s.mu.Lock()
	for name, entry := range s.mem {
		if entry.Expired(now) {
			delete(s.mem, name)
		}
	}
	s.mu.Unlock()

	return pruned, nil
}

func (s *Store) Stats() (Stats, error) {
	if s.dir == "" {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return Stats{Count: len(s.mem)}, nil
	}

	files, err := s.files()
	if err != nil {
		return Stats{}, err
	}

	var st Stats
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		st.Count++
		st.SizeBytes += info.Size()
	}
	return st, nil
}

// List returns every readable entry, newest first.
func (s *Store) List() ([]*Entry, error) {
	var result []*Entry

	if s.dir == "" {
		s.mu.RLock()
		for _, entry := range s.mem {
			result = append(result, entry)
		}
		s.mu.RUnlock()
	} else {
		files, err := s.files()
		if err != nil {
			return nil, err
		}
		for _, path := range files {
			entry, err := readEntry(path)
			if err != nil {
				continue
			}
			result = append(result, entry)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt > result[j].CreatedAt
	})
	return result, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+fileSuffix)
}

func (s *Store) files() ([]string, error) {
	if s.dir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileSuffix) {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, entry.Name()))
	}
	return paths, nil
}

func readEntry(path string) (*Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	defer f.Close()

	var entry Entry
	if err := gob.NewDecoder(f).Decode(&entry); err != nil {
		return nil, ErrCacheCorrupt
	}

	// older formats are dropped rather than migrated
	if entry.Version != cacheVersion {
		_ = os.Remove(path)
		return nil, ErrCacheCorrupt
	}

	return &entry, nil
}

func writeEntry(path string, entry *Entry) error {
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if err := gob.NewEncoder(f).Encode(entry); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, path)
}
