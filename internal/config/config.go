package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"karolbroda.com/lyricfloat/internal/cache"
	"karolbroda.com/lyricfloat/internal/hostpage/mpris"
	"karolbroda.com/lyricfloat/internal/ipc"
	"karolbroda.com/lyricfloat/internal/logging"
	"karolbroda.com/lyricfloat/internal/settings"
	"karolbroda.com/lyricfloat/internal/sources/lrclib"
	"karolbroda.com/lyricfloat/internal/sources/netease"
	"karolbroda.com/lyricfloat/internal/translate"
)

const (
	EnvPrefix = "LYRICFLOAT_"

	HostAuto     = "auto"
	HostMPRIS    = "mpris"
	HostSnapshot = "snapshot"

	DefaultHTTPTimeout   = 10 * time.Second
	DefaultFrameInterval = 33 * time.Millisecond
)

// Host selects where now-playing data comes from.
type Host struct {
	Kind         string `toml:"kind"`
	MprisService string `toml:"mpris_service"`
	SnapshotPath string `toml:"snapshot_path"`
	Profile      string `toml:"profile"`
}

// Sources holds the base urls of the network collaborators.
type Sources struct {
	LrclibURL      string `toml:"lrclib_url"`
	RegionalURL    string `toml:"regional_url"`
	TranslateURL   string `toml:"translate_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type Display struct {
	FrameIntervalMs int  `toml:"frame_interval_ms"`
	HideHeader      bool `toml:"hide_header"`
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

type Cache struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type Paths struct {
	Socket   string `toml:"socket"`
	Settings string `toml:"settings"`
}

type Config struct {
	Host    Host    `toml:"host"`
	Sources Sources `toml:"sources"`
	Display Display `toml:"display"`
	Logging Logging `toml:"logging"`
	Cache   Cache   `toml:"cache"`
	Paths   Paths   `toml:"paths"`
}

func Default() Config {
	return Config{
		Host: Host{
			Kind:         HostAuto,
			MprisService: mpris.DefaultService,
			Profile:      "spotify",
		},
		Sources: Sources{
			LrclibURL:      lrclib.DefaultBaseURL,
			RegionalURL:    netease.DefaultBaseURL,
			TranslateURL:   translate.DefaultBaseURL,
			TimeoutSeconds: int(DefaultHTTPTimeout / time.Second),
		},
		Display: Display{
			FrameIntervalMs: int(DefaultFrameInterval / time.Millisecond),
		},
		Logging: Logging{
			Level:  "info",
			Format: "auto",
		},
		Cache: Cache{
			Enabled: true,
		},
	}
}

// DefaultPath is $XDG_CONFIG_HOME/lyricfloat/config.toml.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config directory: %w", err)
	}
	return filepath.Join(base, "lyricfloat", "config.toml"), nil
}

// Load layers the TOML file at path (or the default location), a .env file in
// the working directory and LYRICFLOAT_* variables over the defaults. The
// returned bool reports whether the TOML file existed. Flags are applied by
// the caller on top.
func Load(path string) (*Config, bool, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, false, err
		}
		path = p
	}

	exists, err := decodeFile(path, &cfg)
	if err != nil {
		return nil, false, err
	}

	// a missing .env is normal; variables already set take precedence
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, exists, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, exists, err
	}

	if err := cfg.Normalize(); err != nil {
		return nil, exists, err
	}
	return &cfg, exists, nil
}

func decodeFile(path string, cfg *Config) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return true, fmt.Errorf("parse config %s: %w", path, err)
	}
	return true, nil
}

// ApplyEnv overrides fields from LYRICFLOAT_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}
	flag := func(name string, dst *bool) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		b, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = b
		return nil
	}

	str("HOST", &c.Host.Kind)
	str("MPRIS_SERVICE", &c.Host.MprisService)
	str("SNAPSHOT", &c.Host.SnapshotPath)
	str("PROFILE", &c.Host.Profile)
	str("LRCLIB_URL", &c.Sources.LrclibURL)
	str("REGIONAL_URL", &c.Sources.RegionalURL)
	str("TRANSLATE_URL", &c.Sources.TranslateURL)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("LOG_FILE", &c.Logging.File)
	str("CACHE_DIR", &c.Cache.Dir)
	str("SOCKET", &c.Paths.Socket)
	str("SETTINGS", &c.Paths.Settings)

	return errors.Join(
		num("HTTP_TIMEOUT", &c.Sources.TimeoutSeconds),
		num("FRAME_INTERVAL_MS", &c.Display.FrameIntervalMs),
		flag("CACHE", &c.Cache.Enabled),
		flag("HIDE_HEADER", &c.Display.HideHeader),
	)
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", v)
}

// Normalize fills derived paths and validates the result.
func (c *Config) Normalize() error {
	c.Host.Kind = strings.ToLower(strings.TrimSpace(c.Host.Kind))
	c.Host.Profile = strings.ToLower(strings.TrimSpace(c.Host.Profile))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))

	if c.Cache.Enabled && c.Cache.Dir == "" {
		dir, err := cache.DefaultDir()
		if err != nil {
			return err
		}
		c.Cache.Dir = dir
	}
	if c.Paths.Settings == "" {
		p, err := settings.DefaultPath()
		if err != nil {
			return err
		}
		c.Paths.Settings = p
	}
	if c.Paths.Socket == "" {
		c.Paths.Socket = ipc.DefaultSocketPath()
	}
	if c.Logging.File == "" {
		c.Logging.File = logging.DefaultLogPath()
	}

	var err error
	for _, p := range []*string{&c.Host.SnapshotPath, &c.Cache.Dir, &c.Paths.Settings, &c.Paths.Socket, &c.Logging.File} {
		if *p, err = ExpandPath(*p); err != nil {
			return err
		}
	}

	return c.Validate()
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Host.Kind {
	case HostAuto, HostMPRIS:
	case HostSnapshot:
		if c.Host.SnapshotPath == "" {
			errs = append(errs, errors.New("host.snapshot_path is required for the snapshot host"))
		}
	default:
		errs = append(errs, fmt.Errorf("host.kind must be auto, mpris or snapshot, got %q", c.Host.Kind))
	}

	switch c.Host.Profile {
	case "spotify", "ytmusic", "generic":
	default:
		errs = append(errs, fmt.Errorf("host.profile must be spotify, ytmusic or generic, got %q", c.Host.Profile))
	}

	if c.Sources.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("sources.timeout_seconds must be positive"))
	}
	if c.Display.FrameIntervalMs < 5 {
		errs = append(errs, errors.New("display.frame_interval_ms must be at least 5"))
	}

	switch c.Logging.Format {
	case "auto", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be auto, json or console, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Sources.TimeoutSeconds) * time.Second
}

func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.Display.FrameIntervalMs) * time.Millisecond
}

// CacheDir is empty when the disk cache is disabled.
func (c *Config) CacheDir() string {
	if !c.Cache.Enabled {
		return ""
	}
	return c.Cache.Dir
}

// ExpandPath resolves a leading ~ and makes the path absolute. Empty stays empty.
func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && pathValue[1] == '/' {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
