package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"karolbroda.com/lyricfloat/internal/config"
)

var (
	// global flags
	configPath   string
	hostKind     string
	mprisService string
	snapshotPath string
	hostProfile  string
	lrclibURL    string
	logLevel     string
	logFormat    string
	logFile      string
	noCache      bool
	hideHeader   bool
	socketPath   string
	settingsPath string
)

var rootCmd = &cobra.Command{
	Use:   "lyricfloat",
	Short: "floating synchronized lyrics for the music you are playing",
	Long: `lyricfloat follows the track playing in an mpris player or a saved web player
snapshot and paints synchronized, romanized and translated lyrics, colored from
the cover art.

when run without a subcommand, it starts the interactive viewer.`,
	Version: "0.1.0",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runViewer(cmd, args)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/lyricfloat/config.toml)")
	flags.StringVar(&hostKind, "host", "", "now-playing source: auto, mpris or snapshot")
	flags.StringVarP(&mprisService, "mpris-service", "m", "", "mpris service name (e.g., org.mpris.MediaPlayer2.spotify)")
	flags.StringVar(&snapshotPath, "snapshot", "", "path of a saved web player snapshot")
	flags.StringVar(&hostProfile, "profile", "", "snapshot profile: spotify, ytmusic or generic")
	flags.StringVar(&lrclibURL, "lrclib-url", "", "custom lrclib api url")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&logFormat, "log-format", "", "log format: auto, console or json")
	flags.StringVar(&logFile, "log-file", "", "log file used by the interactive viewer")
	flags.BoolVar(&noCache, "no-cache", false, "disable the lyrics cache (always fetch fresh)")
	flags.BoolVarP(&hideHeader, "hide-header", "H", false, "hide header section")
	flags.StringVar(&socketPath, "socket", "", "control socket path")
	flags.StringVar(&settingsPath, "settings", "", "settings file path")
}

// loadConfig layers the persistent flags that were set over the file and
// environment configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, _, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	str := func(name string, value string, dst *string) {
		if flags.Changed(name) {
			*dst = value
		}
	}
	str("host", hostKind, &cfg.Host.Kind)
	str("mpris-service", mprisService, &cfg.Host.MprisService)
	str("snapshot", snapshotPath, &cfg.Host.SnapshotPath)
	str("profile", hostProfile, &cfg.Host.Profile)
	str("lrclib-url", lrclibURL, &cfg.Sources.LrclibURL)
	str("log-level", logLevel, &cfg.Logging.Level)
	str("log-format", logFormat, &cfg.Logging.Format)
	str("log-file", logFile, &cfg.Logging.File)
	str("socket", socketPath, &cfg.Paths.Socket)
	str("settings", settingsPath, &cfg.Paths.Settings)

	// a snapshot path on the command line implies the snapshot host
	if flags.Changed("snapshot") && !flags.Changed("host") {
		cfg.Host.Kind = config.HostSnapshot
	}
	if flags.Changed("no-cache") {
		cfg.Cache.Enabled = !noCache
	}
	if flags.Changed("hide-header") {
		cfg.Display.HideHeader = hideHeader
	}

	if err := cfg.Normalize(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		stop()
		os.Exit(1)
	}
}
