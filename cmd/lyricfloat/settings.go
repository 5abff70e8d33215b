package main

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"karolbroda.com/lyricfloat/internal/settings"
)

var settingsTrack string

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "view and edit viewer settings",
	Long: `view and edit the persisted viewer settings. a running viewer picks up changes
made here within a second.`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "print the current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := settingsFromFlags(cmd)
		if err != nil {
			return err
		}
		s := store.Get()

		fmt.Printf("file:        %s\n", store.Path())
		fmt.Printf("translation: %s (%s)\n", onOff(s.ShowTranslation), s.TranslationLang)
		fmt.Printf("offset:      %+dms\n", s.SyncOffsetMs)

		if len(s.TrackOffsets) > 0 {
			rows := make([][]string, 0, len(s.TrackOffsets))
			for _, key := range slices.Sorted(maps.Keys(s.TrackOffsets)) {
				rows = append(rows, []string{key, fmt.Sprintf("%+dms", s.TrackOffsets[key])})
			}
			fmt.Println()
			fmt.Println(renderTable([]string{"Track", "Offset"}, rows, []columnAlignment{alignLeft, alignRight}))
		}

		if len(s.Overrides) > 0 {
			rows := make([][]string, 0, len(s.Overrides))
			for _, key := range slices.Sorted(maps.Keys(s.Overrides)) {
				rows = append(rows, []string{key, string(s.Overrides[key].Kind), overrideDetail(s.Overrides[key])})
			}
			fmt.Println()
			fmt.Println(renderTable([]string{"Track", "Override", "Detail"}, rows, nil))
		}
		return nil
	},
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "print the settings file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		fmt.Println(cfg.Paths.Settings)
		return nil
	},
}

var settingsOffsetCmd = &cobra.Command{
	Use:   "offset <ms|+ms|-ms>",
	Short: "set or shift the sync offset",
	Long: `set the sync offset in milliseconds. a leading + or - shifts the current value
instead. with --track the per-track offset is changed, otherwise the global one.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		relative, value, err := parseOffset(args[0])
		if err != nil {
			return err
		}
		store, err := settingsFromFlags(cmd)
		if err != nil {
			return err
		}

		next, err := store.Update(func(s *settings.Settings) error {
			if settingsTrack == "" {
				if relative {
					value += s.SyncOffsetMs
				}
				s.SyncOffsetMs = value
				return nil
			}
			if relative {
				value += s.OffsetFor(settingsTrack)
			}
			s.SetTrackOffset(settingsTrack, value)
			return nil
		})
		if err != nil {
			return err
		}

		if settingsTrack == "" {
			fmt.Printf("global offset: %+dms\n", next.SyncOffsetMs)
		} else {
			fmt.Printf("offset for %s: %+dms\n", settingsTrack, next.OffsetFor(settingsTrack))
		}
		return nil
	},
}

var settingsLangCmd = &cobra.Command{
	Use:   "lang <code>",
	Short: "set the translation language",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lang := strings.TrimSpace(args[0])
		if lang == "" {
			return fmt.Errorf("language code is empty")
		}
		store, err := settingsFromFlags(cmd)
		if err != nil {
			return err
		}
		next, err := store.Update(func(s *settings.Settings) error {
			s.TranslationLang = lang
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Printf("translation language: %s\n", next.TranslationLang)
		return nil
	},
}

var settingsTranslationCmd = &cobra.Command{
	Use:   "translation <on|off>",
	Short: "show or hide translations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		on, err := parseOnOff(args[0])
		if err != nil {
			return err
		}
		store, err := settingsFromFlags(cmd)
		if err != nil {
			return err
		}
		next, err := store.Update(func(s *settings.Settings) error {
			s.ShowTranslation = on
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Printf("translation: %s\n", onOff(next.ShowTranslation))
		return nil
	},
}

var settingsClearCmd = &cobra.Command{
	Use:   "clear-override <track key>",
	Short: "drop the lyrics override of a track",
	Long:  `drop the lyrics override of a track. the key is "artist - title", as printed by 'settings show'.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := settingsFromFlags(cmd)
		if err != nil {
			return err
		}
		removed := false
		if _, err := store.Update(func(s *settings.Settings) error {
			removed = s.ClearOverride(args[0])
			return nil
		}); err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("no override for %q", args[0])
		}
		fmt.Printf("cleared override for %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsPathCmd)
	settingsCmd.AddCommand(settingsOffsetCmd)
	settingsCmd.AddCommand(settingsLangCmd)
	settingsCmd.AddCommand(settingsTranslationCmd)
	settingsCmd.AddCommand(settingsClearCmd)

	settingsOffsetCmd.Flags().StringVar(&settingsTrack, "track", "", `track key ("artist - title") to change instead of the global offset`)
}

func settingsFromFlags(cmd *cobra.Command) (*settings.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg, false)
	if err != nil {
		return nil, err
	}
	return openSettings(cfg, logger)
}

// parseOffset reads "+100" and "-100" as shifts and "900" as an absolute value.
func parseOffset(raw string) (bool, int, error) {
	raw = strings.TrimSpace(raw)
	relative := strings.HasPrefix(raw, "+") || strings.HasPrefix(raw, "-")
	value, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSuffix(raw, "ms"), "+"))
	if err != nil {
		return false, 0, fmt.Errorf("offset %q is not a number of milliseconds", raw)
	}
	return relative, value, nil
}

func parseOnOff(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", raw)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func overrideDetail(o settings.Override) string {
	if o.Kind == settings.OverrideNetwork {
		return o.Source + " " + o.ID
	}
	rows := strings.Count(strings.TrimSpace(o.Text), "\n") + 1
	return strconv.Itoa(rows) + " lines of local text"
}
