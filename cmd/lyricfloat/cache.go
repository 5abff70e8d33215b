package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"karolbroda.com/lyricfloat/internal/cache"
	"karolbroda.com/lyricfloat/internal/lyrics"
)

const maxSuggestions = 5

var (
	// flags for cache list
	cacheSortBy  string
	cacheConfirm bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "manage the lyrics cache",
	Long:  `manage cached lyric transcripts, including viewing statistics, listing entries, and clearing the cache.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "show cache statistics",
	Long:  `display cache statistics including number of entries, total size, and cache location.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cacheFromFlags(cmd)
		if err != nil {
			return err
		}

		stats, err := store.Stats()
		if err != nil {
			return fmt.Errorf("failed to get cache stats: %w", err)
		}

		fmt.Println("cache statistics:")
		fmt.Printf("  location: %s\n", store.Dir())
		fmt.Printf("  entries:  %d\n", stats.Count)
		fmt.Printf("  size:     %s\n", formatBytes(stats.SizeBytes))
		return nil
	},
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "list all cached transcripts",
	Long:  `list all cached transcripts with their catalog, sync kind and cache date.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cacheFromFlags(cmd)
		if err != nil {
			return err
		}

		entries, err := store.List()
		if err != nil {
			return fmt.Errorf("failed to list cache: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("cache is empty")
			return nil
		}

		if err := sortCacheEntries(entries, cacheSortBy); err != nil {
			return err
		}

		rows := make([][]string, 0, len(entries))
		for _, entry := range entries {
			rows = append(rows, []string{
				orDash(entry.Artist),
				orDash(entry.Title),
				entry.Source,
				entry.ID,
				syncLabel(entry.Synced),
				time.Unix(entry.CreatedAt, 0).Format("2006-01-02"),
			})
		}
		fmt.Println(renderTable(
			[]string{"Artist", "Title", "Source", "ID", "Sync", "Cached"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
		))
		fmt.Printf("\ntotal: %d transcripts\n", len(entries))
		return nil
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show <artist> <title>",
	Short: "show cached entries for a specific song",
	Long:  `display detailed information about the cached transcripts of a song.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cacheFromFlags(cmd)
		if err != nil {
			return err
		}

		matches, err := findCachedSong(store, args[0], args[1])
		if err != nil {
			return err
		}

		for i, entry := range matches {
			if i > 0 {
				fmt.Println()
			}
			fmt.Printf("artist:  %s\n", orDash(entry.Artist))
			fmt.Printf("title:   %s\n", orDash(entry.Title))
			fmt.Printf("source:  %s %s\n", entry.Source, entry.ID)
			fmt.Printf("cached:  %s\n", time.Unix(entry.CreatedAt, 0).Format("2006-01-02 15:04:05"))
			fmt.Printf("expires: %s\n", time.Unix(entry.ExpiresAt, 0).Format("2006-01-02 15:04:05"))

			lines := lyrics.Parse(entry.Raw, 0)
			if entry.Synced {
				fmt.Printf("synced lyrics: %d lines\n", len(lines))
			} else {
				fmt.Printf("plain lyrics: %d lines (no sync data)\n", len(lines))
			}
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "clear all cached entries",
	Long:  `remove all cached transcripts. use --confirm to skip confirmation prompt.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cacheFromFlags(cmd)
		if err != nil {
			return err
		}

		if !cacheConfirm {
			fmt.Print("are you sure you want to clear all cache? (y/n): ")
			var response string
			fmt.Scanln(&response)
			response = strings.ToLower(strings.TrimSpace(response))
			if response != "y" && response != "yes" {
				fmt.Println("cancelled")
				return nil
			}
		}

		if err := store.Clear(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Println("cache cleared successfully")
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "remove expired cache entries",
	Long:  `remove all expired and unreadable cache entries to free up disk space.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cacheFromFlags(cmd)
		if err != nil {
			return err
		}

		pruned, err := store.Prune()
		if err != nil {
			return fmt.Errorf("failed to prune cache: %w", err)
		}
		fmt.Printf("removed %d expired entries\n", pruned)
		return nil
	},
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete <artist> <title>",
	Short: "remove a specific song from the cache",
	Long:  `remove every cached transcript of a song by artist and title.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cacheFromFlags(cmd)
		if err != nil {
			return err
		}

		matches, err := findCachedSong(store, args[0], args[1])
		if err != nil {
			return err
		}

		for _, entry := range matches {
			if err := store.Delete(cache.SourceKey(entry.Source, entry.ID)); err != nil {
				return fmt.Errorf("failed to delete from cache: %w", err)
			}
		}
		fmt.Printf("deleted %d cached transcripts of '%s - %s'\n", len(matches), args[0], args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheDeleteCmd)

	cacheListCmd.Flags().StringVar(&cacheSortBy, "sort", "date", "sort by: date, artist, title")

	cacheClearCmd.Flags().BoolVar(&cacheConfirm, "confirm", false, "skip confirmation prompt")
}

func cacheFromFlags(cmd *cobra.Command) (*cache.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return requireCache(cfg)
}

// findCachedSong returns every entry of artist - title. When there is none the
// error lists similar cached songs.
func findCachedSong(store *cache.Store, artist string, title string) ([]*cache.Entry, error) {
	entries, err := store.List()
	if err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}

	var matches []*cache.Entry
	for _, entry := range entries {
		if strings.EqualFold(entry.Artist, artist) && strings.EqualFold(entry.Title, title) {
			matches = append(matches, entry)
		}
	}
	if len(matches) > 0 {
		return matches, nil
	}

	suggestions := similarEntries(entries, artist, title)
	if len(suggestions) == 0 {
		return nil, errors.New("song not found in cache")
	}

	fmt.Fprintf(os.Stderr, "song not found in cache\n\n")
	fmt.Fprintf(os.Stderr, "did you mean one of these?\n")
	for _, s := range suggestions {
		fmt.Fprintf(os.Stderr, "  %s - %s\n", s.Artist, s.Title)
	}
	return nil, fmt.Errorf("%d similar songs cached", len(suggestions))
}

// similarEntries matches loosely: the exact artist with an overlapping title
// first, then overlapping artist and title.
func similarEntries(entries []*cache.Entry, artist string, title string) []*cache.Entry {
	artistLower := strings.ToLower(artist)
	titleLower := strings.ToLower(title)
	overlaps := func(a, b string) bool {
		return a != "" && b != "" && (strings.Contains(a, b) || strings.Contains(b, a))
	}

	var matches []*cache.Entry
	for _, entry := range entries {
		if strings.ToLower(entry.Artist) == artistLower && overlaps(strings.ToLower(entry.Title), titleLower) {
			matches = append(matches, entry)
		}
	}
	if len(matches) == 0 {
		for _, entry := range entries {
			if overlaps(strings.ToLower(entry.Artist), artistLower) && overlaps(strings.ToLower(entry.Title), titleLower) {
				matches = append(matches, entry)
			}
		}
	}

	if len(matches) > maxSuggestions {
		matches = matches[:maxSuggestions]
	}
	return matches
}

func sortCacheEntries(entries []*cache.Entry, sortBy string) error {
	switch sortBy {
	case "artist":
		sort.SliceStable(entries, func(i, j int) bool {
			return strings.ToLower(entries[i].Artist) < strings.ToLower(entries[j].Artist)
		})
	case "title":
		sort.SliceStable(entries, func(i, j int) bool {
			return strings.ToLower(entries[i].Title) < strings.ToLower(entries[j].Title)
		})
	case "date", "":
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].CreatedAt > entries[j].CreatedAt
		})
	default:
		return fmt.Errorf("unknown sort %q (use date, artist or title)", sortBy)
	}
	return nil
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return strconv.FormatInt(bytes, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func syncLabel(synced bool) string {
	if synced {
		return "synced"
	}
	return "plain"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
