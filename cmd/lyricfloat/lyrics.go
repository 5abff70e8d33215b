package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"karolbroda.com/lyricfloat/internal/enrich"
	"karolbroda.com/lyricfloat/internal/logging"
	"karolbroda.com/lyricfloat/internal/lyrics"
	"karolbroda.com/lyricfloat/internal/track"
)

var (
	// flags for lyrics fetch and show
	lyricsDuration float64
	lyricsSource   string
	lyricsID       string
	lyricsLang     string
	lyricsRomanize bool
)

var lyricsCmd = &cobra.Command{
	Use:   "lyrics",
	Short: "resolve, pre-fetch and preview lyrics",
	Long:  `resolve lyrics the same way the viewer does, pre-fetch them into the cache, or preview them in the terminal.`,
}

var lyricsFetchCmd = &cobra.Command{
	Use:   "fetch <title> <artist>",
	Short: "pre-fetch and cache lyrics",
	Long:  `resolve lyrics for a track and save the transcript to the local cache for instant loading.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg, false)
		if err != nil {
			return err
		}
		svc, err := newServices(cfg, logger)
		if err != nil {
			return err
		}
		store, err := openSettings(cfg, logger)
		if err != nil {
			return err
		}

		t := track.Identity{Title: args[0], Artist: args[1], DurationSecs: lyricsDuration}
		fmt.Printf("fetching: %s\n", t.Key())

		res := svc.resolver.Resolve(cmd.Context(), t, store.Get())
		if text, ok := lyrics.SentinelText(res.Lines); ok {
			return fmt.Errorf("%s", strings.ToLower(text))
		}

		fmt.Printf("resolved from %s: %d lines\n", res.Origin, len(res.Lines))
		if res.Synced {
			fmt.Println("synced lyrics available")
		} else {
			fmt.Println("only plain lyrics available (spread over the track length)")
		}
		if svc.cache == nil {
			fmt.Println("cache is disabled, nothing was saved")
		}
		return nil
	},
}

var lyricsShowCmd = &cobra.Command{
	Use:   "show [<title> <artist>]",
	Short: "preview lyrics in the terminal",
	Long: `print lyrics with their timestamps. either resolve a track by title and artist
or name one catalog entry with --source and --id.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if lyricsID != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg, false)
		if err != nil {
			return err
		}
		svc, err := newServices(cfg, logger)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		var (
			lines  []lyrics.Line
			header string
		)

		if lyricsID != "" {
			src, err := lyrics.ParseSource(lyricsSource)
			if err != nil {
				return err
			}
			raw, err := svc.resolver.Fetch(ctx, src, lyricsID)
			if err != nil {
				return fmt.Errorf("fetch %s %s: %w", src, lyricsID, err)
			}
			if strings.TrimSpace(raw) == "" {
				return errors.New("the catalog returned no lyrics")
			}
			lines = lyrics.Parse(raw, lyricsDuration)
			header = fmt.Sprintf("%s %s", src, lyricsID)
		} else {
			store, err := openSettings(cfg, logger)
			if err != nil {
				return err
			}
			t := track.Identity{Title: args[0], Artist: args[1], DurationSecs: lyricsDuration}
			res := svc.resolver.Resolve(ctx, t, store.Get())
			if text, ok := lyrics.SentinelText(res.Lines); ok {
				return fmt.Errorf("%s", strings.ToLower(text))
			}
			lines = res.Lines
			header = fmt.Sprintf("%s (%s)", t.Key(), res.Origin)
		}

		if lyricsLang != "" || lyricsRomanize {
			lines, err = enrichLines(ctx, svc.translator, lines, lyricsLang, logger)
			if err != nil {
				return err
			}
		}

		fmt.Printf("\n%s\n", header)
		fmt.Println(strings.Repeat("─", 60))
		fmt.Println()
		printLines(lines)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lyricsCmd)

	lyricsCmd.AddCommand(lyricsFetchCmd)
	lyricsCmd.AddCommand(lyricsShowCmd)

	for _, c := range []*cobra.Command{lyricsFetchCmd, lyricsShowCmd} {
		c.Flags().Float64Var(&lyricsDuration, "duration", 0, "track length in seconds")
	}

	lyricsShowCmd.Flags().StringVar(&lyricsSource, "source", "lrclib", "catalog of --id: lrclib or netease")
	lyricsShowCmd.Flags().StringVar(&lyricsID, "id", "", "show one catalog entry instead of resolving")
	lyricsShowCmd.Flags().StringVar(&lyricsLang, "lang", "", "also print a translation into this language")
	lyricsShowCmd.Flags().BoolVar(&lyricsRomanize, "romanize", false, "print romanization of CJK and Hangul lines (implied by --lang)")
}

// enrichLines runs the enrichment scheduler over a private copy of lines and
// waits for it to drain.
func enrichLines(ctx context.Context, translator enrich.Translator, lines []lyrics.Line, lang string, logger *slog.Logger) ([]lyrics.Line, error) {
	out := lyrics.Clone(lines)
	tasks := enrich.Plan("preview", 1, out, lang)
	if len(tasks) == 0 {
		return out, nil
	}

	// the scheduler applies results from its own workers
	results := make(chan enrich.Result, len(tasks))
	sink := enrich.SinkFunc(func(r enrich.Result) bool {
		results <- r
		return true
	})
	scheduler := enrich.New(translator, sink, logging.NewComponentLogger(logger, "enrich"))

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	scheduler.Enqueue(tasks...)
	waitErr := scheduler.WaitIdle(gctx)
	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return nil, err
	}
	if waitErr != nil {
		return nil, waitErr
	}
	close(results)

	for r := range results {
		if r.Index < 0 || r.Index >= len(out) {
			continue
		}
		if r.Romaji != "" {
			out[r.Index].Romaji = r.Romaji
		}
		if r.Translation != "" {
			out[r.Index].Translation = r.Translation
		}
	}
	return out, nil
}

func printLines(lines []lyrics.Line) {
	for _, line := range lines {
		fmt.Printf("[%s] %s\n", formatTimestamp(line.Time), line.Text)
		if line.Romaji != "" {
			fmt.Printf("          %s\n", line.Romaji)
		}
		if line.Translation != "" {
			fmt.Printf("          (%s)\n", line.Translation)
		}
	}
}

func formatTimestamp(seconds float64) string {
	minutes := int(seconds) / 60
	secs := seconds - float64(minutes*60)
	return fmt.Sprintf("%d:%05.2f", minutes, secs)
}
