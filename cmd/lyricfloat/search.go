package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"karolbroda.com/lyricfloat/internal/lyrics"
	"karolbroda.com/lyricfloat/internal/timeline"
)

var searchDuration float64

var searchCmd = &cobra.Command{
	Use:   "search <title> <artist>",
	Short: "search every lyric catalog and rank the hits",
	Long: `search lrclib and the regional catalog at once and print the candidates ranked
by how well they match. pass a candidate to 'lyricfloat ctl select' to pin it.`,
	Args: cobra.ExactArgs(2),
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

		q := lyrics.Query{Title: args[0], Artist: args[1], DurationSecs: searchDuration}
		candidates := svc.engine.SearchAndScore(cmd.Context(), q)
		if len(candidates) == 0 {
			fmt.Println("no candidates found")
			return nil
		}

		fmt.Println(renderCandidates(candidates))
		fmt.Println("\nuse 'lyricfloat ctl select <source> <id>' to pin one for the playing track")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().Float64Var(&searchDuration, "duration", 0, "track length in seconds, improves ranking")
}

func renderCandidates(candidates []lyrics.Candidate) string {
	rows := make([][]string, 0, len(candidates))
	for i, c := range candidates {
		synced := "-"
		if c.Synced {
			synced = "yes"
		}
		duration := "-"
		if c.DurationSecs > 0 {
			duration = timeline.FormatClock(c.DurationSecs)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(c.Score),
			c.Source.String(),
			c.ID,
			c.Name,
			c.Artist,
			duration,
			synced,
		})
	}
	return renderTable(
		[]string{"#", "Score", "Source", "ID", "Title", "Artist", "Length", "Synced"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}
