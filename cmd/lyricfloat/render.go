package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"karolbroda.com/lyricfloat/internal/logging"
	"karolbroda.com/lyricfloat/internal/lyrics"
	"karolbroda.com/lyricfloat/internal/observe"
	"karolbroda.com/lyricfloat/internal/palette"
	"karolbroda.com/lyricfloat/internal/render"
	"karolbroda.com/lyricfloat/internal/session"
	"karolbroda.com/lyricfloat/internal/surface/raster"
	"karolbroda.com/lyricfloat/internal/timeline"
	"karolbroda.com/lyricfloat/internal/track"
)

var (
	// flags for render
	renderOut      string
	renderWidth    int
	renderHeight   int
	renderTitle    string
	renderArtist   string
	renderAt       float64
	renderDuration float64
	renderArtwork  string
	renderNoEnrich bool
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "paint one lyrics frame to a png",
	Long: `resolve the playing track and paint the current frame to a png, colored and
backed by the cover art. --title and --artist render a track without a host,
at the position given by --at.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if renderOut == "" {
			return errors.New("--out is required")
		}
		if (renderTitle == "") != (renderArtist == "") {
			return errors.New("--title and --artist go together")
		}

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

		ctx := cmd.Context()
		var (
			id    track.Identity
			state timeline.State
		)
		if renderTitle != "" {
			id = track.Identity{Title: renderTitle, Artist: renderArtist, DurationSecs: renderDuration, ArtworkURL: renderArtwork}
			state = timeline.State{CurrentTime: renderAt, Duration: renderDuration}
		} else {
			opened, err := openHost(cfg, logger)
			if err != nil {
				return err
			}
			defer opened.host.Close()

			id, err = observe.DefaultRetry.Identity(ctx, opened.host)
			if err != nil {
				return fmt.Errorf("no track currently playing: %w", err)
			}
			state = timeline.NewTracker(opened.host, opened.selectors).State()
		}

		s := store.Get()
		res := svc.resolver.Resolve(ctx, id, s)
		lines := res.Lines
		if !renderNoEnrich {
			if lines, err = enrichLines(ctx, svc.translator, lines, s.EnrichLang(), logger); err != nil {
				return err
			}
		}

		var opts []raster.Option
		pal := palette.Default
		if id.ArtworkURL != "" {
			cover, err := palette.Fetch(ctx, svc.client, id.ArtworkURL)
			if err != nil {
				logger.Warn("cover art unavailable", logging.Error(err), "artwork", id.ArtworkURL)
			} else {
				pal = palette.Extract(cover)
				opts = append(opts, raster.WithBackdrop(cover))
			}
		}

		frame := render.Frame{
			Lines:           lines,
			Generation:      1,
			Palette:         pal,
			State:           state,
			OffsetMs:        s.OffsetFor(id.Key()),
			ShowTranslation: s.ShowTranslation,
			Status:          session.StatusFor(lines, res.Synced).String(),
		}

		faces, err := raster.NewFaces()
		if err != nil {
			return err
		}
		canvas, err := raster.Still(frame, renderWidth, renderHeight, faces, opts...)
		if err != nil {
			return fmt.Errorf("render frame: %w", err)
		}

		f, err := os.Create(renderOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", renderOut, err)
		}
		if err := canvas.EncodePNG(f); err != nil {
			f.Close()
			return fmt.Errorf("encode png: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}

		now := render.CurrentTime(state, frame.OffsetMs)
		fmt.Printf("wrote %s (%dx%d)\n", renderOut, renderWidth, renderHeight)
		fmt.Printf("%s at %s: %s\n", id.Key(), timeline.FormatClock(now), describeActive(lines, now))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)

	flags := renderCmd.Flags()
	flags.StringVarP(&renderOut, "out", "o", "", "png file to write")
	flags.IntVar(&renderWidth, "width", 1280, "image width in pixels")
	flags.IntVar(&renderHeight, "height", 720, "image height in pixels")
	flags.StringVar(&renderTitle, "title", "", "render this title instead of asking the host")
	flags.StringVar(&renderArtist, "artist", "", "artist for --title")
	flags.Float64Var(&renderAt, "at", 0, "playback position in seconds for --title")
	flags.Float64Var(&renderDuration, "duration", 0, "track length in seconds for --title")
	flags.StringVar(&renderArtwork, "artwork", "", "cover art url or file:// path for --title")
	flags.BoolVar(&renderNoEnrich, "no-enrich", false, "skip romanization and translation")
}

func describeActive(lines []lyrics.Line, now float64) string {
	if len(lines) == 0 {
		return "no lines"
	}
	i := lyrics.FindActiveIndex(lines, now)
	return fmt.Sprintf("line %d/%d %q", i+1, len(lines), lines[i].Text)
}
