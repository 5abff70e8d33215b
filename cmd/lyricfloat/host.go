package main

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"karolbroda.com/lyricfloat/internal/hostpage/mpris"
	"karolbroda.com/lyricfloat/internal/observe"
	"karolbroda.com/lyricfloat/internal/timeline"
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "now-playing host utilities",
	Long:  `discover mpris players and check what the configured host reports.`,
}

var hostListCmd = &cobra.Command{
	Use:   "list",
	Short: "list available mpris players",
	Long:  `list all mpris-compatible music players currently running on the system.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bus, err := dbus.ConnectSessionBus()
		if err != nil {
			return fmt.Errorf("failed to connect to session bus: %w", err)
		}
		defer bus.Close()

		players, err := mpris.ListPlayers(bus)
		if err != nil {
			return err
		}
		if len(players) == 0 {
			fmt.Println("no mpris players found")
			fmt.Println("\ncheck if your music player is running and supports mpris")
			return nil
		}

		rows := make([][]string, 0, len(players))
		for _, p := range players {
			rows = append(rows, []string{p.Service, orDash(p.Identity)})
		}
		fmt.Println(renderTable([]string{"Service", "Identity"}, rows, nil))
		fmt.Println("\nuse --mpris-service flag to specify which player to use")
		return nil
	},
}

var hostNowCmd = &cobra.Command{
	Use:   "now",
	Short: "show the currently playing track",
	Long:  `read the configured host the way the viewer does and print the track and playback position.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg, false)
		if err != nil {
			return err
		}

		opened, err := openHost(cfg, logger)
		if err != nil {
			return err
		}
		defer opened.host.Close()

		id, err := observe.DefaultRetry.Identity(cmd.Context(), opened.host)
		if err != nil {
			return fmt.Errorf("no track currently playing: %w", err)
		}

		state := timeline.NewTracker(opened.host, opened.selectors).State()

		fmt.Printf("host:     %s\n", opened.name)
		fmt.Printf("title:    %s\n", id.Title)
		fmt.Printf("artist:   %s\n", id.Artist)
		if id.Album != "" {
			fmt.Printf("album:    %s\n", id.Album)
		}
		if id.DurationSecs > 0 {
			fmt.Printf("duration: %s\n", timeline.FormatClock(id.DurationSecs))
		}
		if id.ArtworkURL != "" {
			fmt.Printf("artwork:  %s\n", id.ArtworkURL)
		}
		fmt.Printf("position: %s / %s\n", timeline.FormatClock(state.CurrentTime), timeline.FormatClock(state.Duration))
		if state.Paused {
			fmt.Println("state:    paused")
		} else {
			fmt.Println("state:    playing")
		}
		if state.Muted {
			fmt.Println("muted:    yes")
		}
		fmt.Printf("key:      %s\n", id.Key())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hostCmd)

	hostCmd.AddCommand(hostListCmd)
	hostCmd.AddCommand(hostNowCmd)
}
