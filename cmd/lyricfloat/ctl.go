package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"karolbroda.com/lyricfloat/internal/control"
	"karolbroda.com/lyricfloat/internal/ipc"
)

var ctlFile string

var ctlCmd = &cobra.Command{
	Use:   "ctl <command> [args...]",
	Short: "control the running viewer",
	Long: `send one command to the running viewer over its control socket.

commands:
  state                     print the viewer state
  translate [on|off]        toggle translations
  lang <code>               set the translation language
  offset <+ms|-ms>          shift the current track's sync offset
  search [title [artist]]   rank catalog hits for the current track
  select <source> <id>      pin a search result as the current track's lyrics
  upload <text...>          pin local text (or use --file)
  clear                     drop the current track's override
  play | next | prev | mute | captions
  seek <fraction>           jump to a fraction of the track
  ping                      check that a viewer is listening`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		client, err := ipc.Dial(cfg.Paths.Socket)
		if err != nil {
			return fmt.Errorf("no viewer listening on %s (start one with 'lyricfloat run'): %w", cfg.Paths.Socket, err)
		}
		defer client.Close()

		if args[0] == "ping" {
			pid, err := client.Ping()
			if err != nil {
				return err
			}
			fmt.Printf("viewer running (pid %d)\n", pid)
			return nil
		}

		command, err := ctlCommand(args)
		if err != nil {
			return err
		}

		reply, err := client.Send(command)
		if err != nil {
			return err
		}
		printReply(command, reply)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ctlCmd)

	// everything after the command name belongs to it, so "offset -100" works
	ctlCmd.Flags().SetInterspersed(false)
	ctlCmd.Flags().StringVar(&ctlFile, "file", "", "read the text for upload from this file")
}

func ctlCommand(args []string) (control.Command, error) {
	if args[0] != "upload" || ctlFile == "" {
		return control.ParseArgs(args)
	}
	if len(args) > 1 {
		return nil, errors.New("upload takes either text or --file, not both")
	}
	data, err := os.ReadFile(ctlFile)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	command := control.UploadLocal{Text: string(data)}
	if err := command.Validate(); err != nil {
		return nil, err
	}
	return command, nil
}

func printReply(command control.Command, reply *control.Reply) {
	if command.Kind() == control.KindSearch {
		if len(reply.Candidates) == 0 {
			fmt.Println("no candidates found")
		} else {
			fmt.Println(renderCandidates(reply.Candidates))
		}
		fmt.Println()
	}

	fmt.Printf("track:       %s\n", orDash(reply.TrackKey))
	fmt.Printf("status:      %s\n", orDash(reply.Status))
	if reply.Origin != "" {
		fmt.Printf("origin:      %s\n", reply.Origin)
	}
	fmt.Printf("offset:      %+dms\n", reply.OffsetMs)
	fmt.Printf("translation: %s (%s)\n", onOff(reply.ShowTranslation), reply.TranslationLang)
}
