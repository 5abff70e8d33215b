package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"karolbroda.com/lyricfloat/internal/app"
	"karolbroda.com/lyricfloat/internal/ipc"
	"karolbroda.com/lyricfloat/internal/logging"
	"karolbroda.com/lyricfloat/internal/observe"
	"karolbroda.com/lyricfloat/internal/settings"
	"karolbroda.com/lyricfloat/internal/surface/term"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "start the interactive lyrics viewer",
	Long:  `starts the terminal lyrics viewer and the control socket used by 'lyricfloat ctl'.`,
	RunE:  runViewer,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runViewer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, true)
	if err != nil {
		return err
	}

	if pid, ok := runningViewer(cfg.Paths.Socket); ok {
		return fmt.Errorf("a viewer is already running (pid %d)", pid)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGHUP)
	defer stop()

	opened, err := openHost(cfg, logger)
	if err != nil {
		return err
	}
	defer opened.host.Close()

	svc, err := newServices(cfg, logger)
	if err != nil {
		return err
	}
	store, err := openSettings(cfg, logger)
	if err != nil {
		return err
	}

	controller, err := app.New(app.Config{
		Host:       opened.host,
		Selectors:  opened.selectors,
		Resolver:   svc.resolver,
		Settings:   store,
		Translator: svc.translator,
		HTTPClient: svc.client,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer controller.Close()

	server, err := ipc.NewServer(ctx, cfg.Paths.Socket, controller, logger)
	if err != nil {
		return err
	}
	server.Serve()
	defer server.Close()

	logger.Info("viewer starting", "host", opened.name, "socket", cfg.Paths.Socket)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return controller.Run(gctx, settings.DefaultWatchInterval)
	})

	g.Go(func() error {
		id, err := controller.Start(gctx, observe.DefaultRetry)
		if err != nil {
			// the frame loop keeps polling, so a player started later is picked up
			if !errors.Is(err, context.Canceled) {
				logger.Warn("no track at startup", logging.Error(err))
			}
			return nil
		}
		logger.Info("now playing", "track", id.Key())
		return nil
	})

	model := term.NewModel(term.Config{
		Driver:        controller,
		FrameInterval: cfg.FrameInterval(),
		HideHeader:    cfg.Display.HideHeader,
		Capabilities:  term.DetectCapabilities(os.Getenv),
		Logger:        logger,
	})

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	go func() {
		<-gctx.Done()
		p.Quit()
	}()

	g.Go(func() error {
		defer cancel()
		defer term.Reset(os.Stdout)
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("error running bubble tea: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("viewer stopped")
	return nil
}

// runningViewer reports the pid of a viewer already answering on path.
func runningViewer(path string) (int, bool) {
	client, err := ipc.Dial(path)
	if err != nil {
		return 0, false
	}
	defer client.Close()
	pid, err := client.Ping()
	if err != nil {
		return 0, false
	}
	return pid, true
}
