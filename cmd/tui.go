package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/melodyfetch/internal/shared"
	"github.com/desertthunder/melodyfetch/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for searching and previewing songs.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Log.File, r.config.Log)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, shared.ParseLogLevel(r.config.Log.Level))
	r.SetLogger(fileLogger)

	resolver, err := r.searcher()
	if err != nil {
		return err
	}

	bridge := ui.NewBridge(ui.DefaultBridgeBuffer)
	ctrl, err := r.newController(bridge, bridge)
	if err != nil {
		return err
	}
	defer ctrl.Teardown()

	model := ui.NewModel(ctx, ui.ModelOpts{
		Searcher:    resolver,
		Player:      ctrl,
		Downloader:  r.trackDownloader(),
		Bridge:      bridge,
		OpenURL:     r.openURL,
		Links:       r.config.Links,
		DownloadDir: r.config.Download.Dir,
		Logger:      fileLogger,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
