package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/desertthunder/melodyfetch/internal/playback"
	"github.com/desertthunder/melodyfetch/internal/shared"
	"github.com/desertthunder/melodyfetch/internal/ui"
	"github.com/urfave/cli/v3"
)

const playStatusInterval = 200 * time.Millisecond

// Play looks up a track and previews it with a redrawn progress line until it ends or is interrupted.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}

	resolver, err := r.searcher()
	if err != nil {
		return err
	}

	renderer := ui.NewPlainRenderer(r.output, 0)
	notifier := ui.LogNotifier{Logger: r.logger}

	track, err := ui.ShowDetail(ctx, resolver, id, renderer, notifier)
	if err != nil {
		return err
	}

	ctrl, err := r.newController(renderer, notifier)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer ctrl.Teardown()

	if err := ctrl.Play(ctx, track); err != nil {
		return err
	}
	return r.waitForPlayback(ctx, ctrl, renderer)
}

// waitForPlayback blocks until the session ends, fails, or ctx is cancelled.
func (r *Runner) waitForPlayback(ctx context.Context, ctrl *playback.Controller, renderer *ui.PlainRenderer) error {
	ticker := time.NewTicker(playStatusInterval)
	defer ticker.Stop()
	defer renderer.Finish()

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("playback interrupted")
			return nil
		case <-ticker.C:
			snap := ctrl.Snapshot()
			switch {
			case !snap.Active():
				return fmt.Errorf("%w: playback stopped", shared.ErrPlaybackEngine)
			case snap.State == playback.StateEnded:
				return nil
			}
		}
	}
}
