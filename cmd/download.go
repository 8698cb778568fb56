package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/melodyfetch/internal/shared"
	"github.com/desertthunder/melodyfetch/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Download resolves and saves tracks by id, then prints a summary.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one track id", shared.ErrMissingArgument)
	}

	engine, err := r.tasksEngine()
	if err != nil {
		return err
	}

	opts := tasks.BulkDownloadOpts{
		OutputDir:  cmd.String("dir"),
		NumWorkers: int(cmd.Int("workers")),
		RateLimit:  cmd.Float("rate-limit"),
		Covers:     cmd.Bool("cover"),
	}
	if opts.OutputDir == "" {
		opts.OutputDir = r.config.Download.Dir
	}
	if opts.NumWorkers == 0 {
		opts.NumWorkers = r.config.Download.Workers
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = r.config.Download.RateLimit
	}

	r.logger.Info("starting download", "tracks", len(ids), "dir", opts.OutputDir, "workers", opts.NumWorkers)
	r.writePlain("Downloading %d tracks to %s\n\n", len(ids), opts.OutputDir)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.ResolveTracks:
				r.writePlain("🔍 %s\n", update.Message)
			case tasks.DownloadTracks:
				r.writePlain("   %s\n", update.Message)
			case tasks.WriteManifest:
				r.writePlain("\n📝 %s\n", update.Message)
			}
		}
	}()

	result, err := engine.BulkDownload(ctx, progressCh, ids, opts)
	close(progressCh)
	<-done

	if result == nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Download Complete!")
	r.writePlain("Directory: %s\n", result.OutputDirectory)
	r.writePlain("Succeeded: %d/%d\n", result.Succeeded, result.Total)
	if result.ManifestPath != "" {
		r.writePlain("Manifest: %s\n", result.ManifestPath)
	}

	if result.Failed > 0 {
		r.writePlain("\nFailed %d tracks:\n", result.Failed)
		for _, res := range result.Results {
			if !res.Success {
				r.writePlain("  - %s: %v\n", res.ID, res.Error)
			}
		}
	}

	return err
}
