package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/melodyfetch/internal/formatter"
	"github.com/desertthunder/melodyfetch/internal/models"
	"github.com/desertthunder/melodyfetch/internal/shared"
	"github.com/desertthunder/melodyfetch/internal/ui"
	"github.com/urfave/cli/v3"
)

// Search resolves a keyword and prints the results in the requested format.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	keyword := cmd.StringArg("keyword")
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	outputPath := cmd.String("output")

	resolver, err := r.searcher()
	if err != nil {
		return err
	}

	r.logger.Debug("search requested", "keyword", keyword, "format", format)

	if format == formatter.FormatText && outputPath == "" {
		renderer := ui.NewPlainRenderer(r.output, 0)
		if _, err := ui.Search(ctx, resolver, keyword, renderer, ui.LogNotifier{Logger: r.logger}); err != nil {
			return err
		}
		return renderer.Err()
	}

	if _, err := models.NewSearchQuery(keyword); err != nil {
		return err
	}
	tracks, err := resolver.Resolve(ctx, keyword)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if outputPath != "" {
		path, err := formatter.WriteExport(format, keyword, tracks, outputPath)
		if err != nil {
			return err
		}
		r.logger.Info("results written", "path", path, "count", len(tracks))
		return r.writePlain("Wrote %d results to %s\n", len(tracks), path)
	}

	data, err := formatter.Render(format, keyword, tracks)
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", format, err)
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// Detail prints one track, as aligned fields or JSON.
func (r *Runner) Detail(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}

	resolver, err := r.searcher()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		track, err := resolver.FetchTrackDetail(ctx, id)
		if err != nil {
			return err
		}
		return r.writeJSON(track, cmd.Bool("pretty"))
	}

	renderer := ui.NewPlainRenderer(r.output, 0)
	if _, err := ui.ShowDetail(ctx, resolver, id, renderer, ui.LogNotifier{Logger: r.logger}); err != nil {
		return err
	}
	return renderer.Err()
}

// Open launches the browser on a track's page.
func (r *Runner) Open(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}
	if !models.IsTrackID(id) {
		return &models.ValidationError{Field: "id", Reason: fmt.Sprintf("track id %q is not numeric", id)}
	}

	url := r.config.Links.SongPageURL(id)
	r.logger.Debug("opening song page", "url", url)
	if err := r.openURL(url); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return r.writePlain("Opened %s\n", url)
}
