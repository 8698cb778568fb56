// submodule cmd contains command definitions
package main

import (
	"fmt"
	"strings"

	"github.com/desertthunder/melodyfetch/internal/formatter"
	"github.com/desertthunder/melodyfetch/internal/tasks"
	"github.com/urfave/cli/v3"
)

func formatNames() string {
	names := make([]string, len(formatter.Formats))
	for i, f := range formatter.Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// searchCommand searches by keyword, or looks up a bare numeric track id
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "search",
		Aliases: []string{"s"},
		Usage:   "Search songs by title or artist (a numeric keyword is looked up as a track id)",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "keyword",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   fmt.Sprintf("Output format (%s)", formatNames()),
				Value:   string(formatter.FormatText),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write results to a file instead of stdout",
			},
		},
		Action: r.Search,
	}
}

// detailCommand shows one track's full record
func detailCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "detail",
		Usage: "Show a track's details, including its stream URL",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "id",
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Detail,
	}
}

// playCommand previews a track in the terminal
func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "Preview a track with a live progress line (ctrl+c to stop)",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "id",
			},
		},
		Action: r.Play,
	}
}

// downloadCommand saves one or more tracks to disk
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "download",
		Aliases:   []string{"dl"},
		Usage:     "Download tracks by id and write a manifest",
		ArgsUsage: "<id> [id...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Output directory (defaults to download.dir)",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   fmt.Sprintf("Concurrent downloads (max %d, defaults to download.workers)", tasks.MaxWorkers),
			},
			&cli.FloatFlag{
				Name:  "rate-limit",
				Usage: "Detail lookups per second (defaults to download.rate_limit)",
			},
			&cli.BoolFlag{
				Name:  "cover",
				Usage: "Also save each track's cover image",
			},
		},
		Action: r.Download,
	}
}

// openCommand opens the track page in the browser
func openCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "open",
		Usage: "Open a track's page in the default browser",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "id",
			},
		},
		Action: r.Open,
	}
}

// setupCommand writes configuration and request header files
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create configuration files",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write the default config.toml",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "headers",
				Usage: "Save browser request headers from a 'Copy as cURL' command",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command string",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to a file containing the cURL command",
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Headers file path (default: ~/.melodyfetch/headers.toml)",
					},
				},
				Action: r.SetupHeaders,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive search and preview.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for searching and previewing songs",
		Action:  r.TUI,
	}
}
