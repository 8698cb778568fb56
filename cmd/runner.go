package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodyfetch/internal/playback"
	"github.com/desertthunder/melodyfetch/internal/services"
	"github.com/desertthunder/melodyfetch/internal/shared"
	"github.com/desertthunder/melodyfetch/internal/tasks"
	"github.com/desertthunder/melodyfetch/internal/ui"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The resolver, downloader and audio engine are built from config on first use, so commands that
// swap the logger (the TUI) do so before any component captures it.
type Runner struct {
	config     *shared.Config
	resolver   ui.Searcher
	downloader ui.Downloader
	player     playback.Engine
	openURL    func(string) error
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	Resolver   ui.Searcher
	Downloader ui.Downloader
	Player     playback.Engine
	OpenURL    func(string) error
	HTTPClient *http.Client // Used for downloads and cover images
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.OpenURL == nil {
		opts.OpenURL = shared.OpenBrowser
	}

	return &Runner{
		config:     opts.Config,
		resolver:   opts.Resolver,
		downloader: opts.Downloader,
		player:     opts.Player,
		openURL:    opts.OpenURL,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger replaces the logger used by the runner and by components built after the call.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		searchCommand, detailCommand, playCommand, downloadCommand, openCommand, tuiCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// searcher returns the fetch resolver, building it from config on first use.
func (r *Runner) searcher() (ui.Searcher, error) {
	if r.resolver != nil {
		return r.resolver, nil
	}

	cfg := r.config
	var headers *shared.RequestHeaders
	if cfg.API.HeadersPath != "" {
		h, err := shared.LoadHeaders(cfg.API.HeadersPath)
		if err != nil {
			return nil, err
		}
		headers = h
	}

	provider := services.NewVkeysClient(services.VkeysOpts{
		BaseURL:           cfg.API.BaseURL,
		HTTPClient:        &http.Client{Timeout: cfg.API.Timeout()},
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		UserAgent:         cfg.API.UserAgent,
		AcceptLanguage:    cfg.API.AcceptLanguage,
		Headers:           headers,
		UnavailableCode:   cfg.API.UnavailableCode,
		Logger:            r.logger,
	})

	resolver, err := services.NewResolver(services.ResolverOpts{
		Provider:     provider,
		SearchPolicy: services.PolicyFromConfig(cfg.Retry.Search),
		DetailPolicy: services.PolicyFromConfig(cfg.Retry.Detail),
		PageSize:     cfg.API.PageSize,
		Logger:       r.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver: %w", err)
	}

	r.resolver = resolver
	return resolver, nil
}

func (r *Runner) trackDownloader() ui.Downloader {
	if r.downloader == nil {
		r.downloader = services.NewDownloader(r.httpClient, r.config.API.UserAgent, r.logger)
	}
	return r.downloader
}

// tasksEngine wires the resolver and downloader into the bulk operation engine.
func (r *Runner) tasksEngine() (*tasks.Engine, error) {
	resolver, err := r.searcher()
	if err != nil {
		return nil, err
	}
	return tasks.NewEngine(resolver, r.trackDownloader(), r.httpClient, r.logger), nil
}

// newController creates a playback controller drawing into display and reporting through notifier.
func (r *Runner) newController(display playback.Display, notifier shared.Notifier) (*playback.Controller, error) {
	if r.player == nil {
		r.player = &playback.MPVEngine{
			Path:      r.config.Playback.Player,
			Args:      r.config.Playback.PlayerArgs,
			SocketDir: r.config.Playback.SocketDir,
			Logger:    r.logger,
		}
	}
	return playback.NewController(playback.ControllerOpts{
		Engine:   r.player,
		Display:  display,
		Notifier: notifier,
		Interval: r.config.Playback.PollInterval(),
		Logger:   r.logger,
	})
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
