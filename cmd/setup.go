package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/melodyfetch/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the default configuration file.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err == nil {
		r.logger.Info("config file already exists", "path", configPath)
		if _, err := shared.LoadConfig(configPath); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
		}
		return r.writePlain("Config already present at %s\n", configPath)
	}

	r.logger.Info("config file not found, creating from template", "path", configPath)
	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", configPath)
	r.writePlain("✓ Config written to %s\n", configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Edit %s to point playback.player at your mpv binary if it is not on PATH\n", configPath)
	r.writePlain("2. Run 'melodyfetch search \"your song\"' to test the API\n")
	return nil
}

// SetupHeaders saves browser request headers from a cURL command.
//
// Accepts a cURL command and writes the headers file referenced by api.headers_path.
func (r *Runner) SetupHeaders(ctx context.Context, cmd *cli.Command) error {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")
	outputPath := cmd.String("output")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}

	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	r.logger.Info("parsing cURL command for request headers")

	var headers *shared.RequestHeaders
	var err error

	if curlFile != "" {
		headers, err = shared.ParseCurlFile(curlFile)
		if err != nil {
			return fmt.Errorf("failed to parse cURL file: %w", err)
		}
		r.logger.Info("parsed cURL from file", "file", curlFile)
	} else {
		headers, err = shared.ParseCurlCommand([]byte(curlCmd))
		if err != nil {
			return fmt.Errorf("failed to parse cURL command: %w", err)
		}
		r.logger.Info("parsed cURL command")
	}

	r.logger.Debug("parsed headers", "keys", strings.Join(headers.Keys(), ","), "cookie", headers.Cookie != "")

	if outputPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		outputPath = filepath.Join(homeDir, ".melodyfetch", "headers.toml")
	}

	if err := headers.Save(outputPath); err != nil {
		return err
	}

	r.logger.Info("headers saved", "path", outputPath)

	r.writePlain("✓ Request headers saved (%d headers)\n", len(headers.Headers))
	r.writePlain("Headers file saved to: %s\n", outputPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Update config.toml with: api.headers_path = \"%s\"\n", outputPath)
	r.writePlain("2. Run 'melodyfetch search \"your song\"' to test the headers\n")

	return nil
}
