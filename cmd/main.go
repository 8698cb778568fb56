package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/melodyfetch/internal/shared"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

const configFile = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to load .env file", "error", err)
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configFile); err == nil {
		loadedConfig, err := shared.LoadConfig(configFile)
		if err != nil {
			logger.Fatalf("failed to load %s: %v", configFile, err)
		}
		config = loadedConfig
	}
	config.ApplyEnv()
	if err := config.Validate(); err != nil {
		logger.Fatalf("configuration error: %v", err)
	}
	shared.SetLogLevel(logger, shared.ParseLogLevel(config.Log.Level))

	runner := NewRunner(RunnerOpts{
		Config: config,
		Logger: logger,
	})

	app := &cli.Command{
		Name:     "melodyfetch",
		Usage:    "Search, preview and download songs from the terminal",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		switch {
		case errors.Is(err, shared.ErrInvalidInput),
			errors.Is(err, shared.ErrMissingArgument),
			errors.Is(err, shared.ErrInvalidArgument),
			errors.Is(err, shared.ErrInvalidFlag):
			runner.logger.Warn(err.Error())
			os.Exit(1)
		default:
			runner.logger.Fatalf("application error: %v", err)
		}
	}
}
