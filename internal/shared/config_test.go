package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.API.BaseURL != "https://api.vkeys.cn/v2/music/netease" {
			t.Errorf("unexpected base URL %s", config.API.BaseURL)
		}
		if config.API.PageSize != 10 {
			t.Errorf("expected page size 10, got %d", config.API.PageSize)
		}
		if config.API.UnavailableCode != 503 {
			t.Errorf("expected unavailable code 503, got %d", config.API.UnavailableCode)
		}
		if config.Retry.Search.Attempts != 3 || config.Retry.Search.MinBackoffSeconds != 1 || config.Retry.Search.MaxBackoffSeconds != 5 {
			t.Errorf("unexpected search retry budget %+v", config.Retry.Search)
		}
		if config.Retry.Detail.Attempts != 4 || config.Retry.Detail.MinBackoffSeconds != 1 || config.Retry.Detail.MaxBackoffSeconds != 1 {
			t.Errorf("unexpected detail retry budget %+v", config.Retry.Detail)
		}
		if config.Playback.PollInterval() != 500*time.Millisecond {
			t.Errorf("expected 500ms poll interval, got %v", config.Playback.PollInterval())
		}
		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.API.BaseURL != DefaultConfig().API.BaseURL {
			t.Errorf("created config base URL doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		t.Run("overlays partial file on defaults", func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.toml")
			testConfig := `[api]
page_size = 25

[retry.search]
attempts = 5
min_backoff_seconds = 2
max_backoff_seconds = 3

[playback]
player = "/usr/local/bin/mpv"
player_args = ["--volume=50"]
`
			if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}

			config, err := LoadConfig(configPath)
			if err != nil {
				t.Fatalf("failed to load config: %v", err)
			}

			if config.API.PageSize != 25 {
				t.Errorf("expected page size 25, got %d", config.API.PageSize)
			}
			if config.API.BaseURL != "https://api.vkeys.cn/v2/music/netease" {
				t.Errorf("expected default base URL to survive, got %s", config.API.BaseURL)
			}
			if config.Retry.Search.Attempts != 5 {
				t.Errorf("expected 5 search attempts, got %d", config.Retry.Search.Attempts)
			}
			if config.Retry.Detail.Attempts != 4 {
				t.Errorf("expected default detail attempts, got %d", config.Retry.Detail.Attempts)
			}
			if len(config.Playback.PlayerArgs) != 1 || config.Playback.PlayerArgs[0] != "--volume=50" {
				t.Errorf("unexpected player args %v", config.Playback.PlayerArgs)
			}
		})

		t.Run("missing file", func(t *testing.T) {
			if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
				t.Error("expected error for missing file")
			}
		})

		t.Run("malformed file", func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(configPath, []byte("[api\nbase_url = "), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}
			if _, err := LoadConfig(configPath); err == nil {
				t.Error("expected parse error")
			}
		})
	})

	t.Run("applyEnv", func(t *testing.T) {
		env := map[string]string{
			"MELODYFETCH_API_BASE_URL":            "http://localhost:9999/api",
			"MELODYFETCH_API_PAGE_SIZE":           "20",
			"MELODYFETCH_API_REQUESTS_PER_SECOND": "7.5",
			"MELODYFETCH_RETRY_DETAIL_ATTEMPTS":   "not-a-number",
			"MELODYFETCH_PLAYBACK_PLAYER_ARGS":    "--volume=30 --no-config",
			"MELODYFETCH_LOG_LEVEL":               "debug",
		}
		config := DefaultConfig()
		config.applyEnv(func(k string) string { return env[k] })

		if config.API.BaseURL != "http://localhost:9999/api" {
			t.Errorf("base URL not overridden: %s", config.API.BaseURL)
		}
		if config.API.PageSize != 20 {
			t.Errorf("page size not overridden: %d", config.API.PageSize)
		}
		if config.API.RequestsPerSecond != 7.5 {
			t.Errorf("requests per second not overridden: %v", config.API.RequestsPerSecond)
		}
		if config.Retry.Detail.Attempts != 4 {
			t.Errorf("invalid number should be ignored, got %d", config.Retry.Detail.Attempts)
		}
		if len(config.Playback.PlayerArgs) != 2 {
			t.Errorf("player args not split: %v", config.Playback.PlayerArgs)
		}
		if config.Log.Level != "debug" {
			t.Errorf("log level not overridden: %s", config.Log.Level)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(c *Config)
		}{
			{"bad base URL", func(c *Config) { c.API.BaseURL = "not a url" }},
			{"zero page size", func(c *Config) { c.API.PageSize = 0 }},
			{"zero attempts", func(c *Config) { c.Retry.Search.Attempts = 0 }},
			{"inverted backoff window", func(c *Config) { c.Retry.Detail.MinBackoffSeconds = 3; c.Retry.Detail.MaxBackoffSeconds = 1 }},
			{"zero poll interval", func(c *Config) { c.Playback.PollIntervalMS = 0 }},
			{"song page without placeholder", func(c *Config) { c.Links.SongPage = "https://music.163.com/" }},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				tt.mutate(config)

				err := config.Validate()
				if err == nil {
					t.Fatal("expected validation error")
				}
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})

	t.Run("SongPageURL", func(t *testing.T) {
		links := DefaultConfig().Links
		if got := links.SongPageURL("1901371647"); got != "https://music.163.com/song?id=1901371647" {
			t.Errorf("unexpected song page URL %s", got)
		}
	})
}
