package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// EnvPrefix is prepended to every environment override, e.g. MELODYFETCH_API_BASE_URL.
const EnvPrefix = "MELODYFETCH_"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API      APIConfig      `toml:"api"`
	Retry    RetryConfig    `toml:"retry"`
	Playback PlaybackConfig `toml:"playback"`
	Download DownloadConfig `toml:"download"`
	Links    LinksConfig    `toml:"links"`
	Log      LogConfig      `toml:"log"`
}

// APIConfig contains settings for the remote music metadata API.
type APIConfig struct {
	BaseURL           string  `toml:"base_url"`
	UserAgent         string  `toml:"user_agent"`
	AcceptLanguage    string  `toml:"accept_language"`
	PageSize          int     `toml:"page_size"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	UnavailableCode   int     `toml:"unavailable_code"`
	HeadersPath       string  `toml:"headers_path"`
}

// Timeout returns the per-request HTTP timeout.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryConfig holds one retry budget per fetch operation.
type RetryConfig struct {
	Search BackoffConfig `toml:"search"`
	Detail BackoffConfig `toml:"detail"`
}

// BackoffConfig describes attempts and the whole-second backoff window between them.
type BackoffConfig struct {
	Attempts          int `toml:"attempts"`
	MinBackoffSeconds int `toml:"min_backoff_seconds"`
	MaxBackoffSeconds int `toml:"max_backoff_seconds"`
}

// PlaybackConfig configures the external audio player.
type PlaybackConfig struct {
	Player         string   `toml:"player"`
	PlayerArgs     []string `toml:"player_args"`
	PollIntervalMS int      `toml:"poll_interval_ms"`
	SocketDir      string   `toml:"socket_dir"`
}

// PollInterval returns the progress polling period.
func (c PlaybackConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// DownloadConfig configures where and how fast tracks are saved.
type DownloadConfig struct {
	Dir       string  `toml:"dir"`
	Workers   int     `toml:"workers"`
	RateLimit float64 `toml:"rate_limit"`
}

// LinksConfig holds external page templates.
type LinksConfig struct {
	SongPage string `toml:"song_page"`
}

// SongPageURL formats the external page for a track id.
func (c LinksConfig) SongPageURL(id string) string {
	return fmt.Sprintf(c.SongPage, url.QueryEscape(id))
}

// LogConfig controls log level and the rotated log file used by the TUI.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	Compress   bool   `toml:"compress"`
}

// LoadConfig reads a TOML configuration file from the specified path and layers it over the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides config values from MELODYFETCH_* environment variables.
//
// Unparseable numeric values are ignored.
func (c *Config) ApplyEnv() {
	c.applyEnv(os.Getenv)
}

func (c *Config) applyEnv(getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := getenv(EnvPrefix + key); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				*dst = i
			}
		}
	}

	str("API_BASE_URL", &c.API.BaseURL)
	str("API_USER_AGENT", &c.API.UserAgent)
	str("API_HEADERS_PATH", &c.API.HeadersPath)
	num("API_PAGE_SIZE", &c.API.PageSize)
	num("API_TIMEOUT_SECONDS", &c.API.TimeoutSeconds)
	if v := getenv(EnvPrefix + "API_REQUESTS_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.API.RequestsPerSecond = f
		}
	}

	num("RETRY_SEARCH_ATTEMPTS", &c.Retry.Search.Attempts)
	num("RETRY_DETAIL_ATTEMPTS", &c.Retry.Detail.Attempts)

	str("PLAYBACK_PLAYER", &c.Playback.Player)
	if v := getenv(EnvPrefix + "PLAYBACK_PLAYER_ARGS"); v != "" {
		c.Playback.PlayerArgs = strings.Fields(v)
	}
	num("PLAYBACK_POLL_INTERVAL_MS", &c.Playback.PollIntervalMS)

	str("DOWNLOAD_DIR", &c.Download.Dir)
	num("DOWNLOAD_WORKERS", &c.Download.Workers)

	str("LINKS_SONG_PAGE", &c.Links.SongPage)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)
}

// Validate checks the configuration for errors, joining every problem found.
func (c *Config) Validate() error {
	var errs []error

	if err := c.API.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("api: %w", err))
	}
	if err := c.Retry.Search.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("retry.search: %w", err))
	}
	if err := c.Retry.Detail.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("retry.detail: %w", err))
	}
	if c.Playback.PollIntervalMS <= 0 {
		errs = append(errs, errors.New("playback: poll_interval_ms must be positive"))
	}
	if c.Download.Workers < 0 {
		errs = append(errs, errors.New("download: workers must be non-negative"))
	}
	if !strings.Contains(c.Links.SongPage, "%s") {
		errs = append(errs, errors.New("links: song_page must contain %s"))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// Validate checks APIConfig for errors.
func (c APIConfig) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base_url %q", c.BaseURL)
	}
	if c.PageSize <= 0 {
		return errors.New("page_size must be positive")
	}
	if c.TimeoutSeconds < 0 {
		return errors.New("timeout_seconds must be non-negative")
	}
	return nil
}

// Validate checks BackoffConfig for errors.
func (c BackoffConfig) Validate() error {
	if c.Attempts < 1 {
		return errors.New("attempts must be at least 1")
	}
	if c.MinBackoffSeconds < 0 || c.MaxBackoffSeconds < c.MinBackoffSeconds {
		return fmt.Errorf("invalid backoff window [%d, %d]", c.MinBackoffSeconds, c.MaxBackoffSeconds)
	}
	return nil
}
