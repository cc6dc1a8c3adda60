// Package config provides configuration loading and validation for the autopilot.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the autopilot configuration that can be loaded from a JSON or YAML file.
// All fields are optional; missing values use defaults, environment variables or CLI flags.
type Config struct {
	// Storage
	DatabaseURL string `json:"database_url,omitempty" yaml:"database_url,omitempty"` // PostgreSQL connection URL
	RedisURL    string `json:"redis_url,omitempty" yaml:"redis_url,omitempty"`       // Optional; enables the Redis run lock

	// Server
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
	LogLevel   string `json:"log_level,omitempty" yaml:"log_level,omitempty"` // debug, info, warn, error
	Timezone   string `json:"timezone,omitempty" yaml:"timezone,omitempty"`   // IANA zone that defines "today"

	// Collaborators
	APIKey                string `json:"api_key,omitempty" yaml:"api_key,omitempty"` // Gemini API key
	GoogleCredentialsFile string `json:"google_credentials_file,omitempty" yaml:"google_credentials_file,omitempty"`
	PublishWebhookURL     string `json:"publish_webhook_url,omitempty" yaml:"publish_webhook_url,omitempty"`
	PublishWebhookToken   string `json:"publish_webhook_token,omitempty" yaml:"publish_webhook_token,omitempty"`
	ThumbnailDir          string `json:"thumbnail_dir,omitempty" yaml:"thumbnail_dir,omitempty"`           // Where rendered thumbnails are written
	ThumbnailBaseURL      string `json:"thumbnail_base_url,omitempty" yaml:"thumbnail_base_url,omitempty"` // Public prefix thumbnails are served from
	UseBrowser            bool   `json:"use_browser,omitempty" yaml:"use_browser,omitempty"`               // Headless browser fallback for live checks

	// Pipeline
	LookbackDays      int  `json:"lookback_days,omitempty" yaml:"lookback_days,omitempty"`           // Search Console window
	RowLimit          int  `json:"row_limit,omitempty" yaml:"row_limit,omitempty"`                   // Search Console rows per refresh
	LockTTLMinutes    int  `json:"lock_ttl_minutes,omitempty" yaml:"lock_ttl_minutes,omitempty"`     // Abandoned run locks expire after this
	SweepConcurrency  int  `json:"sweep_concurrency,omitempty" yaml:"sweep_concurrency,omitempty"`   // Sites processed in parallel by a sweep
	GenerateThumbnail bool `json:"generate_thumbnail,omitempty" yaml:"generate_thumbnail,omitempty"` // Render a thumbnail on publish
	SubmitIndexing    bool `json:"submit_indexing,omitempty" yaml:"submit_indexing,omitempty"`       // Notify the Indexing API on publish
	VerifyLive        bool `json:"verify_live,omitempty" yaml:"verify_live,omitempty"`               // Fetch the published URL after publish
}

// Defaults returns the built-in configuration values.
func Defaults() Config {
	return Config{
		ListenAddr:       ":8080",
		LogLevel:         "info",
		ThumbnailDir:     "thumbnails",
		Timezone:         "UTC",
		LookbackDays:     28,
		RowLimit:         1000,
		LockTTLMinutes:   60,
		SweepConcurrency: 4,
	}
}

// LoadConfig loads configuration from a JSON or YAML file, chosen by extension.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return &cfg, nil
}

// ApplyEnv overlays values from environment variables that are set.
func (c *Config) ApplyEnv() {
	overlay := map[string]*string{
		"DATABASE_URL":                   &c.DatabaseURL,
		"REDIS_URL":                      &c.RedisURL,
		"GEMINI_API_KEY":                 &c.APIKey,
		"AUTOPILOT_TIMEZONE":             &c.Timezone,
		"PUBLISH_WEBHOOK_URL":            &c.PublishWebhookURL,
		"PUBLISH_WEBHOOK_TOKEN":          &c.PublishWebhookToken,
		"GOOGLE_APPLICATION_CREDENTIALS": &c.GoogleCredentialsFile,
		"LOG_LEVEL":                      &c.LogLevel,
		"LISTEN_ADDR":                    &c.ListenAddr,
		"THUMBNAIL_DIR":                  &c.ThumbnailDir,
		"THUMBNAIL_BASE_URL":             &c.ThumbnailBaseURL,
	}
	for key, field := range overlay {
		if v := os.Getenv(key); v != "" {
			*field = v
		}
	}
}

// Validate checks that the configuration has valid values.
// Note: required collaborators are checked by the commands that need them.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config error: unknown log_level %q", c.LogLevel)
	}

	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("config error: invalid timezone %q: %w", c.Timezone, err)
		}
	}

	if c.LookbackDays < 0 {
		return fmt.Errorf("config error: 'lookback_days' must be non-negative")
	}
	if c.RowLimit < 0 || c.RowLimit > 25000 {
		return fmt.Errorf("config error: 'row_limit' must be between 0 and 25000")
	}
	if c.LockTTLMinutes < 0 {
		return fmt.Errorf("config error: 'lock_ttl_minutes' must be non-negative")
	}
	if c.SweepConcurrency < 0 {
		return fmt.Errorf("config error: 'sweep_concurrency' must be non-negative")
	}

	if c.GoogleCredentialsFile != "" {
		if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
			return fmt.Errorf("config error: credentials file not found: %s", c.GoogleCredentialsFile)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	for _, f := range []struct{ dst, src *string }{
		{&result.DatabaseURL, &defaults.DatabaseURL},
		{&result.RedisURL, &defaults.RedisURL},
		{&result.ListenAddr, &defaults.ListenAddr},
		{&result.LogLevel, &defaults.LogLevel},
		{&result.Timezone, &defaults.Timezone},
		{&result.APIKey, &defaults.APIKey},
		{&result.GoogleCredentialsFile, &defaults.GoogleCredentialsFile},
		{&result.PublishWebhookURL, &defaults.PublishWebhookURL},
		{&result.PublishWebhookToken, &defaults.PublishWebhookToken},
		{&result.ThumbnailDir, &defaults.ThumbnailDir},
		{&result.ThumbnailBaseURL, &defaults.ThumbnailBaseURL},
	} {
		if *f.dst == "" {
			*f.dst = *f.src
		}
	}

	// Int fields: use default if zero
	if result.LookbackDays == 0 {
		result.LookbackDays = defaults.LookbackDays
	}
	if result.RowLimit == 0 {
		result.RowLimit = defaults.RowLimit
	}
	if result.LockTTLMinutes == 0 {
		result.LockTTLMinutes = defaults.LockTTLMinutes
	}
	if result.SweepConcurrency == 0 {
		result.SweepConcurrency = defaults.SweepConcurrency
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// Location returns the time zone that defines the calendar day.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LockTTL returns how long an ad hoc run lock is honoured.
func (c *Config) LockTTL() time.Duration {
	if c.LockTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.LockTTLMinutes) * time.Minute
}
