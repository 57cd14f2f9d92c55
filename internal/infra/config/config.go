// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Player    PlayerConfig          `yaml:"player"`
	Admission map[string]RuleConfig `yaml:"admission"`
	Seed      SeedConfig            `yaml:"seed"`
	Spotify   SpotifyConfig         `yaml:"spotify"`
	Store     StoreConfig           `yaml:"store"`
	Log       LogConfig             `yaml:"log"`
}

// PlayerConfig represents playback engine configuration.
type PlayerConfig struct {
	Algorithm             string `yaml:"algorithm" default:"no_repeat"`
	PollIntervalMs        int    `yaml:"poll_interval_ms" default:"1000" validate:"gte=200,lte=30000"`
	SuppressionWindowMs   int    `yaml:"suppression_window_ms" default:"10000" validate:"gte=0,lte=60000"`
	AutosaveDebounceMs    int    `yaml:"autosave_debounce_ms" default:"3000" validate:"gte=0,lte=60000"`
	DriftProbeIntervalSec int    `yaml:"drift_probe_interval_sec" default:"30" validate:"gte=0,lte=3600"`
}

// PollInterval returns the transport polling interval.
func (p PlayerConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalMs) * time.Millisecond
}

// SuppressionWindow returns the observer suppression window.
func (p PlayerConfig) SuppressionWindow() time.Duration {
	return time.Duration(p.SuppressionWindowMs) * time.Millisecond
}

// AutosaveDebounce returns the snapshot autosave debounce interval.
func (p PlayerConfig) AutosaveDebounce() time.Duration {
	return time.Duration(p.AutosaveDebounceMs) * time.Millisecond
}

// DriftProbeInterval returns the queue drift probe interval.
// Zero disables the probe.
func (p PlayerConfig) DriftProbeInterval() time.Duration {
	return time.Duration(p.DriftProbeIntervalSec) * time.Second
}

// RuleConfig represents an admission rule's configuration.
type RuleConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// SeedConfig represents seed provider configuration.
type SeedConfig struct {
	CandidateCount int              `yaml:"candidate_count" default:"10" validate:"gte=1"`
	Providers      []ProviderConfig `yaml:"providers"`
}

// ProviderConfig represents a single seed provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required"`
	DisplayName string         `yaml:"display_name" validate:"required"`
	Settings    map[string]any `yaml:"settings" validate:"required"`
}

// SpotifyConfig represents Spotify API configuration.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id" validate:"required"`
	ClientSecret string `yaml:"client_secret" validate:"required"`
	RefreshToken string `yaml:"refresh_token" validate:"required"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
}

// StoreConfig represents session snapshot persistence configuration.
type StoreConfig struct {
	// Path overrides the XDG data file location. Empty means the default.
	Path               string `yaml:"path"`
	SnapshotMaxAgeDays int    `yaml:"snapshot_max_age_days" default:"7" validate:"gte=1,lte=90"`
}

// SnapshotMaxAge returns the oldest a snapshot may be and still be restored.
func (s StoreConfig) SnapshotMaxAge() time.Duration {
	return time.Duration(s.SnapshotMaxAgeDays) * 24 * time.Hour
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Output string `yaml:"output" default:"stdout"`
	Level  string `yaml:"level" default:"info"`
	File   string `yaml:"file"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		for i := range c.Seed.Providers {
			if c.Seed.Providers[i].Type == "lastfm" {
				if c.Seed.Providers[i].Settings == nil {
					c.Seed.Providers[i].Settings = make(map[string]any)
				}
				c.Seed.Providers[i].Settings["api_key"] = v
				break
			}
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// IsRuleEnabled checks if an admission rule is enabled.
func (c *Config) IsRuleEnabled(ruleName string) bool {
	if r, ok := c.Admission[ruleName]; ok {
		return r.Enabled
	}
	return false
}

// RuleSettings returns the settings for an admission rule.
func (c *Config) RuleSettings(ruleName string) map[string]any {
	if r, ok := c.Admission[ruleName]; ok {
		return r.Settings
	}
	return nil
}
