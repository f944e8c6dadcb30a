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
	Player    PlayerConfig    `yaml:"player"`
	Resolver  ResolverConfig  `yaml:"resolver"`
	Favorites FavoritesConfig `yaml:"favorites"`
	Log       LogConfig       `yaml:"log"`
}

// PlayerConfig represents per-session playback configuration.
type PlayerConfig struct {
	MaxHistory     int     `yaml:"max_history" default:"10" validate:"gte=0,lte=1000"`
	ResolveRetries int     `yaml:"resolve_retries" default:"2" validate:"gte=0,lte=10"`
	RetryDelayMs   int     `yaml:"retry_delay_ms" default:"500" validate:"gte=0,lte=30000"`
	Volume         float64 `yaml:"volume" default:"1.0" validate:"gte=0,lte=2"`
	// Simulated per-track playback length used by the timer output sink.
	TimerTrackSec int `yaml:"timer_track_sec" default:"5" validate:"gte=1,lte=3600"`
}

// RetryDelay returns the resolution retry delay as a duration.
func (c PlayerConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// ResolverConfig represents reference resolution configuration.
type ResolverConfig struct {
	MirrorRoot string         `yaml:"mirror_root" default:"https://yewtu.be/"`
	Sources    []SourceConfig `yaml:"sources" validate:"required,min=1"`
}

// SourceConfig represents a single resolution source.
type SourceConfig struct {
	Type     string         `yaml:"type" validate:"required"`
	Settings map[string]any `yaml:"settings"`
}

// Source returns the configuration of the first source of the given type.
func (c ResolverConfig) Source(sourceType string) (SourceConfig, bool) {
	for _, s := range c.Sources {
		if s.Type == sourceType {
			return s, true
		}
	}
	return SourceConfig{}, false
}

// FavoritesConfig represents the favorites store configuration.
// The store is on unless explicitly disabled.
type FavoritesConfig struct {
	Disabled bool   `yaml:"disabled"`
	Path     string `yaml:"path" default:"favorites.db"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Pretty bool   `yaml:"pretty"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for credentials.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	setting := func(sourceType, key, value string) {
		for i := range c.Resolver.Sources {
			if c.Resolver.Sources[i].Type == sourceType {
				if c.Resolver.Sources[i].Settings == nil {
					c.Resolver.Sources[i].Settings = map[string]any{}
				}
				c.Resolver.Sources[i].Settings[key] = value
				return
			}
		}
	}
	if v := os.Getenv("CATALOG_CLIENT_ID"); v != "" {
		setting("catalog", "client_id", v)
	}
	if v := os.Getenv("CATALOG_CLIENT_SECRET"); v != "" {
		setting("catalog", "client_secret", v)
	}
	if v := os.Getenv("YOUTUBE_PROXY"); v != "" {
		setting("youtube", "proxy", v)
	}
	if v := os.Getenv("FAVORITES_PATH"); v != "" {
		c.Favorites.Path = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	if _, ok := c.Resolver.Source("youtube"); !ok {
		return errors.New("resolver requires a youtube source")
	}
	return nil
}
