package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	instance *Config
	once     sync.Once
)

type ServerConfig struct {
	Addr            string `yaml:"addr"`
	DefaultLocation string `yaml:"default_location"`
}

type WeatherConfig struct {
	GeocodingURL string        `yaml:"geocoding_url"`
	DataURL      string        `yaml:"data_url"`
	Timeout      time.Duration `yaml:"timeout"`
}

type RateLimitConfig struct {
	MaxRequests    int           `yaml:"max_requests"`
	Window         time.Duration `yaml:"window"`
	PrivilegedUser string        `yaml:"privileged_user"`
}

type CommentaryConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Model       string   `yaml:"model"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`
}

type RetentionConfig struct {
	APIRequestTTL time.Duration `yaml:"api_request_ttl"`
	Interval      time.Duration `yaml:"interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the service configuration read from config.yaml
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Weather    WeatherConfig    `yaml:"weather"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Commentary CommentaryConfig `yaml:"commentary"`
	Retention  RetentionConfig  `yaml:"retention"`
	Logging    LoggingConfig    `yaml:"logging"`
}

func Load(configPath string) (*Config, error) {
	var err error
	once.Do(func() {
		instance = &Config{}

		data, readErr := os.ReadFile(configPath)
		if readErr != nil {
			err = fmt.Errorf("failed to read config file %s: %w", configPath, readErr)
			return
		}

		if parseErr := yaml.Unmarshal(data, instance); parseErr != nil {
			err = fmt.Errorf("failed to parse config: %w", parseErr)
			return
		}

		instance.applyDefaults()

		if validateErr := instance.validate(); validateErr != nil {
			err = validateErr
			return
		}
	})

	return instance, err
}

func Get() *Config {
	if instance == nil {
		panic("config not loaded - call config.Load() first")
	}
	return instance
}

// Default returns a config with every default applied, for tools that run without a file.
func Default() *Config {
	c := &Config{}
	c.Commentary.Enabled = true
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.Server.DefaultLocation == "" {
		c.Server.DefaultLocation = "Bydgoszcz"
	}
	if c.Weather.GeocodingURL == "" {
		c.Weather.GeocodingURL = "https://api.openweathermap.org/geo/1.0"
	}
	if c.Weather.DataURL == "" {
		c.Weather.DataURL = "https://api.openweathermap.org/data"
	}
	if c.Weather.Timeout == 0 {
		c.Weather.Timeout = 10 * time.Second
	}
	if c.RateLimit.MaxRequests == 0 {
		c.RateLimit.MaxRequests = 10
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = 24 * time.Hour
	}
	if c.RateLimit.PrivilegedUser == "" {
		c.RateLimit.PrivilegedUser = "Admin"
	}
	if c.Commentary.Model == "" {
		c.Commentary.Model = "claude-3-5-haiku-latest"
	}
	if c.Commentary.MaxTokens == 0 {
		c.Commentary.MaxTokens = 300
	}
	// absent, not zero: temperature 0 is deterministic output
	if c.Commentary.Temperature == nil {
		t := 0.7
		c.Commentary.Temperature = &t
	}
	if c.Retention.APIRequestTTL == 0 {
		c.Retention.APIRequestTTL = 7 * 24 * time.Hour
	}
	if c.Retention.Interval == 0 {
		c.Retention.Interval = time.Hour
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

func (c *Config) validate() error {
	if c.RateLimit.MaxRequests < 0 {
		return fmt.Errorf("rate_limit.max_requests must be positive")
	}
	if c.RateLimit.Window < 0 {
		return fmt.Errorf("rate_limit.window must be positive")
	}
	if c.Commentary.MaxTokens < 0 {
		return fmt.Errorf("commentary.max_tokens must be positive")
	}
	if t := c.Commentary.Temperature; t != nil && (*t < 0 || *t > 1) {
		return fmt.Errorf("commentary.temperature must be between 0 and 1")
	}
	if c.Weather.Timeout < 0 {
		return fmt.Errorf("weather.timeout cannot be negative")
	}
	if c.Retention.APIRequestTTL < 0 || c.Retention.Interval < 0 {
		return fmt.Errorf("retention durations cannot be negative")
	}
	return nil
}
