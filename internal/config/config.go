// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvAPIKey overrides api.key when set.
const EnvAPIKey = "TRANSCRIBE_API_KEY"

// DefaultChunkSize is the upload read size (5 MiB).
const DefaultChunkSize = 5242880

type RuntimeConfig struct {
	Dev bool
}

type APIConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Key           string        `yaml:"key"`
	Timeout       time.Duration `yaml:"timeout"`
	ResultField   string        `yaml:"result_field"`   // status field holding the completed payload
	IABCategories bool          `yaml:"iab_categories"` // ask the service for topic labels
	MaxConcurrent int           `yaml:"max_concurrent"` // max in-flight requests, 0 = unlimited
}

type UploadConfig struct {
	ChunkSize int `yaml:"chunk_size"`
}

type PollConfig struct {
	Interval           time.Duration `yaml:"interval"`
	Deadline           time.Duration `yaml:"deadline"`             // 0 = wait forever
	MaxTransientErrors int           `yaml:"max_transient_errors"` // 0 = abort on first transport error
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // retention of terminal job records
}

type WatchConfig struct {
	Interval time.Duration `yaml:"interval"`
	Workers  int           `yaml:"workers"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type AdminConfig struct {
	Port       int           `yaml:"port"`
	APIKey     string        `yaml:"api_key"`
	PollLimit  int           `yaml:"poll_limit"` // manual polls per job per window (redis only)
	PollWindow time.Duration `yaml:"poll_window"`
}

type OutputConfig struct {
	Dir string `yaml:"dir"`
}

type Config struct {
	API    APIConfig    `yaml:"api"`
	Upload UploadConfig `yaml:"upload"`
	Poll   PollConfig   `yaml:"poll"`
	Log    LogConfig    `yaml:"log"`
	Redis  RedisConfig  `yaml:"redis"`
	Watch  WatchConfig  `yaml:"watch"`
	Admin  AdminConfig  `yaml:"admin"`
	Output OutputConfig `yaml:"output"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies defaults and validates the result.
// A missing file is tolerated so the tool can run from environment alone.
func LoadConfig(path string, dev bool) (*Config, error) {
	cfg, err := Read(path, dev)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is LoadConfig without validation, for commands that never call the API.
func Read(path string, dev bool) (*Config, error) {
	// bools cannot be defaulted after parsing, so seed them before
	cfg := Config{API: APIConfig{IABCategories: true}}
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env-only mode
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if k := strings.TrimSpace(os.Getenv(EnvAPIKey)); k != "" {
		cfg.API.Key = k
	}
	cfg.applyDefaults()
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = "https://api.assemblyai.com/v2"
	}
	if c.API.Timeout <= 0 {
		c.API.Timeout = 60 * time.Second
	}
	if c.API.ResultField == "" {
		c.API.ResultField = "iab_categories_result"
	}
	if c.Upload.ChunkSize <= 0 {
		c.Upload.ChunkSize = DefaultChunkSize
	}
	if c.Poll.Interval <= 0 {
		c.Poll.Interval = 30 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	c.Redis.TTL = normalizeTTL(c.Redis.TTL)
	if c.Watch.Interval <= 0 {
		c.Watch.Interval = c.Poll.Interval
	}
	if c.Watch.Workers <= 0 {
		c.Watch.Workers = 4
	}
	if c.Watch.LockTTL <= 0 {
		c.Watch.LockTTL = c.API.Timeout + 10*time.Second
	}
	if c.Admin.Port == 0 {
		c.Admin.Port = 8080
	}
	if c.Admin.PollLimit <= 0 {
		c.Admin.PollLimit = 6
	}
	if c.Admin.PollWindow <= 0 {
		c.Admin.PollWindow = time.Minute
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "."
	}
}

// Validate performs the minimal checks needed before any network call.
func (c *Config) Validate() error {
	if c.API.Key == "" {
		return fmt.Errorf("api.key is required (or set %s)", EnvAPIKey)
	}
	if c.Poll.Deadline < 0 {
		return errors.New("poll.deadline must not be negative")
	}
	if c.Poll.MaxTransientErrors < 0 {
		return errors.New("poll.max_transient_errors must not be negative")
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return 7 * 24 * time.Hour
	}
	return d
}
