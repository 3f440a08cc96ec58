// Package config loads the service configuration: built-in defaults, then an
// optional YAML or JSON file, then INTAKE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "intake"

// FallbackSecret signs session cookies when no secret is configured.
// Anyone who knows it can forge a session; startup logs a warning when it is in use.
const FallbackSecret = "submission-intake-insecure-secret"

const (
	SessionStoreMemory   = "memory"
	SessionStorePostgres = "postgres"
)

type AdminConfig struct {
	Login    string `yaml:"login"`
	Password string `yaml:"password"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type SessionConfig struct {
	Store      string        `yaml:"store"`
	TTL        time.Duration `yaml:"ttl"`
	CookieName string        `yaml:"cookieName" split_words:"true"`
	Secure     bool          `yaml:"secure"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MirrorConfig configures the optional copy of relocated uploads into an
// S3-compatible bucket. The mirror is off while Endpoint is empty.
type MirrorConfig struct {
	Endpoint  string        `yaml:"endpoint"`
	AccessKey string        `yaml:"accessKey" split_words:"true"`
	SecretKey string        `yaml:"secretKey" split_words:"true"`
	Bucket    string        `yaml:"bucket"`
	Prefix    string        `yaml:"prefix"`
	Interval  time.Duration `yaml:"interval"`
}

func (m MirrorConfig) Enabled() bool {
	return m.Endpoint != ""
}

type Config struct {
	Port           int            `yaml:"port"`
	Secret         string         `yaml:"secret"`
	Admin          AdminConfig    `yaml:"admin"`
	Database       DatabaseConfig `yaml:"database"`
	UploadDir      string         `yaml:"uploadDir"      split_words:"true"`
	TempDir        string         `yaml:"tempDir"        split_words:"true"`
	StaticDir      string         `yaml:"staticDir"      split_words:"true"`
	RequireLogin   bool           `yaml:"requireLogin"   split_words:"true"`
	MaxUploadBytes int64          `yaml:"maxUploadBytes" split_words:"true"`
	Session        SessionConfig  `yaml:"session"`
	Log            LogConfig      `yaml:"log"`
	Tracing        TracingConfig  `yaml:"tracing"`
	Mirror         MirrorConfig   `yaml:"mirror"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Port:         3000,
		UploadDir:    "uploads",
		StaticDir:    "public",
		RequireLogin: true,
		Session: SessionConfig{
			Store:      SessionStorePostgres,
			TTL:        24 * time.Hour,
			CookieName: "intake_session",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Mirror: MirrorConfig{
			Prefix:   "uploads",
			Interval: 5 * time.Minute,
		},
	}
}

// candidateFiles are tried in order when no config file is given.
var candidateFiles = []string{"config.yaml", "config.yml", "config.json"}

// Load builds the configuration. An empty path falls back to the first
// candidate file present in the working directory, if any.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, p := range candidateFiles {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// JSON is valid YAML, so config.json files load through the same path.
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}

	if cfg.Secret == "" {
		cfg.Secret = FallbackSecret
	}

	return cfg, nil
}

// Addr is the listen address derived from Port.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// UsesFallbackSecret reports whether sessions are signed with FallbackSecret.
func (c *Config) UsesFallbackSecret() bool {
	return c.Secret == FallbackSecret
}

// ErrInvalid is wrapped by every error returned from Validate.
var ErrInvalid = errors.New("invalid configuration")
