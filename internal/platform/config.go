package platform

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigFile is the optional per-root configuration file.
const ConfigFile = "mindful.yaml"

// Config is the runtime configuration of the mindful CLI and services.
// Values come from defaults, then mindful.yaml, then MINDFUL_* environment
// variables (a .env file in the working directory is loaded first).
type Config struct {
	// Storage
	Adapter      string        `yaml:"adapter"`
	Path         string        `yaml:"path"`
	SystemDir    string        `yaml:"system_dir"`
	MaxBytes     int64         `yaml:"max_bytes"`
	ReadOnly     bool          `yaml:"read_only"`
	PollInterval time.Duration `yaml:"poll_interval"`

	// Relay
	AMQPURL      string `yaml:"amqp_url"`
	AMQPExchange string `yaml:"amqp_exchange"`
	Host         string `yaml:"host"`

	// Hosted auth
	AuthURL    string `yaml:"auth_url"`
	AuthAPIKey string `yaml:"auth_api_key"`

	// Assistant
	GenAIAPIKey string `yaml:"genai_api_key"`
	Model       string `yaml:"model"`
	Locale      string `yaml:"locale"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	host, _ := os.Hostname()
	return &Config{
		Adapter:      "fs",
		Path:         ".",
		SystemDir:    ".mindful",
		PollInterval: 250 * time.Millisecond,
		AMQPExchange: "mindful",
		Host:         host,
		Model:        "gemini-2.5-flash",
		Locale:       "en",
	}
}

// LoadConfig builds the configuration for root. A missing mindful.yaml or .env
// is not an error.
func LoadConfig(root string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if root != "" {
		cfg.Path = root
		data, err := os.ReadFile(filepath.Join(root, ConfigFile))
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", ConfigFile, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read %s: %w", ConfigFile, err)
		}
	}

	cfg.Adapter = getEnv("MINDFUL_ADAPTER", cfg.Adapter)
	cfg.Path = getEnv("MINDFUL_PATH", cfg.Path)
	cfg.SystemDir = getEnv("MINDFUL_SYSTEM_DIR", cfg.SystemDir)
	cfg.MaxBytes = getEnvInt64("MINDFUL_MAX_BYTES", cfg.MaxBytes)
	cfg.ReadOnly = getEnvBool("MINDFUL_READ_ONLY", cfg.ReadOnly)
	cfg.PollInterval = getEnvDuration("MINDFUL_POLL_INTERVAL", cfg.PollInterval)

	cfg.AMQPURL = getEnv("MINDFUL_AMQP_URL", cfg.AMQPURL)
	cfg.AMQPExchange = getEnv("MINDFUL_AMQP_EXCHANGE", cfg.AMQPExchange)
	cfg.Host = getEnv("MINDFUL_HOST", cfg.Host)

	cfg.AuthURL = getEnv("MINDFUL_AUTH_URL", cfg.AuthURL)
	cfg.AuthAPIKey = getEnv("MINDFUL_AUTH_API_KEY", cfg.AuthAPIKey)

	cfg.GenAIAPIKey = getEnv("MINDFUL_GENAI_API_KEY", getEnv("GEMINI_API_KEY", cfg.GenAIAPIKey))
	cfg.Model = getEnv("MINDFUL_MODEL", cfg.Model)
	cfg.Locale = getEnv("MINDFUL_LOCALE", cfg.Locale)

	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	var problems []string

	switch c.Adapter {
	case "fs", "sqlite", "memory":
	default:
		problems = append(problems, fmt.Sprintf("invalid adapter '%s': must be one of [fs sqlite memory]", c.Adapter))
	}

	if c.Adapter != "memory" && c.Path == "" {
		problems = append(problems, "storage path cannot be empty")
	}

	if c.MaxBytes < 0 {
		problems = append(problems, fmt.Sprintf("invalid max bytes %d: must not be negative", c.MaxBytes))
	}

	if c.PollInterval < 0 {
		problems = append(problems, fmt.Sprintf("invalid poll interval %s: must not be negative", c.PollInterval))
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.Host == "" {
			problems = append(problems, "host name cannot be empty when AMQP URL is provided")
		}
	}

	if c.AuthURL != "" {
		if parsed, err := url.Parse(c.AuthURL); err != nil || parsed.Host == "" {
			problems = append(problems, fmt.Sprintf("invalid auth URL '%s'", c.AuthURL))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// Options converts the storage part of the configuration into platform options.
func (c *Config) Options() []Option {
	return []Option{
		WithAdapter(c.Adapter),
		WithSystemDir(c.SystemDir),
		WithMaxBytes(c.MaxBytes),
		WithReadOnly(c.ReadOnly),
		WithPollInterval(c.PollInterval),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
