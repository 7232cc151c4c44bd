package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all widget backend configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	App       AppConfig       `yaml:"app"`
	Backend   BackendConfig   `yaml:"backend"`
	Transport TransportConfig `yaml:"transport"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8600" yaml:"port"`
	Host string `envconfig:"HOST" default:"0.0.0.0" yaml:"host"`
}

// AppConfig identifies the widget deployment.
type AppConfig struct {
	ID        string `envconfig:"APP_ID" yaml:"id"`
	ChannelID string `envconfig:"CHANNEL_ID" yaml:"channel_id"`
}

// BackendConfig holds the REST backend (session creation, policy lookup).
type BackendConfig struct {
	BaseURL string        `envconfig:"BACKEND_URL" default:"https://api.deskrelay.example" yaml:"base_url"`
	Timeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"30s" yaml:"timeout"`
}

// TransportConfig holds the messaging transport endpoints.
type TransportConfig struct {
	BaseURL      string        `envconfig:"TRANSPORT_URL" default:"https://chat.deskrelay.example" yaml:"base_url"`
	StreamURL    string        `envconfig:"TRANSPORT_STREAM_URL" default:"wss://chat.deskrelay.example/stream" yaml:"stream_url"`
	Timeout      time.Duration `envconfig:"TRANSPORT_TIMEOUT" default:"30s" yaml:"timeout"`
	ReadyTimeout time.Duration `envconfig:"TRANSPORT_READY_TIMEOUT" default:"2s" yaml:"ready_timeout"`
}

// StorageConfig holds session tuple persistence configuration.
type StorageConfig struct {
	Dir string `envconfig:"STORAGE_DIR" default:"/var/lib/deskrelay-widget" yaml:"dir"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`
}

// Load loads configuration from environment variables. When path is
// non-empty, the YAML file at path overlays the environment values: keys
// present in the file win, keys absent keep their env/default value.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return &cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8600",
			Host: "0.0.0.0",
		},
		Backend: BackendConfig{
			BaseURL: "https://api.deskrelay.example",
			Timeout: 30 * time.Second,
		},
		Transport: TransportConfig{
			BaseURL:      "https://chat.deskrelay.example",
			StreamURL:    "wss://chat.deskrelay.example/stream",
			Timeout:      30 * time.Second,
			ReadyTimeout: 2 * time.Second,
		},
		Storage: StorageConfig{
			Dir: "/var/lib/deskrelay-widget",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
