package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all ambient configuration for streaming sessions.
type Config struct {
	Paths   PathConfig
	Process ProcessConfig
	Logging LogConfig
	Metrics MetricsConfig
}

// PathConfig holds filesystem locations for ring and log files.
type PathConfig struct {
	ShmDir string `envconfig:"IQBRIDGE_SHM_DIR" default:"/dev/shm"`
	LogDir string `envconfig:"IQBRIDGE_LOG_DIR" default:"/tmp"`
}

// ProcessConfig holds external streaming process settings.
type ProcessConfig struct {
	Binary string `envconfig:"IQBRIDGE_BIN" default:"iqstream"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"IQBRIDGE_LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"IQBRIDGE_LOG_DEV" default:"false"`
}

// MetricsConfig holds the optional debug/metrics server configuration.
// An empty address disables the server.
type MetricsConfig struct {
	Addr string `envconfig:"IQBRIDGE_METRICS_ADDR" default:""`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Paths: PathConfig{
			ShmDir: "/dev/shm",
			LogDir: "/tmp",
		},
		Process: ProcessConfig{
			Binary: "iqstream",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Metrics: MetricsConfig{
			Addr: "",
		},
	}
}
