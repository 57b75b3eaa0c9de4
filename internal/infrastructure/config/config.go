package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Catenis API emulator.
// Values come from hardcoded defaults, then a YAML file (optional), then
// environment variables, in increasing precedence order.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Cmd     CmdConfig     `yaml:"cmd"`
	WS      WebSocketConfig `yaml:"websocket"`
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig contains the emulated Catenis REST+WebSocket listener settings.
type APIConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	APIVersion string           `yaml:"api_version"`
	Timeouts   APITimeoutConfig `yaml:"timeouts"`
	CORS       CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains the Access-Control-Allow-Methods and
// Access-Control-Allow-Headers values the ApiServer sends in answer to a CORS
// preflight request. The CommandServer sends no CORS headers.
type CORSConfig struct {
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// CmdConfig contains the control-plane listener settings.
type CmdConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// WebSocketConfig contains notification-channel timing settings. They are
// loaded and defaulted but not read by wsnotify, whose auth deadline (5 s)
// and heartbeat period (30 s) are fixed constants.
type WebSocketConfig struct {
	AuthDeadlineSeconds  int `yaml:"auth_deadline_seconds"`
	HeartbeatIntervalSec int `yaml:"heartbeat_interval_seconds"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from an optional YAML file and applies
// environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values, if path is non-empty and the file exists
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: CATENIS_EMULATOR_SECTION_KEY.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a Config with the defaults spec.md §6 names.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Host:       "0.0.0.0",
			Port:       3500,
			APIVersion: "0.13",
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			CORS: CORSConfig{
				AllowedMethods: []string{"POST", "GET", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "X-Bcot-Timestamp", "Authorization"},
			},
		},
		Cmd: CmdConfig{
			Host: "0.0.0.0",
			Port: 3501,
		},
		WS: WebSocketConfig{
			AuthDeadlineSeconds:  5,
			HeartbeatIntervalSec: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CATENIS_EMULATOR_API_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = n
		}
	}
	if v := os.Getenv("CATENIS_EMULATOR_CMD_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cmd.Port = n
		}
	}
	if v := os.Getenv("CATENIS_EMULATOR_API_VERSION"); v != "" {
		cfg.API.APIVersion = v
	}
	if v := os.Getenv("CATENIS_EMULATOR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.Cmd.Port < 1 || c.Cmd.Port > 65535 {
		errs = append(errs, "cmd.port must be between 1 and 65535")
	}
	if c.API.Port == c.Cmd.Port {
		errs = append(errs, "api.port and cmd.port must differ")
	}
	if strings.TrimSpace(c.API.APIVersion) == "" {
		errs = append(errs, "api.api_version is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
