// Copyright 2025 Arion Yau
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"loaner/internal/engine"
	"loaner/internal/protocol"
)

// Config represents the complete server configuration
type Config struct {
	Server      ListenerConfig    `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	API         APIConfig         `yaml:"api"`
	Relay       RelayConfig       `yaml:"relay"`
	Policy      engine.Policy     `yaml:"policy"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ListenerConfig contains the client protocol listener settings
type ListenerConfig struct {
	Address       string `yaml:"address"`
	Workers       int    `yaml:"workers"`
	SendBuffer    int    `yaml:"send_buffer"`
	MaxFrameBytes int    `yaml:"max_frame_bytes"`
	WriteTimeout  string `yaml:"write_timeout"`
	// PushTimeout is how long a broadcast waits for room in a full send
	// buffer before the session is dropped as stalled
	PushTimeout string `yaml:"push_timeout"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path           string `yaml:"path"`
	MaxConnections int    `yaml:"max_connections"`
	BusyTimeout    string `yaml:"busy_timeout"`
}

// APIConfig contains HTTP status API settings
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// RelayConfig contains the ZeroMQ event relay settings
type RelayConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// IdempotencyConfig bounds the replay cache of mutating requests
type IdempotencyConfig struct {
	CacheSize  int    `yaml:"cache_size"`
	Expiration string `yaml:"expiration"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := NewDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.setDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *Config, filepath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// NewDefaultConfig creates a default configuration
func NewDefaultConfig() *Config {
	return &Config{
		Server: ListenerConfig{
			Address:       fmt.Sprintf(":%d", protocol.DEFAULT_PORT),
			Workers:       20,
			SendBuffer:    256,
			MaxFrameBytes: protocol.DefaultMaxFrameBytes,
			WriteTimeout:  "10s",
			PushTimeout:   "5s",
		},
		Database: DatabaseConfig{
			Path:           "loaner.db",
			MaxConnections: 10,
			BusyTimeout:    "5s",
		},
		API: APIConfig{
			Enabled: false,
			Address: ":8889",
		},
		Relay: RelayConfig{
			Enabled: false,
			Address: "tcp://*:5556",
		},
		Idempotency: IdempotencyConfig{
			CacheSize:  1000,
			Expiration: "5m",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// setDefaults fills fields left empty by a partial config file
func (c *Config) setDefaults() {
	defaults := NewDefaultConfig()

	if c.Server.Address == "" {
		c.Server.Address = defaults.Server.Address
	}
	if c.Server.Workers == 0 {
		c.Server.Workers = defaults.Server.Workers
	}
	if c.Server.SendBuffer == 0 {
		c.Server.SendBuffer = defaults.Server.SendBuffer
	}
	if c.Server.MaxFrameBytes == 0 {
		c.Server.MaxFrameBytes = defaults.Server.MaxFrameBytes
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = defaults.Server.WriteTimeout
	}
	if c.Server.PushTimeout == "" {
		c.Server.PushTimeout = defaults.Server.PushTimeout
	}

	if c.Database.Path == "" {
		c.Database.Path = defaults.Database.Path
	}
	if c.Database.MaxConnections == 0 {
		c.Database.MaxConnections = defaults.Database.MaxConnections
	}
	if c.Database.BusyTimeout == "" {
		c.Database.BusyTimeout = defaults.Database.BusyTimeout
	}

	if c.API.Address == "" {
		c.API.Address = defaults.API.Address
	}
	if c.Relay.Address == "" {
		c.Relay.Address = defaults.Relay.Address
	}

	if c.Idempotency.CacheSize == 0 {
		c.Idempotency.CacheSize = defaults.Idempotency.CacheSize
	}
	if c.Idempotency.Expiration == "" {
		c.Idempotency.Expiration = defaults.Idempotency.Expiration
	}

	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Workers <= 0 {
		return fmt.Errorf("server workers must be greater than 0")
	}
	if c.Server.SendBuffer <= 0 {
		return fmt.Errorf("server send_buffer must be greater than 0")
	}
	if c.Server.MaxFrameBytes < 1024 {
		return fmt.Errorf("server max_frame_bytes must be at least 1024")
	}

	for name, value := range map[string]string{
		"server write_timeout":   c.Server.WriteTimeout,
		"server push_timeout":    c.Server.PushTimeout,
		"database busy_timeout":  c.Database.BusyTimeout,
		"idempotency expiration": c.Idempotency.Expiration,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s format: %w", name, err)
		}
	}

	if c.Idempotency.CacheSize < 0 {
		return fmt.Errorf("idempotency cache_size cannot be negative")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	levelValid := false
	for _, level := range validLevels {
		if c.Logging.Level == level {
			levelValid = true
			break
		}
	}
	if !levelValid {
		return fmt.Errorf("invalid logging level: %s (must be one of: %v)", c.Logging.Level, validLevels)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("logging format must be 'json' or 'text'")
	}

	return nil
}

// GetWriteTimeout returns the per-frame write deadline
func (c *Config) GetWriteTimeout() time.Duration {
	duration, _ := time.ParseDuration(c.Server.WriteTimeout)
	return duration
}

// GetPushTimeout returns how long a broadcast may wait on one session
func (c *Config) GetPushTimeout() time.Duration {
	duration, _ := time.ParseDuration(c.Server.PushTimeout)
	return duration
}

// GetBusyTimeout returns the database lock wait as a time.Duration
func (c *Config) GetBusyTimeout() time.Duration {
	duration, _ := time.ParseDuration(c.Database.BusyTimeout)
	return duration
}

// GetIdempotencyExpiration returns how long a replayed response stays valid
func (c *Config) GetIdempotencyExpiration() time.Duration {
	duration, _ := time.ParseDuration(c.Idempotency.Expiration)
	return duration
}
