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

// Package cli holds helpers shared by the command line front ends.
package cli

import (
	"fmt"
	"os"

	"loaner/internal/engine"
	"loaner/internal/server"
)

// DefaultConfigPath is used when no --config flag is given
const DefaultConfigPath = "loaner.yml"

// ConfigManager handles server configuration file operations
type ConfigManager struct {
	configPath string
}

// NewConfigManager creates a new config manager. An empty path selects DefaultConfigPath.
func NewConfigManager(configPath string) *ConfigManager {
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	return &ConfigManager{
		configPath: configPath,
	}
}

// Exists reports whether the configuration file is present
func (cm *ConfigManager) Exists() bool {
	_, err := os.Stat(cm.configPath)
	return err == nil
}

// LoadConfig loads the server configuration, creating a default file if none exists
func (cm *ConfigManager) LoadConfig() (*server.Config, error) {
	if _, err := os.Stat(cm.configPath); os.IsNotExist(err) {
		defaultConfig := server.NewDefaultConfig()
		if err := cm.SaveConfig(defaultConfig); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return defaultConfig, nil
	}

	config, err := server.LoadConfig(cm.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return config, nil
}

// LoadOrDefault loads the configuration file if present and falls back to
// defaults otherwise, without writing anything
func (cm *ConfigManager) LoadOrDefault() (*server.Config, bool, error) {
	if !cm.Exists() {
		return server.NewDefaultConfig(), false, nil
	}
	config, err := server.LoadConfig(cm.configPath)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load config: %w", err)
	}
	return config, true, nil
}

// SaveConfig saves the server configuration
func (cm *ConfigManager) SaveConfig(config *server.Config) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid config: %w", err)
	}
	if err := server.SaveConfig(config, cm.configPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// GetPolicy returns the engine policy switches
func (cm *ConfigManager) GetPolicy() (*engine.Policy, error) {
	config, err := cm.LoadConfig()
	if err != nil {
		return nil, err
	}

	return &config.Policy, nil
}

// UpdatePolicy replaces the engine policy switches
func (cm *ConfigManager) UpdatePolicy(policy engine.Policy) error {
	config, err := cm.LoadConfig()
	if err != nil {
		return err
	}

	config.Policy = policy
	return cm.SaveConfig(config)
}

// ValidateConfig validates the configuration
func (cm *ConfigManager) ValidateConfig() error {
	config, err := cm.LoadConfig()
	if err != nil {
		return err
	}

	return config.Validate()
}

// GetConfigPath returns the configuration file path
func (cm *ConfigManager) GetConfigPath() string {
	return cm.configPath
}

// BackupConfig creates a backup of the current configuration
func (cm *ConfigManager) BackupConfig() error {
	config, err := cm.LoadConfig()
	if err != nil {
		return err
	}

	backupPath := cm.configPath + ".backup"
	return server.SaveConfig(config, backupPath)
}

// RestoreFromBackup restores configuration from backup
func (cm *ConfigManager) RestoreFromBackup() error {
	backupPath := cm.configPath + ".backup"

	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return fmt.Errorf("backup file does not exist: %s", backupPath)
	}

	config, err := server.LoadConfig(backupPath)
	if err != nil {
		return fmt.Errorf("failed to load backup: %w", err)
	}

	return cm.SaveConfig(config)
}
