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

package cli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"loaner/internal/cli"
	"loaner/internal/engine"
)

func setupTestConfigManager(t *testing.T) *cli.ConfigManager {
	t.Helper()
	return cli.NewConfigManager(filepath.Join(t.TempDir(), "loaner.yml"))
}

func TestNewConfigManager(t *testing.T) {
	assert.Equal(t, cli.DefaultConfigPath, cli.NewConfigManager("").GetConfigPath())
	assert.Equal(t, "/tmp/other.yml", cli.NewConfigManager("/tmp/other.yml").GetConfigPath())
}

func TestLoadConfig(t *testing.T) {
	t.Run("load nonexistent config creates default", func(t *testing.T) {
		cm := setupTestConfigManager(t)
		require.False(t, cm.Exists())

		config, err := cm.LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, 20, config.Server.Workers)

		_, err = os.Stat(cm.GetConfigPath())
		assert.NoError(t, err, "Expected config file to be created")
	})

	t.Run("load or default does not write", func(t *testing.T) {
		cm := setupTestConfigManager(t)

		config, found, err := cm.LoadOrDefault()
		require.NoError(t, err)
		assert.False(t, found)
		assert.NotNil(t, config)
		assert.False(t, cm.Exists())
	})
}

func TestUpdatePolicy(t *testing.T) {
	cm := setupTestConfigManager(t)

	policy := engine.Policy{GuardLaptopDelete: true, RejectDuplicateQueueEntries: true}
	require.NoError(t, cm.UpdatePolicy(policy))

	loaded, err := cm.GetPolicy()
	require.NoError(t, err)
	assert.Equal(t, policy, *loaded)
	assert.NoError(t, cm.ValidateConfig())
}

func TestBackupAndRestore(t *testing.T) {
	cm := setupTestConfigManager(t)

	require.ErrorContains(t, cm.RestoreFromBackup(), "backup file does not exist")

	require.NoError(t, cm.UpdatePolicy(engine.Policy{AutoDrainOnReturn: true}))
	require.NoError(t, cm.BackupConfig())
	require.NoError(t, cm.UpdatePolicy(engine.Policy{}))

	require.NoError(t, cm.RestoreFromBackup())
	policy, err := cm.GetPolicy()
	require.NoError(t, err)
	assert.True(t, policy.AutoDrainOnReturn)
}
