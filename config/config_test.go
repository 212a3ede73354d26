// Copyright (C) 2025 dwn-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "node.yaml")

	content := `environment: production
store:
  backend: pebble
  dir: /var/lib/dwn/data
schema:
  registry_path: /etc/dwn/protocols
admin:
  token_env: DWN_ADMIN_TOKEN
keystore:
  type: encrypted-file
  directory: /var/lib/dwn/keys
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "pebble", cfg.Store.Backend)
	assert.Equal(t, "/var/lib/dwn/data", cfg.Store.Dir)
	assert.Equal(t, "/etc/dwn/protocols", cfg.Schema.RegistryPath)
	assert.Equal(t, "DWN_ADMIN_TOKEN", cfg.Admin.TokenEnv)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromFileJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "node.json")

	content := `{"environment":"staging","store":{"backend":"memory"}}`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "memory", cfg.Store.Backend)
}

func TestSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	yamlPath := filepath.Join(tmpDir, "out.yaml")
	jsonPath := filepath.Join(tmpDir, "out.json")

	cfg := &Config{
		Environment: "development",
		Store:       &StoreConfig{Backend: "memory"},
	}

	require.NoError(t, SaveToFile(cfg, yamlPath))
	require.NoError(t, SaveToFile(cfg, jsonPath))

	reloaded, err := LoadFromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "development", reloaded.Environment)

	reloadedJSON, err := LoadFromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "development", reloadedJSON.Environment)
}

func TestSetDefaults(t *testing.T) {
	cfg := &Config{
		Store:    &StoreConfig{},
		Schema:   &SchemaConfig{},
		Admin:    &AdminConfig{},
		KeyStore: &KeyStoreConfig{},
		Logging:  &LoggingConfig{},
		Metrics:  &MetricsConfig{},
		Health:   &HealthConfig{},
	}
	setDefaults(cfg)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, ".dwn/protocols", cfg.Schema.RegistryPath)
	assert.Equal(t, "DWN_ADMIN_TOKEN", cfg.Admin.TokenEnv)
	assert.Equal(t, "encrypted-file", cfg.KeyStore.Type)
	assert.Equal(t, ".dwn/keys", cfg.KeyStore.Directory)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.Equal(t, 8086, cfg.Health.Port)
}

func TestSetDefaultsLeavesNilSectionsNil(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	assert.Equal(t, "development", cfg.Environment)
	assert.Nil(t, cfg.Store)
	assert.Nil(t, cfg.Schema)
}
