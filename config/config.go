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

// Package config loads and validates a node's runtime configuration:
// which store backend to run against, where the schema registry's
// protocol definitions live, how tenants authenticate as admins, and
// the ambient logging/metrics/health settings.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level node configuration.
type Config struct {
	Environment string          `yaml:"environment" json:"environment"`
	Store       *StoreConfig    `yaml:"store" json:"store"`
	Schema      *SchemaConfig   `yaml:"schema" json:"schema"`
	Admin       *AdminConfig    `yaml:"admin" json:"admin"`
	KeyStore    *KeyStoreConfig `yaml:"keystore" json:"keystore"`
	Logging     *LoggingConfig  `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig  `yaml:"metrics" json:"metrics"`
	Health      *HealthConfig   `yaml:"health" json:"health"`
}

// StoreConfig selects and configures the message/data/event store backend.
type StoreConfig struct {
	// Backend is one of "memory", "pebble", "postgres".
	Backend string `yaml:"backend" json:"backend"`
	// Dir is the pebble database directory, used only when Backend is "pebble".
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty"`
	// Postgres holds connection parameters, used only when Backend is "postgres".
	Postgres *PostgresConfig `yaml:"postgres,omitempty" json:"postgres,omitempty"`
}

// PostgresConfig mirrors store/pgstore.Config so it can be built directly
// from the loaded configuration.
type PostgresConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	Database string `yaml:"database" json:"database"`
	SSLMode  string `yaml:"sslmode" json:"sslmode"`
}

// SchemaConfig names a directory for protocol definitions. `dwnctl serve`
// does not read it: its schema.Registry is built from schema.DefaultSchemas().
type SchemaConfig struct {
	RegistryPath string `yaml:"registry_path" json:"registry_path"`
}

// AdminConfig names the environment variable holding an admin bearer
// credential and the tenants it applies to. It is loaded and validated
// here; no endpoint of `dwnctl serve` checks it.
type AdminConfig struct {
	TokenEnv       string   `yaml:"token_env" json:"token_env"`
	AllowedTenants []string `yaml:"allowed_tenants,omitempty" json:"allowed_tenants,omitempty"`
}

// KeyStoreConfig configures where a tenant's signing key material is kept.
type KeyStoreConfig struct {
	Type          string `yaml:"type" json:"type"` // encrypted-file, memory
	Directory     string `yaml:"directory" json:"directory"`
	PassphraseEnv string `yaml:"passphrase_env" json:"passphrase_env"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// HealthConfig represents health check configuration
type HealthConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Port    int      `yaml:"port" json:"port"`
	Path    string   `yaml:"path" json:"path"`
	Checks  []string `yaml:"checks" json:"checks"`
}

// LoadFromFile loads configuration from a file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}

	// Try to parse as YAML first
	if err := yaml.Unmarshal(data, cfg); err != nil {
		// Try JSON if YAML fails
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file (tried YAML and JSON): %w", err)
		}
	}

	// Set defaults
	setDefaults(cfg)

	return cfg, nil
}

// SaveToFile saves configuration to a file
func SaveToFile(cfg *Config, path string) error {
	// Determine format by extension
	var data []byte
	var err error

	if len(path) > 5 && path[len(path)-5:] == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setDefaults sets default values for configuration
func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Store != nil {
		if cfg.Store.Backend == "" {
			cfg.Store.Backend = "memory"
		}
		if cfg.Store.Postgres != nil && cfg.Store.Postgres.SSLMode == "" {
			cfg.Store.Postgres.SSLMode = "disable"
		}
	}

	if cfg.Schema != nil {
		if cfg.Schema.RegistryPath == "" {
			cfg.Schema.RegistryPath = ".dwn/protocols"
		}
	}

	if cfg.Admin != nil {
		if cfg.Admin.TokenEnv == "" {
			cfg.Admin.TokenEnv = "DWN_ADMIN_TOKEN"
		}
	}

	if cfg.KeyStore != nil {
		if cfg.KeyStore.Type == "" {
			cfg.KeyStore.Type = "encrypted-file"
		}
		if cfg.KeyStore.Directory == "" {
			cfg.KeyStore.Directory = ".dwn/keys"
		}
	}

	if cfg.Logging != nil {
		if cfg.Logging.Level == "" {
			cfg.Logging.Level = "info"
		}
		if cfg.Logging.Format == "" {
			cfg.Logging.Format = "json"
		}
		if cfg.Logging.Output == "" {
			cfg.Logging.Output = "stdout"
		}
	}

	if cfg.Metrics != nil && cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}

	if cfg.Health != nil && cfg.Health.Port == 0 {
		cfg.Health.Port = 8086
	}
}
