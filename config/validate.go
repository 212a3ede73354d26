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

import "fmt"

// ValidationError is one configuration problem found by ValidateConfiguration.
// Level "error" makes Load fail; Load ignores "warning" entries.
type ValidationError struct {
	Field   string
	Message string
	Level   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var validStoreBackends = map[string]bool{
	"memory":   true,
	"pebble":   true,
	"postgres": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfiguration checks cfg for inconsistent or missing settings.
func ValidateConfiguration(cfg *Config) []ValidationError {
	var errs []ValidationError

	if cfg.Store != nil {
		if !validStoreBackends[cfg.Store.Backend] {
			errs = append(errs, ValidationError{
				Field:   "store.backend",
				Message: fmt.Sprintf("invalid store backend: %s", cfg.Store.Backend),
				Level:   "error",
			})
		}
		if cfg.Store.Backend == "pebble" && cfg.Store.Dir == "" {
			errs = append(errs, ValidationError{
				Field:   "store.dir",
				Message: "pebble backend requires store.dir",
				Level:   "error",
			})
		}
		if cfg.Store.Backend == "postgres" && cfg.Store.Postgres == nil {
			errs = append(errs, ValidationError{
				Field:   "store.postgres",
				Message: "postgres backend requires store.postgres connection parameters",
				Level:   "error",
			})
		}
	}

	if cfg.Logging != nil && cfg.Logging.Level != "" && !validLogLevels[cfg.Logging.Level] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s", cfg.Logging.Level),
			Level:   "error",
		})
	}

	if cfg.Admin != nil && cfg.Admin.TokenEnv == "" {
		errs = append(errs, ValidationError{
			Field:   "admin.token_env",
			Message: "admin token_env should not be empty",
			Level:   "warning",
		})
	}

	return errs
}
