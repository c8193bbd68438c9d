// Copyright (C) 2025 sage-x-project
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
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoaderOptions configures the configuration loader
type LoaderOptions struct {
	// ConfigDir is the directory containing config files (default: ./config)
	ConfigDir string
	// Environment overrides automatic environment detection
	Environment string
	// SkipEnvSubstitution disables environment variable substitution
	SkipEnvSubstitution bool
	// SkipValidation disables configuration validation
	SkipValidation bool
}

// DefaultLoaderOptions returns default loader options
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{
		ConfigDir:           "config",
		Environment:         "",
		SkipEnvSubstitution: false,
		SkipValidation:      false,
	}
}

// Load loads configuration with automatic environment detection. A
// .env file in the working directory, if present, is loaded into the
// process environment first so ${VAR} substitution and the
// WARDEN_*-prefixed overrides below can see it; its absence is not an
// error.
func Load(opts ...LoaderOptions) (*Config, error) {
	_ = godotenv.Load()

	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	envConfigPath := filepath.Join(options.ConfigDir, fmt.Sprintf("%s.yaml", env))
	cfg, err := loadConfigFile(envConfigPath)
	if err != nil {
		defaultConfigPath := filepath.Join(options.ConfigDir, "default.yaml")
		cfg, err = loadConfigFile(defaultConfigPath)
		if err != nil {
			configPath := filepath.Join(options.ConfigDir, "config.yaml")
			cfg, err = loadConfigFile(configPath)
			if err != nil {
				cfg = &Config{}
			}
		}
	}

	if cfg.Environment == "" {
		cfg.Environment = env
	}

	setDefaults(cfg)

	if !options.SkipEnvSubstitution {
		SubstituteEnvVarsInConfig(cfg)
	}

	applyEnvironmentOverrides(cfg)

	if !options.SkipValidation {
		errs := ValidateConfiguration(cfg)
		for _, e := range errs {
			if e.Level == "error" {
				return nil, fmt.Errorf("configuration validation failed: %s - %s", e.Field, e.Message)
			}
		}
	}

	return cfg, nil
}

// loadConfigFile loads a single config file
func loadConfigFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	return LoadFromFile(path)
}

// applyEnvironmentOverrides overrides config with environment variables.
// These take priority over both file values and ${VAR} substitutions.
func applyEnvironmentOverrides(cfg *Config) {
	if cfg.Warden != nil {
		if addr := os.Getenv("WARDEN_DAEMON_ADDRESS"); addr != "" {
			cfg.Warden.DaemonAddress = addr
		}
		if port := os.Getenv("WARDEN_DAEMON_PORT"); port != "" {
			if v, err := parsePort(port); err == nil {
				cfg.Warden.DaemonPort = v
			}
		}
		if os.Getenv("WARDEN_BANNING_ENABLED") == "true" {
			cfg.Warden.BanningEnabled = true
		}
		if os.Getenv("WARDEN_BANNING_ENABLED") == "false" {
			cfg.Warden.BanningEnabled = false
		}
		if dir := os.Getenv("WARDEN_MODULE_DIR"); dir != "" {
			cfg.Warden.ModuleDir = dir
		}
	}

	if cfg.Logging != nil {
		if logLevel := os.Getenv("WARDEN_LOG_LEVEL"); logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if logFormat := os.Getenv("WARDEN_LOG_FORMAT"); logFormat != "" {
			cfg.Logging.Format = logFormat
		}
	}

	if cfg.Metrics != nil {
		if os.Getenv("WARDEN_METRICS_ENABLED") == "true" {
			cfg.Metrics.Enabled = true
		}
		if os.Getenv("WARDEN_METRICS_ENABLED") == "false" {
			cfg.Metrics.Enabled = false
		}
	}
}

func parsePort(s string) (int, error) {
	var v int
	_, err := fmt.Sscanf(s, "%d", &v)
	return v, err
}

// LoadForEnvironment loads configuration for a specific environment
func LoadForEnvironment(environment string) (*Config, error) {
	return Load(LoaderOptions{
		ConfigDir:   "config",
		Environment: environment,
	})
}

// MustLoad loads configuration or panics on error
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
	return cfg
}

// ValidationIssue is one problem found while validating a loaded Config.
// Level "error" fails Load; "warn" is surfaced to the caller but otherwise
// non-fatal.
type ValidationIssue struct {
	Field   string
	Message string
	Level   string
}

// ValidateConfiguration checks a loaded Config for values the rest of the
// daemon cannot run with.
func ValidateConfiguration(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Warden != nil {
		if cfg.Warden.DaemonAddress == "" {
			issues = append(issues, ValidationIssue{Field: "warden.daemon_address", Message: "must not be empty", Level: "error"})
		}
		if cfg.Warden.DaemonPort <= 0 || cfg.Warden.DaemonPort > 65535 {
			issues = append(issues, ValidationIssue{Field: "warden.daemon_port", Message: "must be between 1 and 65535", Level: "error"})
		}
		if cfg.Warden.ReplyTimeout <= 0 {
			issues = append(issues, ValidationIssue{Field: "warden.reply_timeout", Message: "must be positive", Level: "error"})
		}
		if cfg.Warden.CheckInterval <= 0 {
			issues = append(issues, ValidationIssue{Field: "warden.check_interval", Message: "must be positive", Level: "warn"})
		}
	}

	if cfg.Logging != nil {
		switch cfg.Logging.Level {
		case "debug", "info", "warn", "error":
		default:
			issues = append(issues, ValidationIssue{Field: "logging.level", Message: "unrecognized level, falling back to info", Level: "warn"})
		}
	}

	return issues
}
