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
	"encoding/json"
	"fmt"
	"io/ioutil"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration structure
type Config struct {
	Environment string        `yaml:"environment" json:"environment"`
	Warden      *WardenConfig `yaml:"warden" json:"warden"`
	Logging     *LoggingConfig `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig `yaml:"metrics" json:"metrics"`
	Health      *HealthConfig  `yaml:"health" json:"health"`
}

// WardenConfig holds the daemon link and discipline policy settings that
// drive the Manager's session state machine.
type WardenConfig struct {
	DaemonAddress       string        `yaml:"daemon_address" json:"daemon_address"`
	DaemonPort          int           `yaml:"daemon_port" json:"daemon_port"`
	BanningEnabled      bool          `yaml:"banning_enabled" json:"banning_enabled"`
	PingInterval        time.Duration `yaml:"ping_interval" json:"ping_interval"`
	CheckInterval       time.Duration `yaml:"check_interval" json:"check_interval"`
	CheckIntervalJitter time.Duration `yaml:"check_interval_jitter" json:"check_interval_jitter"`
	ReplyTimeout        time.Duration `yaml:"reply_timeout" json:"reply_timeout"`
	ModuleDir           string        `yaml:"module_dir" json:"module_dir"`
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
	data, err := ioutil.ReadFile(path)
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

	setDefaults(cfg)

	return cfg, nil
}

// SaveToFile saves configuration to a file
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error

	if path[len(path)-5:] == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setDefaults sets default values for configuration
func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Warden != nil {
		if cfg.Warden.DaemonAddress == "" {
			cfg.Warden.DaemonAddress = "127.0.0.1"
		}
		if cfg.Warden.DaemonPort == 0 {
			cfg.Warden.DaemonPort = 7878
		}
		if cfg.Warden.PingInterval == 0 {
			cfg.Warden.PingInterval = 30 * time.Second
		}
		if cfg.Warden.CheckInterval == 0 {
			cfg.Warden.CheckInterval = 30 * time.Second
		}
		if cfg.Warden.CheckIntervalJitter == 0 {
			cfg.Warden.CheckIntervalJitter = 5 * time.Second
		}
		if cfg.Warden.ReplyTimeout == 0 {
			cfg.Warden.ReplyTimeout = 60 * time.Second
		}
		if cfg.Warden.ModuleDir == "" {
			cfg.Warden.ModuleDir = "modules"
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

	if cfg.Metrics != nil && cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Health != nil && cfg.Health.Path == "" {
		cfg.Health.Path = "/healthz"
	}
}
