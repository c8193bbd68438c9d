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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	content := `environment: staging
warden:
  daemon_address: "10.0.0.5"
  daemon_port: 7900
  banning_enabled: true
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Environment)
	require.NotNil(t, cfg.Warden)
	assert.Equal(t, "10.0.0.5", cfg.Warden.DaemonAddress)
	assert.Equal(t, 7900, cfg.Warden.DaemonPort)
	assert.True(t, cfg.Warden.BanningEnabled)
	// Defaults fill in fields the file left unset.
	assert.Equal(t, 60*time.Second, cfg.Warden.ReplyTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestSetDefaults(t *testing.T) {
	cfg := &Config{Warden: &WardenConfig{}, Logging: &LoggingConfig{}}
	setDefaults(cfg)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "127.0.0.1", cfg.Warden.DaemonAddress)
	assert.Equal(t, 7878, cfg.Warden.DaemonPort)
	assert.Equal(t, 30*time.Second, cfg.Warden.CheckInterval)
	assert.Equal(t, 5*time.Second, cfg.Warden.CheckIntervalJitter)
	assert.Equal(t, 60*time.Second, cfg.Warden.ReplyTimeout)
	assert.Equal(t, "modules", cfg.Warden.ModuleDir)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestSetDefaults_NilWardenUntouched(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)
	assert.Nil(t, cfg.Warden, "setDefaults must not allocate sections the caller omitted")
}

func TestSaveAndReloadRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "out.yaml")

	cfg := &Config{
		Environment: "production",
		Warden: &WardenConfig{
			DaemonAddress:  "warden-daemon.internal",
			DaemonPort:     7878,
			BanningEnabled: true,
			ReplyTimeout:   45 * time.Second,
		},
	}

	require.NoError(t, SaveToFile(cfg, path))

	reloaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Environment, reloaded.Environment)
	assert.Equal(t, cfg.Warden.DaemonAddress, reloaded.Warden.DaemonAddress)
	assert.Equal(t, cfg.Warden.BanningEnabled, reloaded.Warden.BanningEnabled)
}
