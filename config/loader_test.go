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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FallsBackToDefaultsWhenNoFilesExist(t *testing.T) {
	cfg, err := Load(LoaderOptions{
		ConfigDir:      t.TempDir(),
		Environment:    "development",
		SkipValidation: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
}

func TestLoad_ReadsEnvironmentSpecificFile(t *testing.T) {
	dir := t.TempDir()
	content := `warden:
  daemon_address: "daemon.test"
  daemon_port: 7878
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "staging.yaml"), []byte(content), 0644))

	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "staging", SkipValidation: true})
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Environment)
	require.NotNil(t, cfg.Warden)
	assert.Equal(t, "daemon.test", cfg.Warden.DaemonAddress)
}

func TestLoad_EnvironmentOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	content := `warden:
  daemon_address: "file-value"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "development.yaml"), []byte(content), 0644))

	t.Setenv("WARDEN_DAEMON_ADDRESS", "env-value")

	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "development", SkipValidation: true})
	require.NoError(t, err)
	assert.Equal(t, "env-value", cfg.Warden.DaemonAddress)
}

func TestLoad_ValidationRejectsBadPort(t *testing.T) {
	dir := t.TempDir()
	content := `warden:
  daemon_address: "daemon.test"
  daemon_port: -1
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "development.yaml"), []byte(content), 0644))

	_, err := Load(LoaderOptions{ConfigDir: dir, Environment: "development"})
	assert.Error(t, err)
}

func TestDefaultLoaderOptions(t *testing.T) {
	opts := DefaultLoaderOptions()
	assert.Equal(t, "config", opts.ConfigDir)
	assert.False(t, opts.SkipEnvSubstitution)
	assert.False(t, opts.SkipValidation)
}

func TestMustLoad_PanicsOnValidationFailure(t *testing.T) {
	dir := t.TempDir()
	content := `warden:
  daemon_port: -1
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "development.yaml"), []byte(content), 0644))

	assert.Panics(t, func() {
		MustLoad(LoaderOptions{ConfigDir: dir, Environment: "development"})
	})
}

func TestValidateConfiguration_WarnsOnUnknownLogLevel(t *testing.T) {
	cfg := &Config{
		Warden:  &WardenConfig{DaemonAddress: "x", DaemonPort: 1, ReplyTimeout: 1, CheckInterval: 1},
		Logging: &LoggingConfig{Level: "verbose"},
	}
	issues := ValidateConfiguration(cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "warn", issues[0].Level)
}
