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

package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaemonLinkHealthCheck(t *testing.T) {
	state := "ready"
	check := DaemonLinkHealthCheck(func() string { return state }, "ready")
	assert.NoError(t, check(context.Background()))

	state = "stalled"
	assert.Error(t, check(context.Background()))
}

func TestDaemonLinkHealthCheckUnconfigured(t *testing.T) {
	check := DaemonLinkHealthCheck(nil, "ready")
	assert.Error(t, check(context.Background()))
}

func TestCatalogFreshnessHealthCheck(t *testing.T) {
	loadedAt := time.Now()
	size := 10
	check := CatalogFreshnessHealthCheck(func() time.Time { return loadedAt }, func() int { return size }, time.Hour)
	assert.NoError(t, check(context.Background()))

	size = 0
	assert.Error(t, check(context.Background()), "empty catalog fails")

	size = 10
	loadedAt = time.Now().Add(-2 * time.Hour)
	assert.Error(t, check(context.Background()), "stale catalog fails")
}

func TestHealthCheckerRegisterAndCheckAll(t *testing.T) {
	hc := NewHealthChecker(time.Second)
	hc.RegisterCheck("ok", func(ctx context.Context) error { return nil })
	hc.RegisterCheck("bad", func(ctx context.Context) error { return assert.AnError })

	results := hc.CheckAll(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, StatusHealthy, results["ok"].Status)
	assert.Equal(t, StatusUnhealthy, results["bad"].Status)
	assert.Equal(t, StatusUnhealthy, hc.GetOverallStatus(context.Background()))

	hc.UnregisterCheck("bad")
	hc.ClearCache()
	assert.Equal(t, StatusHealthy, hc.GetOverallStatus(context.Background()))
}
