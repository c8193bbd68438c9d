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

package warden

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sage-x-project/warden/daemonlink"
	"github.com/sage-x-project/warden/health"
)

func TestManager_RegisterHealthChecks(t *testing.T) {
	m, linker, _, _, _ := newHappyPathManager(t)

	hc := health.NewHealthChecker(time.Second)
	m.RegisterHealthChecks(hc, "warden", time.Hour)

	results := hc.CheckAll(context.Background())
	assert.Equal(t, health.StatusHealthy, results["warden-daemon-link"].Status)
	assert.Equal(t, health.StatusHealthy, results["warden-check-catalog"].Status)

	linker.setState(daemonlink.Disconnected)
	hc.ClearCache()
	results = hc.CheckAll(context.Background())
	assert.Equal(t, health.StatusUnhealthy, results["warden-daemon-link"].Status)
}
