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
	"time"

	"github.com/sage-x-project/warden/daemonlink"
	"github.com/sage-x-project/warden/health"
)

// RegisterHealthChecks adds this Manager's daemon-link reachability and
// catalog freshness checks to hc, under the given name prefix. The
// embedding game server owns hc and decides when to run CheckAll or
// expose it over its own admin surface.
func (m *Manager) RegisterHealthChecks(hc *health.HealthChecker, prefix string, maxCatalogAge time.Duration) {
	hc.RegisterCheck(prefix+"-daemon-link", health.DaemonLinkHealthCheck(
		func() string { return m.link.State().String() },
		daemonlink.Ready.String(),
	))
	hc.RegisterCheck(prefix+"-check-catalog", health.CatalogFreshnessHealthCheck(
		m.cat.LoadedAt,
		m.cat.Size,
		maxCatalogAge,
	))
}
