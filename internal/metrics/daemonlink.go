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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ModuleLoadResults tracks client acknowledgements to LoadModule requests.
	ModuleLoadResults = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "module_load",
			Name:      "results_total",
			Help:      "Total module-load acknowledgements by outcome",
		},
		[]string{"result"}, // loaded, missing, failed
	)

	// ModulesExcluded tracks fingerprints excluded after a missing-module report.
	ModulesExcluded = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "module_load",
			Name:      "excluded_total",
			Help:      "Total module fingerprints excluded after being reported missing on disk",
		},
	)

	// DaemonLinkState tracks the current daemon link connection state, one
	// gauge per known state name, set to 1 for the active state and 0 for
	// the rest.
	DaemonLinkState = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "daemon_link",
			Name:      "state",
			Help:      "Current daemon link state (1 for the active state, 0 otherwise)",
		},
		[]string{"state"},
	)

	// DaemonLinkReconnects tracks reconnect attempts to the key daemon.
	DaemonLinkReconnects = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "daemon_link",
			Name:      "reconnects_total",
			Help:      "Total number of reconnect attempts to the key daemon",
		},
	)

	// DaemonLinkPingLatency tracks round-trip time from PING to PONG.
	DaemonLinkPingLatency = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "daemon_link",
			Name:      "ping_latency_seconds",
			Help:      "Round-trip time between a PING and its PONG",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	// KeyRequestDuration tracks time from NEW_KEYS_REQ to NEW_KEYS_RSP.
	KeyRequestDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "daemon_link",
			Name:      "key_request_duration_seconds",
			Help:      "Time between issuing a key request and receiving its response",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)
)
