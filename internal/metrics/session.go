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
	// SessionsRegistered tracks sessions admitted via Register.
	SessionsRegistered = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "registered_total",
			Help:      "Total number of sessions registered with the Warden manager",
		},
	)

	// SessionsByPhase tracks current session population per state machine phase.
	SessionsByPhase = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "by_phase",
			Help:      "Number of sessions currently in each state machine phase",
		},
		[]string{"phase"},
	)

	// SeedTransformDuration tracks time from seed dispatch to client reply.
	SeedTransformDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "seed_transform_duration_seconds",
			Help:      "Time between server seed dispatch and the client's transformed reply",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)
)
