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
	// ChecksIssued tracks individual checks issued, by catalog kind.
	ChecksIssued = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checks",
			Name:      "issued_total",
			Help:      "Total number of integrity checks issued, by catalog kind",
		},
		[]string{"kind"}, // memory, page, file, lua, driver
	)

	// BatchSize tracks how many checks land in each assembled batch.
	BatchSize = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "checks",
			Name:      "batch_size",
			Help:      "Number of checks in each assembled batch",
			Buckets:   prometheus.LinearBuckets(minBatchSizeMetric, 1, 6),
		},
	)

	// CheckReplyResults tracks the pass/fail outcome of decoded check replies.
	CheckReplyResults = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checks",
			Name:      "reply_results_total",
			Help:      "Total number of check batch reply outcomes",
		},
		[]string{"result"}, // pass, integrity-fail, malformed-reply, timeout
	)

	// CheckReplyDuration tracks time from batch issue to reply receipt.
	CheckReplyDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "checks",
			Name:      "reply_duration_seconds",
			Help:      "Time between issuing a check batch and receiving its reply",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)
)

// minBatchSizeMetric mirrors warden.minBatchSize without importing the
// warden package (metrics stays a leaf dependency of the module graph).
const minBatchSizeMetric = 4
