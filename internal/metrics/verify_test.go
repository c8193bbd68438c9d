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
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistration(t *testing.T) {
	assert.NotNil(t, SessionsRegistered)
	assert.NotNil(t, SessionsByPhase)
	assert.NotNil(t, SeedTransformDuration)

	assert.NotNil(t, ModuleLoadResults)
	assert.NotNil(t, DaemonLinkState)
	assert.NotNil(t, DaemonLinkPingLatency)
	assert.NotNil(t, KeyRequestDuration)

	assert.NotNil(t, ChecksIssued)
	assert.NotNil(t, BatchSize)
	assert.NotNil(t, CheckReplyResults)

	assert.NotNil(t, CryptoOperations)
	assert.NotNil(t, DisciplineActions)
}

func TestMetricsIncrement(t *testing.T) {
	SessionsRegistered.Inc()
	SessionsByPhase.WithLabelValues("ChecksOutstanding").Set(3)
	SeedTransformDuration.Observe(0.2)

	ModuleLoadResults.WithLabelValues("loaded").Inc()
	DaemonLinkState.WithLabelValues("Ready").Set(1)
	DaemonLinkPingLatency.Observe(0.05)

	ChecksIssued.WithLabelValues("memory").Inc()
	BatchSize.Observe(6)
	CheckReplyResults.WithLabelValues("pass").Inc()

	CryptoOperations.WithLabelValues("encrypt").Inc()
	DisciplineActions.WithLabelValues("kick", "integrity-fail").Inc()

	assert.Greater(t, testutil.CollectAndCount(SessionsRegistered), 0)
	assert.Greater(t, testutil.CollectAndCount(ChecksIssued), 0)
	assert.Greater(t, testutil.CollectAndCount(DisciplineActions), 0)
}

func TestDaemonLinkState_OnlyActiveStateSet(t *testing.T) {
	for _, s := range []string{"Disconnected", "Connecting", "Ready", "Stalled"} {
		DaemonLinkState.WithLabelValues(s).Set(0)
	}
	DaemonLinkState.WithLabelValues("Ready").Set(1)

	assert.Equal(t, float64(1), testutil.ToFloat64(DaemonLinkState.WithLabelValues("Ready")))
	assert.Equal(t, float64(0), testutil.ToFloat64(DaemonLinkState.WithLabelValues("Stalled")))
}
