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

package daemonlink

import (
	"math/rand/v2"
	"time"
)

// backoff produces a capped exponential reconnect delay, doubling after
// every call and jittered by up to 20% to avoid synchronized reconnect
// storms across many links.
type backoff struct {
	min, max time.Duration
	current  time.Duration
}

func newBackoff(min, max time.Duration) *backoff {
	return &backoff{min: min, max: max, current: min}
}

// Next returns the delay to wait before the next reconnect attempt and
// advances the internal state toward max.
func (b *backoff) Next() time.Duration {
	d := b.current
	jitter := time.Duration(rand.Int64N(int64(d) / 5 + 1))
	next := b.current * 2
	if next > b.max {
		next = b.max
	}
	b.current = next
	return d + jitter
}

// Reset returns the backoff to its minimum delay, called after a
// successful connection.
func (b *backoff) Reset() {
	b.current = b.min
}
