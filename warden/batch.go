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
	"fmt"
	"math/rand/v2"

	"github.com/sage-x-project/warden/catalog"
)

const (
	minBatchSize = 4
	maxBatchSize = 9
)

// kindWeight is one step of the cumulative kind distribution used to
// assemble a batch: drawing a uniform float in [0,1) and taking the
// first weight whose Cumulative exceeds it selects that kind.
type kindWeight struct {
	Kind       catalog.Kind
	Cumulative float64
}

// defaultDistribution reproduces the legacy client's check-kind mix:
// two page-check slots folded into one 50% Page bucket, Memory 44%,
// Driver 3.4%, File 1.3%, Lua 1.3%. Module is reserved but never drawn.
var defaultDistribution = []kindWeight{
	{catalog.KindPage, 0.50},
	{catalog.KindMemory, 0.94},
	{catalog.KindDriver, 0.974},
	{catalog.KindFile, 0.987},
	{catalog.KindLua, 1.0},
}

func drawKind(dist []kindWeight) catalog.Kind {
	x := rand.Float64()
	for _, w := range dist {
		if x < w.Cumulative {
			return w.Kind
		}
	}
	return dist[len(dist)-1].Kind
}

// entryKey identifies a catalog entry for within-batch dedup. Entries
// are value-typed and loaded once at startup, so the kind plus its
// distinguishing fields is a stable enough identity for one batch draw.
func entryKey(e catalog.Entry) string {
	switch v := e.(type) {
	case catalog.MemoryCheck:
		return fmt.Sprintf("mem:%s:%d:%d", v.Module, v.Offset, v.Length)
	case catalog.PageCheck:
		return fmt.Sprintf("page:%d:%d:%d", v.Seed, v.Offset, v.Length)
	case catalog.FileCheck:
		return fmt.Sprintf("file:%s", v.Path)
	case catalog.LuaCheck:
		return fmt.Sprintf("lua:%s", v.Name)
	case catalog.DriverCheck:
		return fmt.Sprintf("driver:%s:%d", v.Name, v.Seed)
	case catalog.ModuleCheck:
		return fmt.Sprintf("module:%d", v.Seed)
	default:
		return fmt.Sprintf("%v", e)
	}
}

// AssembleBatch draws a batch of 4-9 checks from cat per the configured
// kind distribution. Duplicate kinds are allowed; duplicate catalog
// entries are not. A kind whose catalog bucket is empty falls through
// to the next-most-common kind instead of failing the whole batch.
func AssembleBatch(cat *catalog.Catalog, dist []kindWeight) ([]catalog.Entry, error) {
	if dist == nil {
		dist = defaultDistribution
	}
	size := minBatchSize + rand.IntN(maxBatchSize-minBatchSize+1)

	seen := make(map[string]bool, size)
	batch := make([]catalog.Entry, 0, size)

	// The catalog may simply not hold `size` distinct entries (small test
	// catalogs, a thin production catalog for one kind); cap the number of
	// draws so a saturated catalog returns early instead of spinning.
	const maxAttempts = 256
	for attempt := 0; len(batch) < size && attempt < maxAttempts; attempt++ {
		kind, ok := firstNonEmptyKind(cat, dist, drawKind(dist))
		if !ok {
			break // every kind in the distribution is empty
		}
		entry, err := cat.RandomOf(kind)
		if err != nil {
			continue
		}
		key := entryKey(entry)
		if seen[key] {
			continue
		}
		seen[key] = true
		batch = append(batch, entry)
	}

	if len(batch) == 0 {
		return nil, catalog.ErrCatalogEmpty
	}
	return batch, nil
}

// firstNonEmptyKind returns start if its bucket has entries, otherwise
// walks the distribution (in declared order, wrapping) looking for one
// that does. ok is false only if every kind in dist is empty.
func firstNonEmptyKind(cat *catalog.Catalog, dist []kindWeight, start catalog.Kind) (catalog.Kind, bool) {
	if cat.CountOf(start) > 0 {
		return start, true
	}
	startIdx := 0
	for i, w := range dist {
		if w.Kind == start {
			startIdx = i
			break
		}
	}
	for n := 1; n <= len(dist); n++ {
		w := dist[(startIdx+n)%len(dist)]
		if cat.CountOf(w.Kind) > 0 {
			return w.Kind, true
		}
	}
	return 0, false
}
