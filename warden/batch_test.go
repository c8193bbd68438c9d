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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/warden/catalog"
)

// richCatalog carries 64 distinct Page, Memory and Driver entries, so
// those buckets never run short inside one batch. File and Lua entries
// repeat a single value each, so dedup allows at most one of each per
// batch; at their 1.3% weights a second draw in one batch is rare, and
// the observed kind mix stays within tolerance of the distribution.
func richCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	var entries []catalog.Entry
	for i := 0; i < 64; i++ {
		entries = append(entries,
			catalog.PageCheck{Seed: uint32(i), Offset: uint32(i * 16), Length: 32},
			catalog.MemoryCheck{Module: "WoW.exe", Offset: uint32(i * 4), Length: 4},
			catalog.DriverCheck{Seed: uint32(i), Name: "drv"},
			catalog.FileCheck{Path: "file.dll"},
			catalog.LuaCheck{Name: "global"},
		)
	}
	return catalog.New(entries, nil)
}

func TestAssembleBatch_SizeWithinBounds(t *testing.T) {
	cat := richCatalog(t)
	for i := 0; i < 200; i++ {
		batch, err := AssembleBatch(cat, nil)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(batch), minBatchSize)
		assert.LessOrEqual(t, len(batch), maxBatchSize)
	}
}

func TestAssembleBatch_NoDuplicateEntries(t *testing.T) {
	cat := richCatalog(t)
	for i := 0; i < 200; i++ {
		batch, err := AssembleBatch(cat, nil)
		require.NoError(t, err)
		seen := make(map[string]bool)
		for _, e := range batch {
			key := entryKey(e)
			assert.False(t, seen[key], "duplicate catalog entry within one batch")
			seen[key] = true
		}
	}
}

func TestAssembleBatch_NeverDrawsModuleKind(t *testing.T) {
	var entries []catalog.Entry
	for i := 0; i < 16; i++ {
		entries = append(entries, catalog.ModuleCheck{Seed: uint32(i)})
	}
	cat := catalog.New(entries, nil)

	_, err := AssembleBatch(cat, nil)
	assert.ErrorIs(t, err, catalog.ErrCatalogEmpty, "Module is reserved and never drawn, even when populated")
}

func TestAssembleBatch_KindDistributionWithinTolerance(t *testing.T) {
	cat := richCatalog(t)

	counts := make(map[catalog.Kind]int)
	total := 0
	for i := 0; i < 10000; i++ {
		batch, err := AssembleBatch(cat, nil)
		require.NoError(t, err)
		for _, e := range batch {
			counts[e.Kind()]++
			total++
		}
	}

	want := map[catalog.Kind]float64{
		catalog.KindPage:   0.50,
		catalog.KindMemory: 0.44,
		catalog.KindDriver: 0.034,
		catalog.KindFile:   0.013,
		catalog.KindLua:    0.013,
	}
	for kind, wantFrac := range want {
		got := float64(counts[kind]) / float64(total)
		assert.InDelta(t, wantFrac, got, 0.02, "kind %s frequency out of tolerance", kind)
	}
}

func TestAssembleBatch_FallsThroughEmptyKind(t *testing.T) {
	// Only Lua entries exist; every draw for Page/Memory/Driver/File must
	// fall through to Lua instead of failing the whole batch.
	cat := catalog.New([]catalog.Entry{
		catalog.LuaCheck{Name: "a"},
		catalog.LuaCheck{Name: "b"},
		catalog.LuaCheck{Name: "c"},
		catalog.LuaCheck{Name: "d"},
	}, nil)

	batch, err := AssembleBatch(cat, nil)
	require.NoError(t, err)
	for _, e := range batch {
		assert.Equal(t, catalog.KindLua, e.Kind())
	}
}

func TestAssembleBatch_EmptyCatalogErrors(t *testing.T) {
	cat := catalog.New(nil, nil)
	_, err := AssembleBatch(cat, nil)
	assert.ErrorIs(t, err, catalog.ErrCatalogEmpty)
}
