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

package catalog

import (
	"errors"
	"math/rand/v2"
	"os"
	"sync"
	"time"
)

// ErrCatalogEmpty is returned when a catalog has zero entries of the
// requested kind, or zero modules with a fingerprint still present on
// disk.
var ErrCatalogEmpty = errors.New("catalog: no entries available")

// Catalog is an immutable set of check entries and module definitions.
// It is built once via New and safely shared read-only across goroutines;
// the only mutable state is the disk-presence cache refreshed by Refresh.
type Catalog struct {
	byKind  map[Kind][]Entry
	modules []Module

	mu     sync.RWMutex
	onDisk map[string]bool // module.Path -> stat succeeded

	loadedAt time.Time
}

// New builds a Catalog from entries and modules. The returned Catalog
// does not touch disk until Refresh is called; callers typically call
// Refresh once immediately after New and again on a periodic timer to
// pick up module files that appear or disappear.
func New(entries []Entry, modules []Module) *Catalog {
	c := &Catalog{
		byKind:   make(map[Kind][]Entry),
		modules:  append([]Module(nil), modules...),
		onDisk:   make(map[string]bool),
		loadedAt: time.Now(),
	}
	for _, e := range entries {
		c.byKind[e.Kind()] = append(c.byKind[e.Kind()], e)
	}
	return c
}

// Refresh stats every module's Path and records which are currently
// present on disk. A module catalog entry whose file is missing is
// excluded from RandomModule until it reappears.
func (c *Catalog) Refresh() {
	present := make(map[string]bool, len(c.modules))
	for _, m := range c.modules {
		_, err := os.Stat(m.Path)
		present[m.Path] = err == nil
	}
	c.mu.Lock()
	c.onDisk = present
	c.mu.Unlock()
}

// RandomOf returns a uniformly random entry of the given kind.
func (c *Catalog) RandomOf(k Kind) (Entry, error) {
	entries := c.byKind[k]
	if len(entries) == 0 {
		return nil, ErrCatalogEmpty
	}
	return entries[rand.IntN(len(entries))], nil
}

// CountOf reports how many entries of kind k the catalog holds.
func (c *Catalog) CountOf(k Kind) int {
	return len(c.byKind[k])
}

// RandomModule returns a uniformly random module whose fingerprint file
// is currently present on disk (per the last Refresh). If Refresh has
// never run, every module is considered present.
func (c *Catalog) RandomModule() (Module, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.onDisk) == 0 {
		if len(c.modules) == 0 {
			return Module{}, ErrCatalogEmpty
		}
		return c.modules[rand.IntN(len(c.modules))], nil
	}

	var live []Module
	for _, m := range c.modules {
		if c.onDisk[m.Path] {
			live = append(live, m)
		}
	}
	if len(live) == 0 {
		return Module{}, ErrCatalogEmpty
	}
	return live[rand.IntN(len(live))], nil
}

// LoadedAt reports when this Catalog was built via New.
func (c *Catalog) LoadedAt() time.Time {
	return c.loadedAt
}

// Size reports the total number of check entries plus modules held by
// the catalog, used by health checks to detect an accidentally empty load.
func (c *Catalog) Size() int {
	n := len(c.modules)
	for _, entries := range c.byKind {
		n += len(entries)
	}
	return n
}

// ModuleByFingerprint looks up a module by its exact fingerprint, used
// to validate a client's reported module hash against a known build.
func (c *Catalog) ModuleByFingerprint(fp [ShaSize]byte) (Module, bool) {
	for _, m := range c.modules {
		if m.Fingerprint == fp {
			return m, true
		}
	}
	return Module{}, false
}
