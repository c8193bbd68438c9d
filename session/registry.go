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

package session

import "sync"

// Registry holds the full set of live SessionContexts, keyed by session
// ID. WardenManager embeds one Registry; unlike the general-purpose
// session managers this package used to model, timeouts and expiry here
// are driven by WardenManager's own update tick rather than a private
// background ticker, since overdue-reply handling needs to run the
// discipline path, not a bare delete.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Context
}

// NewRegistry returns an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Context)}
}

// Put inserts or replaces a session.
func (r *Registry) Put(c *Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[c.ID()] = c
}

// Get returns the session for id, if any.
func (r *Registry) Get(id string) (*Context, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.sessions[id]
	return c, ok
}

// Remove closes and deletes the session for id, if present.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.sessions[id]; ok {
		c.Close()
		delete(r.sessions, id)
	}
}

// All returns a snapshot slice of every live session. Safe to iterate
// without holding the registry lock.
func (r *Registry) All() []*Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Context, 0, len(r.sessions))
	for _, c := range r.sessions {
		out = append(out, c)
	}
	return out
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Status summarizes the registry's sessions by phase.
func (r *Registry) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := Status{Total: len(r.sessions), ByPhase: make(map[Phase]int)}
	for _, c := range r.sessions {
		st.ByPhase[c.Phase()]++
	}
	return st
}

// Close closes every session and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.sessions {
		c.Close()
	}
	r.sessions = make(map[string]*Context)
}
