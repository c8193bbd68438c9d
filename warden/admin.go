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
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/sage-x-project/warden/catalog"
	"github.com/sage-x-project/warden/session"
)

// AdminHandler is a small read-only HTTP surface for operator tooling
// (wardenctl) to introspect a running Manager without reaching into its
// internals directly. It never mutates Manager state.
type AdminHandler struct {
	mgr *Manager
}

// NewAdminHandler wraps mgr for HTTP introspection.
func NewAdminHandler(mgr *Manager) *AdminHandler {
	return &AdminHandler{mgr: mgr}
}

// Register mounts the admin endpoints on mux under prefix (e.g. "/admin").
func (h *AdminHandler) Register(mux *http.ServeMux, prefix string) {
	mux.HandleFunc(prefix+"/status", h.handleStatus)
	mux.HandleFunc(prefix+"/sessions", h.handleSessions)
	mux.HandleFunc(prefix+"/catalog", h.handleCatalog)
}

// statusResponse mirrors what `wardenctl status` prints.
type statusResponse struct {
	DaemonState string        `json:"daemonState"`
	Sessions    session.Status `json:"sessions"`
}

func (h *AdminHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		DaemonState: h.mgr.link.State().String(),
		Sessions:    h.mgr.Status(),
	}
	writeJSON(w, resp)
}

type sessionSummary struct {
	ID              string `json:"id"`
	AccountID       string `json:"accountId"`
	Phase           string `json:"phase"`
	ModuleFP        string `json:"moduleFingerprint,omitempty"`
	PendingBatchLen int    `json:"pendingBatchLen"`
}

func (h *AdminHandler) handleSessions(w http.ResponseWriter, r *http.Request) {
	all := h.mgr.registry.All()
	out := make([]sessionSummary, 0, len(all))
	for _, ctx := range all {
		out = append(out, sessionSummary{
			ID:              ctx.ID(),
			AccountID:       ctx.AccountID(),
			Phase:           ctx.Phase().String(),
			ModuleFP:        hexFingerprint(ctx.ModuleFingerprint()),
			PendingBatchLen: ctx.PendingBatchLen(),
		})
	}
	writeJSON(w, out)
}

type catalogStats struct {
	Size       int            `json:"size"`
	CountByKind map[string]int `json:"countByKind"`
}

func (h *AdminHandler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	kinds := []catalog.Kind{catalog.KindMemory, catalog.KindPage, catalog.KindFile, catalog.KindLua, catalog.KindDriver, catalog.KindModule}
	counts := make(map[string]int, len(kinds))
	for _, k := range kinds {
		counts[k.String()] = h.mgr.cat.CountOf(k)
	}
	writeJSON(w, catalogStats{Size: h.mgr.cat.Size(), CountByKind: counts})
}

func hexFingerprint(fp [catalog.ShaSize]byte) string {
	var zero [catalog.ShaSize]byte
	if fp == zero {
		return ""
	}
	return hex.EncodeToString(fp[:])
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
