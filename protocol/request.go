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

package protocol

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/sage-x-project/warden/catalog"
)

// kindRank fixes the wire ordering: all page checks, then memory, then
// driver, then file, then lua. Module checks are reserved by the legacy
// protocol and are never drawn by the batch assembler, but the codec
// still supports encoding/decoding them (appended last) for completeness.
func kindRank(k catalog.Kind) int {
	switch k {
	case catalog.KindPage:
		return 0
	case catalog.KindMemory:
		return 1
	case catalog.KindDriver:
		return 2
	case catalog.KindFile:
		return 3
	case catalog.KindLua:
		return 4
	case catalog.KindModule:
		return 5
	default:
		return 6
	}
}

// orderForWire returns checks reordered into the kind-grouped order the
// legacy client parser expects, preserving relative order within a kind.
// Both EncodeCheckRequest and DecodeCheckResult must use this same
// ordering, since the inbound reply mirrors the outbound request order.
func orderForWire(checks []catalog.Entry) []catalog.Entry {
	ordered := append([]catalog.Entry(nil), checks...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return kindRank(ordered[i].Kind()) < kindRank(ordered[j].Kind())
	})
	return ordered
}

// stringTable assigns a table index to each distinct string a check
// needs (module name, file path, driver name, lua identifier), in
// first-occurrence order, and records each check's index.
type stringTable struct {
	strings []string
	index   map[string]int
}

func newStringTable() *stringTable {
	return &stringTable{index: make(map[string]int)}
}

func (t *stringTable) indexOf(s string) int {
	if i, ok := t.index[s]; ok {
		return i
	}
	i := len(t.strings)
	t.strings = append(t.strings, s)
	t.index[s] = i
	return i
}

// EncodeCheckRequest assembles the unencrypted CHEAT_CHECKS_REQUEST
// payload for checks: opcode byte, string table, kind-grouped check
// preludes, trailing xorkey sentinel. The caller encrypts the result in
// place with the session's outbound keystream before sending it.
func EncodeCheckRequest(xorkey byte, checks []catalog.Entry) ([]byte, error) {
	if len(checks) == 0 {
		return nil, ErrBatchEmpty
	}
	ordered := orderForWire(checks)

	table := newStringTable()
	for _, c := range ordered {
		switch e := c.(type) {
		case catalog.MemoryCheck:
			table.indexOf(e.Module)
		case catalog.FileCheck:
			table.indexOf(e.Path)
		case catalog.DriverCheck:
			table.indexOf(e.Name)
		case catalog.LuaCheck:
			table.indexOf(e.Name)
		}
	}

	var buf bytes.Buffer
	buf.WriteByte(byte(OpCheatChecksRequest))

	for _, s := range table.strings {
		buf.WriteByte(byte(len(s)) ^ xorkey)
		buf.WriteString(s)
	}

	var u32 [4]byte
	for _, c := range ordered {
		switch e := c.(type) {
		case catalog.PageCheck:
			binary.LittleEndian.PutUint32(u32[:], e.Seed)
			buf.Write(u32[:])
			binary.LittleEndian.PutUint32(u32[:], e.Offset)
			buf.Write(u32[:])
			binary.LittleEndian.PutUint32(u32[:], e.Length)
			buf.Write(u32[:])
		case catalog.MemoryCheck:
			buf.WriteByte(byte(table.indexOf(e.Module)))
			binary.LittleEndian.PutUint32(u32[:], e.Offset)
			buf.Write(u32[:])
			buf.WriteByte(e.Length)
		case catalog.DriverCheck:
			binary.LittleEndian.PutUint32(u32[:], e.Seed)
			buf.Write(u32[:])
			buf.WriteByte(byte(table.indexOf(e.Name)))
		case catalog.FileCheck:
			buf.WriteByte(byte(table.indexOf(e.Path)))
		case catalog.LuaCheck:
			buf.WriteByte(byte(table.indexOf(e.Name)))
		case catalog.ModuleCheck:
			binary.LittleEndian.PutUint32(u32[:], e.Seed)
			buf.Write(u32[:])
		}
	}

	buf.WriteByte(xorkey)
	return buf.Bytes(), nil
}
