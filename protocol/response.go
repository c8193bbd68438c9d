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
	"encoding/binary"

	"github.com/sage-x-project/warden/catalog"
	"github.com/sage-x-project/warden/internal/metrics"
	"github.com/sage-x-project/warden/wcrypto"
)

// maxLuaString caps the NUL-terminated string following a Lua check's
// status byte, matching the legacy client's fixed-size reply buffer.
const maxLuaString = 255

// CheckResult is one decoded reply slot, in the same order as the batch
// that was sent. Only the fields relevant to Kind are populated.
type CheckResult struct {
	Kind      catalog.Kind
	SHA       [catalog.ShaSize]byte
	LuaStatus byte
	LuaString string
}

// DecodeCheckResult parses a CHEAT_CHECKS_RESULT payload that the caller
// has already decrypted with the session's inbound keystream, returning one
// CheckResult per entry in checks, in checks' original order. The wire
// order is derived internally via the same kind grouping EncodeCheckRequest
// used, so callers pass the same batch (in any order) they encoded.
func DecodeCheckResult(checks []catalog.Entry, payload []byte) ([]CheckResult, error) {
	if len(payload) < 1+2+wcrypto.ChecksumSize {
		return nil, ErrMalformedReply
	}
	if Opcode(payload[0]) != OpCheatChecksResult {
		return nil, ErrMalformedReply
	}

	declaredLen := binary.LittleEndian.Uint16(payload[1:3])
	body := payload[3:]
	if int(declaredLen) > len(body) {
		return nil, ErrMalformedReply
	}
	body = body[:declaredLen]
	if len(body) < wcrypto.ChecksumSize {
		return nil, ErrMalformedReply
	}

	wantChecksum := binary.LittleEndian.Uint32(body[:wcrypto.ChecksumSize])
	remainder := body[wcrypto.ChecksumSize:]
	metrics.CryptoOperations.WithLabelValues("checksum").Inc()
	if !wcrypto.VerifyChecksum(remainder, wantChecksum) {
		return nil, ErrMalformedReply
	}

	ordered := orderForWire(checks)
	orderedResults := make([]CheckResult, len(ordered))

	cursor := remainder
	for i, c := range ordered {
		res := CheckResult{Kind: c.Kind()}
		switch c.Kind() {
		case catalog.KindMemory, catalog.KindPage, catalog.KindDriver, catalog.KindModule, catalog.KindFile:
			if len(cursor) < catalog.ShaSize {
				return nil, ErrMalformedReply
			}
			copy(res.SHA[:], cursor[:catalog.ShaSize])
			cursor = cursor[catalog.ShaSize:]
		case catalog.KindLua:
			if len(cursor) < 1 {
				return nil, ErrMalformedReply
			}
			res.LuaStatus = cursor[0]
			cursor = cursor[1:]

			nul := indexNUL(cursor, maxLuaString)
			if nul < 0 {
				return nil, ErrMalformedReply
			}
			res.LuaString = string(cursor[:nul])
			cursor = cursor[nul+1:]
		default:
			return nil, ErrMalformedReply
		}
		orderedResults[i] = res
	}

	// Map back from wire order to the caller's original batch order.
	results := make([]CheckResult, len(checks))
	cursors := make(map[catalog.Kind]int)
	idxByKind := make(map[catalog.Kind][]CheckResult)
	for _, r := range orderedResults {
		idxByKind[r.Kind] = append(idxByKind[r.Kind], r)
	}
	for i, c := range checks {
		k := c.Kind()
		pos := cursors[k]
		results[i] = idxByKind[k][pos]
		cursors[k] = pos + 1
	}

	return results, nil
}

// indexNUL searches buf (up to limit+1 bytes) for a NUL terminator and
// returns its index, or -1 if not found within the legal range.
func indexNUL(buf []byte, limit int) int {
	n := limit + 1
	if n > len(buf) {
		n = len(buf)
	}
	for i := 0; i < n; i++ {
		if buf[i] == 0 {
			return i
		}
	}
	return -1
}
