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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/warden/catalog"
	"github.com/sage-x-project/warden/wcrypto"
)

func sampleBatch() []catalog.Entry {
	return []catalog.Entry{
		catalog.LuaCheck{Name: "CreateFrame"},
		catalog.MemoryCheck{Module: "WoW.exe", Offset: 0x400000, Length: 4},
		catalog.PageCheck{Seed: 7, Offset: 0x1000, Length: 0x20},
		catalog.FileCheck{Path: "cheat.dll"},
		catalog.DriverCheck{Seed: 9, Name: "npggsvc.sys"},
	}
}

func TestEncodeCheckRequest_EmptyBatch(t *testing.T) {
	_, err := EncodeCheckRequest(0x42, nil)
	assert.ErrorIs(t, err, ErrBatchEmpty)
}

func TestEncodeCheckRequest_KindGroupedOrder(t *testing.T) {
	payload, err := EncodeCheckRequest(0x11, sampleBatch())
	require.NoError(t, err)
	require.NotEmpty(t, payload)
	assert.Equal(t, byte(OpCheatChecksRequest), payload[0])
	assert.Equal(t, byte(0x11), payload[len(payload)-1], "trailing sentinel must equal xorkey")

	// The preludes follow the string table grouped page, memory, driver,
	// file, lua, regardless of the order the batch was passed in.
	wantTail := []byte{
		7, 0, 0, 0, 0x00, 0x10, 0, 0, 0x20, 0, 0, 0, // page: seed, offset, length
		0, 0x00, 0x00, 0x40, 0x00, 4, // memory: "WoW.exe" index, offset, length
		9, 0, 0, 0, 1, // driver: seed, "npggsvc.sys" index
		2,    // file: "cheat.dll" index
		3,    // lua: "CreateFrame" index
		0x11, // sentinel
	}
	assert.Equal(t, wantTail, payload[len(payload)-len(wantTail):])
}

func TestEncodeCheckRequest_StringTableDedup(t *testing.T) {
	batch := []catalog.Entry{
		catalog.FileCheck{Path: "shared.dll"},
		catalog.DriverCheck{Name: "shared.dll"},
	}
	payload, err := EncodeCheckRequest(0x00, batch)
	require.NoError(t, err)

	// With xorkey 0, the length-prefixed string table entry for the
	// deduplicated name appears exactly once.
	want := append([]byte{byte(len("shared.dll"))}, []byte("shared.dll")...)
	assert.Equal(t, 1, bytes.Count(payload, want))
}

func TestKeystreamRoundTrip_OnEncodedRequest(t *testing.T) {
	payload, err := EncodeCheckRequest(0x55, sampleBatch())
	require.NoError(t, err)

	key := bytes.Repeat([]byte{0x3c}, wcrypto.KeySize)
	enc, err := wcrypto.NewKeystream(key)
	require.NoError(t, err)
	dec, err := wcrypto.NewKeystream(key)
	require.NoError(t, err)

	cipher := append([]byte(nil), payload...)
	enc.Apply(cipher)
	require.NotEqual(t, payload, cipher)

	dec.Apply(cipher)
	assert.Equal(t, payload, cipher)
}

// buildResultPayload simulates what a well-behaved client would send back:
// a checksum-correct CHEAT_CHECKS_RESULT in the same kind-grouped order the
// request used.
func buildResultPayload(t *testing.T, checks []catalog.Entry, shaFor func(catalog.Entry) [catalog.ShaSize]byte, luaStatus byte, luaString string) []byte {
	t.Helper()
	ordered := orderForWire(checks)

	var body bytes.Buffer
	for _, c := range ordered {
		switch c.Kind() {
		case catalog.KindLua:
			body.WriteByte(luaStatus)
			body.WriteString(luaString)
			body.WriteByte(0)
		default:
			sha := shaFor(c)
			body.Write(sha[:])
		}
	}

	checksum := wcrypto.ChecksumUint32(body.Bytes())
	var out bytes.Buffer
	out.WriteByte(byte(OpCheatChecksResult))
	var lenField [2]byte
	binary.LittleEndian.PutUint16(lenField[:], uint16(wcrypto.ChecksumSize+body.Len()))
	out.Write(lenField[:])
	var sumField [4]byte
	binary.LittleEndian.PutUint32(sumField[:], checksum)
	out.Write(sumField[:])
	out.Write(body.Bytes())
	return out.Bytes()
}

func TestDecodeCheckResult_RoundTrip(t *testing.T) {
	checks := sampleBatch()
	shaFor := func(c catalog.Entry) [catalog.ShaSize]byte {
		var sha [catalog.ShaSize]byte
		sha[0] = byte(c.Kind())
		return sha
	}
	payload := buildResultPayload(t, checks, shaFor, 1, "hacks.lua")

	results, err := DecodeCheckResult(checks, payload)
	require.NoError(t, err)
	require.Len(t, results, len(checks))

	for i, c := range checks {
		assert.Equal(t, c.Kind(), results[i].Kind)
		if c.Kind() == catalog.KindLua {
			assert.Equal(t, byte(1), results[i].LuaStatus)
			assert.Equal(t, "hacks.lua", results[i].LuaString)
		} else {
			want := shaFor(c)
			assert.Equal(t, want, results[i].SHA)
		}
	}
}

func TestDecodeCheckResult_ChecksumMismatch(t *testing.T) {
	checks := sampleBatch()
	payload := buildResultPayload(t, checks, func(catalog.Entry) [catalog.ShaSize]byte {
		return [catalog.ShaSize]byte{}
	}, 0, "x")
	payload[len(payload)-1] ^= 0xFF // corrupt last result byte

	_, err := DecodeCheckResult(checks, payload)
	assert.ErrorIs(t, err, ErrMalformedReply)
}

func TestDecodeCheckResult_Truncated(t *testing.T) {
	_, err := DecodeCheckResult(sampleBatch(), []byte{byte(OpCheatChecksResult), 0x00})
	assert.ErrorIs(t, err, ErrMalformedReply)
}

func TestDecodeCheckResult_WrongOpcode(t *testing.T) {
	payload := buildResultPayload(t, sampleBatch(), func(catalog.Entry) [catalog.ShaSize]byte {
		return [catalog.ShaSize]byte{}
	}, 0, "x")
	payload[0] = byte(OpHashResult)

	_, err := DecodeCheckResult(sampleBatch(), payload)
	assert.ErrorIs(t, err, ErrMalformedReply)
}

func TestDecodeCheckResult_LuaStringUnterminated(t *testing.T) {
	checks := []catalog.Entry{catalog.LuaCheck{Name: "x"}}
	body := append([]byte{0x01}, bytes.Repeat([]byte{'a'}, maxLuaString+2)...) // no NUL within range
	checksum := wcrypto.ChecksumUint32(body)

	var out bytes.Buffer
	out.WriteByte(byte(OpCheatChecksResult))
	var lenField [2]byte
	binary.LittleEndian.PutUint16(lenField[:], uint16(wcrypto.ChecksumSize+len(body)))
	out.Write(lenField[:])
	var sumField [4]byte
	binary.LittleEndian.PutUint32(sumField[:], checksum)
	out.Write(sumField[:])
	out.Write(body)

	_, err := DecodeCheckResult(checks, out.Bytes())
	assert.ErrorIs(t, err, ErrMalformedReply)
}
