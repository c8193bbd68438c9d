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

// Package wcrypto implements the legacy client-compatible cryptographic
// primitives the Warden wire protocol depends on: an RC4-style keystream
// per direction and a folded SHA-1 packet checksum. Both are mandated
// bit-for-bit by the legacy client and are not protocol choices this
// package gets to make, so the keystream state is modeled explicitly
// (256-byte permutation plus i/j indices) rather than delegated to a
// library, matching the session state the spec describes.
package wcrypto

import "fmt"

// KeySize is the length in bytes of the keys the key daemon returns for
// each direction.
const KeySize = 16

// Keystream holds one direction's RC4-style permutation state. Two
// independent instances make up a session's crypto context.
type Keystream struct {
	s    [256]byte
	i, j uint8
}

// NewKeystream runs the canonical RC4 key-scheduling algorithm over key
// and returns a ready-to-use keystream. key must be KeySize bytes, as
// returned by the key daemon's NEW_KEYS_RSP.
func NewKeystream(key []byte) (*Keystream, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("wcrypto: empty key")
	}
	k := &Keystream{}
	k.init(key)
	return k, nil
}

// init performs the KSA: permutes the identity byte array using key,
// repeating it as needed.
func (k *Keystream) init(key []byte) {
	for i := 0; i < 256; i++ {
		k.s[i] = byte(i)
	}
	var j uint8
	for i := 0; i < 256; i++ {
		j = j + k.s[i] + key[i%len(key)]
		k.s[i], k.s[j] = k.s[j], k.s[i]
	}
	k.i, k.j = 0, 0
}

// Apply XORs buf in place with the next len(buf) keystream bytes (PRGA),
// advancing the internal i/j indices. Calling Apply again continues the
// stream rather than restarting it, matching the legacy client's single
// long-lived RC4 state per direction.
func (k *Keystream) Apply(buf []byte) {
	for n := range buf {
		k.i++
		k.j += k.s[k.i]
		k.s[k.i], k.s[k.j] = k.s[k.j], k.s[k.i]
		buf[n] ^= k.s[k.s[k.i]+k.s[k.j]]
	}
}

// Zero overwrites the permutation table and indices, discarding all key
// material. Callers must call Zero on session destruction (spec
// invariant: "Crypto state is zeroed on destruction").
func (k *Keystream) Zero() {
	for i := range k.s {
		k.s[i] = 0
	}
	k.i, k.j = 0, 0
}
