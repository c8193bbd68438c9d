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

// Package warden orchestrates per-session client-integrity checking: it
// owns every SessionContext and the daemon link, assembles and validates
// check batches, and emits discipline on failure.
package warden

import "time"

// SessionSink is the game-session layer's punishment surface. Manager
// never implements it; it is supplied by the embedding process.
type SessionSink interface {
	Kick(sessionID, reason string)
	Ban(accountID, reason string, duration time.Duration)
}

// ClientTransport delivers an opcode-tagged payload to a connected
// client. Supplied by the game-session layer.
type ClientTransport interface {
	SendToClient(sessionID string, opcode byte, payload []byte) error
}

// Config bounds the Manager's timers and policy; see the configuration
// section it is loaded from for field-level defaults.
type Config struct {
	BanningEnabled      bool
	CheckInterval       time.Duration
	CheckIntervalJitter time.Duration
	ReplyTimeout        time.Duration
	ModuleDir           string
}

func (c Config) withDefaults() Config {
	if c.CheckInterval == 0 {
		c.CheckInterval = 30 * time.Second
	}
	if c.CheckIntervalJitter == 0 {
		c.CheckIntervalJitter = 5 * time.Second
	}
	if c.ReplyTimeout == 0 {
		c.ReplyTimeout = 60 * time.Second
	}
	return c
}

// ClientAck is the set of client acknowledgement variants the game
// session layer decodes from CMSG_WARDEN_DATA and forwards to the
// Manager via OnClientPacket.
type ClientAck int

const (
	AckModuleMissing ClientAck = iota
	AckModuleLoaded
	AckModuleFailed
	AckSeedTransformed
	AckCheckReply
)
