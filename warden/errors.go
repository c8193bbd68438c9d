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

import "errors"

var (
	// ErrSessionUnknown is returned when an operation names a session_id
	// the Manager has no SessionContext for.
	ErrSessionUnknown = errors.New("warden: unknown session")

	// ErrKeyResponseOrphan names the condition of a NEW_KEYS_RSP arriving
	// for a session that is no longer registered. The Manager does not
	// return or log this value; InstallKeys reports the case as false.
	ErrKeyResponseOrphan = errors.New("warden: key response for unregistered session")

	// ErrClientReplyTimeout names the condition of a session's outstanding
	// batch going unanswered past the configured deadline. The Manager
	// disciplines that case by reason string and does not use this value.
	ErrClientReplyTimeout = errors.New("warden: client reply timeout")

	// ErrClientIntegrityFail names the condition of a decoded reply failing
	// validation against the expected check values. The Manager disciplines
	// that case by reason string and does not use this value.
	ErrClientIntegrityFail = errors.New("warden: client integrity check failed")

	// ErrModuleMissingOnDisk is returned when the module chosen for a
	// session has no backing file on the daemon's module directory.
	ErrModuleMissingOnDisk = errors.New("warden: module missing on disk")

	// ErrUnexpectedAck is returned when a client ack arrives for a phase
	// that does not expect one.
	ErrUnexpectedAck = errors.New("warden: unexpected client acknowledgement")
)
