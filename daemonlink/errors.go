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

package daemonlink

import "errors"

// ErrDaemonUnreachable is returned when the link cannot dial the daemon.
var ErrDaemonUnreachable = errors.New("daemonlink: daemon unreachable")

// ErrProtocolViolation is returned when a frame from the daemon cannot be
// parsed as a known opcode/body pair.
var ErrProtocolViolation = errors.New("daemonlink: protocol violation")

// ErrNotReady is returned when a caller tries to send while the link is
// not in the Ready state.
var ErrNotReady = errors.New("daemonlink: link not ready")

// ErrClosed is returned by operations attempted after Close.
var ErrClosed = errors.New("daemonlink: link closed")
