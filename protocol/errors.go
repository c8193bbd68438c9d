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

import "errors"

// ErrMalformedReply is returned by DecodeCheckResult when a reply is too
// short, misaligned with the batch it is supposed to answer, or fails
// checksum verification.
var ErrMalformedReply = errors.New("protocol: malformed check result reply")

// ErrBatchEmpty is returned by EncodeCheckRequest when asked to encode a
// batch with no checks.
var ErrBatchEmpty = errors.New("protocol: batch has no checks")
