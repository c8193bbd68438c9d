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

package postgres

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sage-x-project/warden/catalog"
)

// LoadCatalog reads every row of warden_checks and warden_modules and
// assembles an in-memory catalog.Catalog. It is intended to run once at
// process startup; the catalog returned is immutable thereafter, refreshed
// only via catalog.Catalog.Refresh for on-disk module presence.
func LoadCatalog(ctx context.Context, pool *pgxpool.Pool) (*catalog.Catalog, error) {
	entries, err := loadChecks(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("load warden checks: %w", err)
	}
	modules, err := loadModules(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("load warden modules: %w", err)
	}
	return catalog.New(entries, modules), nil
}

func loadChecks(ctx context.Context, pool *pgxpool.Pool) ([]catalog.Entry, error) {
	rows, err := pool.Query(ctx, `
		SELECT kind, module, offset_value, length_value, expected_sha, expected_bytes, name
		FROM warden_checks
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []catalog.Entry
	for rows.Next() {
		var (
			kind          string
			module        *string
			offsetValue   *int64
			lengthValue   *int64
			expectedSHAHx *string
			expectedBytes []byte
			name          *string
		)
		if err := rows.Scan(&kind, &module, &offsetValue, &lengthValue, &expectedSHAHx, &expectedBytes, &name); err != nil {
			return nil, err
		}

		entry, err := decodeCheckRow(kind, module, offsetValue, lengthValue, expectedSHAHx, expectedBytes, name)
		if err != nil {
			return nil, fmt.Errorf("decode warden_checks row (kind=%s): %w", kind, err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func decodeCheckRow(kind string, module *string, offsetValue, lengthValue *int64, expectedSHAHx *string, expectedBytes []byte, name *string) (catalog.Entry, error) {
	var sha [catalog.ShaSize]byte
	if expectedSHAHx != nil {
		decoded, err := hex.DecodeString(*expectedSHAHx)
		if err != nil {
			return nil, fmt.Errorf("decode expected_sha: %w", err)
		}
		if len(decoded) != catalog.ShaSize {
			return nil, fmt.Errorf("expected_sha must be %d bytes, got %d", catalog.ShaSize, len(decoded))
		}
		copy(sha[:], decoded)
	}

	switch kind {
	case "memory":
		return catalog.MemoryCheck{
			Module:   deref(module),
			Offset:   uint32(deref64(offsetValue)),
			Length:   uint8(deref64(lengthValue)),
			Expected: expectedBytes,
		}, nil
	case "page":
		return catalog.PageCheck{
			ExpectedSHA: sha,
			Offset:      uint32(deref64(offsetValue)),
			Length:      uint32(deref64(lengthValue)),
		}, nil
	case "file":
		return catalog.FileCheck{
			Path:        deref(name),
			ExpectedSHA: sha,
		}, nil
	case "lua":
		return catalog.LuaCheck{Name: deref(name)}, nil
	case "driver":
		return catalog.DriverCheck{
			ExpectedSHA: sha,
			Name:        deref(name),
		}, nil
	case "module":
		return catalog.ModuleCheck{ExpectedSHA: sha}, nil
	default:
		return nil, fmt.Errorf("unknown check kind %q", kind)
	}
}

func loadModules(ctx context.Context, pool *pgxpool.Pool) ([]catalog.Module, error) {
	rows, err := pool.Query(ctx, `
		SELECT name, fingerprint, path, key_in, key_out
		FROM warden_modules
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var modules []catalog.Module
	for rows.Next() {
		var (
			name        string
			fingerprint string
			path        string
			keyIn       []byte
			keyOut      []byte
		)
		if err := rows.Scan(&name, &fingerprint, &path, &keyIn, &keyOut); err != nil {
			return nil, err
		}

		decoded, err := hex.DecodeString(fingerprint)
		if err != nil {
			return nil, fmt.Errorf("decode fingerprint for module %q: %w", name, err)
		}
		if len(decoded) != catalog.ShaSize {
			return nil, fmt.Errorf("fingerprint for module %q must be %d bytes, got %d", name, catalog.ShaSize, len(decoded))
		}

		var fp [catalog.ShaSize]byte
		copy(fp[:], decoded)
		modules = append(modules, catalog.Module{
			Name:        name,
			Fingerprint: fp,
			Path:        path,
			Keys:        [2][]byte{keyIn, keyOut},
		})
	}
	return modules, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func deref64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

var _ = pgx.ErrNoRows // kept for parity with sibling stores' error handling
