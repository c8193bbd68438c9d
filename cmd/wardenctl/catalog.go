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

package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the loaded check catalog",
}

var catalogStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report catalog size and per-kind entry counts",
	RunE:  runCatalogStats,
}

func init() {
	catalogCmd.AddCommand(catalogStatsCmd)
	rootCmd.AddCommand(catalogCmd)
}

type catalogStats struct {
	Size        int            `json:"size"`
	CountByKind map[string]int `json:"countByKind"`
}

func runCatalogStats(cmd *cobra.Command, args []string) error {
	body, err := fetchAdmin(adminAddr + "/catalog")
	if err != nil {
		return err
	}
	var stats catalogStats
	if err := json.Unmarshal(body, &stats); err != nil {
		return fmt.Errorf("decode catalog response: %w", err)
	}

	fmt.Printf("catalog size: %d\n", stats.Size)
	kinds := make([]string, 0, len(stats.CountByKind))
	for k := range stats.CountByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Printf("  %-10s %d\n", k, stats.CountByKind[k])
	}
	return nil
}
