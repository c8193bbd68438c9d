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

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List every session the Manager currently holds",
	RunE:  runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

type sessionSummary struct {
	ID              string `json:"id"`
	AccountID       string `json:"accountId"`
	Phase           string `json:"phase"`
	ModuleFP        string `json:"moduleFingerprint,omitempty"`
	PendingBatchLen int    `json:"pendingBatchLen"`
}

func runSessions(cmd *cobra.Command, args []string) error {
	body, err := fetchAdmin(adminAddr + "/sessions")
	if err != nil {
		return err
	}
	var sessions []sessionSummary
	if err := json.Unmarshal(body, &sessions); err != nil {
		return fmt.Errorf("decode sessions response: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("no active sessions")
		return nil
	}

	fmt.Printf("%-20s %-16s %-20s %-10s %s\n", "SESSION", "ACCOUNT", "PHASE", "PENDING", "MODULE")
	for _, s := range sessions {
		fmt.Printf("%-20s %-16s %-20s %-10d %s\n", s.ID, s.AccountID, s.Phase, s.PendingBatchLen, s.ModuleFP)
	}
	return nil
}
