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
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report daemon link state and session population by phase",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type statusResponse struct {
	DaemonState string `json:"daemonState"`
	Sessions    struct {
		Total   int            `json:"total"`
		ByPhase map[string]int `json:"byPhase"`
	} `json:"sessions"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	body, err := fetchAdmin(adminAddr + "/status")
	if err != nil {
		return err
	}
	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decode status response: %w", err)
	}

	fmt.Printf("daemon link: %s\n", resp.DaemonState)
	fmt.Printf("sessions:    %d total\n", resp.Sessions.Total)
	for phase, n := range resp.Sessions.ByPhase {
		fmt.Printf("  %-20s %d\n", phase, n)
	}
	return nil
}

func fetchAdmin(url string) ([]byte, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("admin request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read admin response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("admin request to %s returned %s: %s", url, resp.Status, body)
	}
	return body, nil
}
