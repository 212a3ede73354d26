// Copyright (C) 2025 dwn-project
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
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	vaultDir   string
)

var rootCmd = &cobra.Command{
	Use:   "dwnctl",
	Short: "dwnctl - Decentralized Web Node operator CLI",
	Long: `dwnctl manages keys, tenants, and a running node for a Decentralized
Web Node implementation.

This tool supports:
- Key pair generation and JWK export (keygen)
- Tenant DID registration against a node's resolver (tenant)
- Running a node's message/data/event store and HTTP endpoint (serve)
- Building, signing, and submitting messages (send, query)`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a node config file (yaml or json)")
	rootCmd.PersistentFlags().StringVar(&vaultDir, "vault-dir", ".dwn/keys", "directory holding encrypted key material")
}
