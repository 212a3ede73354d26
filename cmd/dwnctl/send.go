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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwn-project/dwn-node/message"
)

var (
	sendServer         string
	sendTenant         string
	sendDescriptorFile string
	sendKeyID          string
	sendPassphraseEnv  string
	sendKid            string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Sign a message descriptor and submit it to a running node",
	Long: `send reads a method descriptor (interface, method, and any
method-specific fields) from a JSON file, signs it with a key loaded
from the vault, and POSTs the resulting message to a node's dispatch
endpoint.`,
	Example: `  dwnctl send --server http://localhost:8080 --tenant did:key:z6Mk... \
    --descriptor write.json --key-id tenant-1 --kid did:key:z6Mk...#key-1`,
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&sendServer, "server", "http://localhost:8080", "node base URL")
	sendCmd.Flags().StringVar(&sendTenant, "tenant", "", "tenant DID the message is addressed to (required)")
	sendCmd.Flags().StringVar(&sendDescriptorFile, "descriptor", "", "path to a JSON descriptor file (required)")
	sendCmd.Flags().StringVar(&sendKeyID, "key-id", "", "vault key ID to sign with (required)")
	sendCmd.Flags().StringVar(&sendPassphraseEnv, "passphrase-env", "DWN_KEY_PASSPHRASE", "environment variable holding the vault passphrase")
	sendCmd.Flags().StringVar(&sendKid, "kid", "", "fully-qualified DID URL kid to sign with (required)")

	sendCmd.MarkFlagRequired("tenant")
	sendCmd.MarkFlagRequired("descriptor")
	sendCmd.MarkFlagRequired("key-id")
	sendCmd.MarkFlagRequired("kid")
}

func runSend(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(sendDescriptorFile)
	if err != nil {
		return fmt.Errorf("read descriptor file: %w", err)
	}
	desc := &message.Descriptor{}
	if err := json.Unmarshal(raw, desc); err != nil {
		return fmt.Errorf("parse descriptor: %w", err)
	}

	kp, err := loadKeyPair(sendKeyID, sendPassphraseEnv)
	if err != nil {
		return err
	}

	msg, err := signDescriptor(desc, sendKid, kp)
	if err != nil {
		return err
	}

	result, status, err := postMessage(sendServer, sendTenant, msg)
	if err != nil {
		return err
	}

	pretty, _ := json.MarshalIndent(result, "", "  ")
	fmt.Printf("HTTP %d\n%s\n", status, pretty)
	return nil
}
