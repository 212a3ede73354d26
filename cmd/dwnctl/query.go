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
	"strings"

	"github.com/spf13/cobra"

	"github.com/dwn-project/dwn-node/codec"
	"github.com/dwn-project/dwn-node/message"
)

var (
	queryServer        string
	queryTenant        string
	queryInterface     string
	queryMethod        string
	queryFilterPairs   []string
	queryKeyID         string
	queryPassphraseEnv string
	queryKid           string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Build, sign, and submit a query message",
	Long: `query builds a Records/Query (or Messages/Query, Events/Query)
descriptor from --filter field=value pairs, signs it with a vault key,
and submits it to a node.`,
	Example: `  dwnctl query --server http://localhost:8080 --tenant did:key:z6Mk... \
    --filter protocol=https://example.com/proto --filter schema=note \
    --key-id tenant-1 --kid did:key:z6Mk...#key-1`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringVar(&queryServer, "server", "http://localhost:8080", "node base URL")
	queryCmd.Flags().StringVar(&queryTenant, "tenant", "", "tenant DID to query (required)")
	queryCmd.Flags().StringVar(&queryInterface, "interface", "Records", "interface to query (Records, Messages, Events)")
	queryCmd.Flags().StringVar(&queryMethod, "method", "Query", "method to invoke")
	queryCmd.Flags().StringArrayVar(&queryFilterPairs, "filter", nil, "filter field=value pair, repeatable")
	queryCmd.Flags().StringVar(&queryKeyID, "key-id", "", "vault key ID to sign with (required)")
	queryCmd.Flags().StringVar(&queryPassphraseEnv, "passphrase-env", "DWN_KEY_PASSPHRASE", "environment variable holding the vault passphrase")
	queryCmd.Flags().StringVar(&queryKid, "kid", "", "fully-qualified DID URL kid to sign with (required)")

	queryCmd.MarkFlagRequired("tenant")
	queryCmd.MarkFlagRequired("key-id")
	queryCmd.MarkFlagRequired("kid")
}

func runQuery(cmd *cobra.Command, args []string) error {
	filterFields := map[string]any{}
	for _, pair := range queryFilterPairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("malformed --filter %q, expected field=value", pair)
		}
		filterFields[k] = v
	}

	desc := &message.Descriptor{
		Interface: queryInterface,
		Method:    queryMethod,
		Fields: map[string]any{
			"messageTimestamp": codec.Now(),
			"filter":           filterFields,
		},
	}

	kp, err := loadKeyPair(queryKeyID, queryPassphraseEnv)
	if err != nil {
		return err
	}
	msg, err := signDescriptor(desc, queryKid, kp)
	if err != nil {
		return err
	}

	result, status, err := postMessage(queryServer, queryTenant, msg)
	if err != nil {
		return err
	}

	pretty, _ := json.MarshalIndent(result, "", "  ")
	fmt.Printf("HTTP %d\n%s\n", status, pretty)
	return nil
}
