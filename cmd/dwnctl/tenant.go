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

	"github.com/dwn-project/dwn-node/did"
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Manage tenant DID documents a node resolves signers against",
}

var (
	tenantRegisterDID        string
	tenantRegisterPublicJWK  string
	tenantRegisterVerifyKey  string
)

var tenantRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a tenant's DID document in the local resolver registry",
	Long: `Register a DID document the node's in-memory resolver loads at
startup: one verification method carrying the tenant's public JWK,
keyed under "<did>#<verify-key-id>" so JWS kid headers resolve against it.`,
	Example: `  dwnctl tenant register --did did:key:z6Mk... --public-jwk pub.jwk.json --verify-key-id key-1`,
	RunE:    runTenantRegister,
}

var tenantListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tenants registered in the local resolver registry",
	RunE:  runTenantList,
}

func init() {
	rootCmd.AddCommand(tenantCmd)
	tenantCmd.AddCommand(tenantRegisterCmd)
	tenantCmd.AddCommand(tenantListCmd)

	tenantRegisterCmd.Flags().StringVar(&tenantRegisterDID, "did", "", "the tenant's DID (required)")
	tenantRegisterCmd.Flags().StringVar(&tenantRegisterPublicJWK, "public-jwk", "", "path to the tenant's public JWK file (required)")
	tenantRegisterCmd.Flags().StringVar(&tenantRegisterVerifyKey, "verify-key-id", "key-1", "verification method fragment")
	tenantRegisterCmd.MarkFlagRequired("did")
	tenantRegisterCmd.MarkFlagRequired("public-jwk")
}

func runTenantRegister(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(tenantRegisterPublicJWK)
	if err != nil {
		return fmt.Errorf("read public JWK: %w", err)
	}
	var jwk did.PublicKeyJWK
	if err := json.Unmarshal(raw, &jwk); err != nil {
		return fmt.Errorf("parse public JWK: %w", err)
	}

	vmID := tenantRegisterDID + "#" + tenantRegisterVerifyKey
	doc := &did.Document{
		ID: tenantRegisterDID,
		VerificationMethod: []did.VerificationMethod{
			{
				ID:           vmID,
				Type:         "JsonWebKey2020",
				Controller:   tenantRegisterDID,
				PublicKeyJWK: &jwk,
			},
		},
	}

	path := didRegistryPath()
	reg, err := loadDIDRegistryFile(path)
	if err != nil {
		return err
	}
	replaced := false
	for i, existing := range reg.Documents {
		if existing.ID == doc.ID {
			reg.Documents[i] = doc
			replaced = true
			break
		}
	}
	if !replaced {
		reg.Documents = append(reg.Documents, doc)
	}
	if err := saveDIDRegistryFile(path, reg); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}

	action := "registered"
	if replaced {
		action = "updated"
	}
	fmt.Printf("%s tenant %s (verification method %s)\n", action, doc.ID, vmID)
	return nil
}

func runTenantList(cmd *cobra.Command, args []string) error {
	reg, err := loadDIDRegistryFile(didRegistryPath())
	if err != nil {
		return err
	}
	if len(reg.Documents) == 0 {
		fmt.Println("no tenants registered")
		return nil
	}
	for _, doc := range reg.Documents {
		fmt.Printf("%s (%d verification method(s))\n", doc.ID, len(doc.VerificationMethod))
	}
	return nil
}
