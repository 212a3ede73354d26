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

	"github.com/dwn-project/dwn-node/crypto"
	"github.com/dwn-project/dwn-node/crypto/formats"
	"github.com/dwn-project/dwn-node/crypto/keys"
)

var (
	keygenType          string
	keygenID            string
	keygenStore         bool
	keygenPassphraseEnv string
	keygenOut           string
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new signing key pair",
	Long: `Generate a new Ed25519 or secp256k1 key pair.

By default the key is printed to stdout as a JWK pair (private and
public). With --store, the private key is instead sealed into the vault
at --vault-dir under --key-id, encrypted with the passphrase read from
the environment variable named by --passphrase-env.`,
	Example: `  # Generate an Ed25519 key and print its JWK
  dwnctl keygen --type ed25519

  # Generate a secp256k1 key and seal it into the vault
  dwnctl keygen --type secp256k1 --key-id tenant-1 --store --passphrase-env DWN_KEY_PASSPHRASE`,
	RunE: runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)

	keygenCmd.Flags().StringVarP(&keygenType, "type", "t", "ed25519", "key type (ed25519, secp256k1)")
	keygenCmd.Flags().StringVarP(&keygenID, "key-id", "k", "", "key ID (required with --store)")
	keygenCmd.Flags().BoolVar(&keygenStore, "store", false, "seal the private key into the vault instead of printing it")
	keygenCmd.Flags().StringVar(&keygenPassphraseEnv, "passphrase-env", "DWN_KEY_PASSPHRASE", "environment variable holding the vault passphrase")
	keygenCmd.Flags().StringVarP(&keygenOut, "out", "o", "", "output file for the JWK pair (default: stdout)")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	var kp crypto.KeyPair
	var err error

	switch keygenType {
	case "ed25519":
		kp, err = keys.GenerateEd25519KeyPair()
	case "secp256k1":
		kp, err = keys.GenerateSecp256k1KeyPair()
	default:
		return fmt.Errorf("unsupported key type: %s", keygenType)
	}
	if err != nil {
		return fmt.Errorf("generate key pair: %w", err)
	}

	if keygenStore {
		if keygenID == "" {
			return fmt.Errorf("--key-id is required with --store")
		}
		return storeGeneratedKey(kp)
	}
	return printGeneratedKey(kp)
}

func storeGeneratedKey(kp crypto.KeyPair) error {
	passphrase := os.Getenv(keygenPassphraseEnv)
	if passphrase == "" {
		return fmt.Errorf("passphrase environment variable %q is empty", keygenPassphraseEnv)
	}
	priv, err := formats.NewJWKExporter().Export(kp, crypto.KeyFormatJWK)
	if err != nil {
		return fmt.Errorf("export private key: %w", err)
	}
	v, err := openVault()
	if err != nil {
		return fmt.Errorf("open vault: %w", err)
	}
	if err := v.StoreEncrypted(keygenID, priv, passphrase); err != nil {
		return fmt.Errorf("seal key into vault: %w", err)
	}
	fmt.Printf("key %s (%s) sealed into %s\n", keygenID, kp.Type(), vaultDir)
	fmt.Printf("fingerprint: %s\n", kp.ID())
	return nil
}

func printGeneratedKey(kp crypto.KeyPair) error {
	exporter := formats.NewJWKExporter()
	priv, err := exporter.Export(kp, crypto.KeyFormatJWK)
	if err != nil {
		return fmt.Errorf("export private key: %w", err)
	}
	pub, err := exporter.ExportPublic(kp, crypto.KeyFormatJWK)
	if err != nil {
		return fmt.Errorf("export public key: %w", err)
	}

	out := fmt.Sprintf("private: %s\npublic:  %s\n", priv, pub)
	if keygenOut == "" {
		fmt.Print(out)
		return nil
	}
	if err := os.WriteFile(keygenOut, []byte(out), 0600); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	fmt.Printf("key written to %s\n", keygenOut)
	return nil
}
