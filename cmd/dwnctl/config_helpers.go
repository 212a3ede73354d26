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
	"path/filepath"

	dwnconfig "github.com/dwn-project/dwn-node/config"
	"github.com/dwn-project/dwn-node/crypto"
	"github.com/dwn-project/dwn-node/crypto/formats"
	"github.com/dwn-project/dwn-node/crypto/vault"
	"github.com/dwn-project/dwn-node/did"
)

// loadNodeConfig reads the config file named by the --config flag, falling
// back to environment-driven defaults via config.Load when unset.
func loadNodeConfig() (*dwnconfig.Config, error) {
	if configPath == "" {
		return dwnconfig.Load(dwnconfig.LoaderOptions{SkipValidation: true})
	}
	return dwnconfig.LoadFromFile(configPath)
}

// openVault opens the passphrase-protected key vault at --vault-dir.
func openVault() (*vault.FileVault, error) {
	return vault.NewFileVault(vaultDir)
}

// loadKeyPair loads keyID from the vault, decrypting it with the
// passphrase read from passphraseEnv (or prompted-equivalent: read
// directly from the named environment variable, matching
// config.KeyStoreConfig.PassphraseEnv's convention).
func loadKeyPair(keyID, passphraseEnv string) (crypto.KeyPair, error) {
	v, err := openVault()
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}
	passphrase := os.Getenv(passphraseEnv)
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase environment variable %q is empty", passphraseEnv)
	}
	raw, err := v.LoadDecrypted(keyID, passphrase)
	if err != nil {
		return nil, fmt.Errorf("load key %q: %w", keyID, err)
	}
	kp, err := formats.NewJWKImporter().Import(raw, crypto.KeyFormatJWK)
	if err != nil {
		return nil, fmt.Errorf("decode key %q: %w", keyID, err)
	}
	return kp, nil
}

// didRegistryFile is the on-disk JSON object whose "documents" array holds the registered DID documents a
// single-node deployment resolves signers against, managed by `dwnctl
// tenant` and loaded by `dwnctl serve`.
type didRegistryFile struct {
	Documents []*did.Document `json:"documents"`
}

func didRegistryPath() string {
	return filepath.Join(filepath.Dir(vaultDir), "dids.json")
}

func loadDIDRegistryFile(path string) (*didRegistryFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &didRegistryFile{}, nil
	}
	if err != nil {
		return nil, err
	}
	reg := &didRegistryFile{}
	if err := json.Unmarshal(data, reg); err != nil {
		return nil, fmt.Errorf("parse DID registry %s: %w", path, err)
	}
	return reg, nil
}

func saveDIDRegistryFile(path string, reg *didRegistryFile) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
