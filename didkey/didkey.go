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

// Package didkey generates and resolves self-certifying did:key identifiers
// for Ed25519 keys, useful for tests and single-key tenants that need no
// external DID method driver.
package didkey

import (
	"crypto/ed25519"
	"encoding/base64"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/dwn-project/dwn-node/did"
	"github.com/dwn-project/dwn-node/dwnerrors"
)

// ed25519MulticodecPrefix is the multicodec varint (0xed01) prepended to a
// raw Ed25519 public key before base58btc-encoding it into a did:key.
var ed25519MulticodecPrefix = []byte{0xed, 0x01}

// FromPublicKey builds the did:key identifier for an Ed25519 public key.
func FromPublicKey(pub ed25519.PublicKey) string {
	encoded := append(append([]byte(nil), ed25519MulticodecPrefix...), pub...)
	return "did:key:z" + base58.Encode(encoded)
}

// Document builds the DID document for a did:key identifier, with a single
// verification method carrying the embedded public key.
func Document(didKey string) (*did.Document, error) {
	pub, err := PublicKey(didKey)
	if err != nil {
		return nil, err
	}
	vmID := didKey + "#" + strings.TrimPrefix(didKey, "did:key:")
	return &did.Document{
		ID: didKey,
		VerificationMethod: []did.VerificationMethod{
			{
				ID:         vmID,
				Type:       "JsonWebKey2020",
				Controller: didKey,
				PublicKeyJWK: &did.PublicKeyJWK{
					Kty: "OKP",
					Crv: "Ed25519",
					X:   base64.RawURLEncoding.EncodeToString(pub),
				},
			},
		},
	}, nil
}

// PublicKey recovers the raw Ed25519 public key embedded in a did:key
// identifier.
func PublicKey(didKey string) (ed25519.PublicKey, error) {
	encoded := strings.TrimPrefix(didKey, "did:key:z")
	if encoded == didKey {
		return nil, dwnerrors.Newf(dwnerrors.AuthenticationFailed, "not a did:key identifier: %q", didKey)
	}
	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.AuthenticationFailed, err, "invalid did:key base58")
	}
	if len(raw) != len(ed25519MulticodecPrefix)+ed25519.PublicKeySize || raw[0] != ed25519MulticodecPrefix[0] || raw[1] != ed25519MulticodecPrefix[1] {
		return nil, dwnerrors.New(dwnerrors.AuthenticationFailed, "unsupported did:key multicodec")
	}
	return ed25519.PublicKey(raw[len(ed25519MulticodecPrefix):]), nil
}
