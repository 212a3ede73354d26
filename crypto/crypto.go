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

// Package crypto holds the DID-key pairs tenants use to sign message
// authorizations: generation, JWK/vault persistence, and the thin adapter
// that lets a KeyPair satisfy codec.Signer.
package crypto

import (
	gocrypto "crypto"
	"errors"
)

// KeyType names an algorithm this package knows how to generate, sign with,
// and export, matching the alg values codec/jws.go verifies.
type KeyType string

const (
	KeyTypeEd25519   KeyType = "Ed25519"
	KeyTypeSecp256k1 KeyType = "secp256k1"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidKeyType   = errors.New("invalid key type")
	ErrInvalidKeyFormat = errors.New("invalid key format")
)

// KeyPair is the minimal shape every concrete key in crypto/keys implements:
// enough to sign, verify, and export a key regardless of its curve.
type KeyPair interface {
	PublicKey() gocrypto.PublicKey
	PrivateKey() gocrypto.PrivateKey
	Type() KeyType
	Sign(message []byte) ([]byte, error)
	Verify(message, signature []byte) error
	ID() string
}

// KeyFormat names an export/import encoding a formats.* exporter supports.
type KeyFormat string

const (
	KeyFormatJWK KeyFormat = "jwk"
)

// KeyExporter serializes a KeyPair to an external format.
type KeyExporter interface {
	Export(kp KeyPair, format KeyFormat) ([]byte, error)
	ExportPublic(kp KeyPair, format KeyFormat) ([]byte, error)
}

// KeyImporter deserializes a KeyPair from an external format.
type KeyImporter interface {
	Import(data []byte, format KeyFormat) (KeyPair, error)
	ImportPublic(data []byte, format KeyFormat) (gocrypto.PublicKey, error)
}

// algInfo describes one registered algorithm: its key type and the JWS
// alg value used for it.
type algInfo struct {
	KeyType KeyType
	Alg     string // JWS alg value, per codec/jws.go
}

var registry = map[KeyType]algInfo{}

func register(info algInfo) {
	registry[info.KeyType] = info
}

func init() {
	register(algInfo{KeyType: KeyTypeEd25519, Alg: "EdDSA"})
	register(algInfo{KeyType: KeyTypeSecp256k1, Alg: "ES256K"})
}

// AlgFor returns the JWS alg value for a registered key type.
func AlgFor(t KeyType) (string, bool) {
	info, ok := registry[t]
	return info.Alg, ok
}

// SupportedKeyTypes lists every key type this build can generate.
func SupportedKeyTypes() []KeyType {
	out := make([]KeyType, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	return out
}

// Signer adapts a KeyPair to codec.Signer by pairing it with the
// fully-qualified DID URL kid under which its public key is published.
type Signer struct {
	kid string
	kp  KeyPair
}

// NewSigner binds kp to kid, the `did:...#key-id` codec.BuildJWS will place
// in the protected header.
func NewSigner(kid string, kp KeyPair) *Signer {
	return &Signer{kid: kid, kp: kp}
}

func (s *Signer) Kid() string { return s.kid }

func (s *Signer) Alg() string {
	alg, _ := AlgFor(s.kp.Type())
	return alg
}

func (s *Signer) Sign(signingInput []byte) ([]byte, error) {
	return s.kp.Sign(signingInput)
}
