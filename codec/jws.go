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

package codec

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/dwn-project/dwn-node/dwnerrors"
)

// ProtectedHeader is the JWS protected header: alg + a fully-qualified DID
// URL kid, per spec.md §6.
type ProtectedHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

// Signature is one entry of a General JWS's signatures array.
type Signature struct {
	Protected string `json:"protected"` // base64url(JSON(ProtectedHeader))
	Signature string `json:"signature"` // base64url(raw signature bytes)
}

// GeneralJWS is the authorization envelope's signature container
// (spec.md §4.1, §6).
type GeneralJWS struct {
	Payload    string      `json:"payload"` // base64url(payload bytes)
	Signatures []Signature `json:"signatures"`
}

// Signer produces a raw signature over signing input and identifies itself
// by kid/alg, the minimal contract codec needs from a key pair (satisfied
// by crypto.KeyPair via a thin adapter).
type Signer interface {
	Kid() string
	Alg() string
	Sign(signingInput []byte) ([]byte, error)
}

// BuildJWS base64url-encodes payload and, for each signer, computes the
// protected header and signs header.payload, per spec.md §4.1.
func BuildJWS(payload []byte, signers []Signer) (*GeneralJWS, error) {
	if len(signers) == 0 {
		return nil, dwnerrors.New(dwnerrors.SignatureInvalid, "at least one signer is required")
	}
	jws := &GeneralJWS{
		Payload: base64.RawURLEncoding.EncodeToString(payload),
	}
	for _, signer := range signers {
		header := ProtectedHeader{Alg: signer.Alg(), Kid: signer.Kid()}
		headerBytes, err := json.Marshal(header)
		if err != nil {
			return nil, dwnerrors.Wrap(dwnerrors.SignatureInvalid, err, "failed to marshal protected header")
		}
		protected := base64.RawURLEncoding.EncodeToString(headerBytes)
		signingInput := []byte(protected + "." + jws.Payload)
		sig, err := signer.Sign(signingInput)
		if err != nil {
			return nil, dwnerrors.Wrap(dwnerrors.SignatureInvalid, err, "signing failed")
		}
		jws.Signatures = append(jws.Signatures, Signature{
			Protected: protected,
			Signature: base64.RawURLEncoding.EncodeToString(sig),
		})
	}
	return jws, nil
}

// PublicKeyJWK is the minimal JWK shape VerifyJWS needs: enough to
// reconstruct an Ed25519 or secp256k1 public key.
type PublicKeyJWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x"`
	Y   string `json:"y,omitempty"`
}

// VerifyJWS verifies the i-th signature of jws against publicKeyJwk,
// recomputing the signing input and dispatching on the algorithm named by
// the protected header, per spec.md §4.1.
func VerifyJWS(jws *GeneralJWS, index int, publicKeyJwk *PublicKeyJWK) error {
	if index < 0 || index >= len(jws.Signatures) {
		return dwnerrors.New(dwnerrors.SignatureInvalid, "signature index out of range")
	}
	sig := jws.Signatures[index]

	headerBytes, err := base64.RawURLEncoding.DecodeString(sig.Protected)
	if err != nil {
		return dwnerrors.Wrap(dwnerrors.SignatureInvalid, err, "malformed protected header encoding")
	}
	var header ProtectedHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return dwnerrors.Wrap(dwnerrors.SignatureInvalid, err, "malformed protected header")
	}

	signingInput := []byte(sig.Protected + "." + jws.Payload)
	sigBytes, err := base64.RawURLEncoding.DecodeString(sig.Signature)
	if err != nil {
		return dwnerrors.Wrap(dwnerrors.SignatureInvalid, err, "malformed signature encoding")
	}

	switch header.Alg {
	case "EdDSA":
		return verifyEdDSA(publicKeyJwk, signingInput, sigBytes)
	case "ES256K":
		return verifyES256K(publicKeyJwk, signingInput, sigBytes)
	default:
		return dwnerrors.Newf(dwnerrors.PrivateKeyUnsupportedCurve, "unsupported alg %q", header.Alg)
	}
}

// ProtectedHeaderOf decodes signature i's protected header without
// verifying, used by signer/author resolution (kid extraction).
func ProtectedHeaderOf(jws *GeneralJWS, index int) (*ProtectedHeader, error) {
	if index < 0 || index >= len(jws.Signatures) {
		return nil, dwnerrors.New(dwnerrors.SignatureInvalid, "signature index out of range")
	}
	headerBytes, err := base64.RawURLEncoding.DecodeString(jws.Signatures[index].Protected)
	if err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.SignatureInvalid, err, "malformed protected header encoding")
	}
	var header ProtectedHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.SignatureInvalid, err, "malformed protected header")
	}
	return &header, nil
}

// DecodePayload base64url-decodes the JWS payload.
func DecodePayload(jws *GeneralJWS) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(jws.Payload)
	if err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.SignatureInvalid, err, "malformed payload encoding")
	}
	return b, nil
}

func verifyEdDSA(jwk *PublicKeyJWK, signingInput, sig []byte) error {
	if jwk.Kty != "OKP" || jwk.Crv != "Ed25519" {
		return dwnerrors.New(dwnerrors.PrivateKeyUnsupportedCurve, "JWK is not an Ed25519 OKP key")
	}
	pub, err := base64.RawURLEncoding.DecodeString(jwk.X)
	if err != nil {
		return dwnerrors.Wrap(dwnerrors.SignatureInvalid, err, "malformed Ed25519 public key")
	}
	if len(pub) != ed25519.PublicKeySize {
		return dwnerrors.New(dwnerrors.SignatureInvalid, "invalid Ed25519 public key length")
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), signingInput, sig) {
		return dwnerrors.New(dwnerrors.SignatureInvalid, "Ed25519 signature verification failed")
	}
	return nil
}

func verifyES256K(jwk *PublicKeyJWK, signingInput, sig []byte) error {
	if jwk.Kty != "EC" || jwk.Crv != "secp256k1" {
		return dwnerrors.New(dwnerrors.PrivateKeyUnsupportedCurve, "JWK is not a secp256k1 EC key")
	}
	xBytes, err := base64.RawURLEncoding.DecodeString(jwk.X)
	if err != nil {
		return dwnerrors.Wrap(dwnerrors.SignatureInvalid, err, "malformed secp256k1 X coordinate")
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(jwk.Y)
	if err != nil {
		return dwnerrors.Wrap(dwnerrors.SignatureInvalid, err, "malformed secp256k1 Y coordinate")
	}
	uncompressed := make([]byte, 0, 65)
	uncompressed = append(uncompressed, 0x04)
	uncompressed = append(uncompressed, padTo32(xBytes)...)
	uncompressed = append(uncompressed, padTo32(yBytes)...)
	pubKey, err := secp256k1.ParsePubKey(uncompressed)
	if err != nil {
		return dwnerrors.Wrap(dwnerrors.SignatureInvalid, err, "malformed secp256k1 public key")
	}
	if len(sig) != 64 {
		return dwnerrors.New(dwnerrors.SignatureInvalid, "invalid secp256k1 signature length")
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	digest := sha256.Sum256(signingInput)
	if !ecdsa.Verify(pubKey.ToECDSA(), digest[:], r, s) {
		return dwnerrors.New(dwnerrors.SignatureInvalid, "secp256k1 signature verification failed")
	}
	return nil
}

// padTo32 left-pads b with zero bytes to a 32-byte big-endian field element,
// the shape secp256k1.ParsePubKey's uncompressed form requires.
func padTo32(b []byte) []byte {
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}
