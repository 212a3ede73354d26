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

package codec_test

import (
	"crypto/ed25519"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwn-project/dwn-node/codec"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	v := map[string]any{
		"interface": "Records",
		"method":    "Write",
		"dataCid":   "bafy123",
		"dataSize":  int64(42),
		"omitted":   nil, // absent field, must not survive the round trip
		"tags":      []any{"a", "b"},
	}

	enc, err := codec.Encode(v)
	require.NoError(t, err)

	decoded, err := codec.Decode(enc)
	require.NoError(t, err)

	reenc, err := codec.Encode(decoded)
	require.NoError(t, err)
	assert.Equal(t, enc, reenc, "re-encoding a decoded value must reproduce identical bytes")

	m, ok := decoded.(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, m, "omitted")
	assert.Equal(t, "Records", m["interface"])
}

func TestEncodeDeterministicKeyOrder(t *testing.T) {
	a := map[string]any{"b": int64(1), "a": int64(2), "c": int64(3)}
	b := map[string]any{"c": int64(3), "a": int64(2), "b": int64(1)}

	encA, err := codec.Encode(a)
	require.NoError(t, err)
	encB, err := codec.Encode(b)
	require.NoError(t, err)
	assert.Equal(t, encA, encB, "key insertion order must not affect the encoding")
}

func TestEncodeRejectsNil(t *testing.T) {
	_, err := codec.Encode(nil)
	assert.Error(t, err)

	_, err = codec.Encode([]any{"a", nil})
	assert.Error(t, err, "nil array elements are not absent fields and must fail")
}

func TestCIDStableForEquivalentValues(t *testing.T) {
	v1 := map[string]any{"a": int64(1), "b": "x"}
	v2 := map[string]any{"b": "x", "a": int64(1)}

	c1, err := codec.CID(v1)
	require.NoError(t, err)
	c2, err := codec.CID(v2)
	require.NoError(t, err)
	assert.Equal(t, c1, c2)

	c3, err := codec.CID(map[string]any{"a": int64(1), "b": "y"})
	require.NoError(t, err)
	assert.NotEqual(t, c1, c3)
}

func TestParseCIDRejectsGarbage(t *testing.T) {
	_, err := codec.ParseCID("not-a-cid")
	assert.Error(t, err)
}

// ed25519Signer is a minimal codec.Signer adapter over a raw Ed25519 key,
// standing in for crypto.KeyPair in these codec-level tests.
type ed25519Signer struct {
	kid string
	key ed25519.PrivateKey
}

func (s *ed25519Signer) Kid() string { return s.kid }
func (s *ed25519Signer) Alg() string { return "EdDSA" }
func (s *ed25519Signer) Sign(signingInput []byte) ([]byte, error) {
	return ed25519.Sign(s.key, signingInput), nil
}

func TestBuildAndVerifyJWS(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	signer := &ed25519Signer{kid: "did:dwn:alice#key-1", key: priv}
	payload := []byte(`{"descriptorCid":"bafyabc"}`)

	jws, err := codec.BuildJWS(payload, []codec.Signer{signer})
	require.NoError(t, err)
	require.Len(t, jws.Signatures, 1)

	header, err := codec.ProtectedHeaderOf(jws, 0)
	require.NoError(t, err)
	assert.Equal(t, "did:dwn:alice#key-1", header.Kid)
	assert.Equal(t, "EdDSA", header.Alg)

	decoded, err := codec.DecodePayload(jws)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)

	jwk := &codec.PublicKeyJWK{
		Kty: "OKP",
		Crv: "Ed25519",
		X:   base64.RawURLEncoding.EncodeToString(pub),
	}
	require.NoError(t, codec.VerifyJWS(jws, 0, jwk))
}

func TestVerifyJWSRejectsTamperedPayload(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	signer := &ed25519Signer{kid: "did:dwn:alice#key-1", key: priv}
	jws, err := codec.BuildJWS([]byte("original"), []codec.Signer{signer})
	require.NoError(t, err)

	jws.Payload = base64.RawURLEncoding.EncodeToString([]byte("tampered"))

	jwk := &codec.PublicKeyJWK{
		Kty: "OKP",
		Crv: "Ed25519",
		X:   base64.RawURLEncoding.EncodeToString(pub),
	}
	err = codec.VerifyJWS(jws, 0, jwk)
	assert.Error(t, err)
}

func TestTimestampValidation(t *testing.T) {
	now := codec.Now()
	require.NoError(t, codec.ValidateTimestamp(now))

	assert.Error(t, codec.ValidateTimestamp("2025-01-01T00:00:00Z"))
	assert.Error(t, codec.ValidateTimestamp("2025-01-01T00:00:00.000Z"))
	assert.Error(t, codec.ValidateTimestamp("not-a-timestamp"))

	earlier := "2025-01-01T00:00:00.000000Z"
	later := "2025-01-01T00:00:00.000001Z"
	assert.Negative(t, codec.CompareTimestamps(earlier, later))
	assert.Positive(t, codec.CompareTimestamps(later, earlier))
	assert.Zero(t, codec.CompareTimestamps(earlier, earlier))
}
