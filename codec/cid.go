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
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"

	"github.com/dwn-project/dwn-node/dwnerrors"
)

// dagCBORCodec is the multicodec tag spec.md §6 calls out ("tag 0x71 in the
// common convention") for the canonical binary object encoding. This
// encoder is not byte-compatible with dag-cbor, but the spec only requires
// a self-describing v1 CID whose codec tag follows the same convention; an
// independent consumer resolving this codec point would still reach for a
// canonical-CBOR-shaped decoder, matching the intent of the tag.
const dagCBORCodec = 0x71

// CID computes the v1 content identifier of v: canonical-encode, SHA-256
// multihash, base32 string form (spec.md §4.1, §6).
func CID(v any) (string, error) {
	enc, err := Encode(v)
	if err != nil {
		return "", err
	}
	return CIDOfBytes(enc)
}

// CIDOfBytes computes the CID of already-canonically-encoded bytes,
// avoiding a redundant encode/decode round trip when the caller already
// has the encoded form (e.g. the descriptor bytes signed into a JWS).
func CIDOfBytes(enc []byte) (string, error) {
	sum, err := mh.Sum(enc, mh.SHA2_256, -1)
	if err != nil {
		return "", dwnerrors.Wrap(dwnerrors.CidInvalid, err, "failed to compute multihash")
	}
	c := cid.NewCidV1(dagCBORCodec, sum)
	return c.String(), nil
}

// ParseCID validates that s is a well-formed CID string, per spec.md §6.
func ParseCID(s string) (cid.Cid, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, dwnerrors.Wrap(dwnerrors.CidInvalid, err, "malformed CID")
	}
	return c, nil
}
