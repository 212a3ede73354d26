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

// Package message defines the envelope shared by every interface/method
// pair, its CID identity, and signer/author resolution over delegated
// grants.
package message

import (
	"strings"

	"github.com/dwn-project/dwn-node/codec"
	"github.com/dwn-project/dwn-node/dwnerrors"
)

// Descriptor is the method-specific, schema-validated body of a message.
// It always carries interface/method; everything else is method-dependent
// and travels as a generic map so the codec and schema layers can operate
// on it without a type switch per method.
type Descriptor struct {
	Interface string         `json:"interface"`
	Method    string         `json:"method"`
	Fields    map[string]any `json:"-"`
}

// MarshalCanonical flattens the descriptor into the map shape the codec
// encoder expects: interface/method plus every method-specific field.
func (d *Descriptor) MarshalCanonical() map[string]any {
	out := make(map[string]any, len(d.Fields)+2)
	for k, v := range d.Fields {
		out[k] = v
	}
	out["interface"] = d.Interface
	out["method"] = d.Method
	return out
}

// SignaturePayload is the JWS payload signed over the descriptor: its CID
// plus optional permission context (spec.md §4.1).
type SignaturePayload struct {
	DescriptorCID        string `json:"descriptorCid"`
	PermissionGrantID     string `json:"permissionGrantId,omitempty"`
	AuthorDelegatedGrantCID string `json:"authorDelegatedGrantCid,omitempty"`
}

// Authorization is a message's signature envelope: a General JWS over a
// SignaturePayload plus, when the author signed via a delegated grant, the
// full grant message (so author resolution can recurse without a store
// round trip during authentication).
type Authorization struct {
	Signature            *codec.GeneralJWS `json:"signature"`
	AuthorDelegatedGrant  *Message          `json:"authorDelegatedGrant,omitempty"`
}

// Message is the canonical envelope: {descriptor, authorization}
// (spec.md §4.6). It is identified by the CID of its canonical encoding,
// including the authorization.
type Message struct {
	Descriptor    *Descriptor
	Authorization *Authorization
}

// CanonicalMap flattens the message into the shape fed to codec.Encode /
// codec.CID for identity computation: {descriptor: {...}, authorization: {...}}.
func (m *Message) CanonicalMap() map[string]any {
	auth := map[string]any{
		"signature": jwsToMap(m.Authorization.Signature),
	}
	if m.Authorization.AuthorDelegatedGrant != nil {
		auth["authorDelegatedGrant"] = m.Authorization.AuthorDelegatedGrant.CanonicalMap()
	}
	return map[string]any{
		"descriptor":    m.Descriptor.MarshalCanonical(),
		"authorization": auth,
	}
}

// CID is the message's identity: the CID of its canonical encoding
// including the authorization envelope (spec.md §3).
func (m *Message) CID() (string, error) {
	return codec.CID(m.CanonicalMap())
}

// DescriptorCID is the CID of the descriptor alone, the value signed into
// the JWS payload and, for RecordsWrite, the record's recordId on the
// initial write.
func (m *Message) DescriptorCID() (string, error) {
	return codec.CID(m.Descriptor.MarshalCanonical())
}

// Signer returns the DID portion (before '#') of the first signature's kid,
// per spec.md §4.1.
func (m *Message) Signer() (string, error) {
	if m.Authorization == nil || m.Authorization.Signature == nil || len(m.Authorization.Signature.Signatures) == 0 {
		return "", dwnerrors.New(dwnerrors.SignatureInvalid, "message carries no signatures")
	}
	header, err := codec.ProtectedHeaderOf(m.Authorization.Signature, 0)
	if err != nil {
		return "", err
	}
	did, _, _ := strings.Cut(header.Kid, "#")
	if did == "" {
		return "", dwnerrors.New(dwnerrors.SignatureInvalid, "kid has no DID portion")
	}
	return did, nil
}

// maxDelegationDepth bounds the authorDelegatedGrant recursion so a cyclic
// or pathologically long delegation chain fails fast instead of looping.
const maxDelegationDepth = 16

// Author resolves the acting author: the signer, unless
// authorization.authorDelegatedGrant is present, in which case the author
// is the signer of that grant, resolved recursively (spec.md §4.1, §9 —
// cyclic delegation, detected via a depth cap, is rejected).
func (m *Message) Author() (string, error) {
	return m.authorAt(0)
}

func (m *Message) authorAt(depth int) (string, error) {
	if depth > maxDelegationDepth {
		return "", dwnerrors.New(dwnerrors.SignatureInvalid, "authorDelegatedGrant chain exceeds maximum depth")
	}
	if m.Authorization != nil && m.Authorization.AuthorDelegatedGrant != nil {
		grant := m.Authorization.AuthorDelegatedGrant
		if grant.Authorization != nil && grant.Authorization.AuthorDelegatedGrant != nil {
			return grant.authorAt(depth + 1)
		}
		return grant.Signer()
	}
	return m.Signer()
}

// SignaturePayload decodes and parses the JWS payload as a SignaturePayload.
func (m *Message) SignaturePayload() (*SignaturePayload, error) {
	raw, err := codec.DecodePayload(m.Authorization.Signature)
	if err != nil {
		return nil, err
	}
	payload, err := decodeSignaturePayload(raw)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func jwsToMap(jws *codec.GeneralJWS) map[string]any {
	sigs := make([]any, 0, len(jws.Signatures))
	for _, s := range jws.Signatures {
		sigs = append(sigs, map[string]any{
			"protected": s.Protected,
			"signature": s.Signature,
		})
	}
	return map[string]any{
		"payload":    jws.Payload,
		"signatures": sigs,
	}
}

// Key identifies the logical "same record/configuration" slot a message
// belongs to for newest-wins comparison (spec.md §3): interface, method,
// and a method-specific identity value (recordId for Records, protocol for
// ProtocolsConfigure).
type Key struct {
	Interface string
	Method    string
	Identity  string
}

// Newer reports whether a is strictly newer than b under the
// (messageTimestamp lex, CID lex) total order (spec.md §3, §9).
func Newer(aTimestamp, aCID, bTimestamp, bCID string) bool {
	switch codec.CompareTimestamps(aTimestamp, bTimestamp) {
	case 1:
		return true
	case -1:
		return false
	default:
		return strings.Compare(aCID, bCID) > 0
	}
}
