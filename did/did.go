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

// Package did resolves decentralized identifiers to the public keys and
// key material a message's signer claims to act under. Per spec.md §1,
// resolution is treated purely as a public-key lookup callable; concrete
// method drivers (did:ethr, did:web, ...) are a collaborator's concern.
package did

import (
	"context"

	"github.com/dwn-project/dwn-node/dwnerrors"
)

// VerificationMethod is one entry of a DID document's verificationMethod
// array, in the shape JWS kid values reference ("<did>#<id>").
type VerificationMethod struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	Controller   string        `json:"controller"`
	PublicKeyJWK *PublicKeyJWK `json:"publicKeyJwk,omitempty"`
}

// PublicKeyJWK mirrors codec.PublicKeyJWK's shape so the did package has no
// import-cycle dependency on codec; callers convert between the two.
type PublicKeyJWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y,omitempty"`
}

// Document is a minimal W3C DID document: just enough to resolve a kid to
// the public key material a JWS signature is verified against.
type Document struct {
	ID                 string                `json:"id"`
	VerificationMethod []VerificationMethod  `json:"verificationMethod"`
}

// VerificationMethodByID returns the verification method whose id matches
// either the bare fragment or the full "<did>#<fragment>" form.
func (d *Document) VerificationMethodByID(id string) (*VerificationMethod, error) {
	for i := range d.VerificationMethod {
		vm := &d.VerificationMethod[i]
		if vm.ID == id || vm.ID == d.ID+"#"+id {
			return vm, nil
		}
	}
	return nil, dwnerrors.Newf(dwnerrors.AuthenticationFailed, "no verification method %q in document %q", id, d.ID)
}

// Resolver resolves a DID to its document. Implementations may cache,
// dedupe concurrent resolutions, or proxy to an external method driver.
type Resolver interface {
	Resolve(ctx context.Context, did string) (*Document, error)
}
