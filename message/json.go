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

package message

import (
	"encoding/json"

	"github.com/dwn-project/dwn-node/codec"
	"github.com/dwn-project/dwn-node/dwnerrors"
)

// MarshalJSON renders the descriptor the way it travels on the wire and is
// stored: interface/method flattened alongside every method-specific field.
func (d *Descriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.MarshalCanonical())
}

// UnmarshalJSON recovers interface/method plus the remaining fields.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return dwnerrors.Wrap(dwnerrors.SchemaValidationFailure, err, "malformed descriptor")
	}
	iface, _ := flat["interface"].(string)
	method, _ := flat["method"].(string)
	delete(flat, "interface")
	delete(flat, "method")
	d.Interface = iface
	d.Method = method
	d.Fields = flat
	return nil
}

// wireMessage mirrors Message's {descriptor, authorization} wire shape.
type wireMessage struct {
	Descriptor    *Descriptor      `json:"descriptor"`
	Authorization *wireAuthorization `json:"authorization"`
}

type wireAuthorization struct {
	Signature            *codec.GeneralJWS `json:"signature"`
	AuthorDelegatedGrant *Message          `json:"authorDelegatedGrant,omitempty"`
}

// MarshalJSON renders the message as {descriptor, authorization}.
func (m *Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{Descriptor: m.Descriptor}
	if m.Authorization != nil {
		w.Authorization = &wireAuthorization{
			Signature:            m.Authorization.Signature,
			AuthorDelegatedGrant: m.Authorization.AuthorDelegatedGrant,
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON recovers a message from its wire shape.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return dwnerrors.Wrap(dwnerrors.SchemaValidationFailure, err, "malformed message")
	}
	m.Descriptor = w.Descriptor
	if w.Authorization != nil {
		m.Authorization = &Authorization{
			Signature:            w.Authorization.Signature,
			AuthorDelegatedGrant: w.Authorization.AuthorDelegatedGrant,
		}
	}
	return nil
}
