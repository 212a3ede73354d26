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

package auth

// Scope is a PermissionGrant descriptor's `scope` field: always an
// interface/method pair, optionally narrowed to a protocol and, within it,
// a protocolPath/contextId/recordId/schema (spec.md §3).
type Scope struct {
	Interface    string `json:"interface"`
	Method       string `json:"method"`
	Protocol     string `json:"protocol,omitempty"`
	ProtocolPath string `json:"protocolPath,omitempty"`
	ContextID    string `json:"contextId,omitempty"`
	RecordID     string `json:"recordId,omitempty"`
	Schema       string `json:"schema,omitempty"`
}

// GrantFields is a PermissionGrant descriptor's method-specific fields.
// `grantor` is the grant message's author, not a descriptor field.
type GrantFields struct {
	GrantedTo   string         `json:"grantedTo"`
	DateExpires string         `json:"dateExpires,omitempty"`
	Conditions  map[string]any `json:"conditions,omitempty"`
	Scope       Scope          `json:"scope"`
}

// RevokeFields is a PermissionsRevoke descriptor's method-specific fields.
type RevokeFields struct {
	PermissionGrantID string `json:"permissionGrantId"`
}

func fieldString(fields map[string]any, key string) string {
	v, _ := fields[key].(string)
	return v
}

func decodeGrantFields(fields map[string]any) GrantFields {
	gf := GrantFields{
		GrantedTo:   fieldString(fields, "grantedTo"),
		DateExpires: fieldString(fields, "dateExpires"),
	}
	if cond, ok := fields["conditions"].(map[string]any); ok {
		gf.Conditions = cond
	}
	if scope, ok := fields["scope"].(map[string]any); ok {
		gf.Scope = Scope{
			Interface:    fieldString(scope, "interface"),
			Method:       fieldString(scope, "method"),
			Protocol:     fieldString(scope, "protocol"),
			ProtocolPath: fieldString(scope, "protocolPath"),
			ContextID:    fieldString(scope, "contextId"),
			RecordID:     fieldString(scope, "recordId"),
			Schema:       fieldString(scope, "schema"),
		}
	}
	return gf
}

func decodeRevokeFields(fields map[string]any) RevokeFields {
	return RevokeFields{PermissionGrantID: fieldString(fields, "permissionGrantId")}
}
