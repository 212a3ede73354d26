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

// Package auth implements spec.md §4.4: the contractual sequence of checks
// — tenant shortcut, permission-grant resolution and scope narrowing, and
// protocol rule evaluation — that admits or denies an authenticated
// message.
package auth

import (
	"context"
	"encoding/json"

	"github.com/dwn-project/dwn-node/codec"
	"github.com/dwn-project/dwn-node/dwnerrors"
	"github.com/dwn-project/dwn-node/message"
	"github.com/dwn-project/dwn-node/protocol"
	"github.com/dwn-project/dwn-node/store"
)

// RecordContext carries the Records-specific fields Authorize needs for
// protocol rule evaluation; other interfaces pass a zero value.
type RecordContext struct {
	ProtocolPath string
	Ancestors    []protocol.RecordAncestor
}

// Request bundles what Authorize needs to decide admission for one
// incoming message.
type Request struct {
	Tenant    string
	Message   *message.Message
	Action    string // the protocol-rule action name ("write", "read", "query", "subscribe", "delete")
	Record    RecordContext
	Messages  store.MessageStore
}

// Authorize runs the §4.4 sequence against req and returns nil if admitted,
// or a typed *dwnerrors.Error otherwise.
func Authorize(ctx context.Context, req *Request) error {
	author, err := req.Message.Author()
	if err != nil {
		return err
	}
	if author == req.Tenant {
		return nil
	}

	payload, err := req.Message.SignaturePayload()
	if err != nil {
		return err
	}

	if payload.PermissionGrantID != "" {
		return authorizeByGrant(ctx, req, author, payload.PermissionGrantID)
	}

	if req.Message.Descriptor.Interface == "Records" {
		return authorizeByProtocolRule(ctx, req, author)
	}

	return dwnerrors.New(dwnerrors.GrantNotFound, "no permission grant and no applicable protocol rule")
}

func authorizeByGrant(ctx context.Context, req *Request, author string, grantID string) error {
	stored, err := req.Messages.Get(ctx, req.Tenant, grantID)
	if err != nil {
		return dwnerrors.New(dwnerrors.GrantNotFound, "grant message not found")
	}
	grantMsg, err := decodeStoredMessage(stored)
	if err != nil {
		return err
	}

	grantor, err := grantMsg.Author()
	if err != nil {
		return err
	}
	if grantor != req.Tenant {
		return dwnerrors.New(dwnerrors.GrantNotGranted, "grant was not issued by the tenant")
	}

	fields := decodeGrantFields(grantMsg.Descriptor.Fields)
	if fields.GrantedTo != author {
		return dwnerrors.New(dwnerrors.GrantNotGrantedToAuthor, "grant was not issued to this author")
	}

	if fields.DateExpires != "" && codec.CompareTimestamps(codec.Now(), fields.DateExpires) > 0 {
		return dwnerrors.New(dwnerrors.GrantExpired, "grant has expired")
	}

	revoked, err := isRevoked(ctx, req.Messages, req.Tenant, grantID)
	if err != nil {
		return err
	}
	if revoked {
		return dwnerrors.New(dwnerrors.GrantRevoked, "grant has been revoked")
	}

	desc := req.Message.Descriptor
	if fields.Scope.Interface != desc.Interface {
		return dwnerrors.New(dwnerrors.GrantInterfaceMismatch, "grant scope interface mismatch")
	}
	if fields.Scope.Method != desc.Method {
		return dwnerrors.New(dwnerrors.GrantMethodMismatch, "grant scope method mismatch")
	}

	return narrowScope(fields.Scope, desc)
}

// narrowScope implements spec.md §4.4 step 3 for every protocol-scoped
// interface.
func narrowScope(scope Scope, desc *message.Descriptor) error {
	if scope.Protocol == "" {
		return nil
	}
	switch desc.Interface + "/" + desc.Method {
	case "Protocols/Configure":
		def := fieldString(desc.Fields, "protocol")
		if grantedAsDefinitionProtocol(desc) != scope.Protocol && def != scope.Protocol {
			return dwnerrors.New(dwnerrors.GrantProtocolScopeMismatch, "grant does not cover this protocol")
		}
	case "Protocols/Query":
		if filterProtocol := firstFilterField(desc, "protocol"); filterProtocol != "" && filterProtocol != scope.Protocol {
			return dwnerrors.New(dwnerrors.GrantProtocolScopeMismatch, "query filter protocol not covered by grant")
		}
	case "Events/Query", "Messages/Query":
		filters, _ := desc.Fields["filters"].([]any)
		for _, raw := range filters {
			f, _ := raw.(map[string]any)
			if fieldString(f, "protocol") != scope.Protocol {
				return dwnerrors.New(dwnerrors.GrantProtocolScopeMismatch, "filter protocol not covered by grant")
			}
		}
	default:
		if desc.Interface == "Records" {
			if p := fieldString(desc.Fields, "protocol"); p != "" && p != scope.Protocol {
				return dwnerrors.New(dwnerrors.GrantProtocolScopeMismatch, "record protocol not covered by grant")
			}
			if scope.ProtocolPath != "" && fieldString(desc.Fields, "protocolPath") != scope.ProtocolPath {
				return dwnerrors.New(dwnerrors.GrantProtocolScopeMismatch, "record protocolPath not covered by grant")
			}
			if scope.ContextID != "" && fieldString(desc.Fields, "contextId") != scope.ContextID {
				return dwnerrors.New(dwnerrors.GrantProtocolScopeMismatch, "record contextId not covered by grant")
			}
			if scope.RecordID != "" && fieldString(desc.Fields, "recordId") != scope.RecordID {
				return dwnerrors.New(dwnerrors.GrantProtocolScopeMismatch, "record recordId not covered by grant")
			}
			if scope.Schema != "" && fieldString(desc.Fields, "schema") != scope.Schema {
				return dwnerrors.New(dwnerrors.GrantProtocolScopeMismatch, "record schema not covered by grant")
			}
		}
	}
	return nil
}

func grantedAsDefinitionProtocol(desc *message.Descriptor) string {
	def, ok := desc.Fields["definition"].(map[string]any)
	if !ok {
		return ""
	}
	return fieldString(def, "protocol")
}

func firstFilterField(desc *message.Descriptor, field string) string {
	if f, ok := desc.Fields["filter"].(map[string]any); ok {
		return fieldString(f, field)
	}
	if fs, ok := desc.Fields["filters"].([]any); ok {
		for _, raw := range fs {
			if f, ok := raw.(map[string]any); ok {
				if v := fieldString(f, field); v != "" {
					return v
				}
			}
		}
	}
	return ""
}

func authorizeByProtocolRule(ctx context.Context, req *Request, author string) error {
	protocolURI := fieldString(req.Message.Descriptor.Fields, "protocol")
	if protocolURI == "" {
		return dwnerrors.New(dwnerrors.ProtocolRuleDenied, "record carries no protocol for rule evaluation")
	}

	def, err := loadProtocolDefinition(ctx, req.Tenant, req.Messages, protocolURI)
	if err != nil {
		return err
	}

	set, err := protocol.ResolveRuleSet(def, req.Record.ProtocolPath)
	if err != nil {
		return err
	}

	if !protocol.IsAuthorized(set, req.Action, author, req.Record.Ancestors) {
		return dwnerrors.New(dwnerrors.ProtocolRuleDenied, "no protocol rule admits this actor")
	}
	return nil
}

func loadProtocolDefinition(ctx context.Context, tenant string, messages store.MessageStore, protocolURI string) (*protocol.Definition, error) {
	result, err := messages.Query(ctx, tenant, filterByProtocolConfigure(protocolURI), nil, nil, nil)
	if err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "protocol configuration lookup failed")
	}
	if len(result.Messages) == 0 {
		return nil, dwnerrors.Newf(dwnerrors.ProtocolNotFound, "no ProtocolsConfigure found for %q", protocolURI)
	}

	configureMsg, err := decodeStoredMessage(&result.Messages[0])
	if err != nil {
		return nil, err
	}
	defRaw, ok := configureMsg.Descriptor.Fields["definition"].(map[string]any)
	if !ok {
		return nil, dwnerrors.New(dwnerrors.ProtocolNotFound, "malformed protocol definition")
	}
	return decodeDefinition(defRaw)
}

func isRevoked(ctx context.Context, messages store.MessageStore, tenant string, grantID string) (bool, error) {
	result, err := messages.Query(ctx, tenant, filterByRevokedGrant(grantID), nil, nil, nil)
	if err != nil {
		return false, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "revocation lookup failed")
	}
	return len(result.Messages) > 0, nil
}

func decodeStoredMessage(stored *store.StoredMessage) (*message.Message, error) {
	var msg message.Message
	if err := json.Unmarshal(stored.Encoded, &msg); err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "corrupt stored message")
	}
	return &msg, nil
}

func decodeDefinition(raw map[string]any) (*protocol.Definition, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.Internal, err, "failed to marshal protocol definition")
	}
	var def protocol.Definition
	if err := json.Unmarshal(encoded, &def); err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.Internal, err, "failed to decode protocol definition")
	}
	return &def, nil
}
