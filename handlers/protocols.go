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

package handlers

import (
	"context"
	"net/url"
	"strings"

	"github.com/dwn-project/dwn-node/auth"
	"github.com/dwn-project/dwn-node/dwnerrors"
	"github.com/dwn-project/dwn-node/filter"
	"github.com/dwn-project/dwn-node/message"
	"github.com/dwn-project/dwn-node/store"
)

// ProtocolsConfigure implements spec.md §4.5: the incoming configuration
// is admitted only if it is strictly newer than the current configuration
// for the same protocol; admission replaces every older configure and
// removes their events from the log.
func ProtocolsConfigure(ctx context.Context, deps *Deps, tenantID string, msg *message.Message) (*Result, error) {
	if err := parseDescriptor(deps, msg); err != nil {
		return errorResult(err), nil
	}
	if err := authenticate(ctx, deps, msg); err != nil {
		return errorResult(err), nil
	}

	fields := msg.Descriptor.Fields
	def := fieldMap(fields, "definition")
	protocolURI := fieldString(def, "protocol")
	if protocolURI == "" {
		return errorResult(parseErr("definition.protocol is required")), nil
	}
	if !isNormalizedProtocolURI(protocolURI) {
		return errorResult(dwnerrors.New(dwnerrors.ProtocolUriNotNormalized, "protocol URI is not normalized")), nil
	}

	author, err := msg.Author()
	if err != nil {
		return errorResult(err), nil
	}
	if author != tenantID {
		payload, perr := msg.SignaturePayload()
		if perr != nil {
			return errorResult(perr), nil
		}
		if payload.PermissionGrantID == "" {
			return errorResult(dwnerrors.New(dwnerrors.GrantNotFound, "protocols configure requires ownership or a permission grant")), nil
		}
	}
	if err := auth.Authorize(ctx, &auth.Request{Tenant: tenantID, Message: msg, Messages: deps.Messages}); err != nil {
		return errorResult(err), nil
	}

	existing, err := queryByProtocol(ctx, deps, tenantID, protocolURI)
	if err != nil {
		return errorResult(err), nil
	}

	timestamp := fieldString(fields, "messageTimestamp")
	cid, err := msg.CID()
	if err != nil {
		return errorResult(err), nil
	}
	if len(existing) > 0 {
		newest := pickNewest(existing)
		newestTimestamp, _ := newest.Indexes[IndexMessageTimestamp].(string)
		if !message.Newer(timestamp, cid, newestTimestamp, newest.CID) {
			return errorResult(dwnerrors.New(dwnerrors.RecordsWriteConflict, "existing protocol configuration is newer or equal")), nil
		}
	}

	encoded, err := encodeMessage(msg)
	if err != nil {
		return errorResult(err), nil
	}
	indexes := map[string]any{
		IndexInterface:        "Protocols",
		IndexMethod:           "Configure",
		IndexProtocol:         protocolURI,
		IndexMessageTimestamp: timestamp,
		IndexPublished:        fieldBool(def, "published"),
	}
	if err := deps.Messages.Put(ctx, tenantID, cid, encoded, indexes); err != nil {
		return errorResult(dwnerrors.Wrap(dwnerrors.StoreAborted, err, "persist failed")), nil
	}

	var supersededCIDs []string
	for _, old := range existing {
		_ = deps.Messages.Delete(ctx, tenantID, old.CID)
		supersededCIDs = append(supersededCIDs, old.CID)
	}

	if _, err := deps.Log.Append(ctx, tenantID, cid, indexes); err != nil {
		return errorResult(dwnerrors.Wrap(dwnerrors.StoreAborted, err, "event log append failed")), nil
	}
	if len(supersededCIDs) > 0 {
		_ = deps.Log.DeleteEventsByCID(ctx, tenantID, supersededCIDs)
	}
	deps.Broker.Emit(tenantID, cid, indexes)

	result := okResult(202)
	result.MessageCID = cid
	return result, nil
}

// ProtocolsQuery returns the published protocol configurations a non-owner
// may see, or everything when queried by the owner (optionally narrowed
// further by a presented permission grant).
func ProtocolsQuery(ctx context.Context, deps *Deps, tenantID string, msg *message.Message) (*Result, error) {
	if err := parseDescriptor(deps, msg); err != nil {
		return errorResult(err), nil
	}
	if err := authenticate(ctx, deps, msg); err != nil {
		return errorResult(err), nil
	}

	author, err := msg.Author()
	if err != nil {
		return errorResult(err), nil
	}

	fields := msg.Descriptor.Fields
	filterFields := fieldMap(fields, "filter")
	f := filter.Filter{IndexInterface: filter.Equal{Value: "Protocols"}, IndexMethod: filter.Equal{Value: "Configure"}}
	if p := fieldString(filterFields, "protocol"); p != "" {
		f[IndexProtocol] = filter.Equal{Value: p}
	}
	if author != tenantID {
		f[IndexPublished] = filter.Equal{Value: true}
		if payload, perr := msg.SignaturePayload(); perr == nil && payload.PermissionGrantID != "" {
			if err := auth.Authorize(ctx, &auth.Request{Tenant: tenantID, Message: msg, Messages: deps.Messages}); err != nil {
				return errorResult(err), nil
			}
		}
	}

	res, err := deps.Messages.Query(ctx, tenantID, filter.Disjunction{f}, nil, nil, nil)
	if err != nil {
		return errorResult(dwnerrors.Wrap(dwnerrors.StoreAborted, err, "query failed")), nil
	}

	result := okResult(200)
	result.Entries = res.Messages
	result.Cursor = res.Cursor
	return result, nil
}

func queryByProtocol(ctx context.Context, deps *Deps, tenantID, protocolURI string) ([]store.StoredMessage, error) {
	res, err := deps.Messages.Query(ctx, tenantID, filter.Disjunction{{
		IndexInterface: filter.Equal{Value: "Protocols"},
		IndexMethod:    filter.Equal{Value: "Configure"},
		IndexProtocol:  filter.Equal{Value: protocolURI},
	}}, nil, nil, nil)
	if err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "protocol configuration lookup failed")
	}
	return res.Messages, nil
}

func isNormalizedProtocolURI(uri string) bool {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	if strings.HasSuffix(uri, "/") {
		return false
	}
	return u.Scheme == strings.ToLower(u.Scheme)
}
