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

	"github.com/dwn-project/dwn-node/dwnerrors"
	"github.com/dwn-project/dwn-node/filter"
	"github.com/dwn-project/dwn-node/message"
	"github.com/dwn-project/dwn-node/store"
)

// EventsQuery returns the tenant's watermark-ordered log entries matching
// filters, independent of any single record's messageTimestamp (spec.md
// §4.3). A non-owner must present a grant; a protocol-scoped grant admits
// the query only if every filter names the grant's protocol.
func EventsQuery(ctx context.Context, deps *Deps, tenantID string, msg *message.Message) (*Result, error) {
	if err := parseDescriptor(deps, msg); err != nil {
		return errorResult(err), nil
	}
	if err := authenticate(ctx, deps, msg); err != nil {
		return errorResult(err), nil
	}
	if err := requireOwnerOrGrant(ctx, deps, tenantID, msg, "query"); err != nil {
		return errorResult(err), nil
	}

	fields := msg.Descriptor.Fields
	disjunction := disjunctionFromFilters(fieldSlice(fields, "filters"))
	cursor := cursorFromString(fieldString(fields, "cursor"))

	res, err := deps.Log.QueryEvents(ctx, tenantID, disjunction, cursor)
	if err != nil {
		return errorResult(dwnerrors.Wrap(dwnerrors.StoreAborted, err, "event query failed")), nil
	}

	result := okResult(200)
	result.Events = res.Events
	result.Cursor = res.Cursor
	return result, nil
}

// EventsSubscribe registers a live subscription against the broker for log
// entries matching filters and returns its id.
func EventsSubscribe(ctx context.Context, deps *Deps, tenantID string, msg *message.Message) (*Result, error) {
	if err := parseDescriptor(deps, msg); err != nil {
		return errorResult(err), nil
	}
	if err := authenticate(ctx, deps, msg); err != nil {
		return errorResult(err), nil
	}
	if err := requireOwnerOrGrant(ctx, deps, tenantID, msg, "subscribe"); err != nil {
		return errorResult(err), nil
	}

	disjunction := disjunctionFromFilters(fieldSlice(msg.Descriptor.Fields, "filters"))
	sub := deps.Broker.Subscribe(tenantID, disjunction)
	if deps.Subscriptions != nil {
		deps.Subscriptions.register(sub)
	}

	result := okResult(200)
	result.SubscriptionID = sub.ID()
	return result, nil
}

// EventsGet fetches one previously accepted message by CID.
func EventsGet(ctx context.Context, deps *Deps, tenantID string, msg *message.Message) (*Result, error) {
	if err := parseDescriptor(deps, msg); err != nil {
		return errorResult(err), nil
	}
	if err := authenticate(ctx, deps, msg); err != nil {
		return errorResult(err), nil
	}
	if err := requireOwnerOrGrant(ctx, deps, tenantID, msg, "get"); err != nil {
		return errorResult(err), nil
	}

	messageCID := fieldString(msg.Descriptor.Fields, "messageCid")
	if messageCID == "" {
		return errorResult(parseErr("messageCid is required")), nil
	}
	stored, err := deps.Messages.Get(ctx, tenantID, messageCID)
	if err != nil {
		return errorResult(notFoundErr("message %q not found", messageCID)), nil
	}

	result := okResult(200)
	result.MessageCID = messageCID
	result.Entries = []store.StoredMessage{*stored}
	return result, nil
}

// disjunctionFromFilters turns an Events/Messages filters array into a
// store disjunction, one filter.Filter per array element, over the index
// fields a persisted message may carry.
func disjunctionFromFilters(filters []any) filter.Disjunction {
	var d filter.Disjunction
	for _, raw := range filters {
		f, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		d = append(d, filterFromFields(f))
	}
	return d
}

func filterFromFields(fields map[string]any) filter.Filter {
	f := filter.Filter{}
	for _, key := range []string{"interface", "method", "protocol", "protocolPath", "contextId", "schema", "recordId", "parentId", "recipient", "dataFormat", "dataCid"} {
		if v := fieldString(fields, key); v != "" {
			f[indexKeyFor(key)] = filter.Equal{Value: v}
		}
	}
	return f
}

func cursorFromString(s string) *store.Cursor {
	if s == "" {
		return nil
	}
	return &store.Cursor{MessageCID: s}
}
