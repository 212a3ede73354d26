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
	"github.com/dwn-project/dwn-node/message"
	"github.com/dwn-project/dwn-node/store"
)

// MessagesGet fetches every message named by messageCids, skipping any
// that no longer exist rather than failing the whole call.
func MessagesGet(ctx context.Context, deps *Deps, tenantID string, msg *message.Message) (*Result, error) {
	if err := parseDescriptor(deps, msg); err != nil {
		return errorResult(err), nil
	}
	if err := authenticate(ctx, deps, msg); err != nil {
		return errorResult(err), nil
	}
	if err := requireOwnerOrGrant(ctx, deps, tenantID, msg, "get"); err != nil {
		return errorResult(err), nil
	}

	cids := fieldStringSlice(msg.Descriptor.Fields, "messageCids")
	entries := make([]store.StoredMessage, 0, len(cids))
	for _, cid := range cids {
		stored, err := deps.Messages.Get(ctx, tenantID, cid)
		if err != nil {
			continue
		}
		entries = append(entries, *stored)
	}

	result := okResult(200)
	result.Entries = entries
	return result, nil
}

// MessagesQuery translates filters into the store's filter grammar and
// returns every matching message regardless of interface, narrowed to a
// grant's protocol scope for non-owners.
func MessagesQuery(ctx context.Context, deps *Deps, tenantID string, msg *message.Message) (*Result, error) {
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

	res, err := deps.Messages.Query(ctx, tenantID, disjunction, nil, nil, cursor)
	if err != nil {
		return errorResult(dwnerrors.Wrap(dwnerrors.StoreAborted, err, "message query failed")), nil
	}

	result := okResult(200)
	result.Entries = res.Messages
	result.Cursor = res.Cursor
	return result, nil
}

// MessagesSubscribe registers a live subscription over filters spanning
// every interface and returns its id.
func MessagesSubscribe(ctx context.Context, deps *Deps, tenantID string, msg *message.Message) (*Result, error) {
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
