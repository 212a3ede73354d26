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
	"io"
	"strings"

	"github.com/dwn-project/dwn-node/auth"
	"github.com/dwn-project/dwn-node/dwnerrors"
	"github.com/dwn-project/dwn-node/filter"
	"github.com/dwn-project/dwn-node/message"
	"github.com/dwn-project/dwn-node/protocol"
	"github.com/dwn-project/dwn-node/store"
)

// RecordsWrite implements spec.md §4.5's RecordsWrite pipeline: the first
// write to a recordId defines it as cid(descriptor); subsequent writes
// must name an existing recordId and win only when strictly newer.
func RecordsWrite(ctx context.Context, deps *Deps, tenantID string, msg *message.Message) (*Result, error) {
	if err := parseDescriptor(deps, msg); err != nil {
		return errorResult(err), nil
	}
	if err := authenticate(ctx, deps, msg); err != nil {
		return errorResult(err), nil
	}

	fields := msg.Descriptor.Fields
	descriptorCID, err := msg.DescriptorCID()
	if err != nil {
		return errorResult(err), nil
	}

	recordID := fieldString(fields, "recordId")
	isInitial := recordID == ""
	if isInitial {
		recordID = descriptorCID
	}

	existing, err := queryByRecordID(ctx, deps.Messages, tenantID, recordID)
	if err != nil {
		return errorResult(err), nil
	}
	if isInitial && len(existing) > 0 {
		return errorResult(dwnerrors.Newf(dwnerrors.RecordsWriteConflict, "recordId %q already exists", recordID)), nil
	}
	if !isInitial && len(existing) == 0 {
		return errorResult(notFoundErr("no existing record for recordId %q", recordID)), nil
	}

	protocolURI := fieldString(fields, "protocol")
	var ancestors []protocol.RecordAncestor
	if protocolURI != "" {
		if parentID := fieldString(fields, "parentId"); parentID != "" {
			if ancestors, err = recordAncestors(ctx, deps.Messages, tenantID, parentID); err != nil {
				return errorResult(err), nil
			}
		}
	}
	authReq := &auth.Request{
		Tenant:   tenantID,
		Message:  msg,
		Action:   "write",
		Record:   auth.RecordContext{ProtocolPath: fieldString(fields, "protocolPath"), Ancestors: ancestors},
		Messages: deps.Messages,
	}
	if err := auth.Authorize(ctx, authReq); err != nil {
		return errorResult(err), nil
	}

	timestamp := fieldString(fields, "messageTimestamp")
	cid, err := msg.CID()
	if err != nil {
		return errorResult(err), nil
	}

	var current *store.StoredMessage
	if len(existing) > 0 {
		current = pickNewest(existing)
		currentTimestamp, _ := current.Indexes[IndexMessageTimestamp].(string)
		if !message.Newer(timestamp, cid, currentTimestamp, current.CID) {
			return errorResult(dwnerrors.New(dwnerrors.RecordsWriteConflict, "existing write/delete is newer or equal")), nil
		}
	}

	encoded, err := encodeMessage(msg)
	if err != nil {
		return errorResult(err), nil
	}
	indexes := recordIndexes(msg, recordID, isInitial, recordActionWrite)
	if err := deps.Messages.Put(ctx, tenantID, cid, encoded, indexes); err != nil {
		return errorResult(dwnerrors.Wrap(dwnerrors.StoreAborted, err, "persist failed")), nil
	}

	if dataCID := fieldString(fields, "dataCid"); dataCID != "" {
		ok, err := deps.Data.Associate(ctx, tenantID, cid, dataCID)
		if err != nil || !ok {
			_ = deps.Messages.Delete(ctx, tenantID, cid)
			if err != nil {
				return errorResult(dwnerrors.Wrap(dwnerrors.StoreAborted, err, "data association failed")), nil
			}
			return errorResult(notFoundErr("referenced data blob %q not found", dataCID)), nil
		}
	}

	if current != nil {
		if initial, _ := current.Indexes[IndexIsInitialWrite].(bool); !initial {
			_ = deps.Messages.Delete(ctx, tenantID, current.CID)
		}
	}

	if _, err := deps.Log.Append(ctx, tenantID, cid, indexes); err != nil {
		return errorResult(dwnerrors.Wrap(dwnerrors.StoreAborted, err, "event log append failed")), nil
	}
	deps.Broker.Emit(tenantID, cid, indexes)

	result := okResult(202)
	result.RecordID = recordID
	result.MessageCID = cid
	return result, nil
}

// RecordsDelete implements spec.md §4.5's RecordsDelete pipeline. Deleting
// an already-tombstoned recordId is idempotent (DESIGN.md's resolution of
// spec.md §9's open question): it replies 202 without appending a second
// tombstone event.
func RecordsDelete(ctx context.Context, deps *Deps, tenantID string, msg *message.Message) (*Result, error) {
	if err := parseDescriptor(deps, msg); err != nil {
		return errorResult(err), nil
	}
	if err := authenticate(ctx, deps, msg); err != nil {
		return errorResult(err), nil
	}

	fields := msg.Descriptor.Fields
	recordID := fieldString(fields, "recordId")
	if recordID == "" {
		return errorResult(parseErr("recordId is required")), nil
	}

	existing, err := queryByRecordID(ctx, deps.Messages, tenantID, recordID)
	if err != nil {
		return errorResult(err), nil
	}
	if len(existing) == 0 {
		return errorResult(notFoundErr("no record %q to delete", recordID)), nil
	}
	current := pickNewest(existing)
	if action, _ := current.Indexes[IndexRecordAction].(string); action == recordActionDelete {
		result := okResult(202)
		result.RecordID = recordID
		result.MessageCID = current.CID
		return result, nil
	}

	protocolURI, _ := current.Indexes[IndexProtocol].(string)
	var ancestors []protocol.RecordAncestor
	if protocolURI != "" {
		if parentID, _ := current.Indexes[IndexParentID].(string); parentID != "" {
			if ancestors, err = recordAncestors(ctx, deps.Messages, tenantID, parentID); err != nil {
				return errorResult(err), nil
			}
		}
	}
	protocolPath, _ := current.Indexes[IndexProtocolPath].(string)
	authReq := &auth.Request{
		Tenant:   tenantID,
		Message:  msg,
		Action:   "delete",
		Record:   auth.RecordContext{ProtocolPath: protocolPath, Ancestors: ancestors},
		Messages: deps.Messages,
	}
	if err := auth.Authorize(ctx, authReq); err != nil {
		return errorResult(err), nil
	}

	timestamp := fieldString(fields, "messageTimestamp")
	cid, err := msg.CID()
	if err != nil {
		return errorResult(err), nil
	}
	currentTimestamp, _ := current.Indexes[IndexMessageTimestamp].(string)
	if !message.Newer(timestamp, cid, currentTimestamp, current.CID) {
		return errorResult(dwnerrors.New(dwnerrors.RecordsWriteConflict, "existing write is newer or equal")), nil
	}

	encoded, err := encodeMessage(msg)
	if err != nil {
		return errorResult(err), nil
	}
	indexes := deleteIndexesFrom(current, timestamp)
	if err := deps.Messages.Put(ctx, tenantID, cid, encoded, indexes); err != nil {
		return errorResult(dwnerrors.Wrap(dwnerrors.StoreAborted, err, "persist failed")), nil
	}
	if initial, _ := current.Indexes[IndexIsInitialWrite].(bool); !initial {
		_ = deps.Messages.Delete(ctx, tenantID, current.CID)
	}
	if dataCID, _ := current.Indexes[IndexDataCID].(string); dataCID != "" {
		_ = deps.Data.Delete(ctx, tenantID, current.CID, dataCID)
	}

	if _, err := deps.Log.Append(ctx, tenantID, cid, indexes); err != nil {
		return errorResult(dwnerrors.Wrap(dwnerrors.StoreAborted, err, "event log append failed")), nil
	}
	deps.Broker.Emit(tenantID, cid, indexes)

	result := okResult(202)
	result.RecordID = recordID
	result.MessageCID = cid
	return result, nil
}

// RecordsRead returns the newest non-tombstoned write for recordId plus its
// data stream, or 404 if missing or tombstoned.
func RecordsRead(ctx context.Context, deps *Deps, tenantID string, msg *message.Message) (*Result, error) {
	if err := parseDescriptor(deps, msg); err != nil {
		return errorResult(err), nil
	}
	if err := authenticate(ctx, deps, msg); err != nil {
		return errorResult(err), nil
	}

	recordID := fieldString(msg.Descriptor.Fields, "recordId")
	existing, err := queryByRecordID(ctx, deps.Messages, tenantID, recordID)
	if err != nil {
		return errorResult(err), nil
	}
	if len(existing) == 0 {
		return errorResult(notFoundErr("record %q not found", recordID)), nil
	}
	current := pickNewest(existing)
	if action, _ := current.Indexes[IndexRecordAction].(string); action == recordActionDelete {
		return errorResult(notFoundErr("record %q has been deleted", recordID)), nil
	}

	protocolURI, _ := current.Indexes[IndexProtocol].(string)
	var ancestors []protocol.RecordAncestor
	if protocolURI != "" {
		if parentID, _ := current.Indexes[IndexParentID].(string); parentID != "" {
			if ancestors, err = recordAncestors(ctx, deps.Messages, tenantID, parentID); err != nil {
				return errorResult(err), nil
			}
		}
	}
	protocolPath, _ := current.Indexes[IndexProtocolPath].(string)
	authReq := &auth.Request{
		Tenant:   tenantID,
		Message:  msg,
		Action:   "read",
		Record:   auth.RecordContext{ProtocolPath: protocolPath, Ancestors: ancestors},
		Messages: deps.Messages,
	}
	if err := auth.Authorize(ctx, authReq); err != nil {
		return errorResult(err), nil
	}

	result := okResult(200)
	result.RecordID = recordID
	result.MessageCID = current.CID
	result.Entries = []store.StoredMessage{*current}

	if dataCID, _ := current.Indexes[IndexDataCID].(string); dataCID != "" {
		rc, err := deps.Data.Get(ctx, tenantID, current.CID, dataCID)
		if err != nil {
			return errorResult(dwnerrors.New(dwnerrors.RecordsReadDataNotFound, "record data not found")), nil
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return errorResult(dwnerrors.Wrap(dwnerrors.StoreAborted, err, "data read failed")), nil
		}
		result.Data = data
	}
	return result, nil
}

// RecordsQuery translates the descriptor's filter into the store's filter
// grammar, restricting non-owner queries to published records (spec.md
// §4.5), and returns the matching, non-tombstoned entries.
func RecordsQuery(ctx context.Context, deps *Deps, tenantID string, msg *message.Message) (*Result, error) {
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
	if author != tenantID {
		payload, err := msg.SignaturePayload()
		if err != nil {
			return errorResult(err), nil
		}
		if payload.PermissionGrantID != "" {
			if err := auth.Authorize(ctx, &auth.Request{Tenant: tenantID, Message: msg, Action: "query", Messages: deps.Messages}); err != nil {
				return errorResult(err), nil
			}
		}
	}

	fields := msg.Descriptor.Fields
	disjunction := recordsFilterFrom(fieldMap(fields, "filter"), author != tenantID)

	var sortBy *store.Sort
	if s := fieldString(fields, "dateSort"); s != "" {
		dir := store.Ascending
		if strings.Contains(strings.ToLower(s), "desc") {
			dir = store.Descending
		}
		sortBy = &store.Sort{Property: IndexMessageTimestamp, Direction: dir}
	}

	res, err := deps.Messages.Query(ctx, tenantID, disjunction, sortBy, paginationFrom(fieldMap(fields, "pagination")), nil)
	if err != nil {
		return errorResult(dwnerrors.Wrap(dwnerrors.StoreAborted, err, "query failed")), nil
	}

	result := okResult(200)
	result.Entries = visibleRecords(res.Messages)
	result.Cursor = res.Cursor
	return result, nil
}

// RecordsSubscribe registers a live subscription against the event broker
// for records matching the descriptor's filter and returns its id.
func RecordsSubscribe(ctx context.Context, deps *Deps, tenantID string, msg *message.Message) (*Result, error) {
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
	if author != tenantID {
		if err := authorizeNonOwnerRecordsCall(ctx, deps, tenantID, msg, "subscribe"); err != nil {
			return errorResult(err), nil
		}
	}

	disjunction := recordsFilterFrom(fieldMap(msg.Descriptor.Fields, "filter"), author != tenantID)
	sub := deps.Broker.Subscribe(tenantID, disjunction)
	if deps.Subscriptions != nil {
		deps.Subscriptions.register(sub)
	}

	result := okResult(200)
	result.SubscriptionID = sub.ID()
	return result, nil
}

// authorizeNonOwnerRecordsCall runs the grant check for the Records
// interface's non-write operations, which (unlike RecordsWrite/Delete)
// have no single record to evaluate a protocol rule against.
func authorizeNonOwnerRecordsCall(ctx context.Context, deps *Deps, tenantID string, msg *message.Message, action string) error {
	payload, err := msg.SignaturePayload()
	if err != nil {
		return err
	}
	if payload.PermissionGrantID == "" {
		return dwnerrors.New(dwnerrors.GrantNotFound, "records "+action+" requires ownership or a permission grant")
	}
	return auth.Authorize(ctx, &auth.Request{Tenant: tenantID, Message: msg, Action: action, Messages: deps.Messages})
}

func queryByRecordID(ctx context.Context, messages store.MessageStore, tenantID, recordID string) ([]store.StoredMessage, error) {
	res, err := messages.Query(ctx, tenantID, filter.Disjunction{{
		IndexInterface: filter.Equal{Value: "Records"},
		IndexRecordID:  filter.Equal{Value: recordID},
	}}, nil, nil, nil)
	if err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "record lookup failed")
	}
	return res.Messages, nil
}

// pickNewest returns the entry that is the applicable "current" state for
// a recordId: the newest by (messageTimestamp, CID) order, per spec.md §3.
func pickNewest(entries []store.StoredMessage) *store.StoredMessage {
	best := &entries[0]
	for i := 1; i < len(entries); i++ {
		e := &entries[i]
		ts, _ := e.Indexes[IndexMessageTimestamp].(string)
		bts, _ := best.Indexes[IndexMessageTimestamp].(string)
		if message.Newer(ts, e.CID, bts, best.CID) {
			best = e
		}
	}
	return best
}

// recordAncestors climbs parentId references from parentID up to the root,
// returning ancestors ordered root-first as protocol.IsAuthorized expects.
func recordAncestors(ctx context.Context, messages store.MessageStore, tenantID, parentID string) ([]protocol.RecordAncestor, error) {
	var ancestors []protocol.RecordAncestor
	seen := make(map[string]bool)
	for parentID != "" {
		if seen[parentID] {
			return nil, dwnerrors.New(dwnerrors.ProtocolRuleDenied, "cyclic parentId chain")
		}
		seen[parentID] = true

		entries, err := queryByRecordID(ctx, messages, tenantID, parentID)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, dwnerrors.New(dwnerrors.ProtocolRuleDenied, "ancestor record not found")
		}
		current := pickNewest(entries)

		ancestorMsg, err := decodeMessage(current)
		if err != nil {
			return nil, err
		}
		author, err := ancestorMsg.Author()
		if err != nil {
			return nil, err
		}
		protocolPath, _ := current.Indexes[IndexProtocolPath].(string)
		recipient, _ := current.Indexes[IndexRecipient].(string)

		ancestors = append([]protocol.RecordAncestor{{ProtocolPath: protocolPath, Author: author, Recipient: recipient}}, ancestors...)
		parentID, _ = current.Indexes[IndexParentID].(string)
	}
	return ancestors, nil
}

func recordIndexes(msg *message.Message, recordID string, isInitial bool, action string) map[string]any {
	fields := msg.Descriptor.Fields
	idx := map[string]any{
		IndexInterface:        msg.Descriptor.Interface,
		IndexMethod:           msg.Descriptor.Method,
		IndexRecordID:         recordID,
		IndexMessageTimestamp: fieldString(fields, "messageTimestamp"),
		IndexIsInitialWrite:   isInitial,
		IndexRecordAction:     action,
		IndexPublished:        fieldBool(fields, "published"),
	}
	for _, f := range []string{"protocol", "protocolPath", "parentId", "contextId", "schema", "recipient", "dataCid", "dataFormat"} {
		if v := fieldString(fields, f); v != "" {
			idx[indexKeyFor(f)] = v
		}
	}
	return idx
}

func indexKeyFor(descriptorField string) string {
	switch descriptorField {
	case "protocol":
		return IndexProtocol
	case "protocolPath":
		return IndexProtocolPath
	case "parentId":
		return IndexParentID
	case "contextId":
		return IndexContextID
	case "schema":
		return IndexSchema
	case "recipient":
		return IndexRecipient
	case "dataCid":
		return IndexDataCID
	case "dataFormat":
		return IndexDataFormat
	default:
		return descriptorField
	}
}

// deleteIndexesFrom carries the deleted record's indexable attributes
// forward onto its tombstone so protocol-rule re-evaluation and queries
// over a tombstoned record still see its protocol/protocolPath/etc.
func deleteIndexesFrom(current *store.StoredMessage, timestamp string) map[string]any {
	idx := make(map[string]any, len(current.Indexes)+1)
	for k, v := range current.Indexes {
		idx[k] = v
	}
	idx[IndexMethod] = "Delete"
	idx[IndexMessageTimestamp] = timestamp
	idx[IndexRecordAction] = recordActionDelete
	idx[IndexIsInitialWrite] = false
	return idx
}

func recordsFilterFrom(filterFields map[string]any, restrictToPublished bool) filter.Disjunction {
	f := filter.Filter{IndexInterface: filter.Equal{Value: "Records"}}
	for _, key := range []string{"protocol", "protocolPath", "contextId", "schema", "recipient", "parentId", "recordId"} {
		if v := fieldString(filterFields, key); v != "" {
			f[indexKeyFor(key)] = filter.Equal{Value: v}
		}
	}
	if restrictToPublished {
		f[IndexPublished] = filter.Equal{Value: true}
	}
	return filter.Disjunction{f}
}

func paginationFrom(p map[string]any) *store.Pagination {
	if p == nil {
		return nil
	}
	if limit, ok := fieldNumber(p, "limit"); ok {
		return &store.Pagination{Limit: int(limit)}
	}
	return nil
}

func fieldNumber(fields map[string]any, key string) (float64, bool) {
	switch n := fields[key].(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// visibleRecords drops tombstoned entries from a query's result set.
func visibleRecords(entries []store.StoredMessage) []store.StoredMessage {
	out := make([]store.StoredMessage, 0, len(entries))
	for _, e := range entries {
		if action, _ := e.Indexes[IndexRecordAction].(string); action == recordActionDelete {
			continue
		}
		out = append(out, e)
	}
	return out
}
