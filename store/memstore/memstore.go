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

// Package memstore is an in-memory MessageStore/DataStore/EventLog, backed
// by a per-tenant map guarded by a RWMutex, for tests and single-process
// deployments.
package memstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	"github.com/dwn-project/dwn-node/codec"
	"github.com/dwn-project/dwn-node/dwnerrors"
	"github.com/dwn-project/dwn-node/filter"
	"github.com/dwn-project/dwn-node/store"
)

// dataCIDOf content-addresses a data blob the same way message identity is
// computed: SHA-256 multihash wrapped in a v1 CID.
func dataCIDOf(data []byte) (string, error) {
	return codec.CIDOfBytes(data)
}

type tenantMessages struct {
	byCID map[string]*store.StoredMessage
}

// MessageStore is an in-memory implementation of store.MessageStore.
type MessageStore struct {
	mu      sync.RWMutex
	tenants map[string]*tenantMessages
}

var _ store.MessageStore = (*MessageStore)(nil)

// NewMessageStore returns an empty in-memory MessageStore.
func NewMessageStore() *MessageStore {
	return &MessageStore{tenants: make(map[string]*tenantMessages)}
}

func (s *MessageStore) tenantOf(tenant string) *tenantMessages {
	t, ok := s.tenants[tenant]
	if !ok {
		t = &tenantMessages{byCID: make(map[string]*store.StoredMessage)}
		s.tenants[tenant] = t
	}
	return t
}

func (s *MessageStore) Put(ctx context.Context, tenant string, cid string, encoded []byte, indexes map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	encCopy := make([]byte, len(encoded))
	copy(encCopy, encoded)
	idxCopy := make(map[string]any, len(indexes))
	for k, v := range indexes {
		idxCopy[k] = v
	}

	s.tenantOf(tenant).byCID[cid] = &store.StoredMessage{
		CID:     cid,
		Indexes: idxCopy,
		Encoded: encCopy,
	}
	return nil
}

func (s *MessageStore) Get(ctx context.Context, tenant string, cid string) (*store.StoredMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[tenant]
	if !ok {
		return nil, dwnerrors.New(dwnerrors.NotFound, "message not found")
	}
	msg, ok := t.byCID[cid]
	if !ok {
		return nil, dwnerrors.New(dwnerrors.NotFound, "message not found")
	}
	return copyStoredMessage(msg), nil
}

func (s *MessageStore) Query(ctx context.Context, tenant string, disjunction filter.Disjunction, sortBy *store.Sort, page *store.Pagination, cursor *store.Cursor) (*store.QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[tenant]
	if !ok {
		return &store.QueryResult{}, nil
	}

	matched := make([]*store.StoredMessage, 0, len(t.byCID))
	for _, msg := range t.byCID {
		if len(disjunction) == 0 || disjunction.Match(msg.Indexes) {
			matched = append(matched, msg)
		}
	}

	sortMessages(matched, sortBy)

	if cursor != nil {
		matched = seekPast(matched, sortBy, cursor)
	}

	return paginateMessages(matched, page), nil
}

func (s *MessageStore) Delete(ctx context.Context, tenant string, cid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[tenant]
	if !ok {
		return nil
	}
	delete(t.byCID, cid)
	return nil
}

func (s *MessageStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants = make(map[string]*tenantMessages)
	return nil
}

func copyStoredMessage(msg *store.StoredMessage) *store.StoredMessage {
	encCopy := make([]byte, len(msg.Encoded))
	copy(encCopy, msg.Encoded)
	idxCopy := make(map[string]any, len(msg.Indexes))
	for k, v := range msg.Indexes {
		idxCopy[k] = v
	}
	return &store.StoredMessage{CID: msg.CID, Indexes: idxCopy, Encoded: encCopy}
}

func sortMessages(msgs []*store.StoredMessage, sortBy *store.Sort) {
	less := func(i, j int) bool {
		if sortBy == nil {
			return msgs[i].CID < msgs[j].CID
		}
		vi, vj := msgs[i].Indexes[sortBy.Property], msgs[j].Indexes[sortBy.Property]
		cmp := compareAny(vi, vj)
		if cmp == 0 {
			return msgs[i].CID < msgs[j].CID
		}
		if sortBy.Direction == store.Descending {
			return cmp > 0
		}
		return cmp < 0
	}
	sort.SliceStable(msgs, less)
}

// seekPast drops every entry up to and including the cursor position,
// relying on the same ordering sortMessages already applied.
func seekPast(msgs []*store.StoredMessage, sortBy *store.Sort, cursor *store.Cursor) []*store.StoredMessage {
	for i, msg := range msgs {
		if msg.CID == cursor.MessageCID {
			return msgs[i+1:]
		}
	}
	return msgs
}

func paginateMessages(msgs []*store.StoredMessage, page *store.Pagination) *store.QueryResult {
	result := &store.QueryResult{}
	limit := len(msgs)
	if page != nil && page.Limit > 0 && page.Limit < limit {
		limit = page.Limit
	}
	for _, msg := range msgs[:limit] {
		result.Messages = append(result.Messages, *copyStoredMessage(msg))
	}
	if limit < len(msgs) {
		last := msgs[limit-1]
		result.Cursor = &store.Cursor{MessageCID: last.CID}
	}
	return result
}

func compareAny(a, b any) int {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		default:
			return 0
		}
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// DataStore is an in-memory implementation of store.DataStore, content
// addressed by the CID that Put computes over the blob bytes (dataCIDOf).
type DataStore struct {
	mu      sync.Mutex
	tenants map[string]map[string][]byte // tenant -> dataCID -> bytes
}

var _ store.DataStore = (*DataStore)(nil)

// NewDataStore returns an empty in-memory DataStore.
func NewDataStore() *DataStore {
	return &DataStore{tenants: make(map[string]map[string][]byte)}
}

func (d *DataStore) blobsOf(tenant string) map[string][]byte {
	b, ok := d.tenants[tenant]
	if !ok {
		b = make(map[string][]byte)
		d.tenants[tenant] = b
	}
	return b
}

func (d *DataStore) Put(ctx context.Context, tenant string, messageCID string, r io.Reader) (*store.DataRef, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "failed to read data stream")
	}

	dataCID, err := dataCIDOf(data)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.blobsOf(tenant)[dataCID] = data

	return &store.DataRef{DataCID: dataCID, DataSize: int64(len(data))}, nil
}

func (d *DataStore) Get(ctx context.Context, tenant string, messageCID string, dataCID string) (io.ReadCloser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	blobs, ok := d.tenants[tenant]
	if !ok {
		return nil, dwnerrors.New(dwnerrors.RecordsReadDataNotFound, "data not found")
	}
	data, ok := blobs[dataCID]
	if !ok {
		return nil, dwnerrors.New(dwnerrors.RecordsReadDataNotFound, "data not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (d *DataStore) Associate(ctx context.Context, tenant string, messageCID string, dataCID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	blobs, ok := d.tenants[tenant]
	if !ok {
		return false, nil
	}
	_, ok = blobs[dataCID]
	return ok, nil
}

func (d *DataStore) Delete(ctx context.Context, tenant string, messageCID string, dataCID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	blobs, ok := d.tenants[tenant]
	if !ok {
		return nil
	}
	delete(blobs, dataCID)
	return nil
}

type tenantEvents struct {
	events    []store.EventRecord
	watermark uint64
}

// EventLog is an in-memory, per-tenant append-only log. The watermark is a
// simple monotonically increasing counter local to the tenant, independent
// of messageTimestamp (spec.md §4.3).
type EventLog struct {
	mu      sync.Mutex
	tenants map[string]*tenantEvents
}

var _ store.EventLog = (*EventLog)(nil)

// NewEventLog returns an empty in-memory EventLog.
func NewEventLog() *EventLog {
	return &EventLog{tenants: make(map[string]*tenantEvents)}
}

func (l *EventLog) tenantOf(tenant string) *tenantEvents {
	t, ok := l.tenants[tenant]
	if !ok {
		t = &tenantEvents{}
		l.tenants[tenant] = t
	}
	return t
}

func (l *EventLog) Append(ctx context.Context, tenant string, messageCID string, indexes map[string]any) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := l.tenantOf(tenant)
	t.watermark++
	idxCopy := make(map[string]any, len(indexes))
	for k, v := range indexes {
		idxCopy[k] = v
	}
	t.events = append(t.events, store.EventRecord{
		Watermark:  t.watermark,
		MessageCID: messageCID,
		Indexes:    idxCopy,
	})
	return t.watermark, nil
}

func (l *EventLog) QueryEvents(ctx context.Context, tenant string, disjunction filter.Disjunction, cursor *store.Cursor) (*store.EventQueryResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.tenants[tenant]
	if !ok {
		return &store.EventQueryResult{}, nil
	}

	result := &store.EventQueryResult{}
	skipping := cursor != nil
	for _, ev := range t.events {
		if skipping {
			if ev.MessageCID == cursor.MessageCID {
				skipping = false
			}
			continue
		}
		if len(disjunction) == 0 || disjunction.Match(ev.Indexes) {
			result.Events = append(result.Events, ev)
		}
	}
	return result, nil
}

func (l *EventLog) DeleteEventsByCID(ctx context.Context, tenant string, cids []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.tenants[tenant]
	if !ok {
		return nil
	}
	toDelete := make(map[string]bool, len(cids))
	for _, c := range cids {
		toDelete[c] = true
	}
	filtered := t.events[:0]
	for _, ev := range t.events {
		if !toDelete[ev.MessageCID] {
			filtered = append(filtered, ev)
		}
	}
	t.events = filtered
	return nil
}
