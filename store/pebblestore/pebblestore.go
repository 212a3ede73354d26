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

// Package pebblestore implements store.MessageStore, store.DataStore and
// store.EventLog on top of an embedded github.com/cosmos/cosmos-db handle,
// for single-node deployments that want durability without an external
// database service.
package pebblestore

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	dbm "github.com/cosmos/cosmos-db"

	"github.com/dwn-project/dwn-node/codec"
	"github.com/dwn-project/dwn-node/dwnerrors"
	"github.com/dwn-project/dwn-node/filter"
	"github.com/dwn-project/dwn-node/store"
)

// OpenPebble opens (creating if absent) a PebbleDB instance rooted at dir,
// shared across the MessageStore, DataStore and EventLog built on top of it.
func OpenPebble(dir string) (dbm.DB, error) {
	db, err := dbm.NewPebbleDB("dwn", dir)
	if err != nil {
		return nil, fmt.Errorf("open pebble db at %q: %w", dir, err)
	}
	return db, nil
}

const (
	messagePrefix = "msg/"
	blobPrefix    = "blob/"
	eventPrefix   = "evt/"
	watermarkKey  = "evt-watermark/"
)

func messageKey(tenant, cid string) []byte {
	return []byte(messagePrefix + tenant + "/" + cid)
}

func messageScanPrefix(tenant string) []byte {
	return []byte(messagePrefix + tenant + "/")
}

type record struct {
	Indexes map[string]any `json:"indexes"`
	Encoded []byte         `json:"encoded"`
}

// MessageStore is a pebble-backed store.MessageStore. It maintains no
// secondary indexes of its own: Query performs a tenant-scoped prefix scan
// and evaluates the filter disjunction in process, which is adequate at the
// per-tenant message volumes a single DWN node is expected to serve.
type MessageStore struct {
	mu sync.Mutex
	db dbm.DB
}

var _ store.MessageStore = (*MessageStore)(nil)

// NewMessageStore wraps an already-open DB handle (see OpenPebble).
func NewMessageStore(db dbm.DB) *MessageStore {
	return &MessageStore{db: db}
}

func (s *MessageStore) Put(ctx context.Context, tenant string, cid string, encoded []byte, indexes map[string]any) error {
	rec := record{Indexes: indexes, Encoded: encoded}
	raw, err := json.Marshal(rec)
	if err != nil {
		return dwnerrors.Wrap(dwnerrors.StoreAborted, err, "failed to marshal stored message")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Set(messageKey(tenant, cid), raw); err != nil {
		return dwnerrors.Wrap(dwnerrors.StoreAborted, err, "pebble set failed")
	}
	return nil
}

func (s *MessageStore) Get(ctx context.Context, tenant string, cid string) (*store.StoredMessage, error) {
	s.mu.Lock()
	raw, err := s.db.Get(messageKey(tenant, cid))
	s.mu.Unlock()
	if err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "pebble get failed")
	}
	if raw == nil {
		return nil, dwnerrors.New(dwnerrors.NotFound, "message not found")
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "corrupt stored message")
	}
	return &store.StoredMessage{CID: cid, Indexes: rec.Indexes, Encoded: rec.Encoded}, nil
}

func (s *MessageStore) Query(ctx context.Context, tenant string, disjunction filter.Disjunction, sortBy *store.Sort, page *store.Pagination, cursor *store.Cursor) (*store.QueryResult, error) {
	matched, err := s.scanTenant(tenant, disjunction)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return lessMessages(matched[i], matched[j], sortBy)
	})

	if cursor != nil {
		for i, msg := range matched {
			if msg.CID == cursor.MessageCID {
				matched = matched[i+1:]
				break
			}
		}
	}

	result := &store.QueryResult{}
	limit := len(matched)
	if page != nil && page.Limit > 0 && page.Limit < limit {
		limit = page.Limit
	}
	result.Messages = matched[:limit]
	if limit < len(matched) {
		result.Cursor = &store.Cursor{MessageCID: matched[limit-1].CID}
	}
	return result, nil
}

func (s *MessageStore) scanTenant(tenant string, disjunction filter.Disjunction) ([]store.StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := messageScanPrefix(tenant)
	iter, err := s.db.Iterator(prefix, prefixUpperBound(prefix))
	if err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "pebble iterator failed")
	}
	defer iter.Close()

	var out []store.StoredMessage
	for ; iter.Valid(); iter.Next() {
		var rec record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "corrupt stored message")
		}
		if len(disjunction) > 0 && !disjunction.Match(rec.Indexes) {
			continue
		}
		cid := bytes.TrimPrefix(iter.Key(), prefix)
		out = append(out, store.StoredMessage{CID: string(cid), Indexes: rec.Indexes, Encoded: rec.Encoded})
	}
	return out, iter.Error()
}

func (s *MessageStore) Delete(ctx context.Context, tenant string, cid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Delete(messageKey(tenant, cid)); err != nil {
		return dwnerrors.Wrap(dwnerrors.StoreAborted, err, "pebble delete failed")
	}
	return nil
}

func (s *MessageStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	iter, err := s.db.Iterator([]byte(messagePrefix), prefixUpperBound([]byte(messagePrefix)))
	if err != nil {
		return dwnerrors.Wrap(dwnerrors.StoreAborted, err, "pebble iterator failed")
	}
	defer iter.Close()

	batch := s.db.NewBatch()
	defer batch.Close()
	for ; iter.Valid(); iter.Next() {
		key := append([]byte(nil), iter.Key()...)
		if err := batch.Delete(key); err != nil {
			return dwnerrors.Wrap(dwnerrors.StoreAborted, err, "pebble batch delete failed")
		}
	}
	if err := batch.Write(); err != nil {
		return dwnerrors.Wrap(dwnerrors.StoreAborted, err, "pebble batch write failed")
	}
	return nil
}

func lessMessages(a, b store.StoredMessage, sortBy *store.Sort) bool {
	if sortBy == nil {
		return a.CID < b.CID
	}
	av, bv := a.Indexes[sortBy.Property], b.Indexes[sortBy.Property]
	as, aok := av.(string)
	bs, bok := bv.(string)
	if aok && bok && as != bs {
		if sortBy.Direction == store.Descending {
			return as > bs
		}
		return as < bs
	}
	return a.CID < b.CID
}

// prefixUpperBound returns the smallest key greater than every key sharing
// prefix, the exclusive upper bound cosmos-db's Iterator expects.
func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil // prefix is all 0xff: no upper bound, scan to the end
}

// DataStore is a pebble-backed store.DataStore, blobs content-addressed and
// keyed by tenant + dataCID.
type DataStore struct {
	mu sync.Mutex
	db dbm.DB
}

var _ store.DataStore = (*DataStore)(nil)

// NewDataStore wraps an already-open DB handle (see OpenPebble).
func NewDataStore(db dbm.DB) *DataStore {
	return &DataStore{db: db}
}

func blobKey(tenant, dataCID string) []byte {
	return []byte(blobPrefix + tenant + "/" + dataCID)
}

func (d *DataStore) Put(ctx context.Context, tenant string, messageCID string, r io.Reader) (*store.DataRef, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "failed to read data stream")
	}
	dataCID, err := codec.CIDOfBytes(data)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.db.Set(blobKey(tenant, dataCID), data); err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "pebble set failed")
	}
	return &store.DataRef{DataCID: dataCID, DataSize: int64(len(data))}, nil
}

func (d *DataStore) Get(ctx context.Context, tenant string, messageCID string, dataCID string) (io.ReadCloser, error) {
	d.mu.Lock()
	raw, err := d.db.Get(blobKey(tenant, dataCID))
	d.mu.Unlock()
	if err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "pebble get failed")
	}
	if raw == nil {
		return nil, dwnerrors.New(dwnerrors.RecordsReadDataNotFound, "data not found")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (d *DataStore) Associate(ctx context.Context, tenant string, messageCID string, dataCID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	has, err := d.db.Has(blobKey(tenant, dataCID))
	if err != nil {
		return false, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "pebble has failed")
	}
	return has, nil
}

func (d *DataStore) Delete(ctx context.Context, tenant string, messageCID string, dataCID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.db.Delete(blobKey(tenant, dataCID)); err != nil {
		return dwnerrors.Wrap(dwnerrors.StoreAborted, err, "pebble delete failed")
	}
	return nil
}

// EventLog is a pebble-backed store.EventLog. The watermark is a per-tenant
// counter persisted alongside the log so it survives a restart.
type EventLog struct {
	mu sync.Mutex
	db dbm.DB
}

var _ store.EventLog = (*EventLog)(nil)

// NewEventLog wraps an already-open DB handle (see OpenPebble).
func NewEventLog(db dbm.DB) *EventLog {
	return &EventLog{db: db}
}

func eventKey(tenant string, watermark uint64) []byte {
	var wm [8]byte
	binary.BigEndian.PutUint64(wm[:], watermark)
	return append([]byte(eventPrefix+tenant+"/"), wm[:]...)
}

func eventScanPrefix(tenant string) []byte {
	return []byte(eventPrefix + tenant + "/")
}

func (l *EventLog) Append(ctx context.Context, tenant string, messageCID string, indexes map[string]any) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	wm, err := l.nextWatermark(tenant)
	if err != nil {
		return 0, err
	}

	rec := record{Indexes: indexes, Encoded: []byte(messageCID)}
	raw, err := json.Marshal(rec)
	if err != nil {
		return 0, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "failed to marshal event")
	}
	if err := l.db.Set(eventKey(tenant, wm), raw); err != nil {
		return 0, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "pebble set failed")
	}
	if err := l.db.Set([]byte(watermarkKey+tenant), encodeWatermark(wm)); err != nil {
		return 0, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "pebble set failed")
	}
	return wm, nil
}

func (l *EventLog) nextWatermark(tenant string) (uint64, error) {
	raw, err := l.db.Get([]byte(watermarkKey + tenant))
	if err != nil {
		return 0, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "pebble get failed")
	}
	if raw == nil {
		return 1, nil
	}
	return decodeWatermark(raw) + 1, nil
}

func encodeWatermark(wm uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], wm)
	return b[:]
}

func decodeWatermark(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func (l *EventLog) QueryEvents(ctx context.Context, tenant string, disjunction filter.Disjunction, cursor *store.Cursor) (*store.EventQueryResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prefix := eventScanPrefix(tenant)
	iter, err := l.db.Iterator(prefix, prefixUpperBound(prefix))
	if err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "pebble iterator failed")
	}
	defer iter.Close()

	result := &store.EventQueryResult{}
	skipping := cursor != nil
	for ; iter.Valid(); iter.Next() {
		var rec record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "corrupt event record")
		}
		messageCID := string(rec.Encoded)
		wmBytes := bytes.TrimPrefix(iter.Key(), prefix)
		wm := decodeWatermark(wmBytes)

		if skipping {
			if messageCID == cursor.MessageCID {
				skipping = false
			}
			continue
		}
		if len(disjunction) == 0 || disjunction.Match(rec.Indexes) {
			result.Events = append(result.Events, store.EventRecord{Watermark: wm, MessageCID: messageCID, Indexes: rec.Indexes})
		}
	}
	return result, iter.Error()
}

func (l *EventLog) DeleteEventsByCID(ctx context.Context, tenant string, cids []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	toDelete := make(map[string]bool, len(cids))
	for _, c := range cids {
		toDelete[c] = true
	}

	prefix := eventScanPrefix(tenant)
	iter, err := l.db.Iterator(prefix, prefixUpperBound(prefix))
	if err != nil {
		return dwnerrors.Wrap(dwnerrors.StoreAborted, err, "pebble iterator failed")
	}
	defer iter.Close()

	batch := l.db.NewBatch()
	defer batch.Close()
	for ; iter.Valid(); iter.Next() {
		var rec record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return dwnerrors.Wrap(dwnerrors.StoreAborted, err, "corrupt event record")
		}
		if toDelete[string(rec.Encoded)] {
			key := append([]byte(nil), iter.Key()...)
			if err := batch.Delete(key); err != nil {
				return dwnerrors.Wrap(dwnerrors.StoreAborted, err, "pebble batch delete failed")
			}
		}
	}
	if err := iter.Error(); err != nil {
		return dwnerrors.Wrap(dwnerrors.StoreAborted, err, "pebble iterator failed")
	}
	return batch.Write()
}
