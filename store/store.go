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

// Package store declares the three tenant-scoped storage interfaces
// (MessageStore, DataStore, EventLog) and the shared query types every
// backend (memstore, pebblestore, pgstore) implements. memstore orders by
// string or numeric sort values; pebblestore and pgstore order by string
// values only and otherwise fall back to CID order.
package store

import (
	"context"
	"io"

	"github.com/dwn-project/dwn-node/filter"
)

// SortDirection orders a named property ascending or descending.
type SortDirection int

const (
	Ascending SortDirection = iota
	Descending
)

// Sort names the single property a query orders by; ties always break on
// CID lexicographic order to guarantee a strict total order (spec.md §4.3).
type Sort struct {
	Property  string
	Direction SortDirection
}

// Pagination caps the batch size a single query call returns.
type Pagination struct {
	Limit int
}

// Cursor resumes a query after the last returned entry. The bundled
// backends set only MessageCID and resume by locating that CID in the
// sorted result; Value is left unset.
type Cursor struct {
	MessageCID string
	Value      any
}

// StoredMessage is a MessageStore entry: the opaque message bytes (the
// message's own canonical encoding, re-decoded by callers that need the
// structured form) plus the flat index map it was stored under.
type StoredMessage struct {
	CID     string
	Indexes map[string]any
	Encoded []byte
}

// QueryResult is the page of entries a MessageStore/EventLog query returns,
// plus a cursor when the scan was cut short by Pagination.Limit.
type QueryResult struct {
	Messages []StoredMessage
	Cursor   *Cursor
}

// MessageStore persists signed messages under their CID with a flat index
// map per spec.md §4.3.
type MessageStore interface {
	Put(ctx context.Context, tenant string, cid string, encoded []byte, indexes map[string]any) error
	Get(ctx context.Context, tenant string, cid string) (*StoredMessage, error)
	Query(ctx context.Context, tenant string, disjunction filter.Disjunction, sort *Sort, page *Pagination, cursor *Cursor) (*QueryResult, error)
	Delete(ctx context.Context, tenant string, cid string) error
	Clear(ctx context.Context) error
}

// DataRef is the content address and exact byte count DataStore.Put
// returns for a streamed blob.
type DataRef struct {
	DataCID  string
	DataSize int64
}

// DataStore streams message payload bytes, content-addressed so that
// repeated references to the same payload (Associate) avoid re-upload.
type DataStore interface {
	Put(ctx context.Context, tenant string, messageCID string, r io.Reader) (*DataRef, error)
	Get(ctx context.Context, tenant string, messageCID string, dataCID string) (io.ReadCloser, error)
	Associate(ctx context.Context, tenant string, messageCID string, dataCID string) (bool, error)
	Delete(ctx context.Context, tenant string, messageCID string, dataCID string) error
}

// EventRecord is one EventLog entry: a watermark-ordered reference to a
// persisted message plus the index map it was appended with.
type EventRecord struct {
	Watermark  uint64
	MessageCID string
	Indexes    map[string]any
}

// EventQueryResult is the page of log entries a query returns.
type EventQueryResult struct {
	Events []EventRecord
	Cursor *Cursor
}

// EventLog is the tenant's durable, append-only, watermark-ordered record
// of every accepted message, independent of messageTimestamp (spec.md §4.3).
type EventLog interface {
	Append(ctx context.Context, tenant string, messageCID string, indexes map[string]any) (uint64, error)
	QueryEvents(ctx context.Context, tenant string, disjunction filter.Disjunction, cursor *Cursor) (*EventQueryResult, error)
	DeleteEventsByCID(ctx context.Context, tenant string, cids []string) error
}
