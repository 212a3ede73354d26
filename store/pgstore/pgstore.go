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

// Package pgstore implements store.MessageStore, store.DataStore and
// store.EventLog on PostgreSQL via pgx, for multi-node deployments that
// share a backing database.
package pgstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dwn-project/dwn-node/dwnerrors"
	"github.com/dwn-project/dwn-node/filter"
	"github.com/dwn-project/dwn-node/store"
)

// Config holds the PostgreSQL connection parameters.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (c *Config) connString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// Store aggregates the three pgx-backed sub-stores over a single
// connection pool, mirroring the Store/SessionStore/NonceStore/DIDStore
// shape of a multi-concern Postgres-backed aggregate.
type Store struct {
	pool     *pgxpool.Pool
	messages *MessageStore
	data     *DataStore
	events   *EventLog
}

// NewStore opens a pool against cfg, verifies connectivity with Ping, and
// ensures the schema exists.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	pool, err := pgxpool.New(ctx, cfg.connString())
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := ensureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{
		pool:     pool,
		messages: &MessageStore{db: pool},
		data:     &DataStore{db: pool},
		events:   &EventLog{db: pool},
	}, nil
}

func (s *Store) Close() { s.pool.Close() }

// MessageStore returns the store.MessageStore backed by this pool.
func (s *Store) MessageStore() *MessageStore { return s.messages }

// DataStore returns the store.DataStore backed by this pool.
func (s *Store) DataStore() *DataStore { return s.data }

// EventLog returns the store.EventLog backed by this pool.
func (s *Store) EventLog() *EventLog { return s.events }

const schemaDDL = `
CREATE TABLE IF NOT EXISTS dwn_messages (
	tenant   TEXT NOT NULL,
	cid      TEXT NOT NULL,
	indexes  JSONB NOT NULL,
	encoded  BYTEA NOT NULL,
	PRIMARY KEY (tenant, cid)
);
CREATE TABLE IF NOT EXISTS dwn_blobs (
	tenant   TEXT NOT NULL,
	data_cid TEXT NOT NULL,
	data     BYTEA NOT NULL,
	PRIMARY KEY (tenant, data_cid)
);
CREATE TABLE IF NOT EXISTS dwn_events (
	tenant     TEXT NOT NULL,
	watermark  BIGSERIAL,
	message_cid TEXT NOT NULL,
	indexes    JSONB NOT NULL,
	PRIMARY KEY (tenant, watermark)
);
`

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// MessageStore is a pgx-backed store.MessageStore. Query performs a
// tenant-scoped table scan and evaluates the filter disjunction in
// process; the JSONB index column is still useful as a targeted index
// surface for an operator to add, but spec.md's filter grammar is general
// enough that it's evaluated in Go rather than transliterated to SQL.
type MessageStore struct {
	db *pgxpool.Pool
}

var _ store.MessageStore = (*MessageStore)(nil)

func (s *MessageStore) Put(ctx context.Context, tenant string, cid string, encoded []byte, indexes map[string]any) error {
	idxJSON, err := json.Marshal(indexes)
	if err != nil {
		return dwnerrors.Wrap(dwnerrors.StoreAborted, err, "failed to marshal indexes")
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO dwn_messages (tenant, cid, indexes, encoded)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant, cid) DO UPDATE SET indexes = $3, encoded = $4
	`, tenant, cid, idxJSON, encoded)
	if err != nil {
		return dwnerrors.Wrap(dwnerrors.StoreAborted, err, "insert message failed")
	}
	return nil
}

func (s *MessageStore) Get(ctx context.Context, tenant string, cid string) (*store.StoredMessage, error) {
	var idxJSON []byte
	var encoded []byte
	err := s.db.QueryRow(ctx, `SELECT indexes, encoded FROM dwn_messages WHERE tenant = $1 AND cid = $2`, tenant, cid).Scan(&idxJSON, &encoded)
	if err == pgx.ErrNoRows {
		return nil, dwnerrors.New(dwnerrors.NotFound, "message not found")
	}
	if err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "select message failed")
	}
	var indexes map[string]any
	if err := json.Unmarshal(idxJSON, &indexes); err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "corrupt stored indexes")
	}
	return &store.StoredMessage{CID: cid, Indexes: indexes, Encoded: encoded}, nil
}

func (s *MessageStore) Query(ctx context.Context, tenant string, disjunction filter.Disjunction, sortBy *store.Sort, page *store.Pagination, cursor *store.Cursor) (*store.QueryResult, error) {
	rows, err := s.db.Query(ctx, `SELECT cid, indexes, encoded FROM dwn_messages WHERE tenant = $1`, tenant)
	if err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "select messages failed")
	}
	defer rows.Close()

	var matched []store.StoredMessage
	for rows.Next() {
		var cid string
		var idxJSON, encoded []byte
		if err := rows.Scan(&cid, &idxJSON, &encoded); err != nil {
			return nil, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "scan message row failed")
		}
		var indexes map[string]any
		if err := json.Unmarshal(idxJSON, &indexes); err != nil {
			return nil, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "corrupt stored indexes")
		}
		if len(disjunction) == 0 || disjunction.Match(indexes) {
			matched = append(matched, store.StoredMessage{CID: cid, Indexes: indexes, Encoded: encoded})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "row iteration failed")
	}

	sortAndPaginate(matched, sortBy)
	if cursor != nil {
		for i, msg := range matched {
			if msg.CID == cursor.MessageCID {
				matched = matched[i+1:]
				break
			}
		}
	}
	return buildQueryResult(matched, page), nil
}

func (s *MessageStore) Delete(ctx context.Context, tenant string, cid string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM dwn_messages WHERE tenant = $1 AND cid = $2`, tenant, cid); err != nil {
		return dwnerrors.Wrap(dwnerrors.StoreAborted, err, "delete message failed")
	}
	return nil
}

func (s *MessageStore) Clear(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `TRUNCATE dwn_messages`); err != nil {
		return dwnerrors.Wrap(dwnerrors.StoreAborted, err, "truncate messages failed")
	}
	return nil
}
