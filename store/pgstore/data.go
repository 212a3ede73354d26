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

package pgstore

import (
	"bytes"
	"context"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dwn-project/dwn-node/codec"
	"github.com/dwn-project/dwn-node/dwnerrors"
	"github.com/dwn-project/dwn-node/store"
)

// DataStore is a pgx-backed store.DataStore, blobs content-addressed in
// the dwn_blobs table.
type DataStore struct {
	db *pgxpool.Pool
}

var _ store.DataStore = (*DataStore)(nil)

func (d *DataStore) Put(ctx context.Context, tenant string, messageCID string, r io.Reader) (*store.DataRef, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "failed to read data stream")
	}
	dataCID, err := codec.CIDOfBytes(data)
	if err != nil {
		return nil, err
	}
	_, err = d.db.Exec(ctx, `
		INSERT INTO dwn_blobs (tenant, data_cid, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant, data_cid) DO NOTHING
	`, tenant, dataCID, data)
	if err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "insert blob failed")
	}
	return &store.DataRef{DataCID: dataCID, DataSize: int64(len(data))}, nil
}

func (d *DataStore) Get(ctx context.Context, tenant string, messageCID string, dataCID string) (io.ReadCloser, error) {
	var data []byte
	err := d.db.QueryRow(ctx, `SELECT data FROM dwn_blobs WHERE tenant = $1 AND data_cid = $2`, tenant, dataCID).Scan(&data)
	if err == pgx.ErrNoRows {
		return nil, dwnerrors.New(dwnerrors.RecordsReadDataNotFound, "data not found")
	}
	if err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "select blob failed")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (d *DataStore) Associate(ctx context.Context, tenant string, messageCID string, dataCID string) (bool, error) {
	var exists bool
	err := d.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM dwn_blobs WHERE tenant = $1 AND data_cid = $2)`, tenant, dataCID).Scan(&exists)
	if err != nil {
		return false, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "associate lookup failed")
	}
	return exists, nil
}

func (d *DataStore) Delete(ctx context.Context, tenant string, messageCID string, dataCID string) error {
	if _, err := d.db.Exec(ctx, `DELETE FROM dwn_blobs WHERE tenant = $1 AND data_cid = $2`, tenant, dataCID); err != nil {
		return dwnerrors.Wrap(dwnerrors.StoreAborted, err, "delete blob failed")
	}
	return nil
}
