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
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dwn-project/dwn-node/dwnerrors"
	"github.com/dwn-project/dwn-node/filter"
	"github.com/dwn-project/dwn-node/store"
)

// EventLog is a pgx-backed store.EventLog. Append numbers each tenant's
// events from that tenant's highest watermark plus one, so a tenant's
// watermarks run 1, 2, 3, ... in append order, independent of other
// tenants.
type EventLog struct {
	db *pgxpool.Pool
}

var _ store.EventLog = (*EventLog)(nil)

func (l *EventLog) Append(ctx context.Context, tenant string, messageCID string, indexes map[string]any) (uint64, error) {
	idxJSON, err := json.Marshal(indexes)
	if err != nil {
		return 0, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "failed to marshal event indexes")
	}
	var watermark int64
	err = l.db.QueryRow(ctx, `
		INSERT INTO dwn_events (tenant, watermark, message_cid, indexes)
		SELECT $1::text, COALESCE(MAX(watermark), 0) + 1, $2::text, $3::jsonb
		FROM dwn_events WHERE tenant = $1::text
		RETURNING watermark
	`, tenant, messageCID, idxJSON).Scan(&watermark)
	if err != nil {
		return 0, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "insert event failed")
	}
	return uint64(watermark), nil
}

func (l *EventLog) QueryEvents(ctx context.Context, tenant string, disjunction filter.Disjunction, cursor *store.Cursor) (*store.EventQueryResult, error) {
	rows, err := l.db.Query(ctx, `
		SELECT watermark, message_cid, indexes FROM dwn_events
		WHERE tenant = $1 ORDER BY watermark ASC
	`, tenant)
	if err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "select events failed")
	}
	defer rows.Close()

	result := &store.EventQueryResult{}
	skipping := cursor != nil
	for rows.Next() {
		var watermark int64
		var messageCID string
		var idxJSON []byte
		if err := rows.Scan(&watermark, &messageCID, &idxJSON); err != nil {
			return nil, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "scan event row failed")
		}
		if skipping {
			if messageCID == cursor.MessageCID {
				skipping = false
			}
			continue
		}
		var indexes map[string]any
		if err := json.Unmarshal(idxJSON, &indexes); err != nil {
			return nil, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "corrupt event indexes")
		}
		if len(disjunction) == 0 || disjunction.Match(indexes) {
			result.Events = append(result.Events, store.EventRecord{
				Watermark:  uint64(watermark),
				MessageCID: messageCID,
				Indexes:    indexes,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.StoreAborted, err, "row iteration failed")
	}
	return result, nil
}

func (l *EventLog) DeleteEventsByCID(ctx context.Context, tenant string, cids []string) error {
	if _, err := l.db.Exec(ctx, `DELETE FROM dwn_events WHERE tenant = $1 AND message_cid = ANY($2)`, tenant, cids); err != nil {
		return dwnerrors.Wrap(dwnerrors.StoreAborted, err, "delete events failed")
	}
	return nil
}
