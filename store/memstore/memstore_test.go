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

package memstore_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwn-project/dwn-node/filter"
	"github.com/dwn-project/dwn-node/store"
	"github.com/dwn-project/dwn-node/store/memstore"
)

func TestMessageStorePutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := memstore.NewMessageStore()

	require.NoError(t, s.Put(ctx, "did:dwn:alice", "cid1", []byte("payload"), map[string]any{
		"interface": "Records", "method": "Write", "schema": "s1",
	}))

	got, err := s.Get(ctx, "did:dwn:alice", "cid1")
	require.NoError(t, err)
	assert.Equal(t, "cid1", got.CID)
	assert.Equal(t, []byte("payload"), got.Encoded)

	_, err = s.Get(ctx, "did:dwn:bob", "cid1")
	assert.Error(t, err, "other tenants must not see alice's message")

	require.NoError(t, s.Delete(ctx, "did:dwn:alice", "cid1"))
	_, err = s.Get(ctx, "did:dwn:alice", "cid1")
	assert.Error(t, err)
}

func TestMessageStoreQueryDisjunctionAndSort(t *testing.T) {
	ctx := context.Background()
	s := memstore.NewMessageStore()

	require.NoError(t, s.Put(ctx, "did:dwn:alice", "cidA", nil, map[string]any{"schema": "s1", "messageTimestamp": "2025-01-01T00:00:00.000000Z"}))
	require.NoError(t, s.Put(ctx, "did:dwn:alice", "cidB", nil, map[string]any{"schema": "s1", "messageTimestamp": "2025-01-02T00:00:00.000000Z"}))
	require.NoError(t, s.Put(ctx, "did:dwn:alice", "cidC", nil, map[string]any{"schema": "s2", "messageTimestamp": "2025-01-03T00:00:00.000000Z"}))

	disjunction := filter.Disjunction{filter.Filter{"schema": filter.Equal{Value: "s1"}}}
	result, err := s.Query(ctx, "did:dwn:alice", disjunction, &store.Sort{Property: "messageTimestamp", Direction: store.Ascending}, nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Messages, 2)
	assert.Equal(t, "cidA", result.Messages[0].CID)
	assert.Equal(t, "cidB", result.Messages[1].CID)
}

func TestMessageStoreQueryPaginationCursor(t *testing.T) {
	ctx := context.Background()
	s := memstore.NewMessageStore()
	for _, cid := range []string{"cid1", "cid2", "cid3"} {
		require.NoError(t, s.Put(ctx, "did:dwn:alice", cid, nil, map[string]any{"interface": "Records"}))
	}

	page1, err := s.Query(ctx, "did:dwn:alice", nil, &store.Sort{Property: "cid"}, &store.Pagination{Limit: 2}, nil)
	require.NoError(t, err)
	require.Len(t, page1.Messages, 2)
	require.NotNil(t, page1.Cursor)

	page2, err := s.Query(ctx, "did:dwn:alice", nil, &store.Sort{Property: "cid"}, &store.Pagination{Limit: 2}, page1.Cursor)
	require.NoError(t, err)
	assert.Len(t, page2.Messages, 1)
}

func TestDataStorePutGetAssociate(t *testing.T) {
	ctx := context.Background()
	d := memstore.NewDataStore()

	ref, err := d.Put(ctx, "did:dwn:alice", "msgCid", strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.EqualValues(t, len("hello world"), ref.DataSize)

	r, err := d.Get(ctx, "did:dwn:alice", "msgCid", ref.DataCID)
	require.NoError(t, err)
	defer r.Close()

	associated, err := d.Associate(ctx, "did:dwn:alice", "otherMsgCid", ref.DataCID)
	require.NoError(t, err)
	assert.True(t, associated)

	_, err = d.Get(ctx, "did:dwn:bob", "msgCid", ref.DataCID)
	assert.Error(t, err)
}

func TestEventLogAppendAndQuery(t *testing.T) {
	ctx := context.Background()
	l := memstore.NewEventLog()

	w1, err := l.Append(ctx, "did:dwn:alice", "cid1", map[string]any{"interface": "Records"})
	require.NoError(t, err)
	w2, err := l.Append(ctx, "did:dwn:alice", "cid2", map[string]any{"interface": "Records"})
	require.NoError(t, err)
	assert.Less(t, w1, w2, "watermark must be monotonically increasing")

	result, err := l.QueryEvents(ctx, "did:dwn:alice", nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Events, 2)
	assert.Equal(t, "cid1", result.Events[0].MessageCID)
	assert.Equal(t, "cid2", result.Events[1].MessageCID)

	require.NoError(t, l.DeleteEventsByCID(ctx, "did:dwn:alice", []string{"cid1"}))
	result, err = l.QueryEvents(ctx, "did:dwn:alice", nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Equal(t, "cid2", result.Events[0].MessageCID)
}
