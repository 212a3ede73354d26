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

package pebblestore_test

import (
	"context"
	"strings"
	"testing"

	dbm "github.com/cosmos/cosmos-db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwn-project/dwn-node/filter"
	"github.com/dwn-project/dwn-node/store/pebblestore"
)

// newMemDB backs these tests with cosmos-db's in-memory DB implementation,
// which satisfies the same dbm.DB contract a real PebbleDB would.
func newMemDB(t *testing.T) dbm.DB {
	t.Helper()
	return dbm.NewMemDB()
}

func TestMessageStorePutGetQuery(t *testing.T) {
	ctx := context.Background()
	s := pebblestore.NewMessageStore(newMemDB(t))

	require.NoError(t, s.Put(ctx, "did:dwn:alice", "cid1", []byte("payload"), map[string]any{"schema": "s1"}))
	require.NoError(t, s.Put(ctx, "did:dwn:alice", "cid2", []byte("other"), map[string]any{"schema": "s2"}))

	got, err := s.Get(ctx, "did:dwn:alice", "cid1")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got.Encoded)

	result, err := s.Query(ctx, "did:dwn:alice", filter.Disjunction{filter.Filter{"schema": filter.Equal{Value: "s1"}}}, nil, nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "cid1", result.Messages[0].CID)

	require.NoError(t, s.Delete(ctx, "did:dwn:alice", "cid1"))
	_, err = s.Get(ctx, "did:dwn:alice", "cid1")
	assert.Error(t, err)
}

func TestDataStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := pebblestore.NewDataStore(newMemDB(t))

	ref, err := d.Put(ctx, "did:dwn:alice", "msgCid", strings.NewReader("hello"))
	require.NoError(t, err)

	r, err := d.Get(ctx, "did:dwn:alice", "msgCid", ref.DataCID)
	require.NoError(t, err)
	defer r.Close()

	associated, err := d.Associate(ctx, "did:dwn:alice", "otherMsgCid", ref.DataCID)
	require.NoError(t, err)
	assert.True(t, associated)
}

func TestEventLogAppendAndQuery(t *testing.T) {
	ctx := context.Background()
	l := pebblestore.NewEventLog(newMemDB(t))

	w1, err := l.Append(ctx, "did:dwn:alice", "cid1", map[string]any{"interface": "Records"})
	require.NoError(t, err)
	w2, err := l.Append(ctx, "did:dwn:alice", "cid2", map[string]any{"interface": "Records"})
	require.NoError(t, err)
	assert.Less(t, w1, w2)

	result, err := l.QueryEvents(ctx, "did:dwn:alice", nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Events, 2)

	require.NoError(t, l.DeleteEventsByCID(ctx, "did:dwn:alice", []string{"cid1"}))
	result, err = l.QueryEvents(ctx, "did:dwn:alice", nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Equal(t, "cid2", result.Events[0].MessageCID)
}
