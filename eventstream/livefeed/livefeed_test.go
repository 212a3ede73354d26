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

package livefeed_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/dwn-project/dwn-node/eventstream"
	"github.com/dwn-project/dwn-node/eventstream/livefeed"
)

func TestLivefeedTailsEmittedEvents(t *testing.T) {
	broker := eventstream.New()
	defer broker.Close()

	server := livefeed.NewServer(broker)
	httpServer := httptest.NewServer(server.Handler("did:dwn:alice"))
	defer httpServer.Close()

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// give the server a moment to register its subscription before emitting.
	time.Sleep(20 * time.Millisecond)
	broker.Emit("did:dwn:alice", "cid1", map[string]any{"schema": "s1"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev livefeed.Event
	require.NoError(t, json.Unmarshal(raw, &ev))
	require.Equal(t, "cid1", ev.MessageCID)
}
