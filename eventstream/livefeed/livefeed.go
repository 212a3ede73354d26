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

// Package livefeed exposes an operator debug tail over WebSocket: one
// connection per tenant, fed from an eventstream.Subscription through a
// bounded channel so a stalled client can never block event emission.
package livefeed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dwn-project/dwn-node/eventstream"
)

// defaultBufferSize bounds the per-connection backlog before a slow
// consumer is disconnected rather than allowed to apply backpressure to
// Broker.Emit.
const defaultBufferSize = 256

// Event is one emission rendered to the debug tail.
type Event struct {
	Tenant     string         `json:"tenant"`
	MessageCID string         `json:"messageCid"`
	Indexes    map[string]any `json:"indexes"`
}

// Server upgrades HTTP connections to WebSocket tails of a tenant's
// eventstream subscription.
type Server struct {
	broker       *eventstream.Broker
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	bufferSize   int
}

// NewServer returns a Server fanning out broker emissions to WebSocket
// clients.
func NewServer(broker *eventstream.Broker) *Server {
	return &Server{
		broker: broker,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		writeTimeout: 10 * time.Second,
		bufferSize:   defaultBufferSize,
	}
}

// Handler upgrades the connection and tails tenant's events until the
// client disconnects or falls behind.
func (s *Server) Handler(tenant string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "websocket upgrade failed: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer conn.Close()

		sub := s.broker.Subscribe(tenant, nil)
		defer sub.Close()

		events := make(chan Event, s.bufferSize)
		var mu sync.Mutex
		closed := false
		off := sub.On(func(tenant, cid string, indexes map[string]any) {
			mu.Lock()
			defer mu.Unlock()
			if closed {
				return
			}
			select {
			case events <- Event{Tenant: tenant, MessageCID: cid, Indexes: indexes}:
			default:
				// slow consumer: drop rather than block emission, closing
				// the channel signals the writer loop to disconnect.
				closed = true
				close(events)
			}
		})
		defer off()

		s.writeLoop(conn, events)
	})
}

func (s *Server) writeLoop(conn *websocket.Conn, events chan Event) {
	for ev := range events {
		if err := conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return
		}
		encoded, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, encoded); err != nil {
			return
		}
	}
}
