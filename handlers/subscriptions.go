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

package handlers

import (
	"sync"

	"github.com/dwn-project/dwn-node/eventstream"
)

// SubscriptionRegistry lets a transport (WebSocket, gRPC stream, ...) look
// up the eventstream.Subscription a *Subscribe handler allocated by the id
// returned in its Result, so it can attach its own delivery handler after
// the RPC-style Dispatch call has already returned.
type SubscriptionRegistry struct {
	mu  sync.Mutex
	byID map[string]*eventstream.Subscription
}

// NewSubscriptionRegistry returns an empty registry.
func NewSubscriptionRegistry() *SubscriptionRegistry {
	return &SubscriptionRegistry{byID: make(map[string]*eventstream.Subscription)}
}

func (r *SubscriptionRegistry) register(sub *eventstream.Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[sub.ID()] = sub
}

// Get returns the subscription registered under id, if any.
func (r *SubscriptionRegistry) Get(id string) (*eventstream.Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.byID[id]
	return sub, ok
}

// Forget drops id from the registry, called once a transport detaches.
func (r *SubscriptionRegistry) Forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}
