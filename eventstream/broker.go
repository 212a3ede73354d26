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

// Package eventstream is the in-process pub/sub broker of spec.md §4.6:
// subscribe/emit/open/close over a tenant-scoped filter match, synchronous
// per emission.
package eventstream

import (
	"sync"

	"github.com/dwn-project/dwn-node/dwnerrors"
	"github.com/dwn-project/dwn-node/filter"
	"github.com/google/uuid"
)

// Handler observes one emission admitted by a subscription's filters.
type Handler func(tenant string, messageCID string, indexes map[string]any)

// Off unregisters the handler it was returned by On.
type Off func()

// Subscription is a live registration against the broker: {id, on, close}.
type Subscription struct {
	id     string
	tenant string
	broker *Broker

	mu       sync.Mutex
	handlers map[string]Handler
	closed   bool
}

// ID is the subscription's unique channel id.
func (s *Subscription) ID() string { return s.id }

// On registers handler to be invoked for every emission this subscription's
// filters admit, returning a function that unregisters it.
func (s *Subscription) On(h Handler) Off {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}
	handlerID := uuid.NewString()
	s.handlers[handlerID] = h
	return func() {
		s.mu.Lock()
		delete(s.handlers, handlerID)
		s.mu.Unlock()
	}
}

// Close unregisters every handler and detaches the subscription from the
// broker.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.handlers = nil
	s.mu.Unlock()
	s.broker.remove(s.id)
}

func (s *Subscription) dispatch(messageCID string, indexes map[string]any) {
	s.mu.Lock()
	handlers := make([]Handler, 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	tenant := s.tenant
	s.mu.Unlock()
	for _, h := range handlers {
		h(tenant, messageCID, indexes)
	}
}

// Broker is the shared, process-wide event stream all tenants emit into.
type Broker struct {
	mu      sync.RWMutex
	subs    map[string]*Subscription
	filters map[string]filter.Disjunction
}

// New returns an opened Broker.
func New() *Broker {
	return &Broker{
		subs:    make(map[string]*Subscription),
		filters: make(map[string]filter.Disjunction),
	}
}

// Subscribe allocates a unique subscription listening for emissions to
// tenant matching disjunction.
func (b *Broker) Subscribe(tenant string, disjunction filter.Disjunction) *Subscription {
	sub := &Subscription{
		id:       uuid.NewString(),
		tenant:   tenant,
		broker:   b,
		handlers: make(map[string]Handler),
	}
	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()
	b.registerFilter(sub.id, disjunction)
	return sub
}

// registerFilter records a subscription's disjunction in a map parallel to
// subs, keyed by subscription id; b.mu guards both maps.
func (b *Broker) registerFilter(id string, disjunction filter.Disjunction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.filters == nil {
		b.filters = make(map[string]filter.Disjunction)
	}
	b.filters[id] = disjunction
}

// Emit synchronously invokes every matching listener: its tenant must
// equal emission tenant, and at least one of its filters must match
// indexes (spec.md §4.6).
func (b *Broker) Emit(tenant string, messageCID string, indexes map[string]any) {
	b.mu.RLock()
	type target struct {
		sub *Subscription
	}
	var targets []target
	for id, sub := range b.subs {
		if sub.tenant != tenant {
			continue
		}
		disjunction := b.filters[id]
		if len(disjunction) == 0 || disjunction.Match(indexes) {
			targets = append(targets, target{sub: sub})
		}
	}
	b.mu.RUnlock()

	for _, t := range targets {
		t.sub.dispatch(messageCID, indexes)
	}
}

func (b *Broker) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
	delete(b.filters, id)
}

// Close unregisters every subscription currently tracked by the broker.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id := range b.subs {
		delete(b.subs, id)
		delete(b.filters, id)
	}
}

// ErrSubscriptionClosed is the typed error for an operation against an
// already-closed subscription. Subscription.On and Close do not return it.
var ErrSubscriptionClosed = dwnerrors.New(dwnerrors.SubscriptionClosed, "subscription is closed")
