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

// Package handlers runs every incoming message through the
// PARSE→AUTHENTICATE→AUTHORIZE→CONFLICT-RESOLVE→PERSIST→LOG-EVENT→EMIT→REPLY
// pipeline of spec.md §4.5, one handler per (interface, method) pair,
// dispatched through a registry keyed on that pair.
package handlers

import (
	"context"

	"github.com/dwn-project/dwn-node/did"
	"github.com/dwn-project/dwn-node/eventstream"
	"github.com/dwn-project/dwn-node/message"
	"github.com/dwn-project/dwn-node/schema"
	"github.com/dwn-project/dwn-node/store"
	"github.com/dwn-project/dwn-node/tenant"
)

// State names one step of the pipeline every handler runs through.
type State int

const (
	Parse State = iota
	Authenticate
	Authorize
	ConflictResolve
	Persist
	LogEvent
	Emit
	Reply
)

func (s State) String() string {
	switch s {
	case Parse:
		return "PARSE"
	case Authenticate:
		return "AUTHENTICATE"
	case Authorize:
		return "AUTHORIZE"
	case ConflictResolve:
		return "CONFLICT-RESOLVE"
	case Persist:
		return "PERSIST"
	case LogEvent:
		return "LOG-EVENT"
	case Emit:
		return "EMIT"
	case Reply:
		return "REPLY"
	default:
		return "UNKNOWN"
	}
}

// Status is the reply envelope's {code, detail} pair (spec.md §4.5).
type Status struct {
	Code   int    `json:"code"`
	Detail string `json:"detail,omitempty"`
}

// Result is the {status, ...} reply every handler returns. Fields beyond
// Status are populated only by the handlers that produce them.
type Result struct {
	Status         Status               `json:"status"`
	Entries        []store.StoredMessage `json:"entries,omitempty"`
	Events         []store.EventRecord  `json:"events,omitempty"`
	Cursor         *store.Cursor        `json:"cursor,omitempty"`
	Data           []byte               `json:"data,omitempty"`
	RecordID       string               `json:"recordId,omitempty"`
	MessageCID     string               `json:"messageCid,omitempty"`
	SubscriptionID string               `json:"subscriptionId,omitempty"`
}

// Deps bundles every collaborator a handler needs. One instance is shared
// across all handlers for a given node, grounded on core/handshake/server.go's
// Server holding its collaborators (key, events, resolver) as plain fields.
type Deps struct {
	Schemas       *schema.Registry
	Messages      store.MessageStore
	Data          store.DataStore
	Log           store.EventLog
	Resolver      did.Resolver
	Broker        *eventstream.Broker
	Tenants       *tenant.Locks
	Subscriptions *SubscriptionRegistry
}

// Key identifies a handler by interface/method pair.
type Key struct {
	Interface string
	Method    string
}

// Handler processes one incoming message end to end and always returns a
// populated Result; a non-nil error is reserved for conditions the caller
// cannot recover a reply from (a nil Deps field, a canceled context before
// PARSE).
type Handler func(ctx context.Context, deps *Deps, tenantID string, msg *message.Message) (*Result, error)

// Registry dispatches an incoming message to the handler registered for its
// descriptor's (interface, method) pair, grounded on the teacher's
// map-of-interfaces dispatch table in did/registry.go.
type Registry struct {
	handlers map[Key]Handler
}

// NewRegistry returns a Registry with every interface/method pair spec.md
// §4.5 names registered.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[Key]Handler)}
	r.Register("Records", "Write", RecordsWrite)
	r.Register("Records", "Query", RecordsQuery)
	r.Register("Records", "Read", RecordsRead)
	r.Register("Records", "Delete", RecordsDelete)
	r.Register("Records", "Subscribe", RecordsSubscribe)
	r.Register("Protocols", "Configure", ProtocolsConfigure)
	r.Register("Protocols", "Query", ProtocolsQuery)
	r.Register("Permissions", "Grant", PermissionsGrant)
	r.Register("Permissions", "Revoke", PermissionsRevoke)
	r.Register("Permissions", "Request", PermissionsRequest)
	r.Register("Events", "Query", EventsQuery)
	r.Register("Events", "Subscribe", EventsSubscribe)
	r.Register("Events", "Get", EventsGet)
	r.Register("Messages", "Get", MessagesGet)
	r.Register("Messages", "Query", MessagesQuery)
	r.Register("Messages", "Subscribe", MessagesSubscribe)
	return r
}

// Register binds h to the (iface, method) pair, overriding any existing
// registration.
func (r *Registry) Register(iface, method string, h Handler) {
	r.handlers[Key{Interface: iface, Method: method}] = h
}

// Dispatch serializes processing of msg through the tenant's write lock
// (spec.md §5's single-writer-per-tenant model applies to every interface,
// not only Records, so conflict-resolution scans for any method always run
// against fully-settled state) and runs the registered handler.
func (r *Registry) Dispatch(ctx context.Context, deps *Deps, tenantID string, msg *message.Message) (*Result, error) {
	if msg == nil || msg.Descriptor == nil {
		return errorResult(parseErr("message carries no descriptor")), nil
	}
	h, ok := r.handlers[Key{Interface: msg.Descriptor.Interface, Method: msg.Descriptor.Method}]
	if !ok {
		return errorResult(notFoundErr("no handler registered for %s/%s", msg.Descriptor.Interface, msg.Descriptor.Method)), nil
	}
	if deps.Tenants != nil {
		release := deps.Tenants.Lock(tenantID)
		defer release()
	}
	return h(ctx, deps, tenantID, msg)
}
