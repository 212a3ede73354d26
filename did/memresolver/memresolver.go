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

// Package memresolver is an in-memory did.Resolver for tests and
// single-node deployments where documents are registered directly rather
// than fetched from an external method driver.
package memresolver

import (
	"context"
	"sync"

	"github.com/dwn-project/dwn-node/did"
	"github.com/dwn-project/dwn-node/dwnerrors"
)

// Resolver holds a static set of registered documents.
type Resolver struct {
	mu        sync.RWMutex
	documents map[string]*did.Document
}

var _ did.Resolver = (*Resolver)(nil)

// New returns an empty Resolver.
func New() *Resolver {
	return &Resolver{documents: make(map[string]*did.Document)}
}

// Register adds or replaces the document for doc.ID.
func (r *Resolver) Register(doc *did.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.documents[doc.ID] = doc
}

// Resolve implements did.Resolver.
func (r *Resolver) Resolve(_ context.Context, id string) (*did.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.documents[id]
	if !ok {
		return nil, dwnerrors.Newf(dwnerrors.AuthenticationFailed, "did %q not registered", id)
	}
	return doc, nil
}
