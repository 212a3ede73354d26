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

package did_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwn-project/dwn-node/did"
	"github.com/dwn-project/dwn-node/did/memresolver"
)

func TestVerificationMethodByIDMatchesFragmentOrFull(t *testing.T) {
	doc := &did.Document{
		ID: "did:dwn:alice",
		VerificationMethod: []did.VerificationMethod{
			{ID: "did:dwn:alice#key-1", Type: "JsonWebKey2020"},
		},
	}

	vm, err := doc.VerificationMethodByID("key-1")
	require.NoError(t, err)
	assert.Equal(t, "did:dwn:alice#key-1", vm.ID)

	vm, err = doc.VerificationMethodByID("did:dwn:alice#key-1")
	require.NoError(t, err)
	assert.Equal(t, "did:dwn:alice#key-1", vm.ID)

	_, err = doc.VerificationMethodByID("missing")
	assert.Error(t, err)
}

func TestCachingResolverDedupesConcurrentMisses(t *testing.T) {
	inner := &countingResolver{doc: &did.Document{ID: "did:dwn:alice"}}
	cache := did.NewCachingResolver(inner, time.Minute)

	const n = 20
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := cache.Resolve(context.Background(), "did:dwn:alice")
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}
	assert.Equal(t, 1, inner.calls())
	assert.GreaterOrEqual(t, inner.calls(), 1)
}

func TestCachingResolverExpiresEntries(t *testing.T) {
	inner := &countingResolver{doc: &did.Document{ID: "did:dwn:alice"}}
	cache := did.NewCachingResolver(inner, time.Millisecond)

	_, err := cache.Resolve(context.Background(), "did:dwn:alice")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = cache.Resolve(context.Background(), "did:dwn:alice")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls())
}

func TestMemResolverRegisterAndResolve(t *testing.T) {
	r := memresolver.New()
	doc := &did.Document{ID: "did:dwn:bob"}
	r.Register(doc)

	got, err := r.Resolve(context.Background(), "did:dwn:bob")
	require.NoError(t, err)
	assert.Same(t, doc, got)

	_, err = r.Resolve(context.Background(), "did:dwn:unknown")
	assert.Error(t, err)
}

type countingResolver struct {
	mu  sync.Mutex
	n   int
	doc *did.Document
}

func (r *countingResolver) Resolve(_ context.Context, _ string) (*did.Document, error) {
	r.mu.Lock()
	r.n++
	r.mu.Unlock()
	time.Sleep(time.Millisecond)
	return r.doc, nil
}

func (r *countingResolver) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}
