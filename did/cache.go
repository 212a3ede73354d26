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

package did

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type cachedDocument struct {
	doc     *Document
	expires time.Time
}

// CachingResolver wraps a Resolver with a TTL cache and singleflight
// dedup, so concurrent authorization checks against the same DID collapse
// into one resolution. Mirrors the cache+singleflight shape a handshake
// server uses to dedupe peer public-key resolution.
type CachingResolver struct {
	inner Resolver
	ttl   time.Duration

	mu    sync.Mutex
	cache map[string]cachedDocument
	sf    singleflight.Group
}

var _ Resolver = (*CachingResolver)(nil)

// NewCachingResolver wraps inner with a cache of the given TTL.
func NewCachingResolver(inner Resolver, ttl time.Duration) *CachingResolver {
	return &CachingResolver{
		inner: inner,
		ttl:   ttl,
		cache: make(map[string]cachedDocument),
	}
}

// Resolve implements Resolver, serving from cache when fresh and deduping
// concurrent misses for the same DID.
func (c *CachingResolver) Resolve(ctx context.Context, did string) (*Document, error) {
	if doc, ok := c.get(did); ok {
		return doc, nil
	}

	v, err, _ := c.sf.Do(did, func() (any, error) {
		if doc, ok := c.get(did); ok {
			return doc, nil
		}
		doc, err := c.inner.Resolve(ctx, did)
		if err != nil {
			return nil, err
		}
		c.put(did, doc)
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Document), nil
}

func (c *CachingResolver) get(did string) (*Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[did]
	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	return entry.doc, true
}

func (c *CachingResolver) put(did string, doc *Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[did] = cachedDocument{doc: doc, expires: time.Now().Add(c.ttl)}
}
