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

// Package tenant serializes conflict-resolution + persist + log-event
// sequences per tenant DID, so concurrent writes to the same tenant can
// never race past CONFLICT-RESOLVE into PERSIST out of order. Locks for
// tenants that go idle are reaped on a ticker rather than held forever.
package tenant

import (
	"sync"
	"time"
)

type tenantLock struct {
	mu       sync.Mutex
	lastUsed time.Time
}

// Locks hands out a per-tenant mutex and reaps entries idle past idleTTL.
type Locks struct {
	mu      sync.Mutex
	tenants map[string]*tenantLock
	idleTTL time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	done   chan struct{}
}

// NewLocks starts a Locks with a reaper running every sweepInterval,
// evicting tenant locks unused for idleTTL.
func NewLocks(idleTTL, sweepInterval time.Duration) *Locks {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	l := &Locks{
		tenants: make(map[string]*tenantLock),
		idleTTL: idleTTL,
		ticker:  time.NewTicker(sweepInterval),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go l.reapLoop()
	return l
}

// Lock acquires the write lock for tenant, blocking until it's free, and
// returns a function that releases it.
func (l *Locks) Lock(tenant string) func() {
	entry := l.entry(tenant)
	entry.mu.Lock()
	return func() {
		l.touch(tenant)
		entry.mu.Unlock()
	}
}

func (l *Locks) entry(tenant string) *tenantLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.tenants[tenant]
	if !ok {
		entry = &tenantLock{lastUsed: time.Now()}
		l.tenants[tenant] = entry
	}
	return entry
}

func (l *Locks) touch(tenant string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if entry, ok := l.tenants[tenant]; ok {
		entry.lastUsed = time.Now()
	}
}

// Count returns the number of tenants currently tracked, for tests and
// operator introspection.
func (l *Locks) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tenants)
}

// Close stops the reaper goroutine.
func (l *Locks) Close() {
	close(l.stop)
	<-l.done
}

func (l *Locks) reapLoop() {
	defer close(l.done)
	for {
		select {
		case <-l.ticker.C:
			l.reapIdle(time.Now())
		case <-l.stop:
			l.ticker.Stop()
			return
		}
	}
}

func (l *Locks) reapIdle(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for tenant, entry := range l.tenants {
		if now.Sub(entry.lastUsed) < l.idleTTL {
			continue
		}
		if entry.mu.TryLock() {
			delete(l.tenants, tenant)
			entry.mu.Unlock()
		}
	}
}
