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

package tenant_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwn-project/dwn-node/tenant"
)

func TestLockSerializesSameTenant(t *testing.T) {
	locks := tenant.NewLocks(time.Minute, time.Minute)
	defer locks.Close()

	var active int32
	var maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("did:dwn:alice")
			defer unlock()
			n := atomic.AddInt32(&active, 1)
			for {
				cur := atomic.LoadInt32(&maxActive)
				if n <= cur || atomic.CompareAndSwapInt32(&maxActive, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxActive)
}

func TestLockDoesNotSerializeDifferentTenants(t *testing.T) {
	locks := tenant.NewLocks(time.Minute, time.Minute)
	defer locks.Close()

	unlockA := locks.Lock("did:dwn:alice")
	unlockB := locks.Lock("did:dwn:bob")
	unlockA()
	unlockB()
	assert.Equal(t, 2, locks.Count())
}

func TestIdleLockIsReaped(t *testing.T) {
	locks := tenant.NewLocks(5*time.Millisecond, 5*time.Millisecond)
	defer locks.Close()

	unlock := locks.Lock("did:dwn:alice")
	unlock()
	require.Equal(t, 1, locks.Count())

	require.Eventually(t, func() bool {
		return locks.Count() == 0
	}, 500*time.Millisecond, 5*time.Millisecond)
}
