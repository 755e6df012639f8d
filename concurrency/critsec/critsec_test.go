/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package critsec

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoLock(t *testing.T) {
	var l NoLock
	l.Lock()
	l.Lock() // no state, so nesting is harmless
	l.Unlock()
	l.Unlock()
}

func TestSpinLock(t *testing.T) {
	var l SpinLock
	require.True(t, l.TryLock())
	require.False(t, l.TryLock())
	l.Unlock()
	require.True(t, l.TryLock())
	l.Unlock()

	assert.Panics(t, func() { l.Unlock() })
}

func TestSpinLockExclusion(t *testing.T) {
	const (
		workers = 8
		rounds  = 10000
	)
	var l SpinLock
	n := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				l.Lock()
				n++
				l.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, workers*rounds, n)
}

func TestCounting(t *testing.T) {
	c := NewCounting(&sync.Mutex{})
	assert.Equal(t, int64(0), c.Inside())

	c.Lock()
	assert.Equal(t, int64(1), c.Enters())
	assert.Equal(t, int64(0), c.Exits())
	assert.Equal(t, int64(1), c.Inside())
	c.Unlock()

	assert.Equal(t, int64(1), c.Exits())
	assert.Equal(t, int64(0), c.Inside())

	func() {
		c.Lock()
		defer c.Unlock()
		// early return still leaves the section
	}()
	assert.Equal(t, int64(2), c.Enters())
	assert.Equal(t, int64(0), c.Inside())
}

func BenchmarkNoLock(b *testing.B) {
	var l NoLock
	for i := 0; i < b.N; i++ {
		l.Lock()
		l.Unlock()
	}
}

func BenchmarkSpinLock(b *testing.B) {
	var l SpinLock
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			l.Lock()
			l.Unlock()
		}
	})
}

func BenchmarkMutex(b *testing.B) {
	var l sync.Mutex
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			l.Lock()
			l.Unlock()
		}
	})
}
