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
	"runtime"
	"sync/atomic"
)

// spins before yielding the processor
const spinsBeforeYield = 64

// SpinLock is a test-and-set lock which never parks the caller.
// It only fits short sections like the O(1) work done by allocators.
// The zero value is unlocked.
type SpinLock struct {
	state int32
}

// Lock spins until the lock is acquired.
func (l *SpinLock) Lock() {
	for i := 1; ; i++ {
		if atomic.LoadInt32(&l.state) == 0 && atomic.CompareAndSwapInt32(&l.state, 0, 1) {
			return
		}
		if i%spinsBeforeYield == 0 {
			runtime.Gosched()
		}
	}
}

// TryLock tries to acquire the lock once and reports whether it succeeded.
func (l *SpinLock) TryLock() bool {
	return atomic.CompareAndSwapInt32(&l.state, 0, 1)
}

// Unlock releases the lock.
// It panics if the lock is not held, like sync.Mutex does.
func (l *SpinLock) Unlock() {
	if !atomic.CompareAndSwapInt32(&l.state, 1, 0) {
		panic("critsec: unlock of unlocked SpinLock")
	}
}
