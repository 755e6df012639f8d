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

// Package critsec provides critical section policies for allocators.
//
// A policy is a sync.Locker: Lock begins mutual exclusion and Unlock restores
// the previous state. Callers always pair them with defer so the section is
// left on every exit path. Policies are not reentrant.
//
// The policy is picked by type when an allocator is created:
//
//	a, _ := malloc.NewFixedAllocator[uint32](64, 128, critsec.NoLock{}, nil)  // single goroutine
//	b, _ := malloc.NewFixedAllocator[uint32](64, 128, &sync.Mutex{}, nil)     // shared
//	c, _ := malloc.NewFixedAllocator[uint32](64, 128, &critsec.SpinLock{}, nil)
package critsec

import (
	"sync"
	"sync/atomic"
)

// NoLock is the default policy. It provides no protection and must only be
// used when a single goroutine owns the allocator.
type NoLock struct{}

// Lock does nothing.
func (NoLock) Lock() {}

// Unlock does nothing.
func (NoLock) Unlock() {}

var (
	_ sync.Locker = NoLock{}
	_ sync.Locker = (*SpinLock)(nil)
	_ sync.Locker = (*Counting[NoLock])(nil)
)

// Counting wraps a policy and records how sections are entered and left.
// It's mainly used for checking that every Lock is paired with an Unlock.
type Counting[L sync.Locker] struct {
	Locker L

	enters int64
	exits  int64
}

// NewCounting returns a Counting wrapping l.
func NewCounting[L sync.Locker](l L) *Counting[L] {
	return &Counting[L]{Locker: l}
}

// Lock enters the wrapped policy.
func (c *Counting[L]) Lock() {
	c.Locker.Lock()
	atomic.AddInt64(&c.enters, 1)
}

// Unlock leaves the wrapped policy.
func (c *Counting[L]) Unlock() {
	atomic.AddInt64(&c.exits, 1)
	c.Locker.Unlock()
}

// Enters returns the number of Lock calls.
func (c *Counting[L]) Enters() int64 { return atomic.LoadInt64(&c.enters) }

// Exits returns the number of Unlock calls.
func (c *Counting[L]) Exits() int64 { return atomic.LoadInt64(&c.exits) }

// Inside returns the number of sections currently entered but not left.
func (c *Counting[L]) Inside() int64 {
	exits := atomic.LoadInt64(&c.exits)
	return atomic.LoadInt64(&c.enters) - exits
}
