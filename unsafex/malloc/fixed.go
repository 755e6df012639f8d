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

package malloc

import (
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/bytedance/gopkg/lang/dirtmake"

	"github.com/cloudwego/fixalloc/concurrency/critsec"
)

// MaxAlign is the alignment of every block returned by FixedAllocator.
// It's the largest alignment any scalar type needs on the platforms Go supports.
const MaxAlign = 8

// Unsigned is the set of types usable for counts and sizes of a FixedAllocator.
// Pick the most efficient one for the target, usually uint32 or uint.
type Unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// FixedOption ...
type FixedOption struct {
	// CheckBounds makes Release reject blocks which don't start a block of the arena.
	CheckBounds bool

	// TrackOwnership keeps one bit per block to reject double release
	// and release of blocks never acquired. It implies CheckBounds.
	TrackOwnership bool
}

// DefaultFixedOption returns the default values of FixedOption.
// Bounds checking is on since it's a couple of arithmetic ops without extra memory.
func DefaultFixedOption() *FixedOption {
	return &FixedOption{CheckBounds: true}
}

// FixedAllocator hands out blocks of one size from a single arena allocated on creation.
//
// Free blocks are chained by an intrusive list: the first bytes of a free block
// hold the index of the next free one. Acquire and Release are O(1) and never allocate.
// Every mutation runs inside the critical section policy L.
type FixedAllocator[T Unsigned, L sync.Locker] struct {
	cs L

	// arena holds count*stride bytes, base is aligned to MaxAlign.
	arena []byte
	base  unsafe.Pointer

	stride int
	size   int

	count     T
	blockSize T

	// head is the index of the first free block, count terminates the list.
	head  T
	avail T

	checkBounds bool
	owned       *ownerBitmap // nil unless TrackOwnership
}

// NewFixedPool creates a FixedAllocator without critical section,
// for allocators owned by a single goroutine.
func NewFixedPool[T Unsigned](count, size T) (*FixedAllocator[T, critsec.NoLock], error) {
	return NewFixedAllocator(count, size, critsec.NoLock{}, nil)
}

// NewFixedAllocator creates an allocator of count blocks, each able to hold size bytes.
// Blocks are widened to hold a T and rounded up to MaxAlign.
// count == 0 is valid, Acquire always returns nil then.
// If o is nil, DefaultFixedOption is used.
func NewFixedAllocator[T Unsigned, L sync.Locker](count, size T, cs L, o *FixedOption) (*FixedAllocator[T, L], error) {
	if o == nil {
		o = DefaultFixedOption()
	}
	if uint64(size) > math.MaxInt32 {
		return nil, fmt.Errorf("block size too large, got %d", uint64(size))
	}
	stride := int(size)
	if n := int(unsafe.Sizeof(size)); stride < n {
		stride = n
	}
	stride = (stride + MaxAlign - 1) &^ (MaxAlign - 1)

	if uint64(count) > uint64((math.MaxInt-MaxAlign)/stride) {
		return nil, fmt.Errorf("arena too large: %d blocks of %d bytes", uint64(count), stride)
	}

	a := &FixedAllocator[T, L]{
		cs:          cs,
		stride:      stride,
		size:        int(size),
		count:       count,
		blockSize:   size,
		checkBounds: o.CheckBounds || o.TrackOwnership,
	}
	if n := int(count) * stride; n > 0 {
		// contents of free blocks are never read before written, no need to zero
		buf := dirtmake.Bytes(n+MaxAlign-1, n+MaxAlign-1)
		off := alignOffset(unsafe.Pointer(&buf[0]))
		a.arena = buf[off : off+n : off+n]
		a.base = unsafe.Pointer(&a.arena[0])
	}
	if o.TrackOwnership {
		a.owned = newOwnerBitmap(int(count))
	}
	a.init()
	return a, nil
}

// alignOffset returns the distance from p to the next MaxAlign boundary.
func alignOffset(p unsafe.Pointer) int {
	return int(-uintptr(p) & (MaxAlign - 1))
}

// init links all blocks in index order. Callers must own the allocator exclusively.
func (a *FixedAllocator[T, L]) init() {
	for i := T(0); i < a.count; i++ {
		*(*T)(a.block(i)) = i + 1
	}
	a.head = 0
	a.avail = a.count
	if a.owned != nil {
		a.owned.reset()
	}
}

func (a *FixedAllocator[T, L]) block(i T) unsafe.Pointer {
	return unsafe.Add(a.base, int(i)*a.stride)
}

// Acquire returns a free block, or nil if none is available.
// The block has len == BlockSize() and cap == Stride(), its content is undefined.
// DO NOT use append to grow it beyond its cap.
func (a *FixedAllocator[T, L]) Acquire() []byte {
	a.cs.Lock()
	defer a.cs.Unlock()
	if a.avail == 0 {
		return nil
	}
	idx := a.head
	p := a.block(idx)
	a.head = *(*T)(p)
	a.avail--
	if a.owned != nil {
		a.owned.set(int(idx))
	}
	return unsafe.Slice((*byte)(p), a.stride)[:a.size]
}

// Release puts a block returned by Acquire back and reports whether it was accepted.
//
// It returns false for an empty block, or when the allocator is already full.
// Releasing a block twice, or a block of another allocator, is only detected
// with CheckBounds or TrackOwnership; otherwise it's the caller's duty not to do it.
func (a *FixedAllocator[T, L]) Release(b []byte) bool {
	if cap(b) == 0 {
		return false
	}
	off := uintptr(unsafe.Pointer(unsafe.SliceData(b))) - uintptr(a.base)
	if a.checkBounds && !a.isBlockStart(off) {
		return false
	}
	idx := T(off / uintptr(a.stride))

	a.cs.Lock()
	defer a.cs.Unlock()
	if a.avail >= a.count {
		return false
	}
	if a.owned != nil && !a.owned.clear(int(idx)) {
		return false
	}
	*(*T)(a.block(idx)) = a.head
	a.head = idx
	a.avail++
	return true
}

// Owns reports whether b starts at a block of this allocator.
// It says nothing about whether the block is currently acquired.
func (a *FixedAllocator[T, L]) Owns(b []byte) bool {
	if cap(b) == 0 {
		return false
	}
	return a.isBlockStart(uintptr(unsafe.Pointer(unsafe.SliceData(b))) - uintptr(a.base))
}

// isBlockStart checks an offset relative to base.
// Pointers below base wrap around to huge offsets and fail the range check.
func (a *FixedAllocator[T, L]) isBlockStart(off uintptr) bool {
	return off < uintptr(len(a.arena)) && off%uintptr(a.stride) == 0
}

// Available returns the number of free blocks.
// It's read inside the critical section, so it's consistent with Acquire and Release.
func (a *FixedAllocator[T, L]) Available() T {
	a.cs.Lock()
	defer a.cs.Unlock()
	return a.avail
}

// InUse returns the number of acquired blocks.
func (a *FixedAllocator[T, L]) InUse() T {
	a.cs.Lock()
	defer a.cs.Unlock()
	return a.count - a.avail
}

// Cap returns the number of blocks.
func (a *FixedAllocator[T, L]) Cap() T { return a.count }

// BlockSize returns the block size requested on creation.
func (a *FixedAllocator[T, L]) BlockSize() T { return a.blockSize }

// Stride returns the distance in bytes between two blocks.
func (a *FixedAllocator[T, L]) Stride() int { return a.stride }

// Reset returns all blocks to the allocator.
// Blocks acquired before MUST NOT be used after calling Reset.
func (a *FixedAllocator[T, L]) Reset() {
	a.cs.Lock()
	defer a.cs.Unlock()
	a.init()
}
