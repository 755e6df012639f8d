package malloc

import "math/bits"

// ownerBitmap tracks acquired blocks of a FixedAllocator.
// Each bit represents one block, set while the block is handed out.
// Words are allocated once and never resized.
type ownerBitmap struct {
	words     []uint64
	numBlocks int
}

func newOwnerBitmap(numBlocks int) *ownerBitmap {
	return &ownerBitmap{
		words:     make([]uint64, (numBlocks+63)>>6),
		numBlocks: numBlocks,
	}
}

// isSet returns true if block at idx is acquired.
func (m *ownerBitmap) isSet(idx int) bool {
	return m.words[idx>>6]&(1<<(idx&63)) != 0
}

// set marks idx as acquired. Returns false if it already was.
func (m *ownerBitmap) set(idx int) bool {
	w, mask := idx>>6, uint64(1)<<(idx&63)
	if m.words[w]&mask != 0 {
		return false
	}
	m.words[w] |= mask
	return true
}

// clear marks idx as free. Returns false if it wasn't acquired,
// which means a double release or a block never handed out.
func (m *ownerBitmap) clear(idx int) bool {
	if idx < 0 || idx >= m.numBlocks {
		return false
	}
	w, mask := idx>>6, uint64(1)<<(idx&63)
	if m.words[w]&mask == 0 {
		return false
	}
	m.words[w] &^= mask
	return true
}

// count returns the number of acquired blocks.
func (m *ownerBitmap) count() int {
	n := 0
	for _, w := range m.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// reset marks all blocks as free.
func (m *ownerBitmap) reset() {
	for i := range m.words {
		m.words[i] = 0
	}
}
