// Package pool implements the fixed-capacity buffer pool the graph driver
// borrows scratch and connection buffers from during process(). Every slot
// is the same size (slot_size samples); acquiring a slot never grows the
// backing storage once the pool covers its working set, though each acquire
// allocates the small Borrow handle it returns.
package pool

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/sbl8/routegraph/core"
)

// ErrExhausted is returned by AcquireNoGrow and AcquireClearedNoGrow when
// every slot is currently borrowed.
var ErrExhausted = errors.New("pool: no free slots")

// BufferPool hands out fixed-size sample slices from a pre-allocated
// backing array. Slots are tracked with a word-based bitset instead of a
// free list; acquiring scans it for the lowest clear bit and InUse counts
// set bits, both in O(capacity).
type BufferPool[S core.Sample] struct {
	slotSize int
	buffer   []S
	used     []uint32
	capacity int
}

// New creates a pool with no slots. Call Reserve (or let Acquire grow it
// lazily) before use.
func New[S core.Sample](slotSize int) *BufferPool[S] {
	if slotSize <= 0 {
		panic("pool: slotSize must be positive")
	}
	return &BufferPool[S]{slotSize: slotSize}
}

// SlotSize returns the fixed per-slot length in samples.
func (p *BufferPool[S]) SlotSize() int { return p.slotSize }

// Capacity returns the number of slots currently backed by storage.
func (p *BufferPool[S]) Capacity() int { return p.capacity }

// Reserve grows the pool, if necessary, to hold at least n slots. It never
// shrinks the pool and never invalidates outstanding borrows. The backing
// array is allocated through core.AlignedBytes, so every pool's storage
// starts on a cache-line boundary the way the rest of the hot path assumes.
func (p *BufferPool[S]) Reserve(n int) {
	if n <= p.capacity {
		return
	}
	newBuffer := alignedSampleSlice[S](n * p.slotSize)
	copy(newBuffer, p.buffer)
	newUsed := make([]uint32, wordsFor(n))
	copy(newUsed, p.used)
	p.buffer = newBuffer
	p.used = newUsed
	p.capacity = n
}

// alignedSampleSlice returns a slice of n samples backed by a
// core.AlignedBytes allocation padded, via core.AlignedSize, to a whole
// number of cache lines.
func alignedSampleSlice[S core.Sample](n int) []S {
	if n == 0 {
		return nil
	}
	var zero S
	sampleSize := unsafe.Sizeof(zero)
	byteLen := core.AlignedSize(uintptr(n) * sampleSize)
	raw := core.AlignedBytes(int(byteLen))
	return unsafe.Slice((*S)(unsafe.Pointer(&raw[0])), n)
}

func (p *BufferPool[S]) findFreeIndex() (int, bool) {
	for i := 0; i < p.capacity; i++ {
		if !valueOfIndex(p.used, i) {
			return i, true
		}
	}
	return 0, false
}

// Acquire borrows a free slot, growing the pool by one slot if none is free.
// The returned Borrow's Release method must be called (typically via
// defer) to return the slot to the pool.
func (p *BufferPool[S]) Acquire() *Borrow[S] {
	index, ok := p.findFreeIndex()
	if !ok {
		p.Reserve(p.capacity + 1)
		index = p.capacity - 1
	}
	updateIndex(p.used, index, true)
	start := index * p.slotSize
	return &Borrow[S]{
		pool:  p,
		index: index,
		slice: p.buffer[start : start+p.slotSize],
	}
}

// AcquireNoGrow borrows a free slot without growing the pool, returning
// ErrExhausted if none is free. Used on the realtime path, where growth
// (an allocation) is never acceptable.
func (p *BufferPool[S]) AcquireNoGrow() (*Borrow[S], error) {
	index, ok := p.findFreeIndex()
	if !ok {
		return nil, fmt.Errorf("%w: capacity %d", ErrExhausted, p.capacity)
	}
	updateIndex(p.used, index, true)
	start := index * p.slotSize
	return &Borrow[S]{
		pool:  p,
		index: index,
		slice: p.buffer[start : start+p.slotSize],
	}, nil
}

// AcquireCleared borrows a free slot whose contents are zeroed before
// return, growing the pool by one slot if none is free.
func (p *BufferPool[S]) AcquireCleared() *Borrow[S] {
	b := p.Acquire()
	core.Silence(b.slice)
	return b
}

// AcquireClearedNoGrow borrows a free slot whose contents are zeroed
// before return, without growing the pool, returning ErrExhausted if none
// is free. This is the variant the graph driver uses for every
// invocation's fresh node-input and scratch buffers, so stale contents
// from a prior borrow's occupant never leak into a new one.
func (p *BufferPool[S]) AcquireClearedNoGrow() (*Borrow[S], error) {
	b, err := p.AcquireNoGrow()
	if err != nil {
		return nil, err
	}
	core.Silence(b.slice)
	return b, nil
}

// InUse reports how many slots are currently borrowed.
func (p *BufferPool[S]) InUse() int {
	n := 0
	for i := 0; i < p.capacity; i++ {
		if valueOfIndex(p.used, i) {
			n++
		}
	}
	return n
}

// SilenceAll zeroes every slot's backing storage regardless of borrow state.
// Callers must ensure no concurrent process() is reading the pool.
func (p *BufferPool[S]) SilenceAll() {
	core.Silence(p.buffer)
}

// release returns index to the free set. Called only from Borrow.Release.
func (p *BufferPool[S]) release(index int) {
	updateIndex(p.used, index, false)
}

// Borrow is a live loan of one pool slot. It must not be used after Release.
type Borrow[S core.Sample] struct {
	pool     *BufferPool[S]
	index    int
	slice    []S
	released bool
}

// Slice returns the borrowed sample buffer.
func (b *Borrow[S]) Slice() []S { return b.slice }

// Index returns the pool slot index backing this borrow, stable for the
// borrow's lifetime.
func (b *Borrow[S]) Index() int { return b.index }

// Release returns the slot to the pool. Safe to call more than once; the
// second and later calls are no-ops.
func (b *Borrow[S]) Release() {
	if b.released {
		return
	}
	b.released = true
	b.pool.release(b.index)
}
