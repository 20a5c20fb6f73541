// Package graph implements the node arena and routing graph driver: stable
// node handles, topological scheduling, and the per-invocation mixdown that
// pushes samples from sources through to sinks.
package graph

// NodeIndex is an opaque, stable handle to a node in an Arena. It survives
// insertion and removal of other nodes: removing a node physically
// relocates at most one other node inside the arena (swap-remove), but
// that relocation only updates the moved node's slot entry, never the
// NodeIndex handles callers already hold.
type NodeIndex struct {
	slot       uint32
	generation uint32
}

// Valid reports whether idx was ever produced by an Arena (the zero value
// is never a valid handle).
func (idx NodeIndex) Valid() bool { return idx.generation != 0 }

type slotEntry struct {
	generation uint32
	occupied   bool
	dense      uint32 // valid only while occupied
	nextFree   uint32 // valid only while free
}

// Arena is a generational slotmap: a dense, cache-friendly backing array of
// values plus an indirection layer of slots that keeps external handles
// valid across swap-remove compaction. Grounded on the split-index design
// the original engine gets from the generational_arena crate.
type Arena[T any] struct {
	slots       []slotEntry
	dense       []T
	denseToSlot []uint32
	freeHead    uint32
	freeLen     uint32
}

// NewArena returns an empty arena.
func NewArena[T any]() *Arena[T] {
	return &Arena[T]{freeHead: ^uint32(0)}
}

// Len returns the number of live values in the arena.
func (a *Arena[T]) Len() int { return len(a.dense) }

// Reserve grows the dense value storage to hold at least n live entries, avoiding
// reallocation churn when the final node count is known up front.
func (a *Arena[T]) Reserve(n int) {
	if cap(a.dense) < n {
		grown := make([]T, len(a.dense), n)
		copy(grown, a.dense)
		a.dense = grown
	}
	if cap(a.denseToSlot) < n {
		grown := make([]uint32, len(a.denseToSlot), n)
		copy(grown, a.denseToSlot)
		a.denseToSlot = grown
	}
}

func (a *Arena[T]) allocSlot() uint32 {
	if a.freeLen > 0 {
		slot := a.freeHead
		a.freeHead = a.slots[slot].nextFree
		a.freeLen--
		return slot
	}
	a.slots = append(a.slots, slotEntry{generation: 1})
	return uint32(len(a.slots) - 1)
}

// InsertWith allocates a slot, calls build with the NodeIndex that will
// refer to the new value (letting the value reference its own handle, the
// way the original's insert_with supports self-referencing node
// construction), and stores the result.
func (a *Arena[T]) InsertWith(build func(NodeIndex) T) NodeIndex {
	slot := a.allocSlot()
	gen := a.slots[slot].generation
	idx := NodeIndex{slot: slot, generation: gen}

	value := build(idx)

	a.slots[slot].occupied = true
	a.slots[slot].dense = uint32(len(a.dense))
	a.dense = append(a.dense, value)
	a.denseToSlot = append(a.denseToSlot, slot)
	return idx
}

// Insert stores value directly, for callers that don't need their own handle.
func (a *Arena[T]) Insert(value T) NodeIndex {
	return a.InsertWith(func(NodeIndex) T { return value })
}

func (a *Arena[T]) resolve(idx NodeIndex) (uint32, bool) {
	if int(idx.slot) >= len(a.slots) {
		return 0, false
	}
	s := a.slots[idx.slot]
	if !s.occupied || s.generation != idx.generation {
		return 0, false
	}
	return s.dense, true
}

// Get returns a pointer to the live value idx refers to.
func (a *Arena[T]) Get(idx NodeIndex) (*T, bool) {
	pos, ok := a.resolve(idx)
	if !ok {
		return nil, false
	}
	return &a.dense[pos], true
}

// Remove deletes the value idx refers to, swap-removing the last dense
// element into its place and bumping idx's slot generation so any copies of
// idx become invalid.
func (a *Arena[T]) Remove(idx NodeIndex) bool {
	pos, ok := a.resolve(idx)
	if !ok {
		return false
	}
	last := uint32(len(a.dense) - 1)
	if pos != last {
		a.dense[pos] = a.dense[last]
		movedSlot := a.denseToSlot[last]
		a.denseToSlot[pos] = movedSlot
		a.slots[movedSlot].dense = pos
	}
	var zero T
	a.dense[last] = zero
	a.dense = a.dense[:last]
	a.denseToSlot = a.denseToSlot[:last]

	a.slots[idx.slot].occupied = false
	a.slots[idx.slot].generation++
	a.slots[idx.slot].nextFree = a.freeHead
	a.freeHead = idx.slot
	a.freeLen++
	return true
}

// Indices returns every live handle in current dense order. The order is
// arbitrary (insertion/removal history dependent) but stable for the
// duration of a single call; topologicalSort relies only on every live
// index appearing exactly once, not on any particular order.
func (a *Arena[T]) Indices() []NodeIndex {
	out := make([]NodeIndex, len(a.dense))
	for pos, slot := range a.denseToSlot {
		out[pos] = NodeIndex{slot: slot, generation: a.slots[slot].generation}
	}
	return out
}

// RestView exposes every value in the arena except the one at an excluded
// dense position, so a caller already holding *T for that position can
// safely obtain mutable access to any other value without aliasing it.
// Unlike the Rust original this needs no unsafe pointer cast: Go's lack of
// a borrow checker makes plain slice indexing sufficient, and RestView's
// job is purely to enforce the "never the excluded one" invariant.
type RestView[T any] struct {
	arena    *Arena[T]
	excluded uint32
}

// GetMut returns a pointer to the value idx refers to, or false if idx
// resolves to the excluded position or no longer resolves at all.
func (r RestView[T]) GetMut(idx NodeIndex) (*T, bool) {
	pos, ok := r.arena.resolve(idx)
	if !ok || pos == r.excluded {
		return nil, false
	}
	return &r.arena.dense[pos], true
}

// SplitAt returns the value at idx together with a view of everything else
// in the arena, for the one-node-plus-the-rest mutable access pattern
// process() needs each step of the routing order.
func (a *Arena[T]) SplitAt(idx NodeIndex) (*T, RestView[T], bool) {
	pos, ok := a.resolve(idx)
	if !ok {
		return nil, RestView[T]{}, false
	}
	return &a.dense[pos], RestView[T]{arena: a, excluded: pos}, true
}
