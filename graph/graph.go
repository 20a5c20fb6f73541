package graph

import (
	"errors"
	"fmt"

	"github.com/sbl8/routegraph/core"
	"github.com/sbl8/routegraph/pool"
)

// ErrCycle is returned by Sort/Process when the graph's connections form a
// cycle, since no topological order exists to process it in.
var ErrCycle = errors.New("graph: contains a cycle")

// ErrBorrowsLive is returned by SetSlotSize when the graph's buffer pool
// currently has outstanding borrows: replacing the pool out from under
// them would leave those borrows pointing at a slot size that no longer
// matches the live pool's layout.
var ErrBorrowsLive = errors.New("graph: cannot change slot size while buffers are borrowed")

// RouteGraph holds a directed graph of Processor nodes and drives them in
// topological order once per Process call, mixing each node's output into
// its downstream connections' input buffers with per-edge gain.
type RouteGraph[S core.Sample, C any] struct {
	arena    *Arena[Node[S, C]]
	pool     *pool.BufferPool[S]
	slotSize int

	ordering    []NodeIndex
	sorted      bool
	maxChannels int
}

// Builder constructs a RouteGraph with a fixed slot size and, optionally, a
// pre-reserved node/buffer capacity.
type Builder[S core.Sample, C any] struct {
	slotSize     int
	capacityHint int
}

// New starts a Builder with a default slot size of 1024 frames.
func New[S core.Sample, C any]() *Builder[S, C] {
	return &Builder[S, C]{slotSize: 1024}
}

// WithSlotSize sets the fixed chunk size process() divides large
// invocations into.
func (b *Builder[S, C]) WithSlotSize(n int) *Builder[S, C] {
	b.slotSize = n
	return b
}

// WithCapacityHint pre-reserves arena and pool capacity for n nodes, to
// avoid growth reallocation churn when the final node count is known.
func (b *Builder[S, C]) WithCapacityHint(n int) *Builder[S, C] {
	b.capacityHint = n
	return b
}

// Build returns the constructed, empty RouteGraph.
func (b *Builder[S, C]) Build() *RouteGraph[S, C] {
	arena := NewArena[Node[S, C]]()
	if b.capacityHint > 0 {
		arena.Reserve(b.capacityHint)
	}
	p := pool.New[S](b.slotSize)
	if b.capacityHint > 0 {
		p.Reserve(b.capacityHint)
	}
	return &RouteGraph[S, C]{arena: arena, pool: p, slotSize: b.slotSize}
}

// SlotSize returns the fixed chunk size Process uses internally.
func (g *RouteGraph[S, C]) SlotSize() int { return g.slotSize }

// SetSlotSize changes the graph's fixed chunk size, replacing the backing
// buffer pool wholesale (so every slot starts re-zeroed at the new size).
// Refuses with ErrBorrowsLive if any pool borrow is currently outstanding,
// since those borrows would otherwise alias a pool the graph no longer
// owns.
func (g *RouteGraph[S, C]) SetSlotSize(n int) error {
	if n <= 0 {
		return fmt.Errorf("graph: slot size must be positive")
	}
	if g.pool.InUse() > 0 {
		return ErrBorrowsLive
	}
	g.pool = pool.New[S](n)
	g.slotSize = n
	g.sorted = false
	return nil
}

// NodeCount returns the number of live nodes.
func (g *RouteGraph[S, C]) NodeCount() int { return g.arena.Len() }

// IsSorted reports whether the graph's topological order is current. It
// becomes false after any mutation (AddNodeWith, RemoveNode, AddConnection,
// SetEdgeGain, WithNodeMut, SetSlotSize) until the next Sort or Process.
func (g *RouteGraph[S, C]) IsSorted() bool { return g.sorted }

// WithNode invokes fn with a read-only view of the node at idx, returning
// false if idx does not resolve to a live node.
func (g *RouteGraph[S, C]) WithNode(idx NodeIndex, fn func(*Node[S, C])) bool {
	node, ok := g.arena.Get(idx)
	if !ok {
		return false
	}
	fn(node)
	return true
}

// WithNodeMut invokes fn with a mutable view of the node at idx, letting a
// caller change a node's Channels, Connections, or Processor between
// invocations. Returns false if idx does not resolve to a live node.
// Always clears sorted, since fn may have touched Connections.
func (g *RouteGraph[S, C]) WithNodeMut(idx NodeIndex, fn func(*Node[S, C])) bool {
	node, ok := g.arena.Get(idx)
	if !ok {
		return false
	}
	fn(node)
	if node.Channels > g.maxChannels {
		g.maxChannels = node.Channels
	}
	g.sorted = false
	return true
}

// AddNodeWith inserts a node whose Processor is built from its own freshly
// allocated NodeIndex, letting self-referencing processors exist (the same
// role the original's insert_with plays). channels is both the node's
// input and output channel count.
func (g *RouteGraph[S, C]) AddNodeWith(channels int, connections []Connection, build func(NodeIndex) Processor[S, C]) NodeIndex {
	idx := g.arena.InsertWith(func(idx NodeIndex) Node[S, C] {
		return Node[S, C]{
			Processor:   build(idx),
			Channels:    channels,
			Connections: append([]Connection(nil), connections...),
		}
	})
	if channels > g.maxChannels {
		g.maxChannels = channels
	}
	g.sorted = false
	return idx
}

// AddNode is AddNodeWith for processors that don't need their own index.
func (g *RouteGraph[S, C]) AddNode(channels int, connections []Connection, p Processor[S, C]) NodeIndex {
	return g.AddNodeWith(channels, connections, func(NodeIndex) Processor[S, C] { return p })
}

// RemoveNode deletes a node and every connection pointing at it, returning
// whether idx was a live node.
func (g *RouteGraph[S, C]) RemoveNode(idx NodeIndex) bool {
	if node, ok := g.arena.Get(idx); ok {
		for _, b := range node.buffers {
			b.Release()
		}
	}
	if !g.arena.Remove(idx) {
		return false
	}
	for _, other := range g.arena.Indices() {
		node, _ := g.arena.Get(other)
		filtered := node.Connections[:0]
		for _, c := range node.Connections {
			if c.Target != idx {
				filtered = append(filtered, c)
			}
		}
		node.Connections = filtered
	}
	g.sorted = false
	return true
}

// AddConnection appends a new edge from -> to with the given gain, for
// callers building a graph's topology in two passes (all nodes, then all
// edges) rather than declaring a node's outgoing connections at AddNode
// time.
func (g *RouteGraph[S, C]) AddConnection(from, to NodeIndex, gain float64) error {
	node, ok := g.arena.Get(from)
	if !ok {
		return fmt.Errorf("graph: AddConnection: unknown source node")
	}
	node.Connections = append(node.Connections, Connection{Target: to, Gain: gain})
	g.sorted = false
	return nil
}

// SetEdgeGain idempotently updates the connection from -> to: if the edge
// exists, a zero gain removes it and any other gain overwrites it; if the
// edge is absent, a zero gain is a no-op and any other gain appends a new
// connection. A zero-gain connection is never left sitting in the list.
// Returns false only if from is not a live node.
func (g *RouteGraph[S, C]) SetEdgeGain(from, to NodeIndex, gain float64) bool {
	node, ok := g.arena.Get(from)
	if !ok {
		return false
	}
	for i := range node.Connections {
		if node.Connections[i].Target == to {
			if gain == 0 {
				node.Connections = append(node.Connections[:i], node.Connections[i+1:]...)
			} else {
				node.Connections[i].Gain = gain
			}
			g.sorted = false
			return true
		}
	}
	if gain != 0 {
		node.Connections = append(node.Connections, Connection{Target: to, Gain: gain})
		g.sorted = false
	}
	return true
}

// SilenceAllBuffers zeroes every slot in the backing buffer pool,
// regardless of borrow state. The caller must ensure no Process call is
// concurrently in flight.
func (g *RouteGraph[S, C]) SilenceAllBuffers() {
	g.pool.SilenceAll()
}

// HasCycles reports whether the graph currently contains a cycle, by
// depth-first search tracking each path's recursion stack. A true result
// means Process will fail; a false result is only a guarantee about the
// graph as it stood at the moment of the call; any mutation afterward
// invalidates it until the next check or sort.
func (g *RouteGraph[S, C]) HasCycles() bool {
	visited := make(map[NodeIndex]bool, g.arena.Len())
	onStack := make(map[NodeIndex]bool, g.arena.Len())

	var visit func(idx NodeIndex) bool
	visit = func(idx NodeIndex) bool {
		if onStack[idx] {
			return true
		}
		if visited[idx] {
			return false
		}
		visited[idx] = true
		onStack[idx] = true
		if node, ok := g.arena.Get(idx); ok {
			for _, c := range node.Connections {
				if visit(c.Target) {
					return true
				}
			}
		}
		onStack[idx] = false
		return false
	}

	for _, idx := range g.arena.Indices() {
		if visit(idx) {
			return true
		}
	}
	return false
}

// topologicalSort computes a DFS-reverse-postorder execution order: for
// every connection src -> dst, src is guaranteed to appear before dst, so
// that by the time dst runs every upstream contribution has already been
// mixed into its buffers. A DFS postorder reversed at the end, chosen
// over a Kahn's-algorithm sort since that gives a different, BFS-layered
// ordering this driver's mixdown order does not need.
func (g *RouteGraph[S, C]) topologicalSort() ([]NodeIndex, error) {
	if g.HasCycles() {
		return nil, ErrCycle
	}

	visited := make(map[NodeIndex]bool, g.arena.Len())
	postorder := make([]NodeIndex, 0, g.arena.Len())

	var visit func(idx NodeIndex)
	visit = func(idx NodeIndex) {
		if visited[idx] {
			return
		}
		visited[idx] = true
		if node, ok := g.arena.Get(idx); ok {
			for _, c := range node.Connections {
				visit(c.Target)
			}
		}
		postorder = append(postorder, idx)
	}

	for _, idx := range g.arena.Indices() {
		visit(idx)
	}

	ordering := make([]NodeIndex, len(postorder))
	for i, idx := range postorder {
		ordering[len(postorder)-1-i] = idx
	}
	return ordering, nil
}

// Sort recomputes the execution order. Process calls this automatically
// when the graph has been mutated since the last sort; exposed so callers can
// pay the sorting cost explicitly outside a realtime deadline (e.g. right
// after building the graph, before the first audio callback).
func (g *RouteGraph[S, C]) Sort() error {
	ordering, err := g.topologicalSort()
	if err != nil {
		return err
	}
	g.ordering = ordering
	g.sorted = true
	g.pool.Reserve(g.requiredCapacity())
	return nil
}

// requiredCapacity is the number of pool slots Process needs: one
// persistent input-accumulation slot per node channel, plus maxChannels
// scratch slots shared across every step of one invocation (only one
// node's output is ever in flight between being produced and being mixed
// into its downstream targets, so the scratch requirement is the widest
// single node, not a sum across the whole graph).
func (g *RouteGraph[S, C]) requiredCapacity() int {
	total := g.maxChannels
	for _, idx := range g.arena.Indices() {
		node, _ := g.arena.Get(idx)
		total += node.Channels
	}
	return total
}

// ensureBuffers grows node's persistent input accumulators up to
// node.Channels slots, each freshly cleared, the one-time-per-invocation
// initialization step the driver performs the first time a node is
// written to or read from.
func (g *RouteGraph[S, C]) ensureBuffers(node *Node[S, C]) error {
	if len(node.buffers) == node.Channels {
		return nil
	}
	for _, b := range node.buffers {
		b.Release()
	}
	if cap(node.buffers) < node.Channels {
		node.buffers = make([]*pool.Borrow[S], 0, node.Channels)
	} else {
		node.buffers = node.buffers[:0]
	}
	for i := 0; i < node.Channels; i++ {
		b, err := g.pool.AcquireClearedNoGrow()
		if err != nil {
			return fmt.Errorf("graph: allocating node input buffer: %w", err)
		}
		node.buffers = append(node.buffers, b)
	}
	return nil
}

// Process drives every node once, in topological order, for frames sample
// frames. If frames exceeds the graph's slot size the invocation is split
// into ceil(frames/slot_size) sub-invocations, each independently mixed and
// drained, so a single call can never need more scratch than one slot's
// worth of channels.
func (g *RouteGraph[S, C]) Process(frames int, ctx C) error {
	if !g.sorted {
		if err := g.Sort(); err != nil {
			return err
		}
	}

	remaining := frames
	for remaining > 0 {
		n := remaining
		if n > g.slotSize {
			n = g.slotSize
		}
		if err := g.processChunk(n, ctx); err != nil {
			return err
		}
		remaining -= n
	}
	return nil
}

func (g *RouteGraph[S, C]) processChunk(frames int, ctx C) error {
	temp := make([]*pool.Borrow[S], g.maxChannels)
	for i := range temp {
		b, err := g.pool.AcquireClearedNoGrow()
		if err != nil {
			for _, prior := range temp[:i] {
				prior.Release()
			}
			return fmt.Errorf("graph: allocating scratch buffer: %w", err)
		}
		temp[i] = b
	}
	defer func() {
		for _, b := range temp {
			b.Release()
		}
	}()

	for _, idx := range g.ordering {
		node, rest, ok := g.arena.SplitAt(idx)
		if !ok {
			continue
		}
		if err := g.ensureBuffers(node); err != nil {
			return err
		}

		output := temp[:node.Channels]
		node.Processor.Process(node.buffers, output, frames, ctx)

		for _, conn := range node.Connections {
			dest, ok := rest.GetMut(conn.Target)
			if !ok {
				continue
			}
			if err := g.ensureBuffers(dest); err != nil {
				return err
			}
			channels := len(output)
			if len(dest.buffers) < channels {
				channels = len(dest.buffers)
			}
			for ch := 0; ch < channels; ch++ {
				core.MixInto(dest.buffers[ch].Slice(), output[ch].Slice(), conn.Gain, frames)
			}
		}

		for _, b := range node.buffers {
			b.Release()
		}
		node.buffers = node.buffers[:0]
	}
	return nil
}
