package graph

import (
	"github.com/sbl8/routegraph/core"
	"github.com/sbl8/routegraph/pool"
)

// Connection is a directed edge from one node to another, carrying a gain
// applied while mixing the source's output into the target's input buffers.
type Connection struct {
	Target NodeIndex
	Gain   float64
}

// Processor is the unit of work a node performs once per process()
// invocation. input holds whatever upstream nodes have already mixed into
// this node's persistent buffers this invocation; output is scratch the
// processor must fill with exactly frames samples per channel.
type Processor[S core.Sample, C any] interface {
	Process(input, output []*pool.Borrow[S], frames int, ctx C)
}

// Node is one vertex of a RouteGraph: a processor, its declared channel
// count, and the outgoing connections to mix its output into.
type Node[S core.Sample, C any] struct {
	Processor   Processor[S, C]
	Channels    int
	Connections []Connection

	buffers []*pool.Borrow[S] // persistent input accumulation, lazily sized
}

// Buffers exposes the node's persistent input accumulation buffers, mostly
// useful for tests and introspection.
func (n *Node[S, C]) Buffers() []*pool.Borrow[S] { return n.buffers }
