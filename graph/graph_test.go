package graph

import (
	"testing"

	"github.com/sbl8/routegraph/pool"
)

type noopContext struct{}

// countingProcessor writes 0, 1, 2, ... across successive Process calls,
// ignoring any input. Mirrors the original engine's CountingNode test
// fixture.
type countingProcessor struct{ next float32 }

func (p *countingProcessor) Process(_, output []*pool.Borrow[float32], frames int, _ noopContext) {
	out := output[0].Slice()
	for i := 0; i < frames; i++ {
		out[i] = p.next
		p.next++
	}
}

// captureProcessor records whatever lands in its input buffer.
type captureProcessor struct{ captured []float32 }

func (p *captureProcessor) Process(input, _ []*pool.Borrow[float32], frames int, _ noopContext) {
	p.captured = append(p.captured, input[0].Slice()[:frames]...)
}

// passthroughProcessor copies its input straight to its output.
type passthroughProcessor struct{}

func (passthroughProcessor) Process(input, output []*pool.Borrow[float32], frames int, _ noopContext) {
	copy(output[0].Slice()[:frames], input[0].Slice()[:frames])
}

func TestSignalFlowCounting(t *testing.T) {
	g := New[float32, noopContext]().WithSlotSize(1024).Build()

	sink := &captureProcessor{}
	sinkIdx := g.AddNode(1, nil, sink)
	source := &countingProcessor{}
	g.AddNode(1, []Connection{{Target: sinkIdx, Gain: 1}}, source)

	if err := g.Process(1024, noopContext{}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(sink.captured) != 1024 {
		t.Fatalf("captured %d samples, want 1024", len(sink.captured))
	}
	for i, v := range sink.captured {
		if v != float32(i) {
			t.Fatalf("captured[%d] = %v, want %v", i, v, i)
		}
	}
}

func TestMultipleOutsSignalFlow(t *testing.T) {
	g := New[float32, noopContext]().Build()

	sinkA := &captureProcessor{}
	sinkAIdx := g.AddNode(1, nil, sinkA)
	sinkB := &captureProcessor{}
	sinkBIdx := g.AddNode(1, nil, sinkB)

	source := &countingProcessor{}
	g.AddNode(1, []Connection{
		{Target: sinkAIdx, Gain: 1},
		{Target: sinkBIdx, Gain: 0.5},
	}, source)

	if err := g.Process(8, noopContext{}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	for i := 0; i < 8; i++ {
		if sinkA.captured[i] != float32(i) {
			t.Fatalf("sinkA[%d] = %v, want %v", i, sinkA.captured[i], i)
		}
		if sinkB.captured[i] != float32(i)*0.5 {
			t.Fatalf("sinkB[%d] = %v, want %v", i, sinkB.captured[i], float32(i)*0.5)
		}
	}
}

func TestLongLineTopoSort(t *testing.T) {
	g := New[float32, noopContext]().Build()

	var idx [6]NodeIndex
	// Insert in scrambled order: B, D, E, F, C, A (indices 1,3,4,5,2,0).
	idx[1] = g.AddNode(1, nil, passthroughProcessor{})
	idx[3] = g.AddNode(1, nil, passthroughProcessor{})
	idx[4] = g.AddNode(1, nil, passthroughProcessor{})
	idx[5] = g.AddNode(1, nil, passthroughProcessor{})
	idx[2] = g.AddNode(1, nil, passthroughProcessor{})
	idx[0] = g.AddNode(1, nil, passthroughProcessor{})

	connect := func(from, to NodeIndex) {
		node, _ := g.arena.Get(from)
		node.Connections = append(node.Connections, Connection{Target: to, Gain: 1})
	}
	connect(idx[0], idx[1]) // A -> B
	connect(idx[1], idx[2]) // B -> C
	connect(idx[2], idx[3]) // C -> D
	connect(idx[3], idx[4]) // D -> E
	connect(idx[4], idx[5]) // E -> F

	if err := g.Sort(); err != nil {
		t.Fatalf("Sort: %v", err)
	}

	want := []NodeIndex{idx[0], idx[1], idx[2], idx[3], idx[4], idx[5]}
	if len(g.ordering) != len(want) {
		t.Fatalf("ordering length = %d, want %d", len(g.ordering), len(want))
	}
	for i, w := range want {
		if g.ordering[i] != w {
			t.Fatalf("ordering[%d] = %v, want %v", i, g.ordering[i], w)
		}
	}
}

func TestProcessReleasesAllBuffers(t *testing.T) {
	g := New[float32, noopContext]().WithSlotSize(4).Build()
	sinkIdx := g.AddNode(1, nil, &captureProcessor{})
	sourceIdx := g.AddNode(1, []Connection{{Target: sinkIdx, Gain: 1}}, &countingProcessor{})

	if err := g.Process(10, noopContext{}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if g.pool.InUse() != 0 {
		t.Fatalf("pool.InUse() = %d, want 0 after Process returns", g.pool.InUse())
	}
	sinkNode, _ := g.arena.Get(sinkIdx)
	if len(sinkNode.Buffers()) != 0 {
		t.Fatalf("sink node.Buffers() len = %d, want 0 between invocations", len(sinkNode.Buffers()))
	}
	sourceNode, _ := g.arena.Get(sourceIdx)
	if len(sourceNode.Buffers()) != 0 {
		t.Fatalf("source node.Buffers() len = %d, want 0 between invocations", len(sourceNode.Buffers()))
	}
}

func TestSetEdgeGainIdempotent(t *testing.T) {
	g := New[float32, noopContext]().Build()
	a := g.AddNode(1, nil, passthroughProcessor{})
	b := g.AddNode(1, nil, passthroughProcessor{})
	node, _ := g.arena.Get(a)

	if !g.SetEdgeGain(a, b, 0) {
		t.Fatal("SetEdgeGain on a valid source should return true")
	}
	if len(node.Connections) != 0 {
		t.Fatalf("zero gain with no existing edge should be a no-op, got %v", node.Connections)
	}

	if !g.SetEdgeGain(a, b, 0.5) {
		t.Fatal("SetEdgeGain should succeed")
	}
	if len(node.Connections) != 1 || node.Connections[0].Gain != 0.5 {
		t.Fatalf("expected a single 0.5-gain edge, got %v", node.Connections)
	}
	if g.sorted {
		t.Fatal("expected SetEdgeGain to clear sorted after creating an edge")
	}

	if err := g.Sort(); err != nil {
		t.Fatalf("Sort: %v", err)
	}
	g.SetEdgeGain(a, b, 0.75)
	if len(node.Connections) != 1 || node.Connections[0].Gain != 0.75 {
		t.Fatalf("expected overwritten 0.75-gain edge, got %v", node.Connections)
	}
	if g.sorted {
		t.Fatal("expected SetEdgeGain to clear sorted after overwriting an edge")
	}

	g.SetEdgeGain(a, b, 0)
	if len(node.Connections) != 0 {
		t.Fatalf("expected edge removed by zero gain, got %v", node.Connections)
	}

	// set_edge_gain(src, dst, 0) followed by set_edge_gain(src, dst, g) should
	// match a single set_edge_gain(src, dst, g) call.
	g2 := New[float32, noopContext]().Build()
	a2 := g2.AddNode(1, nil, passthroughProcessor{})
	b2 := g2.AddNode(1, nil, passthroughProcessor{})
	g2.SetEdgeGain(a2, b2, 0)
	g2.SetEdgeGain(a2, b2, 0.25)
	node2, _ := g2.arena.Get(a2)
	if len(node2.Connections) != 1 || node2.Connections[0].Gain != 0.25 {
		t.Fatalf("expected a single 0.25-gain edge, got %v", node2.Connections)
	}

	if g.SetEdgeGain(NodeIndex{}, b, 1) {
		t.Fatal("SetEdgeGain should return false for an invalid source")
	}
}

func TestIsSortedTracksMutation(t *testing.T) {
	g := New[float32, noopContext]().Build()
	if g.IsSorted() {
		t.Fatal("an empty graph should not start sorted")
	}

	g.AddNode(1, nil, passthroughProcessor{})
	if err := g.Sort(); err != nil {
		t.Fatalf("Sort: %v", err)
	}
	if !g.IsSorted() {
		t.Fatal("expected IsSorted true right after Sort")
	}

	g.AddNode(1, nil, passthroughProcessor{})
	if g.IsSorted() {
		t.Fatal("expected AddNode to clear sorted")
	}
}

func TestSetSlotSizeChangesChunking(t *testing.T) {
	g := New[float32, noopContext]().WithSlotSize(4).Build()
	sink := &captureProcessor{}
	sinkIdx := g.AddNode(1, nil, sink)
	source := &countingProcessor{}
	g.AddNode(1, []Connection{{Target: sinkIdx, Gain: 1}}, source)

	if err := g.SetSlotSize(2); err != nil {
		t.Fatalf("SetSlotSize: %v", err)
	}
	if g.SlotSize() != 2 {
		t.Fatalf("SlotSize = %d, want 2", g.SlotSize())
	}
	if g.IsSorted() {
		t.Fatal("expected SetSlotSize to clear sorted")
	}

	if err := g.Process(6, noopContext{}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(sink.captured) != 6 {
		t.Fatalf("captured %d samples, want 6", len(sink.captured))
	}
}

func TestSetSlotSizeRefusesWithLiveBorrows(t *testing.T) {
	g := New[float32, noopContext]().WithSlotSize(4).Build()
	g.AddNode(1, nil, passthroughProcessor{})
	if err := g.Sort(); err != nil {
		t.Fatalf("Sort: %v", err)
	}

	b, err := g.pool.AcquireNoGrow()
	if err != nil {
		t.Fatalf("AcquireNoGrow: %v", err)
	}
	defer b.Release()

	if err := g.SetSlotSize(8); err != ErrBorrowsLive {
		t.Fatalf("SetSlotSize error = %v, want ErrBorrowsLive", err)
	}
}

func TestWithNodeAndWithNodeMut(t *testing.T) {
	g := New[float32, noopContext]().Build()
	idx := g.AddNode(2, nil, passthroughProcessor{})

	var seenChannels int
	if !g.WithNode(idx, func(n *Node[float32, noopContext]) { seenChannels = n.Channels }) {
		t.Fatal("WithNode returned false for a live node")
	}
	if seenChannels != 2 {
		t.Fatalf("seenChannels = %d, want 2", seenChannels)
	}

	if err := g.Sort(); err != nil {
		t.Fatalf("Sort: %v", err)
	}
	target := g.AddNode(2, nil, passthroughProcessor{})
	if !g.WithNodeMut(idx, func(n *Node[float32, noopContext]) {
		n.Connections = append(n.Connections, Connection{Target: target, Gain: 1})
	}) {
		t.Fatal("WithNodeMut returned false for a live node")
	}
	if g.IsSorted() {
		t.Fatal("expected WithNodeMut to clear sorted")
	}

	var missing NodeIndex
	if g.WithNode(missing, func(*Node[float32, noopContext]) {}) {
		t.Fatal("WithNode should return false for an invalid index")
	}
}

func TestHasCycles(t *testing.T) {
	g := New[float32, noopContext]().Build()

	a := g.AddNode(1, nil, passthroughProcessor{})
	b := g.AddNode(1, nil, passthroughProcessor{})
	if g.HasCycles() {
		t.Fatal("fresh graph reported as cyclic")
	}

	node, _ := g.arena.Get(a)
	node.Connections = append(node.Connections, Connection{Target: b, Gain: 1})
	nodeB, _ := g.arena.Get(b)
	nodeB.Connections = append(nodeB.Connections, Connection{Target: a, Gain: 1})

	if !g.HasCycles() {
		t.Fatal("expected cycle to be detected")
	}
	if _, err := g.topologicalSort(); err != ErrCycle {
		t.Fatalf("topologicalSort error = %v, want ErrCycle", err)
	}
}

func TestRemoveNodeDropsDanglingConnections(t *testing.T) {
	g := New[float32, noopContext]().Build()
	sink := g.AddNode(1, nil, passthroughProcessor{})
	source := g.AddNode(1, []Connection{{Target: sink, Gain: 1}}, passthroughProcessor{})

	if !g.RemoveNode(sink) {
		t.Fatal("RemoveNode returned false for a live node")
	}
	node, ok := g.arena.Get(source)
	if !ok {
		t.Fatal("source node vanished")
	}
	if len(node.Connections) != 0 {
		t.Fatalf("expected dangling connection to be dropped, got %v", node.Connections)
	}
}

func TestNodeIndexStableAcrossRemove(t *testing.T) {
	g := New[float32, noopContext]().Build()
	a := g.AddNode(1, nil, passthroughProcessor{})
	b := g.AddNode(1, nil, passthroughProcessor{})
	c := g.AddNode(1, nil, passthroughProcessor{})

	g.RemoveNode(a) // swap-removes c into a's old slot internally

	if _, ok := g.arena.Get(b); !ok {
		t.Fatal("b's handle should remain valid")
	}
	if _, ok := g.arena.Get(c); !ok {
		t.Fatal("c's handle should remain valid after being relocated")
	}
	if _, ok := g.arena.Get(a); ok {
		t.Fatal("a's handle should no longer resolve")
	}
}

func TestChunkedProcessing(t *testing.T) {
	g := New[float32, noopContext]().WithSlotSize(4).Build()
	sink := &captureProcessor{}
	sinkIdx := g.AddNode(1, nil, sink)
	source := &countingProcessor{}
	g.AddNode(1, []Connection{{Target: sinkIdx, Gain: 1}}, source)

	if err := g.Process(10, noopContext{}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(sink.captured) != 10 {
		t.Fatalf("captured %d samples across chunks, want 10", len(sink.captured))
	}
	for i, v := range sink.captured {
		if v != float32(i) {
			t.Fatalf("captured[%d] = %v, want %v", i, v, i)
		}
	}
}
