// Package routegraph implements a realtime audio routing graph: a
// directed graph of sample-processing nodes, driven once per callback in
// topological order, without growing its buffer pool on the hot path.
// Process does still allocate small bookkeeping values each chunk: the
// scratch handle slice and one Borrow handle per acquired buffer.
//
// Architecture:
//
//   - core:    the Sample type constraint and the mixdown/alignment
//     primitives the rest of the module builds on.
//   - pool:    a fixed-capacity, bitset-backed pool of same-size sample
//     buffers, borrowed and released without allocating.
//   - graph:   the node arena (stable handles across removal) and the
//     RouteGraph driver: topological sort, cycle detection, and the
//     per-invocation process loop.
//   - nodes:   a small library of ready-made Processor implementations
//     (sources, sinks, gain, mixing).
//   - patch:   loading a routing topology from a YAML description or a
//     compiled binary file.
//   - engine:  a thin wrapper tracking invocation statistics around one
//     RouteGraph, the entry point a realtime callback calls.
//   - session: running several independent graphs concurrently.
//
// Basic usage:
//
//	g := graph.New[float32, MyContext]().WithSlotSize(1024).Build()
//	sink := g.AddNode(1, nil, mySinkProcessor)
//	g.AddNode(1, []graph.Connection{{Target: sink, Gain: 1}}, mySourceProcessor)
//	e := engine.New(g)
//	e.Render(1024, ctx)
package routegraph
