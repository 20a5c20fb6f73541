// Package engine wraps a graph.RouteGraph with the bookkeeping a realtime
// host needs around it: invocation statistics and a stable Render entry
// point to call once per audio callback. Grounded on runtime/runtime.go's
// Engine/ExecutionStats, retargeted from driving a worker-pool scheduler
// over a compiled neural graph to driving one RouteGraph per callback.
package engine

import (
	"time"

	"github.com/sbl8/routegraph/core"
	"github.com/sbl8/routegraph/graph"
)

// Stats accumulates per-invocation timing, mirroring
// runtime.ExecutionStats' total-count/average-latency pair.
type Stats struct {
	TotalInvocations uint64
	TotalFrames      uint64
	TotalLatency     time.Duration
}

// AverageLatency returns the mean wall-clock time spent in Render across
// every invocation so far, or zero if Render has never been called.
func (s Stats) AverageLatency() time.Duration {
	if s.TotalInvocations == 0 {
		return 0
	}
	return s.TotalLatency / time.Duration(s.TotalInvocations)
}

// Engine drives a graph.RouteGraph once per realtime callback and tracks
// how long each call took.
type Engine[S core.Sample, C any] struct {
	graph *graph.RouteGraph[S, C]
	stats Stats
}

// New wraps g.
func New[S core.Sample, C any](g *graph.RouteGraph[S, C]) *Engine[S, C] {
	return &Engine[S, C]{graph: g}
}

// Graph returns the wrapped RouteGraph.
func (e *Engine[S, C]) Graph() *graph.RouteGraph[S, C] { return e.graph }

// Stats returns a snapshot of the accumulated invocation statistics.
func (e *Engine[S, C]) Stats() Stats { return e.stats }

// Render drives the graph for frames sample frames, recording latency.
// This is the function a realtime audio callback calls every period.
func (e *Engine[S, C]) Render(frames int, ctx C) error {
	start := time.Now()
	err := e.graph.Process(frames, ctx)
	elapsed := time.Since(start)

	e.stats.TotalInvocations++
	e.stats.TotalFrames += uint64(frames)
	e.stats.TotalLatency += elapsed
	return err
}
