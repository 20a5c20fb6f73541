package engine

import (
	"testing"

	"github.com/sbl8/routegraph/graph"
	"github.com/sbl8/routegraph/nodes"
)

type ctx struct{}

func TestRenderAccumulatesStats(t *testing.T) {
	g := graph.New[float32, ctx]().WithSlotSize(64).Build()
	sink := &nodes.CaptureSink[float32, ctx]{}
	sinkIdx := g.AddNode(1, nil, sink)
	g.AddNode(1, []graph.Connection{{Target: sinkIdx, Gain: 1}}, &nodes.CountingSource[float32, ctx]{})

	e := New(g)
	if err := e.Render(64, ctx{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if err := e.Render(64, ctx{}); err != nil {
		t.Fatalf("Render: %v", err)
	}

	stats := e.Stats()
	if stats.TotalInvocations != 2 {
		t.Fatalf("TotalInvocations = %d, want 2", stats.TotalInvocations)
	}
	if stats.TotalFrames != 128 {
		t.Fatalf("TotalFrames = %d, want 128", stats.TotalFrames)
	}
}
