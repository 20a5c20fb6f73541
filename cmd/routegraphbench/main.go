// Command routegraphbench benchmarks pool.BufferPool acquire/release
// throughput and graph.RouteGraph.Process throughput, mirroring sublperf's
// flag set and table-printing style.
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/sbl8/routegraph/graph"
	"github.com/sbl8/routegraph/nodes"
	"github.com/sbl8/routegraph/pool"
)

type benchContext struct{}

func main() {
	var (
		test    = flag.String("test", "all", "which benchmark to run: pool, graph, or all")
		size    = flag.Int("size", 1024, "slot size in samples")
		iter    = flag.Int("iter", 1000, "iterations per benchmark")
		verbose = flag.Bool("verbose", false, "print per-iteration detail")
	)
	flag.Parse()

	if *test == "pool" || *test == "all" {
		benchPool(*size, *iter, *verbose)
	}
	if *test == "graph" || *test == "all" {
		benchGraph(*size, *iter, *verbose)
	}
}

func benchPool(slotSize, iterations int, verbose bool) {
	p := pool.New[float32](slotSize)
	p.Reserve(8)

	start := time.Now()
	for i := 0; i < iterations; i++ {
		b := p.Acquire()
		b.Release()
	}
	elapsed := time.Since(start)

	fmt.Printf("pool  slot_size=%-6d iterations=%-8d total=%-12s per_op=%s\n",
		slotSize, iterations, elapsed, elapsed/time.Duration(iterations))
	if verbose {
		fmt.Printf("  capacity after run: %d slots\n", p.Capacity())
	}
}

func benchGraph(slotSize, iterations int, verbose bool) {
	g := graph.New[float32, benchContext]().WithSlotSize(slotSize).Build()

	sinkIdx := g.AddNode(1, nil, &nodes.CaptureSink[float32, benchContext]{})
	mixIdx := g.AddNode(1, []graph.Connection{{Target: sinkIdx, Gain: 1}}, nodes.Mixer[float32, benchContext]{})
	for i := 0; i < 8; i++ {
		g.AddNode(1, []graph.Connection{{Target: mixIdx, Gain: 1.0 / 8}},
			nodes.ConstantSource[float32, benchContext]{Value: float32(i)})
	}

	start := time.Now()
	for i := 0; i < iterations; i++ {
		if err := g.Process(slotSize, benchContext{}); err != nil {
			fmt.Printf("graph process error: %v\n", err)
			return
		}
	}
	elapsed := time.Since(start)

	fmt.Printf("graph slot_size=%-6d iterations=%-8d total=%-12s per_invocation=%s\n",
		slotSize, iterations, elapsed, elapsed/time.Duration(iterations))
	if verbose {
		fmt.Printf("  nodes=%d\n", g.NodeCount())
	}
}
