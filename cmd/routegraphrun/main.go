// Command routegraphrun loads a compiled patch file, builds a live
// routing graph, renders it for a configurable number of frames, and
// prints the resulting invocation statistics. Mirrors
// sublrun's flag set and load/configure/run shape.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/sbl8/routegraph/engine"
	"github.com/sbl8/routegraph/graph"
	"github.com/sbl8/routegraph/nodes"
	"github.com/sbl8/routegraph/patch"
)

type renderContext struct{}

func defaultRegistry() patch.Registry[float32, renderContext] {
	return patch.Registry[float32, renderContext]{
		"constant_source": func(p map[string]float64) graph.Processor[float32, renderContext] {
			return nodes.ConstantSource[float32, renderContext]{Value: float32(p["value"])}
		},
		"counting_source": func(map[string]float64) graph.Processor[float32, renderContext] {
			return &nodes.CountingSource[float32, renderContext]{}
		},
		"capture_sink": func(map[string]float64) graph.Processor[float32, renderContext] {
			return &nodes.CaptureSink[float32, renderContext]{}
		},
		"passthrough": func(map[string]float64) graph.Processor[float32, renderContext] {
			return nodes.Passthrough[float32, renderContext]{}
		},
		"gain": func(p map[string]float64) graph.Processor[float32, renderContext] {
			factor := p["factor"]
			if factor == 0 {
				factor = 1
			}
			return nodes.Gain[float32, renderContext]{Factor: factor}
		},
		"mixer": func(map[string]float64) graph.Processor[float32, renderContext] {
			return nodes.Mixer[float32, renderContext]{}
		},
	}
}

func main() {
	var (
		frames   = flag.Int("frames", 4096, "number of sample frames to render")
		slotSize = flag.Int("slot-size", 0, "override the patch's slot size (0 keeps the patch value)")
		verbose  = flag.Bool("verbose", false, "print per-node information before running")
		version  = flag.Bool("version", false, "show version information")
	)
	flag.Parse()

	if *version {
		fmt.Printf("routegraphrun - routegraph runtime v1.0.0 (%s)\n", runtime.Version())
		return
	}

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <patch.rgpatch>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		log.Fatalf("reading %s: %v", args[0], err)
	}
	g, err := patch.Decode(data)
	if err != nil {
		log.Fatalf("decoding patch: %v", err)
	}
	if *slotSize > 0 {
		g.SlotSize = *slotSize
	}

	rg, indices, err := patch.Build(g, defaultRegistry())
	if err != nil {
		log.Fatalf("building graph: %v", err)
	}

	if *verbose {
		fmt.Printf("loaded %d nodes, slot size %d\n", len(indices), rg.SlotSize())
	}

	e := engine.New(rg)
	if err := e.Render(*frames, renderContext{}); err != nil {
		log.Fatalf("render failed: %v", err)
	}

	stats := e.Stats()
	fmt.Printf("invocations=%d frames=%d total_latency=%s avg_latency=%s\n",
		stats.TotalInvocations, stats.TotalFrames, stats.TotalLatency, stats.AverageLatency())
}
