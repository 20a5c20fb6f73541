// Package patch reads and writes routing topologies from outside the
// realtime engine: a human-authored YAML description compiles into a
// Graph, which a registry of named Processor constructors can then build
// into a live graph.RouteGraph. Grounded on compiler/compiler.go's
// parse-validate-emit pipeline, retargeted from a hand-rolled DSL onto
// goccy/go-yaml.
package patch

import (
	"fmt"
	"io"

	"github.com/goccy/go-yaml"
	"github.com/google/uuid"

	"github.com/sbl8/routegraph/core"
	"github.com/sbl8/routegraph/graph"
)

// Node describes one vertex of a patch file. Type names a constructor
// registered with a Registry; Params carries constructor-specific tuning
// values (e.g. a Gain node's "factor").
type Node struct {
	Label    string             `yaml:"label,omitempty"`
	Type     string             `yaml:"type"`
	Channels int                `yaml:"channels"`
	Params   map[string]float64 `yaml:"params,omitempty"`
}

// Connection describes one edge of a patch file, referencing nodes by
// their Label.
type Connection struct {
	From string  `yaml:"from"`
	To   string  `yaml:"to"`
	Gain float64 `yaml:"gain"`
}

// Graph is the parsed, not-yet-built form of a patch file.
type Graph struct {
	SlotSize    int          `yaml:"slot_size"`
	Nodes       []Node       `yaml:"nodes"`
	Connections []Connection `yaml:"connections"`
}

// LoadYAML parses a patch description. Any Node left with an empty Label
// is assigned a random UUID, so patch authors only need to name the nodes
// their connections reference.
func LoadYAML(r io.Reader) (*Graph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("patch: reading yaml: %w", err)
	}
	var g Graph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("patch: parsing yaml: %w", err)
	}
	if g.SlotSize <= 0 {
		g.SlotSize = 1024
	}
	for i := range g.Nodes {
		if g.Nodes[i].Label == "" {
			g.Nodes[i].Label = uuid.NewString()
		}
	}
	return &g, nil
}

// Validate checks that every connection references a declared node and
// that labels are unique, mirroring compiler.Compile's validation pass.
func (g *Graph) Validate() error {
	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if seen[n.Label] {
			return fmt.Errorf("patch: duplicate node label %q", n.Label)
		}
		seen[n.Label] = true
		if n.Channels <= 0 {
			return fmt.Errorf("patch: node %q has non-positive channel count %d", n.Label, n.Channels)
		}
	}
	for _, c := range g.Connections {
		if !seen[c.From] {
			return fmt.Errorf("patch: connection references unknown node %q", c.From)
		}
		if !seen[c.To] {
			return fmt.Errorf("patch: connection references unknown node %q", c.To)
		}
	}
	return nil
}

// Constructor builds a Processor for a node of a given type, given the
// node's declared params.
type Constructor[S core.Sample, C any] func(params map[string]float64) graph.Processor[S, C]

// Registry maps patch node type names to constructors.
type Registry[S core.Sample, C any] map[string]Constructor[S, C]

// Build compiles a parsed Graph into a live graph.RouteGraph using r to
// construct each node's Processor, returning the index each node's Label
// was assigned to.
func Build[S core.Sample, C any](g *Graph, r Registry[S, C]) (*graph.RouteGraph[S, C], map[string]graph.NodeIndex, error) {
	if err := g.Validate(); err != nil {
		return nil, nil, err
	}

	rg := graph.New[S, C]().WithSlotSize(g.SlotSize).WithCapacityHint(len(g.Nodes)).Build()
	indices := make(map[string]graph.NodeIndex, len(g.Nodes))

	for _, n := range g.Nodes {
		ctor, ok := r[n.Type]
		if !ok {
			return nil, nil, fmt.Errorf("patch: unknown node type %q for node %q", n.Type, n.Label)
		}
		idx := rg.AddNode(n.Channels, nil, ctor(n.Params))
		indices[n.Label] = idx
	}

	for _, c := range g.Connections {
		from, to := indices[c.From], indices[c.To]
		if err := rg.AddConnection(from, to, c.Gain); err != nil {
			return nil, nil, err
		}
	}

	return rg, indices, nil
}
