// Package session runs several independent routing graphs concurrently,
// one goroutine per graph. This is inter-graph parallelism only: each
// graph.RouteGraph remains single-threaded internally. Grounded on the
// original engine's own benches exercising several independent chains side
// by side, and its design note that an engine is safe to move between
// threads; built with golang.org/x/sync/errgroup.
package session

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/sbl8/routegraph/core"
	"github.com/sbl8/routegraph/engine"
)

// Renderer is the subset of engine.Engine a Farm needs: something that can
// render frames and report an error. Declared as an interface so a Farm
// can hold engines over different Sample/context type instantiations as
// long as each is wrapped to this common shape.
type Renderer interface {
	Render(frames int) error
}

// Farm owns a fixed set of Renderers and drives all of them for the same
// frame count every tick, one goroutine each.
type Farm struct {
	renderers []Renderer
}

// NewFarm returns a Farm driving the given renderers.
func NewFarm(renderers ...Renderer) *Farm {
	return &Farm{renderers: append([]Renderer(nil), renderers...)}
}

// Add appends another renderer to the farm.
func (f *Farm) Add(r Renderer) {
	f.renderers = append(f.renderers, r)
}

// Len returns the number of renderers the farm currently owns.
func (f *Farm) Len() int { return len(f.renderers) }

// Tick renders frames sample frames on every owned renderer concurrently,
// returning the first error encountered (if any), after every renderer has
// finished.
func (f *Farm) Tick(ctx context.Context, frames int) error {
	g, _ := errgroup.WithContext(ctx)
	for _, r := range f.renderers {
		r := r
		g.Go(func() error {
			return r.Render(frames)
		})
	}
	return g.Wait()
}

// boundEngine adapts an *engine.Engine[S, C] with a fixed context value to
// the Renderer interface, since Farm's renderers don't know each graph's
// context type.
type boundEngine[S core.Sample, C any] struct {
	e   *engine.Engine[S, C]
	ctx C
}

// Bind fixes ctx for every future Render call, letting e be added to a Farm.
func Bind[S core.Sample, C any](e *engine.Engine[S, C], ctx C) Renderer {
	return boundEngine[S, C]{e: e, ctx: ctx}
}

func (b boundEngine[S, C]) Render(frames int) error {
	return b.e.Render(frames, b.ctx)
}
