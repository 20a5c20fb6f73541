// Package nodes provides a small library of ready-made Processor
// implementations: sources, sinks, and simple single-channel effects.
// Grounded on the original engine's own example and test fixtures
// (counting-node.rs, pass-through.rs, and the embedded TestRoute/
// InputRoute/OutputRoute/CountingNode types in its graph test module).
package nodes

import (
	"github.com/sbl8/routegraph/core"
	"github.com/sbl8/routegraph/pool"
)

// ConstantSource writes the same sample value into every channel on every
// invocation, ignoring input. Useful for DC test signals and silence
// generators (Value left at the zero value).
type ConstantSource[S core.Sample, C any] struct {
	Value S
}

func (s ConstantSource[S, C]) Process(_, output []*pool.Borrow[S], frames int, _ C) {
	for _, out := range output {
		buf := out.Slice()
		for i := 0; i < frames; i++ {
			buf[i] = s.Value
		}
	}
}

// CountingSource writes an incrementing counter across the invocation
// history of the node (0, 1, 2, ... regardless of frames-per-call),
// mirroring the original engine's CountingNode test fixture exactly.
type CountingSource[S core.Sample, C any] struct {
	next S
}

func (s *CountingSource[S, C]) Process(_, output []*pool.Borrow[S], frames int, _ C) {
	for _, out := range output {
		buf := out.Slice()
		for i := 0; i < frames; i++ {
			buf[i] = s.next
			s.next++
		}
	}
}

// CaptureSink records every sample it receives, in call order, for
// inspection by tests or an offline render pipeline. It writes nothing to
// output (a sink has no outgoing connections to push to).
type CaptureSink[S core.Sample, C any] struct {
	Captured [][]S // Captured[channel] accumulates across invocations
}

func (s *CaptureSink[S, C]) Process(input, _ []*pool.Borrow[S], frames int, _ C) {
	if s.Captured == nil {
		s.Captured = make([][]S, len(input))
	}
	for ch, in := range input {
		s.Captured[ch] = append(s.Captured[ch], in.Slice()[:frames]...)
	}
}

// Passthrough copies its input straight to its output, channel for
// channel. Channels beyond the shorter of input/output are left untouched.
type Passthrough[S core.Sample, C any] struct{}

func (Passthrough[S, C]) Process(input, output []*pool.Borrow[S], frames int, _ C) {
	n := len(input)
	if len(output) < n {
		n = len(output)
	}
	for ch := 0; ch < n; ch++ {
		copy(output[ch].Slice()[:frames], input[ch].Slice()[:frames])
	}
}

// Gain scales every input sample by a fixed factor on its way to output.
// Unlike a Connection's per-edge gain, this applies uniformly to a node's
// own processing regardless of how many inbound edges feed it.
type Gain[S core.Sample, C any] struct {
	Factor float64
}

func (g Gain[S, C]) Process(input, output []*pool.Borrow[S], frames int, _ C) {
	n := len(input)
	if len(output) < n {
		n = len(output)
	}
	for ch := 0; ch < n; ch++ {
		in := input[ch].Slice()
		out := output[ch].Slice()
		for i := 0; i < frames; i++ {
			out[i] = core.MulAmp(in[i], g.Factor)
		}
	}
}

// Mixer sums every input channel into output channel 0, the simplest
// possible many-to-one downmix.
type Mixer[S core.Sample, C any] struct{}

func (Mixer[S, C]) Process(input, output []*pool.Borrow[S], frames int, _ C) {
	if len(output) == 0 {
		return
	}
	out := output[0].Slice()
	core.Silence(out[:frames])
	for _, in := range input {
		core.MixInto(out, in.Slice(), 1.0, frames)
	}
}
