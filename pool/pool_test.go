package pool

import (
	"testing"
	"unsafe"

	"github.com/sbl8/routegraph/core"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	t.Parallel()
	p := New[float32](16)
	p.Reserve(2)

	a := p.Acquire()
	b := p.Acquire()
	if p.InUse() != 2 {
		t.Fatalf("InUse = %d, want 2", p.InUse())
	}
	a.Release()
	if p.InUse() != 1 {
		t.Fatalf("InUse after release = %d, want 1", p.InUse())
	}
	c := p.Acquire()
	if c.Index() != a.Index() {
		t.Fatalf("expected freed slot %d to be reused, got %d", a.Index(), c.Index())
	}
	b.Release()
	c.Release()
}

func TestAcquireGrows(t *testing.T) {
	t.Parallel()
	p := New[float32](4)
	borrows := make([]*Borrow[float32], 0, 5)
	for i := 0; i < 5; i++ {
		borrows = append(borrows, p.Acquire())
	}
	if p.Capacity() < 5 {
		t.Fatalf("Capacity = %d, want >= 5", p.Capacity())
	}
	for _, b := range borrows {
		b.Release()
	}
}

func TestAcquireNoGrowExhausted(t *testing.T) {
	t.Parallel()
	p := New[float32](4)
	p.Reserve(1)
	b, err := p.AcquireNoGrow()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.AcquireNoGrow(); err == nil {
		t.Fatal("expected ErrExhausted")
	}
	b.Release()
	if _, err := p.AcquireNoGrow(); err != nil {
		t.Fatalf("expected slot to be free after release, got %v", err)
	}
}

func TestDoubleReleaseIsNoop(t *testing.T) {
	t.Parallel()
	p := New[float32](4)
	p.Reserve(1)
	b := p.Acquire()
	b.Release()
	b.Release()
	if p.InUse() != 0 {
		t.Fatalf("InUse = %d, want 0", p.InUse())
	}
}

func TestBackingBufferIsCacheAligned(t *testing.T) {
	t.Parallel()
	p := New[float32](4)
	p.Reserve(3)
	addr := uintptr(unsafe.Pointer(&p.buffer[0]))
	if !core.IsAligned(addr) {
		t.Fatalf("backing buffer address %#x is not cache-line aligned", addr)
	}
}

func TestAcquireClearedNoGrowZeroesStaleContents(t *testing.T) {
	t.Parallel()
	p := New[float32](4)
	p.Reserve(1)
	a, err := p.AcquireClearedNoGrow()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := a.Slice()
	for i := range s {
		s[i] = 7
	}
	a.Release()

	b, err := p.AcquireClearedNoGrow()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, v := range b.Slice() {
		if v != 0 {
			t.Fatalf("s[%d] = %v, want 0 from cleared reacquire", i, v)
		}
	}
	b.Release()
}

func TestSilenceAll(t *testing.T) {
	t.Parallel()
	p := New[float32](4)
	p.Reserve(1)
	b := p.Acquire()
	s := b.Slice()
	for i := range s {
		s[i] = 1
	}
	p.SilenceAll()
	for i, v := range s {
		if v != 0 {
			t.Fatalf("s[%d] = %v, want 0 after SilenceAll", i, v)
		}
	}
}
