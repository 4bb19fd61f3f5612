package netkit

import "testing"

func TestHandleAllocateReleaseRoundtrip(t *testing.T) {
	a := NewHandleAllocator(4)
	h1 := a.Allocate()
	if h1 == InvalidHandle {
		t.Fatal("expected a valid handle")
	}
	if !a.IsAllocated(h1) {
		t.Fatal("handle should be marked allocated")
	}
	a.Release(h1)
	if a.IsAllocated(h1) {
		t.Fatal("handle should be free after release")
	}
}

func TestHandleAllocatorExhaustion(t *testing.T) {
	a := NewHandleAllocator(2)
	h1 := a.Allocate()
	h2 := a.Allocate()
	if h1 == InvalidHandle || h2 == InvalidHandle || h1 == h2 {
		t.Fatalf("got h1=%d h2=%d, want two distinct valid handles", h1, h2)
	}
	if a.Allocate() != InvalidHandle {
		t.Fatal("expected exhaustion once capacity is used up")
	}
}

func TestHandleAllocatorRoundRobinSpread(t *testing.T) {
	a := NewHandleAllocator(4)
	h1 := a.Allocate()
	a.Release(h1)
	h2 := a.Allocate()
	if h2 == h1 {
		t.Fatalf("expected round-robin seed to avoid reissuing %d immediately, got %d again", h1, h2)
	}
}

func TestHandleAllocatorNumAllocated(t *testing.T) {
	a := NewHandleAllocator(8)
	a.Allocate()
	a.Allocate()
	if a.NumAllocated() != 2 {
		t.Fatalf("got %d want 2", a.NumAllocated())
	}
	if a.Capacity() != 8 {
		t.Fatalf("got capacity %d want 8", a.Capacity())
	}
}
