package bitvec

import "testing"

func TestItorForward(t *testing.T) {
	v := New(32, false)
	for _, b := range []uint32{1, 4, 9, 16, 25} {
		v.Set(b)
	}
	it := NewIterator(v, false)
	var got []uint32
	for {
		b, ok := it.NextSetBit()
		if !ok {
			break
		}
		got = append(got, b)
	}
	want := []uint32{1, 4, 9, 16, 25}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestItorBackward(t *testing.T) {
	v := New(32, false)
	for _, b := range []uint32{1, 4, 9} {
		v.Set(b)
	}
	it := NewIterator(v, false)
	var got []uint32
	for {
		b, ok := it.PrevSetBit()
		if !ok {
			break
		}
		got = append(got, b)
	}
	want := []uint32{9, 4, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestItorApplyAbort(t *testing.T) {
	v := New(32, false)
	v.Set(1)
	v.Set(2)
	v.Set(3)
	var visited []uint32
	ok := v2itorApply(v, &visited)
	if ok {
		t.Fatal("expected Apply to report abort (false)")
	}
	if len(visited) != 2 {
		t.Fatalf("got %v, expected abort after 2 visits", visited)
	}
}

func v2itorApply(v *BitVec, visited *[]uint32) bool {
	it := NewIterator(v, false)
	return it.Apply(func(bit uint32) bool {
		*visited = append(*visited, bit)
		return len(*visited) < 2
	}, true)
}

func TestItorMakeCopyIsolatesMutation(t *testing.T) {
	v := New(16, false)
	v.Set(3)
	it := NewIterator(v, true)
	v.Set(10)
	b, ok := it.NextSetBit()
	if !ok || b != 3 {
		t.Fatalf("got (%d,%v) want (3,true)", b, ok)
	}
	b, ok = it.NextSetBit()
	if ok {
		t.Fatalf("iterator over a deep copy should not see bit 10, got %d", b)
	}
}

func TestItorDetachReset(t *testing.T) {
	v := New(8, true)
	it := NewIterator(v, false)
	it.NextSetBit()
	it.Detach()
	if it.Vec() != nil {
		t.Fatal("expected detached iterator to have nil vec")
	}
}
