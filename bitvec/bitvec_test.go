package bitvec

import "testing"

func TestSetClearRoundtrip(t *testing.T) {
	v := New(64, false)
	if v.CountSetBits() != 0 {
		t.Fatalf("got %d want 0", v.CountSetBits())
	}
	for i := uint32(0); i < v.MaxBits(); i++ {
		v.Clear(i)
		v.Set(i)
		if !v.Test(i) {
			t.Fatalf("bit %d: want set", i)
		}
	}
}

func TestCountSetPlusClearEqualsMaxBits(t *testing.T) {
	v := New(130, true)
	v.Clear(5)
	v.Clear(70)
	if got, want := v.CountSetBits()+v.CountClearBits(), v.MaxBits(); got != want {
		t.Fatalf("got %d want %d", got, want)
	}
}

func TestSetAllThenClearAll(t *testing.T) {
	v := New(100, false)
	v.SetAll()
	v.ClearAll()
	if !v.IsClearAll() {
		t.Fatal("want all clear")
	}
	if v.CountSetBits() != 0 {
		t.Fatalf("got %d want 0", v.CountSetBits())
	}
}

func TestInvertTwiceIsIdentity(t *testing.T) {
	v := New(77, false)
	v.Set(3)
	v.Set(76)
	before := v.Copy()
	v.Invert()
	v.Invert()
	if !v.Equal(before) {
		t.Fatal("double invert changed vector")
	}
}

func TestCopyEqualsSource(t *testing.T) {
	v := New(40, false)
	v.Set(1)
	v.Set(39)
	cp := v.Copy()
	if !v.Equal(cp) {
		t.Fatal("copy not equal to source")
	}
	if v.ByteSize() != cp.ByteSize() {
		t.Fatalf("byte size mismatch: %d vs %d", v.ByteSize(), cp.ByteSize())
	}
}

func TestResizeRefusesShrink(t *testing.T) {
	v := New(64, true)
	before := v.Copy()
	if v.Resize(32, false) {
		t.Fatal("resize should refuse to shrink")
	}
	if !v.Equal(before) {
		t.Fatal("vector mutated despite refused shrink")
	}
}

func TestResizePreservesBits(t *testing.T) {
	v := New(10, false)
	v.Set(3)
	v.Set(9)
	if !v.Resize(100, true) {
		t.Fatal("resize should succeed")
	}
	for _, b := range []uint32{3, 9} {
		if !v.Test(b) {
			t.Fatalf("bit %d lost across resize", b)
		}
	}
	for b := uint32(10); b < 100; b++ {
		if !v.Test(b) {
			t.Fatalf("appended bit %d should be set (initial=true)", b)
		}
	}
}

func TestClearBitsRange(t *testing.T) {
	v := New(1024, true)
	changed := v.ClearBits(100, 200)
	if !changed {
		t.Fatal("expected a change")
	}
	if got, want := v.CountClearBits(), uint32(101); got != want {
		t.Fatalf("got %d want %d", got, want)
	}
	for b := uint32(0); b <= 99; b++ {
		if !v.Test(b) {
			t.Fatalf("bit %d should remain set", b)
		}
	}
	for b := uint32(201); b < 1024; b++ {
		if !v.Test(b) {
			t.Fatalf("bit %d should remain set", b)
		}
	}
}

func TestSetBitsClampsHi(t *testing.T) {
	v := New(16, false)
	if !v.SetBits(10, 1000) {
		t.Fatal("expected a change")
	}
	if v.CountSetBits() != 6 {
		t.Fatalf("got %d want 6", v.CountSetBits())
	}
}

func TestSetBitsLoGreaterThanHiIsNoOp(t *testing.T) {
	v := New(16, false)
	if v.SetBits(5, 2) {
		t.Fatal("expected no-op")
	}
	if v.CountSetBits() != 0 {
		t.Fatal("vector should be untouched")
	}
}

func TestAndMaskedPrefix(t *testing.T) {
	a := New(16, true)
	b := New(8, false)
	a.And(b)
	for i := uint32(0); i < 8; i++ {
		if a.Test(i) {
			t.Fatalf("bit %d should be cleared by mask", i)
		}
	}
	for i := uint32(8); i < 16; i++ {
		if !a.Test(i) {
			t.Fatalf("bit %d beyond rhs capacity should be untouched", i)
		}
	}
}

func TestNextPrevSetBit(t *testing.T) {
	v := New(32, false)
	v.Set(5)
	v.Set(20)
	if got := v.NextSetBit(InvalidBit); got != 5 {
		t.Fatalf("got %d want 5", got)
	}
	if got := v.NextSetBit(5); got != 20 {
		t.Fatalf("got %d want 20", got)
	}
	if got := v.NextSetBit(20); got != InvalidBit {
		t.Fatalf("got %d want InvalidBit", got)
	}
	if got := v.PrevSetBit(InvalidBit); got != 20 {
		t.Fatalf("got %d want 20", got)
	}
	if got := v.PrevSetBit(20); got != 5 {
		t.Fatalf("got %d want 5", got)
	}
}

func TestFromRawEqualsRaw(t *testing.T) {
	v := New(32, false)
	v.Set(0)
	v.Set(31)
	raw := make([]byte, 4)
	w := v.Raw()[0]
	raw[0] = byte(w)
	raw[1] = byte(w >> 8)
	raw[2] = byte(w >> 16)
	raw[3] = byte(w >> 24)
	clone := FromRaw(32, raw)
	if !v.Equal(clone) {
		t.Fatal("FromRaw did not reproduce the source vector")
	}
}
