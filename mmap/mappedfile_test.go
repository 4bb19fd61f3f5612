//go:build linux

package mmap

import (
	"os"
	"path/filepath"
	"testing"
)

func tempFile(t *testing.T, data []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenAndReadBack(t *testing.T) {
	want := []byte("hello, mapped world")
	path := tempFile(t, want)
	mf, err := Open(path, ReadOnly, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer mf.Close()
	got, err := mf.GetBytes(0, len(want))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestSetBytesRoundtrip(t *testing.T) {
	path := tempFile(t, make([]byte, 64))
	mf, err := Open(path, ReadWrite, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer mf.Close()
	payload := []byte("payload-data")
	if err := mf.SetBytes(10, payload); err != nil {
		t.Fatal(err)
	}
	got, err := mf.GetBytes(10, len(payload))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Fatalf("got %q want %q", got, payload)
	}
}

func TestSetBytesOnReadOnlyFails(t *testing.T) {
	path := tempFile(t, make([]byte, 16))
	mf, err := Open(path, ReadOnly, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer mf.Close()
	if err := mf.SetBytes(0, []byte("x")); err != ErrReadOnly {
		t.Fatalf("got %v want ErrReadOnly", err)
	}
}

func TestGetBytesOutOfRange(t *testing.T) {
	path := tempFile(t, make([]byte, 16))
	mf, err := Open(path, ReadOnly, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer mf.Close()
	if _, err := mf.GetBytes(10, 100); err != ErrOutOfRange {
		t.Fatalf("got %v want ErrOutOfRange", err)
	}
}

func TestGrowPreservesPrefixAndExtends(t *testing.T) {
	path := tempFile(t, []byte("abcd"))
	mf, err := Open(path, ReadWrite, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer mf.Close()
	if err := mf.Grow(20); err != nil {
		t.Fatal(err)
	}
	if mf.Size() != 20 {
		t.Fatalf("got size %d want 20", mf.Size())
	}
	got, err := mf.GetBytes(0, 4)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "abcd" {
		t.Fatalf("prefix lost across grow: %q", got)
	}
}

func TestTruncateRejectsGrowDirection(t *testing.T) {
	path := tempFile(t, make([]byte, 16))
	mf, err := Open(path, ReadWrite, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer mf.Close()
	if err := mf.Truncate(32); err == nil {
		t.Fatal("expected Truncate to reject growing")
	}
}

func TestCloseIsIdempotentAndBlocksFurtherAccess(t *testing.T) {
	path := tempFile(t, make([]byte, 16))
	mf, err := Open(path, ReadOnly, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := mf.Close(); err != nil {
		t.Fatal(err)
	}
	if err := mf.Close(); err != nil {
		t.Fatalf("second close should be a no-op, got %v", err)
	}
	if _, err := mf.GetBytes(0, 1); err != ErrClosed {
		t.Fatalf("got %v want ErrClosed", err)
	}
}

func TestMultiViewSpanningCopy(t *testing.T) {
	page := os.Getpagesize()
	path := tempFile(t, make([]byte, 2*page))
	mf, err := Open(path, ReadWrite, int64(page))
	if err != nil {
		t.Fatal(err)
	}
	defer mf.Close()
	if mf.NumViews() != 2 {
		t.Fatalf("got %d views, want 2", mf.NumViews())
	}
	payload := []byte{1, 2, 3, 4, 5, 6}
	if err := mf.SetBytes(int64(page-2), payload); err != nil {
		t.Fatal(err)
	}
	got, err := mf.GetBytes(int64(page-2), len(payload))
	if err != nil {
		t.Fatal(err)
	}
	for i := range payload {
		if got[i] != payload[i] {
			t.Fatalf("byte %d: got %d want %d", i, got[i], payload[i])
		}
	}
}

func TestOpenWithNonPowerOfTwoViewSize(t *testing.T) {
	page := os.Getpagesize()
	path := tempFile(t, make([]byte, 7*page))
	mf, err := Open(path, ReadOnly, int64(3*page))
	if err != nil {
		t.Fatal(err)
	}
	defer mf.Close()
	if mf.NumViews() != 3 {
		t.Fatalf("got %d views, want 3 (ceil(7/3))", mf.NumViews())
	}
	if mf.ViewSize() != int64(3*page) {
		t.Fatalf("got view size %d, want %d", mf.ViewSize(), 3*page)
	}
}

func TestCopyBytesWithinFileHandlesOverlap(t *testing.T) {
	page := os.Getpagesize()
	data := make([]byte, 2*page)
	for i := range data {
		data[i] = byte(i)
	}
	path := tempFile(t, data)
	mf, err := Open(path, ReadWrite, int64(page))
	if err != nil {
		t.Fatal(err)
	}
	defer mf.Close()
	if mf.NumViews() != 2 {
		t.Fatalf("got %d views, want 2", mf.NumViews())
	}
	// Overlapping forward copy spanning the view boundary:
	// [page-6,page+2) -> [page-4,page+4).
	if err := mf.CopyBytes(int64(page-4), int64(page-6), 8); err != nil {
		t.Fatal(err)
	}
	got, err := mf.GetBytes(int64(page-4), 8)
	if err != nil {
		t.Fatal(err)
	}
	want := data[page-6 : page+2]
	if string(got) != string(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}
