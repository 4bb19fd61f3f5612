package zipfile

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempForZip(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func buildTestArchive(t *testing.T) string {
	t.Helper()
	z := NewZipped()
	z.AddDirectory("docs")
	z.AddFile("docs/readme.txt", []byte("hello from the archive, repeated repeated repeated repeated"))
	z.AddFile("empty.txt", nil)
	path := filepath.Join(t.TempDir(), "test.zip")
	if err := z.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	return path
}

func TestWriteThenReadRoundtrip(t *testing.T) {
	path := buildTestArchive(t)
	z, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer z.Close()
	if len(z.Items()) != 3 {
		t.Fatalf("got %d items, want 3", len(z.Items()))
	}
	if _, ok := z.ItemByName("docs/readme.txt"); !ok {
		t.Fatal("expected docs/readme.txt in archive")
	}
	outDir := t.TempDir()
	if err := z.Extract(outDir, "docs/readme.txt", false); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(outDir, "docs", "readme.txt"))
	if err != nil {
		t.Fatal(err)
	}
	want := "hello from the archive, repeated repeated repeated repeated"
	if string(got) != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestExtractFlattenMatchesByBasename(t *testing.T) {
	path := buildTestArchive(t)
	z, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer z.Close()
	outDir := t.TempDir()
	if err := z.Extract(outDir, "readme.txt", true); err != nil {
		t.Fatalf("Extract with flatten failed: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(outDir, "readme.txt"))
	if err != nil {
		t.Fatal(err)
	}
	want := "hello from the archive, repeated repeated repeated repeated"
	if string(got) != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestExtractEmptyFile(t *testing.T) {
	path := buildTestArchive(t)
	z, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer z.Close()
	if _, ok := z.ItemByName("empty.txt"); !ok {
		t.Fatal("expected empty.txt in archive")
	}
	outDir := t.TempDir()
	if err := z.Extract(outDir, "empty.txt", false); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(filepath.Join(outDir, "empty.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() != 0 {
		t.Fatalf("got %d bytes, want 0", fi.Size())
	}
}

func TestItemNotFound(t *testing.T) {
	path := buildTestArchive(t)
	z, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer z.Close()
	if _, ok := z.ItemByName("nope"); ok {
		t.Fatal("expected item not found")
	}
}

func TestExtractAllProgressAndCancel(t *testing.T) {
	path := buildTestArchive(t)
	z, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer z.Close()

	var calls int
	err = z.ExtractAll(t.TempDir(), false, func(done, total int, bytesDone, bytesTotal uint32) bool {
		calls++
		return calls < 1
	})
	if err != ErrExtractionCanceled {
		t.Fatalf("got %v, want ErrExtractionCanceled", err)
	}
	if calls != 1 {
		t.Fatalf("got %d progress calls before cancel, want 1", calls)
	}
}

func TestExtractAllCompletesWithoutCancel(t *testing.T) {
	path := buildTestArchive(t)
	z, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer z.Close()
	outDir := t.TempDir()
	err = z.ExtractAll(outDir, false, func(done, total int, bytesDone, bytesTotal uint32) bool { return true })
	if err != nil {
		t.Fatalf("ExtractAll failed: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(outDir, "docs", "readme.txt"))
	if err != nil {
		t.Fatal(err)
	}
	want := "hello from the archive, repeated repeated repeated repeated"
	if string(got) != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestOpenRejectsNonZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notzip.bin")
	writeTempForZip(t, path, []byte("this is not a zip file at all"))
	if _, err := Open(path); err != ErrNotAZip {
		t.Fatalf("got %v, want ErrNotAZip", err)
	}
}
