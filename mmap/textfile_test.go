//go:build linux

package mmap

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "t.txt")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDetectUTF8Bom(t *testing.T) {
	path := writeTemp(t, append([]byte{0xef, 0xbb, 0xbf}, []byte("hi")...))
	tf, err := OpenText(path)
	if err != nil {
		t.Fatal(err)
	}
	defer tf.Close()
	if tf.Encoding() != EncodingUTF8 || !tf.HasBom() {
		t.Fatalf("got enc=%v hasBom=%v", tf.Encoding(), tf.HasBom())
	}
	text, err := tf.Text()
	if err != nil {
		t.Fatal(err)
	}
	if text != "hi" {
		t.Fatalf("got %q want hi", text)
	}
}

func TestDetectNoBomDefaultsUTF8(t *testing.T) {
	path := writeTemp(t, []byte("plain ascii"))
	tf, err := OpenText(path)
	if err != nil {
		t.Fatal(err)
	}
	defer tf.Close()
	if tf.HasBom() {
		t.Fatal("plain ascii should have no BOM")
	}
	text, _ := tf.Text()
	if text != "plain ascii" {
		t.Fatalf("got %q", text)
	}
}

func TestDetectUTF16LE(t *testing.T) {
	data := []byte{0xff, 0xfe, 'h', 0x00, 'i', 0x00}
	path := writeTemp(t, data)
	tf, err := OpenText(path)
	if err != nil {
		t.Fatal(err)
	}
	defer tf.Close()
	if tf.Encoding() != EncodingUTF16LE {
		t.Fatalf("got %v want UTF16LE", tf.Encoding())
	}
	text, err := tf.Text()
	if err != nil {
		t.Fatal(err)
	}
	if text != "hi" {
		t.Fatalf("got %q want hi", text)
	}
}

func TestDetectUTF32BE(t *testing.T) {
	data := []byte{0x00, 0x00, 0xfe, 0xff, 0, 0, 0, 'A'}
	path := writeTemp(t, data)
	tf, err := OpenText(path)
	if err != nil {
		t.Fatal(err)
	}
	defer tf.Close()
	if tf.Encoding() != EncodingUTF32BE {
		t.Fatalf("got %v want UTF32BE", tf.Encoding())
	}
	text, err := tf.Text()
	if err != nil {
		t.Fatal(err)
	}
	if text != "A" {
		t.Fatalf("got %q want A", text)
	}
}
