//go:build linux

package mmap

import (
	"bytes"
	"fmt"
	"unicode/utf16"
)

// Encoding identifies the byte-order-mark form detected at the front of
// a mapped text file.
type Encoding int

const (
	EncodingUnknown Encoding = iota
	EncodingUTF8
	EncodingUTF16LE
	EncodingUTF16BE
	EncodingUTF32LE
	EncodingUTF32BE
)

func (e Encoding) String() string {
	switch e {
	case EncodingUTF8:
		return "UTF-8"
	case EncodingUTF16LE:
		return "UTF-16LE"
	case EncodingUTF16BE:
		return "UTF-16BE"
	case EncodingUTF32LE:
		return "UTF-32LE"
	case EncodingUTF32BE:
		return "UTF-32BE"
	default:
		return "unknown"
	}
}

// bomTable lists every recognized mark, longest first so UTF-32's 4-byte
// marks are checked before UTF-16's 2-byte prefixes of the same bytes.
var bomTable = []struct {
	mark []byte
	enc  Encoding
}{
	{[]byte{0x00, 0x00, 0xfe, 0xff}, EncodingUTF32BE},
	{[]byte{0xff, 0xfe, 0x00, 0x00}, EncodingUTF32LE},
	{[]byte{0xef, 0xbb, 0xbf}, EncodingUTF8},
	{[]byte{0xfe, 0xff}, EncodingUTF16BE},
	{[]byte{0xff, 0xfe}, EncodingUTF16LE},
}

// MappedTxtFile wraps a single-view MappedFile (read-only when opened
// with OpenText, read-write when made with CreateText), tracks its
// byte-order mark (if any), and decodes its contents to a Go string.
type MappedTxtFile struct {
	mf       *MappedFile
	enc      Encoding
	bomLen   int
	decoded  string
	hasValue bool
}

// OpenText memory-maps path read-only as a single view and detects its
// encoding.
func OpenText(path string) (*MappedTxtFile, error) {
	mf, err := Open(path, ReadOnly, 0)
	if err != nil {
		return nil, err
	}
	t := &MappedTxtFile{mf: mf}
	t.detectBom()
	return t, nil
}

// bomBytes returns the on-disk byte-order mark for enc, or nil for
// EncodingUnknown (no mark is written for a file of unknown encoding).
func bomBytes(enc Encoding) []byte {
	for _, b := range bomTable {
		if b.enc == enc {
			return b.mark
		}
	}
	return nil
}

// CreateText creates (or truncates) the file at path, sized for
// logicalSize bytes of encoded text plus enc's byte-order mark, writes
// the mark at offset 0, and maps the result ReadWrite as a single view.
func CreateText(path string, logicalSize int64, enc Encoding) (*MappedTxtFile, error) {
	mark := bomBytes(enc)
	mf, err := Create(path, logicalSize+int64(len(mark)), 0)
	if err != nil {
		return nil, err
	}
	if len(mark) > 0 {
		if err := mf.SetBytes(0, mark); err != nil {
			mf.Close()
			return nil, err
		}
	}
	return &MappedTxtFile{mf: mf, enc: enc, bomLen: len(mark)}, nil
}

func (t *MappedTxtFile) detectBom() {
	head, _ := t.mf.GetBytes(0, minInt64(8, t.mf.Size()))
	for _, b := range bomTable {
		if len(head) >= len(b.mark) && bytes.Equal(head[:len(b.mark)], b.mark) {
			t.enc = b.enc
			t.bomLen = len(b.mark)
			return
		}
	}
	t.enc = EncodingUTF8
	t.bomLen = 0
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// Encoding returns the detected byte-order mark, or EncodingUTF8 when
// none is present (files with no BOM are assumed plain UTF-8/ASCII).
func (t *MappedTxtFile) Encoding() Encoding { return t.enc }

// HasBom reports whether a recognized byte-order mark was found.
func (t *MappedTxtFile) HasBom() bool { return t.bomLen > 0 }

// Close releases the underlying mapping.
func (t *MappedTxtFile) Close() error { return t.mf.Close() }

// Text decodes the file body (BOM excluded) to a Go string, converting
// UTF-16/UTF-32 forms via the standard library.
func (t *MappedTxtFile) Text() (string, error) {
	if t.hasValue {
		return t.decoded, nil
	}
	body, err := t.mf.GetBytes(int64(t.bomLen), int(t.mf.Size()-int64(t.bomLen)))
	if err != nil {
		return "", err
	}
	switch t.enc {
	case EncodingUTF8, EncodingUnknown:
		t.decoded = string(body)
	case EncodingUTF16LE, EncodingUTF16BE:
		t.decoded = decodeUTF16(body, t.enc == EncodingUTF16BE)
	case EncodingUTF32LE, EncodingUTF32BE:
		t.decoded = decodeUTF32(body, t.enc == EncodingUTF32BE)
	default:
		return "", fmt.Errorf("mmap: unsupported encoding %v", t.enc)
	}
	t.hasValue = true
	return t.decoded, nil
}

func decodeUTF16(body []byte, bigEndian bool) string {
	n := len(body) / 2
	units := make([]uint16, n)
	for i := 0; i < n; i++ {
		if bigEndian {
			units[i] = uint16(body[2*i])<<8 | uint16(body[2*i+1])
		} else {
			units[i] = uint16(body[2*i+1])<<8 | uint16(body[2*i])
		}
	}
	return string(utf16.Decode(units))
}

func decodeUTF32(body []byte, bigEndian bool) string {
	n := len(body) / 4
	runes := make([]rune, 0, n)
	for i := 0; i < n; i++ {
		var r rune
		if bigEndian {
			r = rune(body[4*i])<<24 | rune(body[4*i+1])<<16 | rune(body[4*i+2])<<8 | rune(body[4*i+3])
		} else {
			r = rune(body[4*i+3])<<24 | rune(body[4*i+2])<<16 | rune(body[4*i+1])<<8 | rune(body[4*i])
		}
		runes = append(runes, r)
	}
	return string(runes)
}
