// Package zipfile reads and writes ZIP archives over a mmap.MappedFile,
// driving decompression through klauspost/compress/flate the way a
// minizip binding would drive zlib: the archive is addressed through a
// small virtual-cursor adapter (open/close/read/write/seek/tell/error)
// so the same code works whether the bytes come from one view or span
// several.
package zipfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/thanhtphung/sysnetkit/mmap"
)

const (
	localFileHeaderSig   = 0x04034b50
	centralDirHeaderSig  = 0x02014b50
	endOfCentralDirSig   = 0x06054b50
	methodStore          = 0
	methodDeflate        = 8
	localFileHeaderSize  = 30
	centralHeaderMinSize = 46
	endOfCentralDirSize  = 22
)

var (
	// ErrNotAZip is returned when the end-of-central-directory record
	// can't be located within the mapped file.
	ErrNotAZip = errors.New("zipfile: not a zip archive")
	// ErrItemNotFound is returned when a named item isn't in the archive.
	ErrItemNotFound = errors.New("zipfile: item not found")
	// ErrExtractionCanceled is returned by ExtractAll when the progress
	// callback returns false.
	ErrExtractionCanceled = errors.New("zipfile: extraction canceled")
)

// Item describes one archive entry, mirroring the fields a caller needs
// to decide whether and how to extract it.
type Item struct {
	Name             string
	Comment          string
	CompressedSize   uint32
	UncompressedSize uint32
	Crc32            uint32
	Method           uint16
	ModTime          time.Time
	localHeaderOff   uint32
}

// ProgressFunc is called after each item is extracted during ExtractAll.
// Returning false cancels the remaining extraction.
type ProgressFunc func(itemsDone, itemsTotal int, bytesDone, bytesTotal uint32) bool

// RoZipped is a read-only view over a mapped ZIP archive's central
// directory and item bodies.
type RoZipped struct {
	mf    *mmap.MappedFile
	items []Item
	byName map[string]int

	extractionCanceled bool
}

// Open memory-maps path read-only and parses its central directory.
func Open(path string) (*RoZipped, error) {
	mf, err := mmap.Open(path, mmap.ReadOnly, 0)
	if err != nil {
		return nil, err
	}
	z := &RoZipped{mf: mf, byName: map[string]int{}}
	if err := z.parseCentralDirectory(); err != nil {
		mf.Close()
		return nil, err
	}
	return z, nil
}

// Close releases the underlying mapping.
func (z *RoZipped) Close() error { return z.mf.Close() }

// Items returns the archive's entries in central-directory order.
func (z *RoZipped) Items() []Item { return z.items }

// ItemByName looks up an entry by exact name match.
func (z *RoZipped) ItemByName(name string) (Item, bool) {
	i, ok := z.byName[name]
	if !ok {
		return Item{}, false
	}
	return z.items[i], true
}

// parseCentralDirectory scans backward from the end of the file for the
// end-of-central-directory record, then reads each central directory
// entry it points to.
func (z *RoZipped) parseCentralDirectory() error {
	size := z.mf.Size()
	maxBack := int64(endOfCentralDirSize + 65536) // room for a comment
	if maxBack > size {
		maxBack = size
	}
	tail, err := z.mf.GetBytes(size-maxBack, int(maxBack))
	if err != nil {
		return fmt.Errorf("zipfile: reading tail: %w", err)
	}
	sigIdx := bytes.LastIndex(tail, []byte{0x50, 0x4b, 0x05, 0x06})
	if sigIdx < 0 {
		return ErrNotAZip
	}
	eocd := tail[sigIdx:]
	if len(eocd) < endOfCentralDirSize {
		return ErrNotAZip
	}
	numEntries := binary.LittleEndian.Uint16(eocd[10:12])
	cdSize := binary.LittleEndian.Uint32(eocd[12:16])
	cdOffset := binary.LittleEndian.Uint32(eocd[16:20])

	cd, err := z.mf.GetBytes(int64(cdOffset), int(cdSize))
	if err != nil {
		return fmt.Errorf("zipfile: reading central directory: %w", err)
	}
	z.items = make([]Item, 0, numEntries)
	off := 0
	for i := 0; i < int(numEntries); i++ {
		if off+centralHeaderMinSize > len(cd) {
			return fmt.Errorf("zipfile: truncated central directory entry %d", i)
		}
		if binary.LittleEndian.Uint32(cd[off:off+4]) != centralDirHeaderSig {
			return fmt.Errorf("zipfile: bad central directory signature at entry %d", i)
		}
		method := binary.LittleEndian.Uint16(cd[off+10 : off+12])
		modTimeRaw := binary.LittleEndian.Uint16(cd[off+12 : off+14])
		modDateRaw := binary.LittleEndian.Uint16(cd[off+14 : off+16])
		crc := binary.LittleEndian.Uint32(cd[off+16 : off+20])
		compSize := binary.LittleEndian.Uint32(cd[off+20 : off+24])
		uncompSize := binary.LittleEndian.Uint32(cd[off+24 : off+28])
		nameLen := int(binary.LittleEndian.Uint16(cd[off+28 : off+30]))
		extraLen := int(binary.LittleEndian.Uint16(cd[off+30 : off+32]))
		commentLen := int(binary.LittleEndian.Uint16(cd[off+32 : off+34]))
		localOff := binary.LittleEndian.Uint32(cd[off+42 : off+46])

		nameStart := off + centralHeaderMinSize
		name := string(cd[nameStart : nameStart+nameLen])
		commentStart := nameStart + nameLen + extraLen
		comment := string(cd[commentStart : commentStart+commentLen])

		item := Item{
			Name:             name,
			Comment:          comment,
			CompressedSize:   compSize,
			UncompressedSize: uncompSize,
			Crc32:            crc,
			Method:           method,
			ModTime:          dosTimeToTime(modDateRaw, modTimeRaw),
			localHeaderOff:   localOff,
		}
		z.byName[name] = len(z.items)
		z.items = append(z.items, item)
		off = commentStart + commentLen
	}
	return nil
}

// bodyOffset locates the start of an item's compressed data by reading
// past its local file header (whose name/extra field lengths can differ
// from the central directory's, per the ZIP format).
func (z *RoZipped) bodyOffset(it Item) (int64, error) {
	hdr, err := z.mf.GetBytes(int64(it.localHeaderOff), localFileHeaderSize)
	if err != nil {
		return 0, fmt.Errorf("zipfile: reading local header for %s: %w", it.Name, err)
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != localFileHeaderSig {
		return 0, fmt.Errorf("zipfile: bad local header signature for %s", it.Name)
	}
	nameLen := int(binary.LittleEndian.Uint16(hdr[26:28]))
	extraLen := int(binary.LittleEndian.Uint16(hdr[28:30]))
	return int64(it.localHeaderOff) + localFileHeaderSize + int64(nameLen) + int64(extraLen), nil
}

func dosTimeToTime(dosDate, dosTime uint16) time.Time {
	year := int(dosDate>>9) + 1980
	month := int((dosDate >> 5) & 0xf)
	day := int(dosDate & 0x1f)
	hour := int(dosTime >> 11)
	min := int((dosTime >> 5) & 0x3f)
	sec := int((dosTime & 0x1f) * 2)
	if month == 0 {
		month = 1
	}
	if day == 0 {
		day = 1
	}
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC)
}

func timeToDos(t time.Time) (dosDate, dosTime uint16) {
	dosDate = uint16((t.Year()-1980)<<9 | int(t.Month())<<5 | t.Day())
	dosTime = uint16(t.Hour()<<11 | t.Minute()<<5 | t.Second()/2)
	return
}
