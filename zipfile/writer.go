package zipfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
)

type pendingEntry struct {
	name    string
	data    []byte
	isDir   bool
	modTime time.Time
}

// Zipped accumulates files and directories in memory and streams a
// complete ZIP archive out through the cursor adapter when Save is
// called, the way RoZipped reads one back.
type Zipped struct {
	entries []pendingEntry
}

// NewZipped returns an empty archive builder.
func NewZipped() *Zipped { return &Zipped{} }

// AddFile stages a file entry. Save DEFLATE-compresses it, or stores it
// uncompressed when compression would not make it smaller.
func (z *Zipped) AddFile(name string, data []byte) {
	z.entries = append(z.entries, pendingEntry{name: name, data: data, modTime: time.Now()})
}

// AddDirectory stages a directory entry (stored, never compressed).
func (z *Zipped) AddDirectory(name string) {
	if !strings.HasSuffix(name, "/") {
		name += "/"
	}
	z.entries = append(z.entries, pendingEntry{name: name, isDir: true, modTime: time.Now()})
}

type centralRecord struct {
	name       string
	method     uint16
	modDate    uint16
	modTime    uint16
	crc        uint32
	compSize   uint32
	uncompSize uint32
	localOff   uint32
}

// Save writes the archive to path through the cursor adapter, one
// entry at a time: the backing file starts small and grows by doubling
// as each local header and compressed body is written, rather than
// assembling the whole archive in memory first.
func (z *Zipped) Save(path string) error {
	cur, err := createCursor(path, 4096)
	if err != nil {
		return fmt.Errorf("zipfile: creating %s: %w", path, err)
	}
	defer cur.Close()

	records := make([]centralRecord, 0, len(z.entries))

	for _, e := range z.entries {
		off := uint32(cur.Tell())
		dosDate, dosTime := timeToDos(e.modTime)
		method := uint16(methodStore)
		var compressed []byte
		crc := crc32.ChecksumIEEE(e.data)
		if e.isDir {
			compressed = nil
		} else {
			var cbuf bytes.Buffer
			w, err := flate.NewWriter(&cbuf, flate.DefaultCompression)
			if err != nil {
				return fmt.Errorf("zipfile: flate.NewWriter: %w", err)
			}
			if _, err := w.Write(e.data); err != nil {
				return fmt.Errorf("zipfile: deflating %s: %w", e.name, err)
			}
			if err := w.Close(); err != nil {
				return fmt.Errorf("zipfile: closing deflate stream for %s: %w", e.name, err)
			}
			if cbuf.Len() < len(e.data) {
				method = methodDeflate
				compressed = cbuf.Bytes()
			} else {
				compressed = e.data
			}
		}

		nameBytes := []byte(e.name)
		local := make([]byte, localFileHeaderSize+len(nameBytes))
		binary.LittleEndian.PutUint32(local[0:4], localFileHeaderSig)
		binary.LittleEndian.PutUint16(local[4:6], 20)
		binary.LittleEndian.PutUint16(local[6:8], 0)
		binary.LittleEndian.PutUint16(local[8:10], method)
		binary.LittleEndian.PutUint16(local[10:12], dosTime)
		binary.LittleEndian.PutUint16(local[12:14], dosDate)
		binary.LittleEndian.PutUint32(local[14:18], crc)
		binary.LittleEndian.PutUint32(local[18:22], uint32(len(compressed)))
		binary.LittleEndian.PutUint32(local[22:26], uint32(len(e.data)))
		binary.LittleEndian.PutUint16(local[26:28], uint16(len(nameBytes)))
		binary.LittleEndian.PutUint16(local[28:30], 0)
		copy(local[30:], nameBytes)

		if _, err := cur.Write(local); err != nil {
			return fmt.Errorf("zipfile: writing local header for %s: %w", e.name, err)
		}
		if len(compressed) > 0 {
			if _, err := cur.Write(compressed); err != nil {
				return fmt.Errorf("zipfile: writing body of %s: %w", e.name, err)
			}
		}

		records = append(records, centralRecord{
			name:       e.name,
			method:     method,
			modDate:    dosDate,
			modTime:    dosTime,
			crc:        crc,
			compSize:   uint32(len(compressed)),
			uncompSize: uint32(len(e.data)),
			localOff:   off,
		})
	}

	cdStart := uint32(cur.Tell())
	for _, r := range records {
		nameBytes := []byte(r.name)
		hdr := make([]byte, centralHeaderMinSize+len(nameBytes))
		binary.LittleEndian.PutUint32(hdr[0:4], centralDirHeaderSig)
		binary.LittleEndian.PutUint16(hdr[4:6], 20)
		binary.LittleEndian.PutUint16(hdr[6:8], 20)
		binary.LittleEndian.PutUint16(hdr[8:10], 0)
		binary.LittleEndian.PutUint16(hdr[10:12], r.method)
		binary.LittleEndian.PutUint16(hdr[12:14], r.modTime)
		binary.LittleEndian.PutUint16(hdr[14:16], r.modDate)
		binary.LittleEndian.PutUint32(hdr[16:20], r.crc)
		binary.LittleEndian.PutUint32(hdr[20:24], r.compSize)
		binary.LittleEndian.PutUint32(hdr[24:28], r.uncompSize)
		binary.LittleEndian.PutUint16(hdr[28:30], uint16(len(nameBytes)))
		binary.LittleEndian.PutUint16(hdr[30:32], 0)
		binary.LittleEndian.PutUint16(hdr[32:34], 0)
		binary.LittleEndian.PutUint16(hdr[34:36], 0)
		binary.LittleEndian.PutUint16(hdr[36:38], 0)
		binary.LittleEndian.PutUint32(hdr[38:42], 0)
		binary.LittleEndian.PutUint32(hdr[42:46], r.localOff)
		copy(hdr[46:], nameBytes)
		if _, err := cur.Write(hdr); err != nil {
			return fmt.Errorf("zipfile: writing central directory entry for %s: %w", r.name, err)
		}
	}
	cdSize := uint32(cur.Tell()) - cdStart

	eocd := make([]byte, endOfCentralDirSize)
	binary.LittleEndian.PutUint32(eocd[0:4], endOfCentralDirSig)
	binary.LittleEndian.PutUint16(eocd[4:6], 0)
	binary.LittleEndian.PutUint16(eocd[6:8], 0)
	binary.LittleEndian.PutUint16(eocd[8:10], uint16(len(records)))
	binary.LittleEndian.PutUint16(eocd[10:12], uint16(len(records)))
	binary.LittleEndian.PutUint32(eocd[12:16], cdSize)
	binary.LittleEndian.PutUint32(eocd[16:20], cdStart)
	binary.LittleEndian.PutUint16(eocd[20:22], 0)
	if _, err := cur.Write(eocd); err != nil {
		return fmt.Errorf("zipfile: writing end-of-central-directory record: %w", err)
	}

	if err := cur.Truncate(cur.Tell()); err != nil {
		return fmt.Errorf("zipfile: trimming %s to final size: %w", path, err)
	}
	return cur.mf.Sync()
}
