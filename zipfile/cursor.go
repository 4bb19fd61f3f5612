package zipfile

import (
	"fmt"
	"io"

	"github.com/thanhtphung/sysnetkit/mmap"
)

// cursor is the virtual-cursor adapter that binds the archive engine's
// open/close/read/write/seek/tell operations to a mmap.MappedFile, so
// the same addressing code drives both reading an existing archive and
// writing a new one, regardless of how many views the file spans.
// Errors from Read/Write are also latched and available from Err, the
// way a C zip engine's callback table surfaces a sticky error code.
type cursor struct {
	mf       *mmap.MappedFile
	pos      int64
	writable bool
	owned    bool
	err      error
}

// openCursor maps path read-only for reading an existing archive.
func openCursor(path string) (*cursor, error) {
	mf, err := mmap.Open(path, mmap.ReadOnly, 0)
	if err != nil {
		return nil, err
	}
	return &cursor{mf: mf, owned: true}, nil
}

// createCursor creates path sized to initialCap bytes of starting
// capacity for writing a new archive; the cursor grows the backing
// file by doubling as writes exceed the current capacity.
func createCursor(path string, initialCap int64) (*cursor, error) {
	if initialCap <= 0 {
		initialCap = 4096
	}
	mf, err := mmap.Create(path, initialCap, 0)
	if err != nil {
		return nil, err
	}
	return &cursor{mf: mf, writable: true, owned: true}, nil
}

// Read implements io.Reader, reading from the current position and
// advancing it.
func (c *cursor) Read(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	remaining := c.mf.Size() - c.pos
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := c.mf.ReadAt(p, c.pos)
	c.pos += int64(n)
	if err != nil {
		c.err = err
	}
	return n, err
}

// Write implements io.Writer, growing the backing file by doubling
// whenever the write would run past the current capacity.
func (c *cursor) Write(p []byte) (int, error) {
	if !c.writable {
		return 0, mmap.ErrReadOnly
	}
	need := c.pos + int64(len(p))
	if need > c.mf.Size() {
		if err := c.growTo(need); err != nil {
			c.err = err
			return 0, err
		}
	}
	n, err := c.mf.WriteAt(p, c.pos)
	c.pos += int64(n)
	if err != nil {
		c.err = err
	}
	return n, err
}

func (c *cursor) growTo(need int64) error {
	newSize := c.mf.Size()
	if newSize <= 0 {
		newSize = 4096
	}
	for newSize < need {
		newSize *= 2
	}
	return c.mf.Grow(newSize)
}

// Seek implements io.Seeker.
func (c *cursor) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = c.pos
	case io.SeekEnd:
		base = c.mf.Size()
	default:
		return 0, fmt.Errorf("zipfile: seek: invalid whence %d", whence)
	}
	pos := base + offset
	if pos < 0 {
		return 0, fmt.Errorf("zipfile: seek: negative offset %d", pos)
	}
	c.pos = pos
	return pos, nil
}

// Tell returns the current position, mirroring the engine's ztell.
func (c *cursor) Tell() int64 { return c.pos }

// Err returns the latched error from the last failing Read or Write,
// mirroring the engine's zerror.
func (c *cursor) Err() error { return c.err }

// Truncate trims the backing file down to size, undoing any excess
// capacity left over from the doubling growth policy once the final
// length of the archive is known.
func (c *cursor) Truncate(size int64) error {
	if c.mf.Size() == size {
		return nil
	}
	return c.mf.Truncate(size)
}

// Close releases the underlying mapping.
func (c *cursor) Close() error {
	if !c.owned {
		return nil
	}
	return c.mf.Close()
}
