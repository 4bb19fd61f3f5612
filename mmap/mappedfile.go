//go:build linux

// Package mmap memory-maps files for zero-copy reads and in-place
// writes, splitting large files across multiple fixed-size views so no
// single mapping need exceed a bounded window of address space.
package mmap

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Mode selects how a file is opened and mapped.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

var (
	ErrClosed     = errors.New("mmap: file is closed")
	ErrReadOnly   = errors.New("mmap: file is mapped read-only")
	ErrOutOfRange = errors.New("mmap: offset out of range")
)

// defaultViewSize is the view size used when a whole-file mapping
// (viewSize 0) is requested for an empty file; rounded up to the system
// page size at open time.
const defaultViewSize = 64 << 20

type view struct {
	data []byte
	base int64
}

// MappedFile maps a file's contents into one or more views and provides
// offset-addressed access that is transparent to which view an offset
// falls in.
type MappedFile struct {
	mu        sync.Mutex
	f         *os.File
	path      string
	mode      Mode
	size      int64
	viewSize  int64
	viewShift uint // nonzero iff viewSize is a power of two
	views     []view
	closed    bool
}

func roundToPage(n int64) int64 {
	page := int64(unix.Getpagesize())
	if n <= 0 {
		return page
	}
	return (n + page - 1) / page * page
}

func shiftForPowerOfTwo(n int64) uint {
	if n <= 0 || n&(n-1) != 0 {
		return 0
	}
	var shift uint
	for n > 1 {
		n >>= 1
		shift++
	}
	return shift
}

// resolveViewSize implements the construction-time view-size contract:
// 0 means "one view over the whole file" (capped to a sane minimum when
// the file is itself empty); a non-zero request is rounded up to the OS
// allocation granularity.
func resolveViewSize(requested, fileSize int64) int64 {
	if requested > 0 {
		return roundToPage(requested)
	}
	if fileSize <= 0 {
		return roundToPage(defaultViewSize)
	}
	return fileSize
}

// Open memory-maps the file at path. In ReadWrite mode the mapping is
// MAP_SHARED so writes through SetBytes are visible to other mappers and
// persist on Close/Sync. viewSize bounds how much address space a
// single view occupies; 0 maps the whole file as one view.
func Open(path string, mode Mode, viewSize int64) (*MappedFile, error) {
	flag := os.O_RDONLY
	if mode == ReadWrite {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap: open %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap: stat %s: %w", path, err)
	}
	mf := &MappedFile{
		f:        f,
		path:     path,
		mode:     mode,
		size:     fi.Size(),
		viewSize: resolveViewSize(viewSize, fi.Size()),
	}
	mf.viewShift = shiftForPowerOfTwo(mf.viewSize)
	if err := mf.mapAll(); err != nil {
		f.Close()
		return nil, err
	}
	return mf, nil
}

// Create truncates (or creates) the file at path to size bytes and maps
// it ReadWrite. viewSize bounds how much address space a single view
// occupies; 0 maps the whole file as one view.
func Create(path string, size int64, viewSize int64) (*MappedFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("mmap: create %s: %w", path, err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap: truncate %s: %w", path, err)
	}
	mf := &MappedFile{
		f:        f,
		path:     path,
		mode:     ReadWrite,
		size:     size,
		viewSize: resolveViewSize(viewSize, size),
	}
	mf.viewShift = shiftForPowerOfTwo(mf.viewSize)
	if err := mf.mapAll(); err != nil {
		f.Close()
		return nil, err
	}
	return mf, nil
}

func (mf *MappedFile) prot() int {
	if mf.mode == ReadWrite {
		return unix.PROT_READ | unix.PROT_WRITE
	}
	return unix.PROT_READ
}

func (mf *MappedFile) mflags() int {
	if mf.mode == ReadWrite {
		return unix.MAP_SHARED
	}
	return unix.MAP_PRIVATE
}

func (mf *MappedFile) mapAll() error {
	if mf.size == 0 {
		mf.views = nil
		return nil
	}
	var views []view
	for base := int64(0); base < mf.size; base += mf.viewSize {
		length := mf.viewSize
		if base+length > mf.size {
			length = mf.size - base
		}
		data, err := unix.Mmap(int(mf.f.Fd()), base, int(length), mf.prot(), mf.mflags())
		if err != nil {
			for _, v := range views {
				unix.Munmap(v.data)
			}
			return fmt.Errorf("mmap: mmap %s at %d: %w", mf.path, base, err)
		}
		views = append(views, view{data: data, base: base})
	}
	mf.views = views
	return nil
}

func (mf *MappedFile) unmapAll() error {
	var firstErr error
	for _, v := range mf.views {
		if err := unix.Munmap(v.data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	mf.views = nil
	return firstErr
}

// Close unmaps all views and closes the underlying file descriptor.
func (mf *MappedFile) Close() error {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	if mf.closed {
		return nil
	}
	mf.closed = true
	err := mf.unmapAll()
	if cerr := mf.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Sync flushes dirty pages of every view back to the file.
func (mf *MappedFile) Sync() error {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	if mf.closed {
		return ErrClosed
	}
	for _, v := range mf.views {
		if err := unix.Msync(v.data, unix.MS_SYNC); err != nil {
			return fmt.Errorf("mmap: msync: %w", err)
		}
	}
	return nil
}

// Size returns the current mapped length in bytes.
func (mf *MappedFile) Size() int64 { return mf.size }

// NumViews returns how many fixed-size views the file is split across.
func (mf *MappedFile) NumViews() int { return len(mf.views) }

// ViewSize returns the window size used to split the file into views.
func (mf *MappedFile) ViewSize() int64 { return mf.viewSize }

// Path returns the backing file path.
func (mf *MappedFile) Path() string { return mf.path }

// viewIndex returns which view holds offset, using a shift when viewSize
// is a power of two instead of an integer division.
func (mf *MappedFile) viewIndex(offset int64) int {
	if mf.viewShift != 0 {
		return int(offset >> mf.viewShift)
	}
	return int(offset / mf.viewSize)
}

// Remap re-establishes the view set after the backing file's size
// changed out from under this MappedFile (e.g. via Resize). Callers
// normally don't need to call this directly.
func (mf *MappedFile) Remap() error {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	return mf.remapLocked()
}

func (mf *MappedFile) remapLocked() error {
	if mf.closed {
		return ErrClosed
	}
	wholeFile := mf.viewSize == mf.size
	if err := mf.unmapAll(); err != nil {
		return fmt.Errorf("mmap: unmap before remap: %w", err)
	}
	fi, err := mf.f.Stat()
	if err != nil {
		return fmt.Errorf("mmap: stat during remap: %w", err)
	}
	mf.size = fi.Size()
	if wholeFile {
		mf.viewSize = resolveViewSize(0, mf.size)
		mf.viewShift = shiftForPowerOfTwo(mf.viewSize)
	}
	return mf.mapAll()
}

// Grow extends the backing file to newSize (must be >= Size) and remaps.
func (mf *MappedFile) Grow(newSize int64) error {
	return mf.resize(newSize, true)
}

// Truncate shrinks the backing file to newSize (must be <= Size) and
// remaps.
func (mf *MappedFile) Truncate(newSize int64) error {
	return mf.resize(newSize, false)
}

// Resize grows or shrinks the backing file to newSize and remaps,
// whichever direction newSize requires.
func (mf *MappedFile) Resize(newSize int64) error {
	mf.mu.Lock()
	grow := newSize >= mf.size
	mf.mu.Unlock()
	return mf.resize(newSize, grow)
}

func (mf *MappedFile) resize(newSize int64, grow bool) error {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	if mf.closed {
		return ErrClosed
	}
	if mf.mode != ReadWrite {
		return ErrReadOnly
	}
	if grow && newSize < mf.size {
		return fmt.Errorf("mmap: Grow to %d is smaller than current size %d", newSize, mf.size)
	}
	if !grow && newSize > mf.size {
		return fmt.Errorf("mmap: Truncate to %d is larger than current size %d", newSize, mf.size)
	}
	if err := mf.f.Truncate(newSize); err != nil {
		return fmt.Errorf("mmap: ftruncate to %d: %w", newSize, err)
	}
	return mf.remapLocked()
}

// LoadFrom replaces the contents this MappedFile addresses with the
// file at path: the old mapping and descriptor are closed and a fresh
// one opened in the same mode.
func (mf *MappedFile) LoadFrom(path string) error {
	mf.mu.Lock()
	mode, viewSize := mf.mode, mf.viewSize
	mf.mu.Unlock()
	if err := mf.Close(); err != nil {
		return err
	}
	fresh, err := Open(path, mode, viewSize)
	if err != nil {
		return err
	}
	mf.mu.Lock()
	defer mf.mu.Unlock()
	mf.f = fresh.f
	mf.path = fresh.path
	mf.size = fresh.size
	mf.viewSize = fresh.viewSize
	mf.viewShift = fresh.viewShift
	mf.views = fresh.views
	mf.closed = false
	return nil
}

// SaveIn copies the currently mapped bytes to a new file at path.
func (mf *MappedFile) SaveIn(path string) error {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	if mf.closed {
		return ErrClosed
	}
	out, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("mmap: SaveIn create %s: %w", path, err)
	}
	defer out.Close()
	for _, v := range mf.views {
		if _, err := out.Write(v.data); err != nil {
			return fmt.Errorf("mmap: SaveIn write %s: %w", path, err)
		}
	}
	return nil
}

// GetBytes returns length bytes starting at offset. When the span lies
// entirely within one view the returned slice aliases the mapping
// (zero-copy); otherwise the bytes are copied into a fresh buffer.
func (mf *MappedFile) GetBytes(offset int64, length int) ([]byte, error) {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	if mf.closed {
		return nil, ErrClosed
	}
	if offset < 0 || length < 0 || offset+int64(length) > mf.size {
		return nil, ErrOutOfRange
	}
	if length == 0 {
		return nil, nil
	}
	vi := mf.viewIndex(offset)
	v := mf.views[vi]
	start := offset - v.base
	if start+int64(length) <= int64(len(v.data)) {
		return v.data[start : start+int64(length)], nil
	}
	buf := make([]byte, length)
	if err := mf.readAtLocked(buf, offset); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadAt reads len(p) bytes starting at offset into p, spanning view
// boundaries transparently; it satisfies io.ReaderAt.
func (mf *MappedFile) ReadAt(p []byte, offset int64) (int, error) {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	if mf.closed {
		return 0, ErrClosed
	}
	if offset < 0 || offset+int64(len(p)) > mf.size {
		return 0, ErrOutOfRange
	}
	if err := mf.readAtLocked(p, offset); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (mf *MappedFile) readAtLocked(dst []byte, offset int64) error {
	remaining := dst
	cur := offset
	for len(remaining) > 0 {
		vi := mf.viewIndex(cur)
		if vi >= len(mf.views) {
			return ErrOutOfRange
		}
		v := mf.views[vi]
		start := cur - v.base
		n := copy(remaining, v.data[start:])
		remaining = remaining[n:]
		cur += int64(n)
	}
	return nil
}

// SetBytes writes data at offset, spanning view boundaries transparently.
func (mf *MappedFile) SetBytes(offset int64, data []byte) error {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	if mf.closed {
		return ErrClosed
	}
	if mf.mode != ReadWrite {
		return ErrReadOnly
	}
	if offset < 0 || offset+int64(len(data)) > mf.size {
		return ErrOutOfRange
	}
	remaining := data
	cur := offset
	for len(remaining) > 0 {
		vi := mf.viewIndex(cur)
		if vi >= len(mf.views) {
			return ErrOutOfRange
		}
		v := mf.views[vi]
		start := cur - v.base
		n := copy(v.data[start:], remaining)
		remaining = remaining[n:]
		cur += int64(n)
	}
	return nil
}

// WriteAt writes p at offset, spanning view boundaries transparently;
// it satisfies io.WriterAt.
func (mf *MappedFile) WriteAt(p []byte, offset int64) (int, error) {
	if err := mf.SetBytes(offset, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// CopyBytes copies count bytes from srcOffset to dstOffset within this
// same mapped file, spanning view boundaries, with memmove semantics:
// the destination ends up holding the pre-copy contents of the source
// range even when the two ranges overlap. A copy whose destination
// starts inside the source range is staged through a temporary buffer;
// any other copy runs in ascending order, each step clipped to the
// shorter of the source and destination view's remaining span.
func (mf *MappedFile) CopyBytes(dstOffset, srcOffset int64, count int) error {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	if mf.closed {
		return ErrClosed
	}
	if mf.mode != ReadWrite {
		return ErrReadOnly
	}
	if dstOffset < 0 || srcOffset < 0 || count < 0 ||
		dstOffset+int64(count) > mf.size || srcOffset+int64(count) > mf.size {
		return ErrOutOfRange
	}
	if dstOffset > srcOffset && dstOffset < srcOffset+int64(count) {
		buf := make([]byte, count)
		if err := mf.readAtLocked(buf, srcOffset); err != nil {
			return err
		}
		for off := 0; off < count; {
			cur := dstOffset + int64(off)
			v := mf.views[mf.viewIndex(cur)]
			off += copy(v.data[cur-v.base:], buf[off:])
		}
		return nil
	}
	remaining := count
	dstCur, srcCur := dstOffset, srcOffset
	for remaining > 0 {
		dvi := mf.viewIndex(dstCur)
		svi := mf.viewIndex(srcCur)
		if dvi >= len(mf.views) || svi >= len(mf.views) {
			return ErrOutOfRange
		}
		dv, sv := mf.views[dvi], mf.views[svi]
		dStart := int(dstCur - dv.base)
		sStart := int(srcCur - sv.base)
		step := remaining
		if n := len(dv.data) - dStart; n < step {
			step = n
		}
		if n := len(sv.data) - sStart; n < step {
			step = n
		}
		n := copy(dv.data[dStart:dStart+step], sv.data[sStart:sStart+step])
		remaining -= n
		dstCur += int64(n)
		srcCur += int64(n)
	}
	return nil
}

// AddrOf returns the view index and in-view byte offset that address
// offset, for callers that need to reason about view boundaries
// directly (e.g. a zip cursor adapter deciding how much it can read in
// one shot).
func (mf *MappedFile) AddrOf(offset int64) (viewIndex int, viewOffset int64, err error) {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	if mf.closed {
		return 0, 0, ErrClosed
	}
	if offset < 0 || offset > mf.size {
		return 0, 0, ErrOutOfRange
	}
	vi := mf.viewIndex(offset)
	if vi >= len(mf.views) {
		return 0, 0, ErrOutOfRange
	}
	return vi, offset - mf.views[vi].base, nil
}
