package zipfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
)

// Extract locates item (exact name match, or basename match when
// flatten is set) and writes its decompressed contents to outDir,
// creating any missing parent directories, through the same cursor
// adapter the writer path uses. On success, the output file's
// modification time is stamped from the entry's recorded DOS date/time.
func (z *RoZipped) Extract(outDir string, item string, flatten bool) error {
	it, ok := z.findItem(item, flatten)
	if !ok {
		return ErrItemNotFound
	}
	return z.extractOne(outDir, it, flatten)
}

// ExtractAll extracts every item into outDir, invoking progress after
// each one; progress returning false cancels the remaining extraction
// and ExtractAll returns ErrExtractionCanceled. The cancellation latch
// applies only to the call in progress and is cleared at the start of
// the next one.
func (z *RoZipped) ExtractAll(outDir string, flatten bool, progress ProgressFunc) error {
	z.extractionCanceled = false
	var bytesTotal uint32
	for _, it := range z.items {
		bytesTotal += it.UncompressedSize
	}
	var bytesDone uint32
	for i, it := range z.items {
		if err := z.extractOne(outDir, it, flatten); err != nil {
			return err
		}
		bytesDone += it.UncompressedSize
		if progress != nil && !progress(i+1, len(z.items), bytesDone, bytesTotal) {
			z.extractionCanceled = true
			return ErrExtractionCanceled
		}
	}
	return nil
}

// findItem resolves name to an entry: an exact match always wins; under
// flatten, a basename match is also accepted.
func (z *RoZipped) findItem(name string, flatten bool) (Item, bool) {
	if i, ok := z.byName[name]; ok {
		return z.items[i], true
	}
	if !flatten {
		return Item{}, false
	}
	base := baseName(name)
	for _, it := range z.items {
		if baseName(it.Name) == base {
			return it, true
		}
	}
	return Item{}, false
}

func baseName(name string) string {
	return filepath.Base(filepath.FromSlash(name))
}

func targetPath(outDir string, it Item, flatten bool) string {
	name := it.Name
	if flatten {
		name = baseName(name)
	}
	return filepath.Join(outDir, filepath.FromSlash(name))
}

// mkdirAllReturningExisted creates dir and any missing parents,
// reporting whether it already existed.
func mkdirAllReturningExisted(dir string) (bool, error) {
	if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
		return true, nil
	}
	return false, os.MkdirAll(dir, 0755)
}

func (z *RoZipped) extractOne(outDir string, it Item, flatten bool) error {
	target := targetPath(outDir, it, flatten)
	if strings.HasSuffix(it.Name, "/") {
		if _, err := mkdirAllReturningExisted(target); err != nil {
			return fmt.Errorf("zipfile: creating directory %s: %w", target, err)
		}
		return os.Chtimes(target, it.ModTime, it.ModTime)
	}
	if _, err := mkdirAllReturningExisted(filepath.Dir(target)); err != nil {
		return fmt.Errorf("zipfile: creating parent of %s: %w", target, err)
	}

	start, err := z.bodyOffset(it)
	if err != nil {
		return err
	}
	src := &cursor{mf: z.mf}
	if _, err := src.Seek(start, io.SeekStart); err != nil {
		return err
	}

	dst, err := createCursor(target, int64(it.UncompressedSize))
	if err != nil {
		return fmt.Errorf("zipfile: creating %s: %w", target, err)
	}
	defer dst.Close()

	limited := io.LimitReader(src, int64(it.CompressedSize))
	var r io.Reader
	switch it.Method {
	case methodStore:
		r = limited
	case methodDeflate:
		fr := flate.NewReader(limited)
		defer fr.Close()
		r = fr
	default:
		return fmt.Errorf("zipfile: unsupported compression method %d for %s", it.Method, it.Name)
	}

	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return fmt.Errorf("zipfile: writing %s: %w", target, werr)
			}
			written += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("zipfile: inflating %s: %w", it.Name, rerr)
		}
	}
	if err := dst.Truncate(written); err != nil {
		return fmt.Errorf("zipfile: trimming %s to final size: %w", target, err)
	}
	if err := dst.mf.Sync(); err != nil {
		return fmt.Errorf("zipfile: syncing %s: %w", target, err)
	}
	if err := dst.Close(); err != nil {
		return err
	}
	return os.Chtimes(target, it.ModTime, it.ModTime)
}
