// Package pagefile implements the fixed-size paged file that backs both the
// heap and the B+Tree index: pages are addressed by a non-negative integer
// id, page 0 through endPid()-1 are valid, and new pages are always
// allocated at endPid(). The file is memory-mapped: reads copy a page out
// of the mapping, writes copy into it, and the mapping is flushed to disk
// on Close.
package pagefile

import (
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

// PageSize is the fixed page size assumed throughout the storage engine.
const PageSize = 1024

// Mode selects whether a file is opened for reading only or for reading
// and writing. ReadWrite mode creates the file if it does not already exist.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

// File is a fixed-page-size store addressed by page id.
type File struct {
	f     *os.File
	m     mmap.MMap
	mode  Mode
	pages int32
}

// Open opens name under the given mode. In ReadWrite mode the file is
// created if it does not exist.
func Open(name string, mode Mode) (*File, error) {
	flags := os.O_RDONLY
	if mode == ReadWrite {
		flags = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(name, flags, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "pagefile: open %s", name)
	}
	pf := &File{f: f, mode: mode}
	if err := pf.remap(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return pf, nil
}

// remap re-establishes the memory mapping to match the file's current
// size. It is called on open and after the file grows.
func (pf *File) remap() error {
	if pf.m != nil {
		if err := pf.m.Unmap(); err != nil {
			return errors.Wrap(err, "pagefile: unmap")
		}
		pf.m = nil
	}

	info, err := pf.f.Stat()
	if err != nil {
		return errors.Wrap(err, "pagefile: stat")
	}
	size := info.Size()
	pf.pages = int32(size / PageSize)
	if size == 0 {
		return nil
	}

	mapMode := mmap.RDONLY
	if pf.mode == ReadWrite {
		mapMode = mmap.RDWR
	}
	m, err := mmap.MapRegion(pf.f, int(size), mapMode, 0, 0)
	if err != nil {
		return errors.Wrap(err, "pagefile: mmap")
	}
	pf.m = m
	return nil
}

// EndPid returns one past the highest valid page id; it is the allocator
// for new pages.
func (pf *File) EndPid() int32 {
	return pf.pages
}

// Read copies the contents of page pid into buf, which must be exactly
// PageSize bytes.
func (pf *File) Read(pid int32, buf []byte) error {
	if len(buf) != PageSize {
		return errors.Errorf("pagefile: buffer must be %d bytes, got %d", PageSize, len(buf))
	}
	if pid < 0 || pid >= pf.pages {
		return errors.Errorf("pagefile: page %d out of range [0, %d)", pid, pf.pages)
	}
	off := int64(pid) * PageSize
	copy(buf, pf.m[off:off+PageSize])
	return nil
}

// Write copies buf into page pid, growing the file if pid is beyond the
// current end. buf must be exactly PageSize bytes.
func (pf *File) Write(pid int32, buf []byte) error {
	if len(buf) != PageSize {
		return errors.Errorf("pagefile: buffer must be %d bytes, got %d", PageSize, len(buf))
	}
	if pf.mode != ReadWrite {
		return errors.New("pagefile: file opened read-only")
	}
	if pid < 0 {
		return errors.Errorf("pagefile: negative page id %d", pid)
	}
	if pid >= pf.pages {
		if err := pf.grow(pid + 1); err != nil {
			return err
		}
	}
	off := int64(pid) * PageSize
	copy(pf.m[off:off+PageSize], buf)
	return nil
}

// grow extends the backing file to hold the given number of pages and
// re-maps it.
func (pf *File) grow(pages int32) error {
	size := int64(pages) * PageSize
	if err := pf.f.Truncate(size); err != nil {
		return errors.Wrap(err, "pagefile: truncate")
	}
	return pf.remap()
}

// Close flushes any pending writes and releases the mapping and file
// handle. The metadata page is only durable once Close returns.
func (pf *File) Close() error {
	if pf.m != nil {
		if pf.mode == ReadWrite {
			if err := pf.m.Flush(); err != nil {
				return errors.Wrap(err, "pagefile: flush")
			}
		}
		if err := pf.m.Unmap(); err != nil {
			return errors.Wrap(err, "pagefile: unmap")
		}
		pf.m = nil
	}
	return errors.Wrap(pf.f.Close(), "pagefile: close")
}
