// Package heap implements the flat two-column record file referenced by
// the rest of the storage engine: each row is a (key int32, value
// string) pair, stored in slotted pages over the same fixed-size paged
// file abstraction the B+Tree index uses.
package heap

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"minirel/internal/storage/pagefile"
	"minirel/internal/storage/recordid"
)

// RID is the heap's native record identifier, shared with the index.
type RID = recordid.RID

const (
	slotHeaderSize = 6 // slotCount(2) + freeStart(2) + freeEnd(2)
	slotEntrySize  = 4 // offset(2) + length(2)

	recordHeaderSize = 4 + 2 // key(int32) + valueLen(uint16)
)

// ErrNoSpace means a record does not fit in the free space of the page
// it was placed on. Append returns it only when the record is too large
// for a freshly allocated empty page.
var ErrNoSpace = errors.New("heap: not enough free space on page")

// ErrDeletedSlot marks a slot whose record has been removed. Deletions
// are not part of this engine's operation set, but the lazy-delete slot
// shape is kept so the page format has room to grow.
var ErrDeletedSlot = errors.New("heap: slot deleted")

// File is a heap-organized table file: an unordered, append-only
// sequence of slotted pages.
type File struct {
	pf *pagefile.File
}

// Open opens (or creates, in ReadWrite mode) the heap file at name.
func Open(name string, mode pagefile.Mode) (*File, error) {
	pf, err := pagefile.Open(name, mode)
	if err != nil {
		return nil, err
	}
	return &File{pf: pf}, nil
}

// Close closes the underlying paged file.
func (f *File) Close() error {
	return f.pf.Close()
}

// EndRID returns one past the last valid RID: the page one beyond the
// current end of file, slot 0. Forward scans run from (0,0) up to, but
// not including, this value.
func (f *File) EndRID() RID {
	return RID{PageID: f.pf.EndPid(), SlotID: 0}
}

func slotHeader(page []byte) (slotCount, freeStart, freeEnd uint16) {
	slotCount = binary.LittleEndian.Uint16(page[0:2])
	freeStart = binary.LittleEndian.Uint16(page[2:4])
	freeEnd = binary.LittleEndian.Uint16(page[4:6])
	return
}

func setSlotHeader(page []byte, slotCount, freeStart, freeEnd uint16) {
	binary.LittleEndian.PutUint16(page[0:2], slotCount)
	binary.LittleEndian.PutUint16(page[2:4], freeStart)
	binary.LittleEndian.PutUint16(page[4:6], freeEnd)
}

func initPage(page []byte) {
	setSlotHeader(page, 0, slotHeaderSize, pagefile.PageSize)
}

func slotPos(slotID int32) int {
	return pagefile.PageSize - int(slotID+1)*slotEntrySize
}

func getSlot(page []byte, slotID int32) (off, length uint16) {
	pos := slotPos(slotID)
	off = binary.LittleEndian.Uint16(page[pos : pos+2])
	length = binary.LittleEndian.Uint16(page[pos+2 : pos+4])
	return
}

func setSlot(page []byte, slotID int32, off, length uint16) {
	pos := slotPos(slotID)
	binary.LittleEndian.PutUint16(page[pos:pos+2], off)
	binary.LittleEndian.PutUint16(page[pos+2:pos+4], length)
}

func freeSpace(slotCount, freeStart, freeEnd uint16) int {
	return int(freeEnd) - int(freeStart) - int(slotCount)*slotEntrySize
}

func encodeRecord(key int32, value string) []byte {
	buf := make([]byte, recordHeaderSize+len(value))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(key))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(len(value)))
	copy(buf[recordHeaderSize:], value)
	return buf
}

func decodeRecord(rec []byte) (int32, string) {
	key := int32(binary.LittleEndian.Uint32(rec[0:4]))
	vlen := binary.LittleEndian.Uint16(rec[4:6])
	value := string(rec[recordHeaderSize : recordHeaderSize+int(vlen)])
	return key, value
}

// Append adds a new (key, value) row, scanning from the first page for
// one with enough free space and allocating a fresh page only if none
// has room.
func (f *File) Append(key int32, value string) (RID, error) {
	rec := encodeRecord(key, value)
	need := len(rec) + slotEntrySize

	end := f.pf.EndPid()
	page := make([]byte, pagefile.PageSize)

	for pid := int32(0); pid < end; pid++ {
		if err := f.pf.Read(pid, page); err != nil {
			return RID{}, err
		}
		sc, fs, fe := slotHeader(page)
		if sc == 0 && fs == 0 && fe == 0 {
			initPage(page)
			sc, fs, fe = slotHeader(page)
		}
		if freeSpace(sc, fs, fe) >= need {
			return f.insertInto(pid, page, sc, fs, fe, rec)
		}
	}

	initPage(page)
	sc, fs, fe := slotHeader(page)
	return f.insertInto(end, page, sc, fs, fe, rec)
}

func (f *File) insertInto(pid int32, page []byte, slotCount, freeStart, freeEnd uint16, rec []byte) (RID, error) {
	if freeSpace(slotCount, freeStart, freeEnd) < len(rec)+slotEntrySize {
		return RID{}, ErrNoSpace
	}
	copy(page[freeStart:], rec)
	slotID := int32(slotCount)
	setSlot(page, slotID, freeStart, uint16(len(rec)))
	setSlotHeader(page, slotCount+1, freeStart+uint16(len(rec)), freeEnd-slotEntrySize)

	if err := f.pf.Write(pid, page); err != nil {
		return RID{}, err
	}
	return RID{PageID: pid, SlotID: slotID}, nil
}

// Read returns the (key, value) stored at rid.
func (f *File) Read(rid RID) (int32, string, error) {
	page := make([]byte, pagefile.PageSize)
	if err := f.pf.Read(rid.PageID, page); err != nil {
		return 0, "", err
	}
	sc, _, _ := slotHeader(page)
	if rid.SlotID < 0 || rid.SlotID >= int32(sc) {
		return 0, "", errors.Errorf("heap: slot %d out of range on page %d", rid.SlotID, rid.PageID)
	}
	off, length := getSlot(page, rid.SlotID)
	if length == 0 {
		return 0, "", ErrDeletedSlot
	}
	key, value := decodeRecord(page[off : off+length])
	return key, value, nil
}

// Iterate walks every live record in page, slot order, invoking fn with
// each row's rid, key and value. Iteration stops early if fn returns
// false.
func (f *File) Iterate(fn func(rid RID, key int32, value string) bool) error {
	end := f.pf.EndPid()
	page := make([]byte, pagefile.PageSize)
	for pid := int32(0); pid < end; pid++ {
		if err := f.pf.Read(pid, page); err != nil {
			return err
		}
		sc, _, _ := slotHeader(page)
		for slotID := int32(0); slotID < int32(sc); slotID++ {
			off, length := getSlot(page, slotID)
			if length == 0 {
				continue
			}
			key, value := decodeRecord(page[off : off+length])
			if !fn(RID{PageID: pid, SlotID: slotID}, key, value) {
				return nil
			}
		}
	}
	return nil
}
