package btree

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// PageSize is the fixed page size shared with the paged file. A leaf and a
// non-leaf node are both exactly one page.
const PageSize = 1024

const (
	leafEntrySize    = 4 + 8 // key int32 + RID (2 x int32)
	nonLeafEntrySize = 4 + 4 // key int32 + child pid int32
)

// MaxLeafCount is the largest number of entries a leaf can hold: the page
// minus the trailing keyCount and nextLeafPid words.
const MaxLeafCount = (PageSize - 8) / leafEntrySize

// MaxNonLeafCount is the largest number of entries a non-leaf can hold:
// the page minus the leading leftmost-child pointer and the trailing
// keyCount word.
const MaxNonLeafCount = (PageSize - 4 - 4) / nonLeafEntrySize

// LeafNode is a typed view over a single page buffer holding (key, rid)
// entries in ascending key order plus a forward link to the next leaf.
type LeafNode struct {
	buf []byte
}

// newLeafNode builds a fresh, empty leaf with no successor.
func newLeafNode() *LeafNode {
	ln := &LeafNode{buf: make([]byte, PageSize)}
	ln.setKeyCount(0)
	ln.SetNextLeafPid(-1)
	return ln
}

// readLeafNode wraps an already-populated page buffer as a leaf. buf must
// be exactly PageSize bytes and becomes owned by the returned node.
func readLeafNode(buf []byte) *LeafNode {
	return &LeafNode{buf: buf}
}

// Bytes returns the node's backing page buffer, ready to be written back.
func (ln *LeafNode) Bytes() []byte {
	return ln.buf
}

func (ln *LeafNode) KeyCount() int32 {
	return int32(binary.LittleEndian.Uint32(ln.buf[PageSize-8 : PageSize-4]))
}

func (ln *LeafNode) setKeyCount(n int32) {
	binary.LittleEndian.PutUint32(ln.buf[PageSize-8:PageSize-4], uint32(n))
}

func (ln *LeafNode) NextLeafPid() int32 {
	return int32(binary.LittleEndian.Uint32(ln.buf[PageSize-4:PageSize]))
}

func (ln *LeafNode) SetNextLeafPid(pid int32) {
	binary.LittleEndian.PutUint32(ln.buf[PageSize-4:PageSize], uint32(pid))
}

func leafEntryOffset(eid int32) int {
	return int(eid) * leafEntrySize
}

// Entry reads the (key, rid) pair at eid. Fails with ErrNoSuchRecord if
// eid is outside [0, keyCount).
func (ln *LeafNode) Entry(eid int32) (Key, RID, error) {
	if eid < 0 || eid >= ln.KeyCount() {
		return 0, RID{}, ErrNoSuchRecord
	}
	off := leafEntryOffset(eid)
	key := int32(binary.LittleEndian.Uint32(ln.buf[off : off+4]))
	pageID := int32(binary.LittleEndian.Uint32(ln.buf[off+4 : off+8]))
	slotID := int32(binary.LittleEndian.Uint32(ln.buf[off+8 : off+12]))
	return key, RID{PageID: pageID, SlotID: slotID}, nil
}

func (ln *LeafNode) setEntry(eid int32, key Key, rid RID) {
	off := leafEntryOffset(eid)
	binary.LittleEndian.PutUint32(ln.buf[off:off+4], uint32(key))
	binary.LittleEndian.PutUint32(ln.buf[off+4:off+8], uint32(rid.PageID))
	binary.LittleEndian.PutUint32(ln.buf[off+8:off+12], uint32(rid.SlotID))
}

// Locate returns the position of the first entry whose key is >=
// searchKey. found is true iff that entry's key equals searchKey
// exactly. If searchKey exceeds every key in the node, it returns
// (keyCount, false).
func (ln *LeafNode) Locate(searchKey Key) (eid int32, found bool) {
	n := ln.KeyCount()
	for i := int32(0); i < n; i++ {
		key, _, _ := ln.Entry(i)
		if key >= searchKey {
			return i, key == searchKey
		}
	}
	return n, false
}

// Insert places (key, rid) in sorted position, failing with ErrNodeFull
// if the leaf is already at capacity. Duplicate keys are permitted and
// land at the lowest equal-key position.
func (ln *LeafNode) Insert(key Key, rid RID) error {
	n := ln.KeyCount()
	if n >= MaxLeafCount {
		return ErrNodeFull
	}
	eid, _ := ln.Locate(key)
	for i := n; i > eid; i-- {
		k, r, _ := ln.Entry(i - 1)
		ln.setEntry(i, k, r)
	}
	ln.setEntry(eid, key, rid)
	ln.setKeyCount(n + 1)
	return nil
}

// InsertAndSplit inserts (key, rid) into a full leaf by first forming the
// full n+1 sorted sequence, then keeping the lower ceil((n+1)/2) entries
// in ln and moving the rest into a newly allocated sibling. It returns
// the sibling and its first key (the copy-up promotion key). The caller
// is responsible for linking nextLeafPid on both nodes.
func (ln *LeafNode) InsertAndSplit(key Key, rid RID) (sibling *LeafNode, siblingFirstKey Key, err error) {
	n := ln.KeyCount()
	if n != MaxLeafCount {
		return nil, 0, errors.New("btree: insertAndSplit called on a leaf that is not full")
	}

	type pair struct {
		key Key
		rid RID
	}
	combined := make([]pair, 0, n+1)
	eid, _ := ln.Locate(key)
	for i := int32(0); i < n; i++ {
		if i == eid {
			combined = append(combined, pair{key, rid})
		}
		k, r, _ := ln.Entry(i)
		combined = append(combined, pair{k, r})
	}
	if eid == n {
		combined = append(combined, pair{key, rid})
	}

	left := (len(combined) + 1) / 2
	sibling = newLeafNode()
	for i, p := range combined {
		if i < left {
			ln.setEntry(int32(i), p.key, p.rid)
		} else {
			sibling.setEntry(int32(i-left), p.key, p.rid)
		}
	}
	ln.setKeyCount(int32(left))
	sibling.setKeyCount(int32(len(combined) - left))

	siblingFirstKey, _, _ = sibling.Entry(0)
	return sibling, siblingFirstKey, nil
}

// NonLeafNode is a typed view over a single page buffer holding a
// leftmost child pointer followed by sorted (key, childPid) entries.
type NonLeafNode struct {
	buf []byte
}

func newNonLeafNode() *NonLeafNode {
	nl := &NonLeafNode{buf: make([]byte, PageSize)}
	nl.setKeyCount(0)
	nl.SetLeftmostChild(-1)
	return nl
}

func readNonLeafNode(buf []byte) *NonLeafNode {
	return &NonLeafNode{buf: buf}
}

func (nl *NonLeafNode) Bytes() []byte {
	return nl.buf
}

func (nl *NonLeafNode) KeyCount() int32 {
	return int32(binary.LittleEndian.Uint32(nl.buf[PageSize-4 : PageSize]))
}

func (nl *NonLeafNode) setKeyCount(n int32) {
	binary.LittleEndian.PutUint32(nl.buf[PageSize-4:PageSize], uint32(n))
}

func (nl *NonLeafNode) LeftmostChild() int32 {
	return int32(binary.LittleEndian.Uint32(nl.buf[0:4]))
}

func (nl *NonLeafNode) SetLeftmostChild(pid int32) {
	binary.LittleEndian.PutUint32(nl.buf[0:4], uint32(pid))
}

func nonLeafEntryOffset(eid int32) int {
	return 4 + int(eid)*nonLeafEntrySize
}

// Entry reads the (key, childPid) pair at eid. Fails with
// ErrNoSuchRecord if eid is outside [0, keyCount).
func (nl *NonLeafNode) Entry(eid int32) (Key, int32, error) {
	if eid < 0 || eid >= nl.KeyCount() {
		return 0, 0, ErrNoSuchRecord
	}
	off := nonLeafEntryOffset(eid)
	key := int32(binary.LittleEndian.Uint32(nl.buf[off : off+4]))
	pid := int32(binary.LittleEndian.Uint32(nl.buf[off+4 : off+8]))
	return key, pid, nil
}

func (nl *NonLeafNode) setEntry(eid int32, key Key, childPid int32) {
	off := nonLeafEntryOffset(eid)
	binary.LittleEndian.PutUint32(nl.buf[off:off+4], uint32(key))
	binary.LittleEndian.PutUint32(nl.buf[off+4:off+8], uint32(childPid))
}

func (nl *NonLeafNode) locatePos(key Key) int32 {
	n := nl.KeyCount()
	for i := int32(0); i < n; i++ {
		k, _, _ := nl.Entry(i)
		if k >= key {
			return i
		}
	}
	return n
}

// LocateChildPtr returns the child pid covering searchKey: the leftmost
// child if searchKey is below every entry's key, otherwise the pid of
// the entry with the largest key <= searchKey.
func (nl *NonLeafNode) LocateChildPtr(searchKey Key) int32 {
	n := nl.KeyCount()
	if n == 0 {
		return nl.LeftmostChild()
	}
	k0, _, _ := nl.Entry(0)
	if searchKey < k0 {
		return nl.LeftmostChild()
	}
	childPid := nl.LeftmostChild()
	for i := int32(0); i < n; i++ {
		k, pid, _ := nl.Entry(i)
		if k > searchKey {
			break
		}
		childPid = pid
	}
	return childPid
}

// Insert places (key, childPid) in sorted position, failing with
// ErrNodeFull if the node is already at capacity.
func (nl *NonLeafNode) Insert(key Key, childPid int32) error {
	n := nl.KeyCount()
	if n >= MaxNonLeafCount {
		return ErrNodeFull
	}
	pos := nl.locatePos(key)
	for i := n; i > pos; i-- {
		k, pid, _ := nl.Entry(i - 1)
		nl.setEntry(i, k, pid)
	}
	nl.setEntry(pos, key, childPid)
	nl.setKeyCount(n + 1)
	return nil
}

// InsertAndSplit inserts (key, childPid) into a full node by forming the
// virtual sequence of n+1 pairs, promoting the median key to the caller
// (move-up, not retained in either child), and handing the median's
// child pointer to the sibling as its new leftmost child.
func (nl *NonLeafNode) InsertAndSplit(key Key, childPid int32) (sibling *NonLeafNode, midKey Key, err error) {
	n := nl.KeyCount()
	if n != MaxNonLeafCount {
		return nil, 0, errors.New("btree: insertAndSplit called on a non-leaf that is not full")
	}

	type pair struct {
		key Key
		pid int32
	}
	combined := make([]pair, 0, n+1)
	pos := nl.locatePos(key)
	for i := int32(0); i < n; i++ {
		if i == pos {
			combined = append(combined, pair{key, childPid})
		}
		k, pid, _ := nl.Entry(i)
		combined = append(combined, pair{k, pid})
	}
	if pos == n {
		combined = append(combined, pair{key, childPid})
	}

	total := len(combined)
	medianIdx := total / 2
	midKey = combined[medianIdx].key

	sibling = newNonLeafNode()
	sibling.SetLeftmostChild(combined[medianIdx].pid)

	for i := 0; i < medianIdx; i++ {
		nl.setEntry(int32(i), combined[i].key, combined[i].pid)
	}
	nl.setKeyCount(int32(medianIdx))

	k := int32(0)
	for i := medianIdx + 1; i < total; i++ {
		sibling.setEntry(k, combined[i].key, combined[i].pid)
		k++
	}
	sibling.setKeyCount(k)

	return sibling, midKey, nil
}

// InitializeRoot writes a fresh two-child root: leftPid at the leftmost
// pointer, a single entry (key, rightPid) after it. Used both for the
// first two-level root and for re-rooting after any subsequent split.
func (nl *NonLeafNode) InitializeRoot(leftPid int32, key Key, rightPid int32) {
	nl.SetLeftmostChild(leftPid)
	nl.setEntry(0, key, rightPid)
	nl.setKeyCount(1)
}
