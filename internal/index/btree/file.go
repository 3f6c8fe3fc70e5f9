package btree

import (
	"encoding/binary"

	goerrors "errors"

	"minirel/internal/storage/pagefile"
)

// Index is a disk-backed B+Tree over Key -> RID mappings. It owns one
// paged file and keeps the tree root and height in memory between open
// and close; both are only persisted to the reserved metadata page (pid
// 0) on Close.
type Index struct {
	pf         *pagefile.File
	rootPid    int32
	treeHeight int32
}

// Open opens the index file at name. If the file is new, it is
// initialized with an empty leaf root at pid 1 and treeHeight 1;
// otherwise rootPid and treeHeight are read back from pid 0.
func Open(name string, mode pagefile.Mode) (*Index, error) {
	pf, err := pagefile.Open(name, mode)
	if err != nil {
		return nil, err
	}
	idx := &Index{pf: pf}

	if pf.EndPid() == 0 {
		leaf := newLeafNode()
		if err := idx.writeLeaf(1, leaf); err != nil {
			_ = pf.Close()
			return nil, err
		}
		idx.rootPid = 1
		idx.treeHeight = 1
		return idx, nil
	}

	buf := make([]byte, pagefile.PageSize)
	if err := pf.Read(0, buf); err != nil {
		_ = pf.Close()
		return nil, err
	}
	idx.rootPid = int32(binary.LittleEndian.Uint32(buf[0:4]))
	idx.treeHeight = int32(binary.LittleEndian.Uint32(buf[4:8]))
	return idx, nil
}

// Close writes rootPid and treeHeight into pid 0 and closes the
// underlying paged file.
func (idx *Index) Close() error {
	buf := make([]byte, pagefile.PageSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(idx.rootPid))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(idx.treeHeight))
	if err := idx.pf.Write(0, buf); err != nil {
		_ = idx.pf.Close()
		return err
	}
	return idx.pf.Close()
}

func (idx *Index) readLeaf(pid int32) (*LeafNode, error) {
	buf := make([]byte, pagefile.PageSize)
	if err := idx.pf.Read(pid, buf); err != nil {
		return nil, err
	}
	return readLeafNode(buf), nil
}

func (idx *Index) writeLeaf(pid int32, ln *LeafNode) error {
	return idx.pf.Write(pid, ln.Bytes())
}

func (idx *Index) readNonLeaf(pid int32) (*NonLeafNode, error) {
	buf := make([]byte, pagefile.PageSize)
	if err := idx.pf.Read(pid, buf); err != nil {
		return nil, err
	}
	return readNonLeafNode(buf), nil
}

func (idx *Index) writeNonLeaf(pid int32, nl *NonLeafNode) error {
	return idx.pf.Write(pid, nl.Bytes())
}

// Insert adds (key, rid) to the tree. Descent records the path of
// non-leaf pages visited so that a split can propagate promotions back
// up without recursion; if a promotion reaches past the root, a new
// root is allocated and treeHeight grows by one.
func (idx *Index) Insert(key Key, rid RID) error {
	var path []int32
	pid := idx.rootPid
	for h := int32(0); h < idx.treeHeight-1; h++ {
		path = append(path, pid)
		nl, err := idx.readNonLeaf(pid)
		if err != nil {
			return err
		}
		pid = nl.LocateChildPtr(key)
	}

	leaf, err := idx.readLeaf(pid)
	if err != nil {
		return err
	}

	promoted := false
	var promotedKey Key
	var promotedPid int32

	if err := leaf.Insert(key, rid); err != nil {
		if !goerrors.Is(err, ErrNodeFull) {
			return err
		}
		sibling, sibKey, serr := leaf.InsertAndSplit(key, rid)
		if serr != nil {
			return serr
		}
		sibPid := idx.pf.EndPid()
		sibling.SetNextLeafPid(leaf.NextLeafPid())
		leaf.SetNextLeafPid(sibPid)
		if err := idx.writeLeaf(sibPid, sibling); err != nil {
			return err
		}
		promoted = true
		promotedKey = sibKey
		promotedPid = sibPid
	}
	if err := idx.writeLeaf(pid, leaf); err != nil {
		return err
	}

	for i := len(path) - 1; i >= 0 && promoted; i-- {
		parentPid := path[i]
		nl, err := idx.readNonLeaf(parentPid)
		if err != nil {
			return err
		}

		if err := nl.Insert(promotedKey, promotedPid); err != nil {
			if !goerrors.Is(err, ErrNodeFull) {
				return err
			}
			sibling, midKey, serr := nl.InsertAndSplit(promotedKey, promotedPid)
			if serr != nil {
				return serr
			}
			sibPid := idx.pf.EndPid()
			if err := idx.writeNonLeaf(sibPid, sibling); err != nil {
				return err
			}
			promotedKey = midKey
			promotedPid = sibPid
		} else {
			promoted = false
		}

		if err := idx.writeNonLeaf(parentPid, nl); err != nil {
			return err
		}
	}

	if promoted {
		newRoot := newNonLeafNode()
		newRoot.InitializeRoot(idx.rootPid, promotedKey, promotedPid)
		newRootPid := idx.pf.EndPid()
		if err := idx.writeNonLeaf(newRootPid, newRoot); err != nil {
			return err
		}
		idx.rootPid = newRootPid
		idx.treeHeight++
	}

	return nil
}

// Locate descends to the leaf where searchKey belongs and returns a
// cursor positioned at the matching entry, or at the first entry with a
// larger key if there is no exact match. The returned error is
// ErrNoSuchRecord in the latter case; any other error is a paged-file
// failure.
func (idx *Index) Locate(searchKey Key) (Cursor, error) {
	pid := idx.rootPid
	for h := int32(0); h < idx.treeHeight-1; h++ {
		nl, err := idx.readNonLeaf(pid)
		if err != nil {
			return Cursor{}, err
		}
		pid = nl.LocateChildPtr(searchKey)
	}

	leaf, err := idx.readLeaf(pid)
	if err != nil {
		return Cursor{}, err
	}
	eid, found := leaf.Locate(searchKey)
	cur := Cursor{Pid: pid, Eid: eid}
	if found {
		return cur, nil
	}
	return cur, ErrNoSuchRecord
}

// ReadForward reads the entry at cur and advances cur to the next
// position, following nextLeafPid across leaf boundaries as needed. It
// returns ErrEndOfTree once there are no more entries.
func (idx *Index) ReadForward(cur *Cursor) (Key, RID, error) {
	for {
		leaf, err := idx.readLeaf(cur.Pid)
		if err != nil {
			return 0, RID{}, err
		}
		if cur.Eid < leaf.KeyCount() {
			key, rid, err := leaf.Entry(cur.Eid)
			if err != nil {
				return 0, RID{}, err
			}
			cur.Eid++
			return key, rid, nil
		}
		next := leaf.NextLeafPid()
		if next == -1 {
			return 0, RID{}, ErrEndOfTree
		}
		cur.Pid = next
		cur.Eid = 0
	}
}
