package btree

import "minirel/internal/storage/recordid"

// Key is the signed 32-bit integer type indexed by the tree.
type Key = int32

// RID is the record identifier stored alongside each key in a leaf. The
// tree treats it as an opaque fixed-size value.
type RID = recordid.RID

// Cursor is a transient position within the tree: the leaf page holding
// the entry and the entry's index within that leaf. It is a plain value;
// callers may copy, discard, or hold onto one freely between calls.
type Cursor struct {
	Pid int32
	Eid int32
}
