package btree

import "testing"

func TestLeafNodeInsertAndLocate(t *testing.T) {
	ln := newLeafNode()
	if ln.KeyCount() != 0 {
		t.Fatalf("fresh leaf keyCount = %d, want 0", ln.KeyCount())
	}
	if ln.NextLeafPid() != -1 {
		t.Fatalf("fresh leaf nextLeafPid = %d, want -1", ln.NextLeafPid())
	}

	entries := []struct {
		key Key
		rid RID
	}{
		{50, RID{PageID: 1, SlotID: 1}},
		{10, RID{PageID: 1, SlotID: 2}},
		{30, RID{PageID: 1, SlotID: 3}},
	}
	for _, e := range entries {
		if err := ln.Insert(e.key, e.rid); err != nil {
			t.Fatalf("Insert(%d): %v", e.key, err)
		}
	}

	wantOrder := []Key{10, 30, 50}
	for i, want := range wantOrder {
		key, _, err := ln.Entry(int32(i))
		if err != nil {
			t.Fatalf("Entry(%d): %v", i, err)
		}
		if key != want {
			t.Fatalf("Entry(%d) = %d, want %d", i, key, want)
		}
	}

	eid, found := ln.Locate(30)
	if !found || eid != 1 {
		t.Fatalf("Locate(30) = (%d, %v), want (1, true)", eid, found)
	}
	eid, found = ln.Locate(25)
	if found || eid != 1 {
		t.Fatalf("Locate(25) = (%d, %v), want (1, false)", eid, found)
	}
	eid, found = ln.Locate(100)
	if found || eid != 3 {
		t.Fatalf("Locate(100) = (%d, %v), want (3, false)", eid, found)
	}
}

func TestLeafNodeInsertFailsWhenFull(t *testing.T) {
	ln := newLeafNode()
	for k := int32(0); k < MaxLeafCount; k++ {
		if err := ln.Insert(k, RID{PageID: k}); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	if err := ln.Insert(MaxLeafCount, RID{}); err != ErrNodeFull {
		t.Fatalf("Insert on full leaf: got %v, want ErrNodeFull", err)
	}
}

func TestLeafNodeInsertAndSplit(t *testing.T) {
	ln := newLeafNode()
	for k := int32(0); k < MaxLeafCount; k++ {
		if err := ln.Insert(k, RID{PageID: k}); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	sibling, sibFirst, err := ln.InsertAndSplit(MaxLeafCount, RID{PageID: MaxLeafCount})
	if err != nil {
		t.Fatalf("InsertAndSplit: %v", err)
	}

	total := ln.KeyCount() + sibling.KeyCount()
	if total != MaxLeafCount+1 {
		t.Fatalf("total entries after split = %d, want %d", total, MaxLeafCount+1)
	}
	wantLeft := (MaxLeafCount + 1 + 1) / 2
	if ln.KeyCount() != int32(wantLeft) {
		t.Fatalf("left keyCount = %d, want %d", ln.KeyCount(), wantLeft)
	}

	firstSibKey, _, err := sibling.Entry(0)
	if err != nil {
		t.Fatalf("sibling.Entry(0): %v", err)
	}
	if firstSibKey != sibFirst {
		t.Fatalf("returned sibling first key %d != sibling.Entry(0) %d", sibFirst, firstSibKey)
	}

	lastLeftKey, _, _ := ln.Entry(ln.KeyCount() - 1)
	if lastLeftKey >= firstSibKey {
		t.Fatalf("left's last key %d not < sibling's first key %d", lastLeftKey, firstSibKey)
	}
}

func TestNonLeafLocateChildPtr(t *testing.T) {
	nl := newNonLeafNode()
	nl.SetLeftmostChild(100)
	if err := nl.Insert(10, 101); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := nl.Insert(20, 102); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	cases := []struct {
		key  Key
		want int32
	}{
		{5, 100},
		{10, 101},
		{15, 101},
		{20, 102},
		{25, 102},
	}
	for _, c := range cases {
		if got := nl.LocateChildPtr(c.key); got != c.want {
			t.Fatalf("LocateChildPtr(%d) = %d, want %d", c.key, got, c.want)
		}
	}
}

func TestNonLeafInsertAndSplitPromotesMedian(t *testing.T) {
	nl := newNonLeafNode()
	nl.SetLeftmostChild(0)
	for k := int32(1); k <= MaxNonLeafCount; k++ {
		if err := nl.Insert(k*10, k); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	newKey := Key(int32(MaxNonLeafCount+1) * 10)
	sibling, midKey, err := nl.InsertAndSplit(newKey, int32(MaxNonLeafCount+1))
	if err != nil {
		t.Fatalf("InsertAndSplit: %v", err)
	}

	for i := int32(0); i < nl.KeyCount(); i++ {
		k, _, _ := nl.Entry(i)
		if k == midKey {
			t.Fatalf("median key %d retained in left node", midKey)
		}
	}
	for i := int32(0); i < sibling.KeyCount(); i++ {
		k, _, _ := sibling.Entry(i)
		if k == midKey {
			t.Fatalf("median key %d retained in sibling", midKey)
		}
	}

	total := nl.KeyCount() + 1 + sibling.KeyCount()
	if total != MaxNonLeafCount+1 {
		t.Fatalf("total entries + median = %d, want %d", total, MaxNonLeafCount+1)
	}
}

func TestNonLeafInitializeRoot(t *testing.T) {
	nl := newNonLeafNode()
	nl.InitializeRoot(7, 50, 8)
	if nl.LeftmostChild() != 7 {
		t.Fatalf("LeftmostChild = %d, want 7", nl.LeftmostChild())
	}
	if nl.KeyCount() != 1 {
		t.Fatalf("KeyCount = %d, want 1", nl.KeyCount())
	}
	key, pid, err := nl.Entry(0)
	if err != nil {
		t.Fatalf("Entry(0): %v", err)
	}
	if key != 50 || pid != 8 {
		t.Fatalf("Entry(0) = (%d, %d), want (50, 8)", key, pid)
	}
}
