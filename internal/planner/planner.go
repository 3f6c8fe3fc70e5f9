// Package planner decides, for a single selection query, whether to
// drive the scan through a table's B+Tree index or fall back to a full
// heap scan, then executes whichever plan it chose.
package planner

import (
	"fmt"
	"math"
	"path/filepath"

	goerrors "errors"

	"minirel/internal/index/btree"
	"minirel/internal/query"
	"minirel/internal/storage/heap"
	"minirel/internal/storage/pagefile"
)

// Executor runs selection queries against tables rooted at a single
// data directory, where table "t" lives at "t.tbl" (heap.File) with an
// optional "t.idx" (btree.Index) secondary index on the key column.
type Executor struct {
	dataDir string
}

// NewExecutor returns an Executor rooted at dataDir.
func NewExecutor(dataDir string) *Executor {
	return &Executor{dataDir: dataDir}
}

func (e *Executor) tablePath(table, ext string) string {
	return filepath.Join(e.dataDir, table+"."+ext)
}

// plan is the outcome of the planning rules in §4.4: either a full heap
// scan, or an index-driven scan starting from seekKey.
type plan struct {
	useIndex bool
	seekKey  int32
	eqOnly   bool
}

// Run executes sel, calling emit once per output line (one per matching
// row, plus a trailing count(*) line when the projection demands one).
func (e *Executor) Run(sel query.Select, emit func(string)) error {
	hf, err := heap.Open(e.tablePath(sel.Table, "tbl"), pagefile.ReadOnly)
	if err != nil {
		return err
	}
	defer hf.Close()

	idx, idxErr := btree.Open(e.tablePath(sel.Table, "idx"), pagefile.ReadOnly)
	indexAvailable := idxErr == nil
	if indexAvailable {
		defer idx.Close()
	}

	pl := choosePlan(sel, indexAvailable)
	if pl.useIndex {
		return e.scanWithIndex(idx, hf, sel, pl, emit)
	}
	return e.scanHeap(hf, sel, emit)
}

// choosePlan applies the planning rules in order: no index means a full
// scan; count(*) always rides an available index; otherwise a key
// predicate with EQ/LT/LE/GT/GE is required to justify the index, and
// the tightest lower seek key is computed from GT/GE literals, or from
// an EQ literal when one is present.
func choosePlan(sel query.Select, indexAvailable bool) plan {
	if !indexAvailable {
		return plan{}
	}
	if sel.Projection == query.ProjCount {
		return plan{useIndex: true, seekKey: tightestLowerSeekKey(sel.Predicates), eqOnly: hasKeyEQ(sel.Predicates)}
	}
	if !keyPredicateEnablesIndex(sel.Predicates) {
		return plan{}
	}
	return plan{
		useIndex: true,
		seekKey:  tightestLowerSeekKey(sel.Predicates),
		eqOnly:   hasKeyEQ(sel.Predicates),
	}
}

func keyPredicateEnablesIndex(preds []query.Predicate) bool {
	for _, p := range preds {
		if p.Attr != query.AttrKey {
			continue
		}
		switch p.Comp {
		case query.EQ, query.LT, query.LE, query.GT, query.GE:
			return true
		}
	}
	return false
}

func hasKeyEQ(preds []query.Predicate) bool {
	for _, p := range preds {
		if p.Attr == query.AttrKey && p.Comp == query.EQ {
			return true
		}
	}
	return false
}

func tightestLowerSeekKey(preds []query.Predicate) int32 {
	seek := int32(math.MinInt32)
	for _, p := range preds {
		if p.Attr != query.AttrKey {
			continue
		}
		if (p.Comp == query.GT || p.Comp == query.GE) && p.KeyLit > seek {
			seek = p.KeyLit
		}
	}
	for _, p := range preds {
		if p.Attr == query.AttrKey && p.Comp == query.EQ {
			return p.KeyLit
		}
	}
	return seek
}

// scanWithIndex drives the scan from Locate(seekKey) forward through
// ReadForward, stopping as soon as a key predicate proves no further
// entry can match (§4.4's early-termination optimization).
func (e *Executor) scanWithIndex(idx *btree.Index, hf *heap.File, sel query.Select, pl plan, emit func(string)) error {
	cur, lerr := idx.Locate(pl.seekKey)
	if lerr != nil && !goerrors.Is(lerr, btree.ErrNoSuchRecord) {
		return lerr
	}
	notFound := goerrors.Is(lerr, btree.ErrNoSuchRecord)
	if pl.eqOnly && notFound {
		if sel.Projection == query.ProjCount {
			emit("0")
		}
		return nil
	}

	var count int64
	for {
		key, rid, rerr := idx.ReadForward(&cur)
		if goerrors.Is(rerr, btree.ErrEndOfTree) {
			break
		}
		if rerr != nil {
			return rerr
		}

		stop, matched := evalKeyPredicates(sel.Predicates, key)
		if stop {
			break
		}
		if !matched {
			continue
		}

		if sel.Projection == query.ProjCount {
			count++
			continue
		}

		_, value, err := hf.Read(rid)
		if err != nil {
			return err
		}
		if !matchesValuePredicates(sel.Predicates, value) {
			continue
		}
		emit(formatRow(sel.Projection, key, value))
	}

	if sel.Projection == query.ProjCount {
		emit(fmt.Sprintf("%d", count))
	}
	return nil
}

// scanHeap iterates every record in the table, evaluating every
// predicate on every row; there is no sort order to exploit for early
// termination outside the index.
func (e *Executor) scanHeap(hf *heap.File, sel query.Select, emit func(string)) error {
	var count int64
	iterErr := hf.Iterate(func(rid heap.RID, key int32, value string) bool {
		if !matchesAll(sel.Predicates, key, value) {
			return true
		}
		if sel.Projection == query.ProjCount {
			count++
			return true
		}
		emit(formatRow(sel.Projection, key, value))
		return true
	})
	if iterErr != nil {
		return iterErr
	}
	if sel.Projection == query.ProjCount {
		emit(fmt.Sprintf("%d", count))
	}
	return nil
}

// evalKeyPredicates checks only the key-column predicates against key.
// stop is true when a failing EQ/LT/LE predicate proves every
// subsequent ascending-order entry will also fail.
func evalKeyPredicates(preds []query.Predicate, key int32) (stop, matched bool) {
	matched = true
	for _, p := range preds {
		if p.Attr != query.AttrKey {
			continue
		}
		if compareInt(key, p.Comp, p.KeyLit) {
			continue
		}
		matched = false
		switch p.Comp {
		case query.EQ, query.LT, query.LE:
			return true, false
		}
	}
	return false, matched
}

func matchesValuePredicates(preds []query.Predicate, value string) bool {
	for _, p := range preds {
		if p.Attr != query.AttrValue {
			continue
		}
		if !compareString(value, p.Comp, p.ValLit) {
			return false
		}
	}
	return true
}

func matchesAll(preds []query.Predicate, key int32, value string) bool {
	for _, p := range preds {
		switch p.Attr {
		case query.AttrKey:
			if !compareInt(key, p.Comp, p.KeyLit) {
				return false
			}
		case query.AttrValue:
			if !compareString(value, p.Comp, p.ValLit) {
				return false
			}
		}
	}
	return true
}

func compareInt(a int32, comp query.Comp, b int32) bool {
	switch comp {
	case query.EQ:
		return a == b
	case query.NE:
		return a != b
	case query.LT:
		return a < b
	case query.LE:
		return a <= b
	case query.GT:
		return a > b
	case query.GE:
		return a >= b
	default:
		return false
	}
}

func compareString(a string, comp query.Comp, b string) bool {
	switch comp {
	case query.EQ:
		return a == b
	case query.NE:
		return a != b
	case query.LT:
		return a < b
	case query.LE:
		return a <= b
	case query.GT:
		return a > b
	case query.GE:
		return a >= b
	default:
		return false
	}
}

func formatRow(proj query.Projection, key int32, value string) string {
	switch proj {
	case query.ProjKey:
		return fmt.Sprintf("%d", key)
	case query.ProjValue:
		return value
	case query.ProjStar:
		return fmt.Sprintf("%d %s", key, value)
	default:
		return ""
	}
}
