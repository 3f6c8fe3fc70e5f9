package btree

import "github.com/pkg/errors"

// Node-level errors are expected conditions used as control flow by the
// tree layer. ErrNodeFull never surfaces past it; ErrNoSuchRecord is also
// returned by Index.Locate when there is no exact match.
var (
	ErrNodeFull     = errors.New("btree: node full")
	ErrNoSuchRecord = errors.New("btree: no such record")
)

// ErrEndOfTree terminates a forward scan.
var ErrEndOfTree = errors.New("btree: end of tree")
