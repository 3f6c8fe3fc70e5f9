// Package recordid defines the record identifier shared by the heap file
// and the B+Tree index. It is treated as an opaque fixed-size value by the
// index: two int32 fields and nothing else.
package recordid

// RID addresses a single record inside the heap file: the page that holds
// it and the slot within that page.
type RID struct {
	PageID int32
	SlotID int32
}
