package pagefile

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestOpenCreatesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.db")
	pf, err := Open(path, ReadWrite)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pf.Close()

	if pf.EndPid() != 0 {
		t.Fatalf("EndPid = %d, want 0", pf.EndPid())
	}
}

func TestWriteGrowsFileAndReadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.db")
	pf, err := Open(path, ReadWrite)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pf.Close()

	buf := bytes.Repeat([]byte{0xAB}, PageSize)
	if err := pf.Write(2, buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if pf.EndPid() != 3 {
		t.Fatalf("EndPid = %d, want 3", pf.EndPid())
	}

	got := make([]byte, PageSize)
	if err := pf.Read(2, got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, buf) {
		t.Fatalf("read page does not match written page")
	}

	zero := make([]byte, PageSize)
	if err := pf.Read(0, zero); err != nil {
		t.Fatalf("Read(0): %v", err)
	}
	if !bytes.Equal(zero, make([]byte, PageSize)) {
		t.Fatalf("implicitly allocated page 0 is not zeroed")
	}
}

func TestReadOutOfRangeFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.db")
	pf, err := Open(path, ReadWrite)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pf.Close()

	buf := make([]byte, PageSize)
	if err := pf.Read(0, buf); err == nil {
		t.Fatalf("Read on empty file: want error, got nil")
	}
}

func TestCloseAndReopenPersistsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.db")
	pf, err := Open(path, ReadWrite)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	buf := bytes.Repeat([]byte{0x7F}, PageSize)
	if err := pf.Write(0, buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := pf.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	pf2, err := Open(path, ReadOnly)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer pf2.Close()

	got := make([]byte, PageSize)
	if err := pf2.Read(0, got); err != nil {
		t.Fatalf("Read after reopen: %v", err)
	}
	if !bytes.Equal(got, buf) {
		t.Fatalf("data did not survive close/reopen")
	}
}

func TestWriteFailsInReadOnlyMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.db")
	pf, err := Open(path, ReadWrite)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	buf := make([]byte, PageSize)
	if err := pf.Write(0, buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := pf.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	pf2, err := Open(path, ReadOnly)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer pf2.Close()

	if err := pf2.Write(0, buf); err == nil {
		t.Fatalf("Write in read-only mode: want error, got nil")
	}
}
