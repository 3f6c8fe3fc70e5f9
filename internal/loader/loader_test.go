package loader

import (
	"path/filepath"
	"strings"
	"testing"

	"minirel/internal/index/btree"
	"minirel/internal/storage/heap"
	"minirel/internal/storage/pagefile"
)

func TestParseLineBareword(t *testing.T) {
	key, value, err := ParseLine("  12, hello world")
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if key != 12 || value != "hello world" {
		t.Fatalf("got (%d, %q), want (12, \"hello world\")", key, value)
	}
}

func TestParseLineQuoted(t *testing.T) {
	key, value, err := ParseLine(`42, 'quoted value', trailing`)
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if key != 42 || value != "quoted value" {
		t.Fatalf("got (%d, %q), want (42, \"quoted value\")", key, value)
	}
}

func TestParseLineDoubleQuoted(t *testing.T) {
	key, value, err := ParseLine(`7,"abc"`)
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if key != 7 || value != "abc" {
		t.Fatalf("got (%d, %q), want (7, \"abc\")", key, value)
	}
}

func TestParseLineMissingCommaIsInvalid(t *testing.T) {
	_, _, err := ParseLine("12 no_comma_here")
	if err != ErrInvalidFileFormat {
		t.Fatalf("got %v, want ErrInvalidFileFormat", err)
	}
}

func TestParseLineEmptyValue(t *testing.T) {
	key, value, err := ParseLine("5,")
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if key != 5 || value != "" {
		t.Fatalf("got (%d, %q), want (5, \"\")", key, value)
	}
}

func TestLoadAppendsAndIndexes(t *testing.T) {
	dir := t.TempDir()
	tbl, err := heap.Open(filepath.Join(dir, "t.tbl"), pagefile.ReadWrite)
	if err != nil {
		t.Fatalf("heap.Open: %v", err)
	}
	defer tbl.Close()
	idx, err := btree.Open(filepath.Join(dir, "t.idx"), pagefile.ReadWrite)
	if err != nil {
		t.Fatalf("btree.Open: %v", err)
	}
	defer idx.Close()

	input := "1, one\n2, two\n3, three\n"
	if err := Load(strings.NewReader(input), tbl, idx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	cur, err := idx.Locate(1)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	for _, want := range []string{"one", "two", "three"} {
		_, rid, err := idx.ReadForward(&cur)
		if err != nil {
			t.Fatalf("ReadForward: %v", err)
		}
		_, value, err := tbl.Read(rid)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if value != want {
			t.Fatalf("got %q, want %q", value, want)
		}
	}
}

func TestLoadAbortsOnMalformedLine(t *testing.T) {
	dir := t.TempDir()
	tbl, err := heap.Open(filepath.Join(dir, "t.tbl"), pagefile.ReadWrite)
	if err != nil {
		t.Fatalf("heap.Open: %v", err)
	}
	defer tbl.Close()

	err = Load(strings.NewReader("12 no_comma_here\n"), tbl, nil)
	if err == nil {
		t.Fatalf("Load: want error, got nil")
	}
}
