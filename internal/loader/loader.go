// Package loader bulk-loads a table from a CSV-like text file: one
// record per line, "<integer-key>, <value>" with an optional quoted
// value.
package loader

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"minirel/internal/index/btree"
	"minirel/internal/storage/heap"
)

// ErrInvalidFileFormat is returned for a line missing the mandatory
// comma separator between key and value.
var ErrInvalidFileFormat = errors.New("loader: invalid file format")

// ParseLine splits one input line into its integer key and string
// value. Leading whitespace before the key is skipped. The key is
// parsed with a leading-prefix integer scan, mirroring atoi: trailing
// non-digit characters after the number are ignored. A comma is
// mandatory; its absence is ErrInvalidFileFormat. Whitespace after the
// comma is skipped; the value may be wrapped in matching ' or " quotes,
// otherwise it runs to end of line.
func ParseLine(line string) (key int32, value string, err error) {
	i := 0
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}

	key, _ = parseIntPrefix(line[i:])

	commaIdx := strings.IndexByte(line[i:], ',')
	if commaIdx < 0 {
		return key, "", ErrInvalidFileFormat
	}

	j := i + commaIdx + 1
	for j < len(line) && (line[j] == ' ' || line[j] == '\t') {
		j++
	}
	if j >= len(line) {
		return key, "", nil
	}

	quote := line[j]
	if quote == '\'' || quote == '"' {
		j++
		rest := line[j:]
		if end := strings.IndexByte(rest, quote); end >= 0 {
			return key, rest[:end], nil
		}
		return key, rest, nil
	}
	return key, line[j:], nil
}

// parseIntPrefix reads the longest leading run of an optional sign
// followed by digits, returning the parsed value and the number of
// bytes consumed. A string with no leading digits parses as 0.
func parseIntPrefix(s string) (int32, int) {
	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		i++
	}
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start {
		return 0, 0
	}
	n, _ := strconv.ParseInt(s[:i], 10, 32)
	return int32(n), i
}

// Load reads newline-delimited records from r and appends each into the
// heap file tbl, also inserting into idx when non-nil. It stops and
// returns an error (with no partial record written) on the first
// malformed line.
func Load(r io.Reader, tbl *heap.File, idx *btree.Index) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, err := ParseLine(scanner.Text())
		if err != nil {
			return errors.Wrapf(err, "key: %d value: %s", key, value)
		}
		rid, err := tbl.Append(key, value)
		if err != nil {
			return errors.Wrapf(err, "append key: %d value: %s", key, value)
		}
		if idx != nil {
			if err := idx.Insert(key, rid); err != nil {
				return errors.Wrapf(err, "insert key: %d", key)
			}
		}
	}
	return scanner.Err()
}
