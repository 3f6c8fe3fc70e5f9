// Command minirel is a minimal interactive shell over the storage
// engine: load tables from flat files and run simple selection queries
// against them, using the B+Tree index when one is available and the
// query's projection or key predicates let the planner use it.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"minirel/internal/index/btree"
	"minirel/internal/loader"
	"minirel/internal/planner"
	"minirel/internal/query"
	"minirel/internal/storage/heap"
	"minirel/internal/storage/pagefile"
)

func main() {
	dataDir := flag.String("data", "./data", "directory holding <table>.tbl and <table>.idx files")
	flag.Parse()

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot create data directory %s: %v\n", *dataDir, err)
		os.Exit(1)
	}

	fmt.Println("minirel> type '.help' for commands")
	runREPL(*dataDir, os.Stdin, os.Stdout)
}

func runREPL(dataDir string, in io.Reader, out io.Writer) {
	ex := planner.NewExecutor(dataDir)
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "minirel> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == ".exit" || line == ".quit":
			return
		case line == ".help":
			printHelp(out)
		case strings.HasPrefix(line, ".load "):
			handleLoad(dataDir, strings.TrimPrefix(line, ".load "), out)
		default:
			handleSelect(ex, line, out)
		}
	}
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "  .load <table> <file> [index]   bulk-load <file> into <table>, optionally building an index")
	fmt.Fprintln(out, "  select <key|value|*|count(*)> from <table> [where <cond> [and <cond> ...]]")
	fmt.Fprintln(out, "    <cond> := key|value <op> <literal>, op in = <> < <= > >=")
	fmt.Fprintln(out, "  .exit")
}

func handleLoad(dataDir, rest string, out io.Writer) {
	fields := strings.Fields(rest)
	if len(fields) < 2 {
		fmt.Fprintln(out, "Usage: .load <table> <file> [index]")
		return
	}
	table, path := fields[0], fields[1]
	withIndex := len(fields) >= 3 && strings.EqualFold(fields[2], "index")

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(out, "Error: failed to open file, %s\n", path)
		return
	}
	defer f.Close()

	tbl, err := heap.Open(filepath.Join(dataDir, table+".tbl"), pagefile.ReadWrite)
	if err != nil {
		fmt.Fprintf(out, "Error: table %s does not exist\n", table)
		return
	}
	defer tbl.Close()

	var idx *btree.Index
	if withIndex {
		idx, err = btree.Open(filepath.Join(dataDir, table+".idx"), pagefile.ReadWrite)
		if err != nil {
			fmt.Fprintln(out, "Error:", err)
			return
		}
		defer idx.Close()
	}

	if err := loader.Load(f, tbl, idx); err != nil {
		fmt.Fprintln(out, "Error:", err)
		return
	}
	fmt.Fprintln(out, "OK")
}

func handleSelect(ex *planner.Executor, line string, out io.Writer) {
	sel, err := parseSelect(line)
	if err != nil {
		fmt.Fprintln(out, "Parse error:", err)
		return
	}
	if err := ex.Run(sel, func(row string) { fmt.Fprintln(out, row) }); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(out, "Error: table %s does not exist\n", sel.Table)
			return
		}
		fmt.Fprintln(out, "Error:", err)
	}
}

// parseSelect recognizes the single shape:
//
//	select <projection> from <table> [where <cond> [and <cond>]*]
//
// This is deliberately minimal glue, not a general SQL grammar.
func parseSelect(line string) (query.Select, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 || !strings.EqualFold(fields[0], "select") || !strings.EqualFold(fields[2], "from") {
		return query.Select{}, fmt.Errorf("expected: select <projection> from <table> [where ...]")
	}

	proj, err := parseProjection(fields[1])
	if err != nil {
		return query.Select{}, err
	}
	if len(fields) < 4 {
		return query.Select{}, fmt.Errorf("missing table name")
	}
	table := fields[3]

	sel := query.Select{Table: table, Projection: proj}
	if len(fields) == 4 {
		return sel, nil
	}
	if !strings.EqualFold(fields[4], "where") {
		return query.Select{}, fmt.Errorf("expected 'where', got %q", fields[4])
	}

	rest := strings.Join(fields[5:], " ")
	for _, clause := range splitAnd(rest) {
		pred, err := parsePredicate(clause)
		if err != nil {
			return query.Select{}, err
		}
		sel.Predicates = append(sel.Predicates, pred)
	}
	return sel, nil
}

func parseProjection(s string) (query.Projection, error) {
	switch strings.ToLower(s) {
	case "key":
		return query.ProjKey, nil
	case "value":
		return query.ProjValue, nil
	case "*":
		return query.ProjStar, nil
	case "count(*)":
		return query.ProjCount, nil
	default:
		return 0, fmt.Errorf("unknown projection %q", s)
	}
}

func splitAnd(s string) []string {
	parts := strings.Split(s, " and ")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

var comparators = []struct {
	text string
	comp query.Comp
}{
	{"<>", query.NE},
	{"<=", query.LE},
	{">=", query.GE},
	{"=", query.EQ},
	{"<", query.LT},
	{">", query.GT},
}

func parsePredicate(clause string) (query.Predicate, error) {
	clause = strings.TrimSpace(clause)
	for _, c := range comparators {
		idx := strings.Index(clause, c.text)
		if idx < 0 {
			continue
		}
		attrPart := strings.TrimSpace(clause[:idx])
		litPart := strings.TrimSpace(clause[idx+len(c.text):])

		var attr query.Attr
		switch strings.ToLower(attrPart) {
		case "key":
			attr = query.AttrKey
		case "value":
			attr = query.AttrValue
		default:
			return query.Predicate{}, fmt.Errorf("unknown attribute %q", attrPart)
		}

		pred := query.Predicate{Attr: attr, Comp: c.comp}
		if attr == query.AttrKey {
			n, err := strconv.ParseInt(litPart, 10, 32)
			if err != nil {
				return query.Predicate{}, fmt.Errorf("bad integer literal %q", litPart)
			}
			pred.KeyLit = int32(n)
		} else {
			pred.ValLit = strings.Trim(litPart, `'"`)
		}
		return pred, nil
	}
	return query.Predicate{}, fmt.Errorf("no comparator found in %q", clause)
}
