// Package lake implements a minimal transactional table store for the
// medallion layers: partitioned NDJSON part files made visible through an
// append-only, versioned transaction log. Readers resolve table contents
// exclusively from the log, so a commit is observed either entirely or not
// at all.
package lake

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Row is a single table row. Partition column values must be strings.
type Row = map[string]any

// Mode selects the commit semantics for a write.
type Mode string

const (
	// ModeAppend adds files without touching existing ones.
	ModeAppend Mode = "append"

	// ModeOverwritePartition replaces only the partitions present in the
	// incoming row set.
	ModeOverwritePartition Mode = "overwrite-partition"

	// ModeOverwriteTable replaces the entire table contents.
	ModeOverwriteTable Mode = "overwrite-table"
)

// ErrConflict is returned when another writer committed the same log version
// first. The commit is not applied.
var ErrConflict = eris.New("lake: commit version conflict")

// Table is a handle to one table directory. The directory layout is
// <root>/<partition segments>/part-<uuid>.ndjson plus a _txn_log/ directory.
type Table struct {
	root string
}

// Open opens (creating if necessary) the table rooted at dir.
func Open(dir string) (*Table, error) {
	if err := os.MkdirAll(filepath.Join(dir, logDirName), 0o755); err != nil {
		return nil, eris.Wrapf(err, "lake: create table %s", dir)
	}
	return &Table{root: dir}, nil
}

// Root returns the table's root directory.
func (t *Table) Root() string {
	return t.root
}

// TablePath composes the canonical table location for a layer and entity:
// <lakeRoot>/<layer>/<system>/<entity>.
func TablePath(lakeRoot, layer, system, entity string) string {
	return filepath.Join(lakeRoot, layer, system, entity)
}

// partitionDir returns the relative directory-encoded partition path for a
// row, e.g. "fecha_particion=2026-08-30". An empty partitionBy yields "".
func partitionDir(row Row, partitionBy []string) string {
	if len(partitionBy) == 0 {
		return ""
	}
	segs := make([]string, 0, len(partitionBy))
	for _, col := range partitionBy {
		segs = append(segs, col+"="+sanitizeValue(partitionValue(row, col)))
	}
	return filepath.Join(segs...)
}

func partitionValue(row Row, col string) string {
	v, ok := row[col]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// sanitizeValue makes a partition value safe as a single path segment.
func sanitizeValue(v string) string {
	if v == "" {
		return "null"
	}
	r := strings.NewReplacer("/", "_", "\\", "_", "=", "_", string(os.PathSeparator), "_")
	return r.Replace(v)
}

// partitionsOf returns the sorted distinct partition dirs present in rows.
func partitionsOf(rows []Row, partitionBy []string) []string {
	seen := make(map[string]struct{})
	for _, row := range rows {
		seen[partitionDir(row, partitionBy)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// inPartition reports whether a relative file path belongs to the given
// partition dir ("" matches only unpartitioned files at the table root).
func inPartition(path, partition string) bool {
	dir := filepath.Dir(path)
	if dir == "." {
		dir = ""
	}
	return dir == partition
}
