package lake

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Read returns every active row in the table, in log/file order.
func (t *Table) Read(ctx context.Context) ([]Row, error) {
	return t.read(ctx, func(string) bool { return true })
}

// ReadPartition returns the active rows whose file lives under the partition
// directory col=value. Pruning happens on paths; file contents outside the
// partition are never opened.
func (t *Table) ReadPartition(ctx context.Context, col, value string) ([]Row, error) {
	seg := col + "=" + sanitizeValue(value)
	return t.read(ctx, func(path string) bool {
		for _, s := range strings.Split(filepath.Dir(path), string(filepath.Separator)) {
			if s == seg {
				return true
			}
		}
		return false
	})
}

// Version returns the latest committed log version, -1 for an empty table.
func (t *Table) Version() (int64, error) {
	snap, err := t.loadSnapshot()
	if err != nil {
		return -1, err
	}
	return snap.version, nil
}

func (t *Table) read(ctx context.Context, keep func(path string) bool) ([]Row, error) {
	snap, err := t.loadSnapshot()
	if err != nil {
		return nil, err
	}

	var rows []Row
	for _, path := range snap.activePaths() {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "lake: read canceled")
		}
		if !keep(path) {
			continue
		}
		fileRows, err := t.readPartFile(path)
		if err != nil {
			return nil, err
		}
		rows = append(rows, fileRows...)
	}
	return rows, nil
}

func (t *Table) readPartFile(relPath string) ([]Row, error) {
	f, err := os.Open(filepath.Join(t.root, relPath))
	if err != nil {
		return nil, eris.Wrapf(err, "lake: open part file %s", relPath)
	}
	defer f.Close()

	var rows []Row
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row Row
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, eris.Wrapf(err, "lake: decode row in %s", relPath)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "lake: scan part file %s", relPath)
	}
	return rows, nil
}
