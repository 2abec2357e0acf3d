package lake

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CommitOptions configures a single commit.
type CommitOptions struct {
	// Mode selects append, overwrite-partition, or overwrite-table.
	Mode Mode

	// PartitionBy names the partition columns. Required for
	// overwrite-partition; optional otherwise.
	PartitionBy []string
}

// WriteResult summarizes a commit.
type WriteResult struct {
	Rows       int64    `json:"rows"`
	Files      int      `json:"files"`
	Version    int64    `json:"version"`
	NoOp       bool     `json:"no_op"`
	Partitions []string `json:"partitions,omitempty"`
}

// Commit writes rows to the table under the given mode as one transaction.
// An empty row set is a no-op: nothing is written and no log entry is
// created. Data files are fully written before the log entry is published,
// so a failed commit leaves no visible change.
func (t *Table) Commit(ctx context.Context, rows []Row, opts CommitOptions) (*WriteResult, error) {
	switch opts.Mode {
	case ModeAppend, ModeOverwritePartition, ModeOverwriteTable:
	default:
		return nil, eris.Errorf("lake: unknown commit mode %q", opts.Mode)
	}
	if opts.Mode == ModeOverwritePartition && len(opts.PartitionBy) == 0 {
		return nil, eris.New("lake: overwrite-partition requires partition columns")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "lake: commit canceled")
	}

	if len(rows) == 0 {
		zap.L().Info("lake: empty commit, skipping",
			zap.String("table", t.root),
			zap.String("mode", string(opts.Mode)),
		)
		return &WriteResult{NoOp: true}, nil
	}

	partitions := partitionsOf(rows, opts.PartitionBy)

	adds, err := t.writePartFiles(rows, opts.PartitionBy)
	if err != nil {
		return nil, err
	}

	snap, err := t.loadSnapshot()
	if err != nil {
		return nil, err
	}

	var removes []removeAction
	switch opts.Mode {
	case ModeOverwritePartition:
		for _, path := range snap.activePaths() {
			for _, p := range partitions {
				if inPartition(path, p) {
					removes = append(removes, removeAction{Path: path})
					break
				}
			}
		}
	case ModeOverwriteTable:
		for _, path := range snap.activePaths() {
			removes = append(removes, removeAction{Path: path})
		}
	}

	entry := logEntry{
		Version:     snap.version + 1,
		CommittedAt: time.Now().UTC(),
		Mode:        opts.Mode,
		Partitions:  partitions,
		Adds:        adds,
		Removes:     removes,
	}
	if err := t.writeEntry(entry); err != nil {
		return nil, err
	}

	return &WriteResult{
		Rows:       int64(len(rows)),
		Files:      len(adds),
		Version:    entry.Version,
		Partitions: partitions,
	}, nil
}

// writePartFiles groups rows by partition and writes one NDJSON part file
// per partition. Returned paths are relative to the table root.
func (t *Table) writePartFiles(rows []Row, partitionBy []string) ([]addAction, error) {
	groups := make(map[string][]Row)
	order := make([]string, 0)
	for _, row := range rows {
		dir := partitionDir(row, partitionBy)
		if _, ok := groups[dir]; !ok {
			order = append(order, dir)
		}
		groups[dir] = append(groups[dir], row)
	}

	adds := make([]addAction, 0, len(groups))
	for _, dir := range order {
		group := groups[dir]

		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		for _, row := range group {
			if err := enc.Encode(row); err != nil {
				return nil, eris.Wrap(err, "lake: encode row")
			}
		}

		relPath := filepath.Join(dir, "part-"+uuid.New().String()+".ndjson")
		absPath := filepath.Join(t.root, relPath)
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return nil, eris.Wrapf(err, "lake: create partition dir for %s", relPath)
		}
		if err := os.WriteFile(absPath, buf.Bytes(), 0o644); err != nil {
			return nil, eris.Wrapf(err, "lake: write part file %s", relPath)
		}

		adds = append(adds, addAction{
			Path:  relPath,
			Rows:  int64(len(group)),
			Bytes: int64(buf.Len()),
		})
	}

	return adds, nil
}
