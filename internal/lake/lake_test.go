package lake

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := Open(filepath.Join(t.TempDir(), "bronze", "news", "top_stories"))
	require.NoError(t, err)
	return tbl
}

func dayRows(day string, ids ...string) []Row {
	rows := make([]Row, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, Row{"uuid": id, "fecha_particion": day})
	}
	return rows
}

func rowIDs(rows []Row) []string {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r["uuid"].(string))
	}
	sort.Strings(ids)
	return ids
}

func TestCommit_AppendAndRead(t *testing.T) {
	ctx := context.Background()
	tbl := openTestTable(t)

	res, err := tbl.Commit(ctx, dayRows("2026-08-29", "a", "b"), CommitOptions{
		Mode:        ModeAppend,
		PartitionBy: []string{"fecha_particion"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Rows)
	assert.Equal(t, int64(0), res.Version)
	assert.False(t, res.NoOp)

	rows, err := tbl.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, rowIDs(rows))
}

func TestCommit_AppendAccumulatesDuplicates(t *testing.T) {
	// Bronze is allowed to accumulate repeats across runs; append never
	// rewrites existing files.
	ctx := context.Background()
	tbl := openTestTable(t)
	opts := CommitOptions{Mode: ModeAppend, PartitionBy: []string{"fecha_particion"}}

	_, err := tbl.Commit(ctx, dayRows("2026-08-29", "a"), opts)
	require.NoError(t, err)
	_, err = tbl.Commit(ctx, dayRows("2026-08-29", "a"), opts)
	require.NoError(t, err)

	rows, err := tbl.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a"}, rowIDs(rows))
}

func TestCommit_EmptyRowsIsNoOp(t *testing.T) {
	ctx := context.Background()
	tbl := openTestTable(t)

	res, err := tbl.Commit(ctx, nil, CommitOptions{Mode: ModeAppend})
	require.NoError(t, err)
	assert.True(t, res.NoOp)
	assert.Equal(t, int64(0), res.Rows)

	v, err := tbl.Version()
	require.NoError(t, err)
	assert.Equal(t, int64(-1), v, "no log entry for an empty commit")
}

func TestCommit_OverwritePartitionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	tbl := openTestTable(t)
	opts := CommitOptions{Mode: ModeOverwritePartition, PartitionBy: []string{"fecha_particion"}}

	// Seed a historical partition that both commits must leave untouched.
	_, err := tbl.Commit(ctx, dayRows("2026-08-28", "old1", "old2"), opts)
	require.NoError(t, err)

	histBefore, err := tbl.ReadPartition(ctx, "fecha_particion", "2026-08-28")
	require.NoError(t, err)

	today := dayRows("2026-08-29", "x", "y", "z")
	_, err = tbl.Commit(ctx, today, opts)
	require.NoError(t, err)
	_, err = tbl.Commit(ctx, today, opts)
	require.NoError(t, err)

	got, err := tbl.ReadPartition(ctx, "fecha_particion", "2026-08-29")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, rowIDs(got), "row multiset unchanged after second commit")

	hist, err := tbl.ReadPartition(ctx, "fecha_particion", "2026-08-28")
	require.NoError(t, err)
	assert.Equal(t, rowIDs(histBefore), rowIDs(hist), "historical partition untouched")
}

func TestCommit_OverwritePartitionLeavesOtherPartitionFilesAlone(t *testing.T) {
	ctx := context.Background()
	tbl := openTestTable(t)
	opts := CommitOptions{Mode: ModeOverwritePartition, PartitionBy: []string{"fecha_particion"}}

	_, err := tbl.Commit(ctx, dayRows("2026-08-28", "old"), opts)
	require.NoError(t, err)

	snapBefore, err := tbl.loadSnapshot()
	require.NoError(t, err)
	histFiles := snapBefore.activePaths()

	_, err = tbl.Commit(ctx, dayRows("2026-08-29", "new"), opts)
	require.NoError(t, err)

	snapAfter, err := tbl.loadSnapshot()
	require.NoError(t, err)
	for _, f := range histFiles {
		_, ok := snapAfter.files[f]
		assert.True(t, ok, "historical file %s still active", f)
	}
}

func TestCommit_OverwriteTable(t *testing.T) {
	ctx := context.Background()
	tbl := openTestTable(t)

	_, err := tbl.Commit(ctx, []Row{{"source_name": "BBC", "article_count": 3}}, CommitOptions{Mode: ModeOverwriteTable})
	require.NoError(t, err)
	_, err = tbl.Commit(ctx, []Row{{"source_name": "CNN", "article_count": 1}}, CommitOptions{Mode: ModeOverwriteTable})
	require.NoError(t, err)

	rows, err := tbl.Read(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "CNN", rows[0]["source_name"])
}

func TestCommit_VersionConflict(t *testing.T) {
	ctx := context.Background()
	tbl := openTestTable(t)

	_, err := tbl.Commit(ctx, dayRows("2026-08-29", "a"), CommitOptions{Mode: ModeAppend})
	require.NoError(t, err)

	// Two writers snapshot the same version and race to publish the next
	// entry; the first link wins and the loser's commit must fail.
	snap, err := tbl.loadSnapshot()
	require.NoError(t, err)
	next := snap.version + 1

	require.NoError(t, tbl.writeEntry(logEntry{Version: next, Mode: ModeAppend}))
	err = tbl.writeEntry(logEntry{Version: next, Mode: ModeAppend})
	assert.ErrorIs(t, err, ErrConflict)

	// The losing writer left no visible change.
	v, err := tbl.Version()
	require.NoError(t, err)
	assert.Equal(t, next, v)
}

func TestCommit_RejectsBadOptions(t *testing.T) {
	ctx := context.Background()
	tbl := openTestTable(t)

	_, err := tbl.Commit(ctx, dayRows("d", "a"), CommitOptions{Mode: "merge"})
	assert.Error(t, err)

	_, err = tbl.Commit(ctx, dayRows("d", "a"), CommitOptions{Mode: ModeOverwritePartition})
	assert.Error(t, err, "overwrite-partition requires partition columns")
}

func TestRead_UncommittedFilesInvisible(t *testing.T) {
	ctx := context.Background()
	tbl := openTestTable(t)
	opts := CommitOptions{Mode: ModeAppend, PartitionBy: []string{"fecha_particion"}}

	_, err := tbl.Commit(ctx, dayRows("2026-08-29", "a"), opts)
	require.NoError(t, err)

	// A crashed commit leaves orphan data files with no log entry; readers
	// must not see them.
	orphanDir := filepath.Join(tbl.Root(), "fecha_particion=2026-08-29")
	require.NoError(t, os.WriteFile(
		filepath.Join(orphanDir, "part-orphan.ndjson"),
		[]byte(`{"uuid":"ghost","fecha_particion":"2026-08-29"}`+"\n"), 0o644))

	rows, err := tbl.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, rowIDs(rows))
}

func TestReadPartition_Pruning(t *testing.T) {
	ctx := context.Background()
	tbl := openTestTable(t)
	opts := CommitOptions{Mode: ModeAppend, PartitionBy: []string{"fecha_particion"}}

	for day := 1; day <= 3; day++ {
		_, err := tbl.Commit(ctx, dayRows(fmt.Sprintf("2026-08-%02d", day), fmt.Sprintf("id-%d", day)), opts)
		require.NoError(t, err)
	}

	rows, err := tbl.ReadPartition(ctx, "fecha_particion", "2026-08-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"id-2"}, rowIDs(rows))

	rows, err = tbl.ReadPartition(ctx, "fecha_particion", "2026-12-31")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSanitizeValue(t *testing.T) {
	assert.Equal(t, "null", sanitizeValue(""))
	assert.Equal(t, "tech", sanitizeValue("tech"))
	assert.Equal(t, "a_b_c", sanitizeValue("a/b=c"))
}
