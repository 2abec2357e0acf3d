package lake

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

const logDirName = "_txn_log"

var logEntryName = regexp.MustCompile(`^\d{20}\.json$`)

// addAction records a data file added by a commit. Paths are relative to the
// table root.
type addAction struct {
	Path  string `json:"path"`
	Rows  int64  `json:"rows"`
	Bytes int64  `json:"bytes"`
}

// removeAction records a data file logically deleted by a commit. The file
// stays on disk; it simply leaves the active set.
type removeAction struct {
	Path string `json:"path"`
}

// logEntry is one transaction: exactly one entry is written per commit.
type logEntry struct {
	Version     int64          `json:"version"`
	CommittedAt time.Time      `json:"committed_at"`
	Mode        Mode           `json:"mode"`
	Partitions  []string       `json:"partitions,omitempty"`
	Adds        []addAction    `json:"adds,omitempty"`
	Removes     []removeAction `json:"removes,omitempty"`
}

// snapshot is the replayed state of the log: the active file set and the
// latest committed version (-1 for an empty table).
type snapshot struct {
	files   map[string]addAction
	version int64
}

// activePaths returns the active file paths in deterministic order.
func (s snapshot) activePaths() []string {
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (t *Table) logDir() string {
	return filepath.Join(t.root, logDirName)
}

func entryFileName(version int64) string {
	return fmt.Sprintf("%020d.json", version)
}

// loadSnapshot replays the transaction log in version order.
func (t *Table) loadSnapshot() (snapshot, error) {
	snap := snapshot{files: make(map[string]addAction), version: -1}

	entries, err := os.ReadDir(t.logDir())
	if err != nil {
		return snap, eris.Wrapf(err, "lake: read log dir %s", t.logDir())
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && logEntryName.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(t.logDir(), name))
		if err != nil {
			return snap, eris.Wrapf(err, "lake: read log entry %s", name)
		}
		var entry logEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return snap, eris.Wrapf(err, "lake: decode log entry %s", name)
		}
		for _, rm := range entry.Removes {
			delete(snap.files, rm.Path)
		}
		for _, add := range entry.Adds {
			snap.files[add.Path] = add
		}
		if entry.Version > snap.version {
			snap.version = entry.Version
		}
	}

	return snap, nil
}

// writeEntry persists a log entry as the given version. The entry is staged
// to a temp file and hard-linked into place, so it appears atomically and a
// concurrent writer racing to the same version loses with ErrConflict.
func (t *Table) writeEntry(entry logEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrap(err, "lake: encode log entry")
	}

	tmp := filepath.Join(t.logDir(), ".tmp-"+uuid.New().String())
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return eris.Wrap(err, "lake: stage log entry")
	}
	defer os.Remove(tmp)

	final := filepath.Join(t.logDir(), entryFileName(entry.Version))
	if err := os.Link(tmp, final); err != nil {
		if os.IsExist(err) {
			return eris.Wrapf(ErrConflict, "version %d already committed", entry.Version)
		}
		return eris.Wrapf(err, "lake: publish log entry %d", entry.Version)
	}
	return nil
}
