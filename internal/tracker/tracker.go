// Package tracker persists a snapshot of the vault's file metadata and
// computes the diff against the current filesystem state, deciding between
// incremental updates and full rebuilds.
package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cerebro/internal/contextutil"
	"cerebro/internal/vault"
)

// DefaultRebuildThreshold is the change ratio above which a full rebuild is
// cheaper than per-file patching.
const DefaultRebuildThreshold = 0.5

// fileStamp is the persisted (size, mtime) pair for one indexed file.
// ModTime is stored with nanosecond precision as a Unix timestamp.
type fileStamp struct {
	Size    int64 `json:"size"`
	ModTime int64 `json:"mtime_ns"`
}

// Changes is the diff between the snapshot and the current scan.
type Changes struct {
	Added    []string
	Modified []string
	Deleted  []string
}

// Empty reports whether no file was added, modified or deleted.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Deleted) == 0
}

// Total returns the number of changed paths.
func (c Changes) Total() int {
	return len(c.Added) + len(c.Modified) + len(c.Deleted)
}

// Tracker keeps the snapshot of the last successfully indexed filesystem
// state. The snapshot is mutated only by Commit, only after the caller has
// applied the corresponding index changes; a crash before Commit makes the
// next run re-report the same diff, keeping updates idempotent.
type Tracker struct {
	path      string  // Snapshot file location
	threshold float64 // Change ratio forcing a full rebuild
}

// New creates a tracker persisting its snapshot at path.
// threshold <= 0 selects DefaultRebuildThreshold.
func New(path string, threshold float64) *Tracker {
	if threshold <= 0 {
		threshold = DefaultRebuildThreshold
	}
	return &Tracker{path: path, threshold: threshold}
}

// HasSnapshot reports whether a snapshot from a previous successful indexing
// pass exists.
func (t *Tracker) HasSnapshot() bool {
	_, err := os.Stat(t.path)
	return err == nil
}

// DetectChanges scans the vault and compares each eligible file's
// (size, mtime) against the snapshot. A path present in both with a
// differing pair is modified; present only in the scan is added; present
// only in the snapshot is deleted.
func (t *Tracker) DetectChanges(ctx context.Context, scanner *vault.Scanner) (Changes, error) {
	snapshot, err := t.load()
	if err != nil {
		return Changes{}, err
	}

	current, err := t.scan(ctx, scanner)
	if err != nil {
		return Changes{}, err
	}

	var changes Changes
	for path, stamp := range current {
		prev, ok := snapshot[path]
		switch {
		case !ok:
			changes.Added = append(changes.Added, path)
		case prev != stamp:
			changes.Modified = append(changes.Modified, path)
		}
	}
	for path := range snapshot {
		if _, ok := current[path]; !ok {
			changes.Deleted = append(changes.Deleted, path)
		}
	}

	return changes, nil
}

// ShouldRebuild reports whether the pending diff is large enough that a full
// rebuild beats per-file patching: true when no snapshot exists yet, or when
// changed/total exceeds the configured threshold.
func (t *Tracker) ShouldRebuild(ctx context.Context, scanner *vault.Scanner) (bool, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if !t.HasSnapshot() {
		return true, nil
	}

	snapshot, err := t.load()
	if err != nil {
		return false, err
	}
	if len(snapshot) == 0 {
		return true, nil
	}

	changes, err := t.DetectChanges(ctx, scanner)
	if err != nil {
		return false, err
	}

	ratio := float64(changes.Total()) / float64(len(snapshot))
	if ratio > t.threshold {
		logger.InfoContext(ctx, "change ratio exceeds rebuild threshold",
			"changed", changes.Total(), "tracked", len(snapshot), "ratio", ratio, "threshold", t.threshold)
		return true, nil
	}
	return false, nil
}

// Commit overwrites the snapshot with the current full scan. Call only after
// the corresponding index mutations have been applied successfully. The write
// is atomic (temp file + rename) so a crash mid-write cannot leave a torn
// snapshot.
func (t *Tracker) Commit(ctx context.Context, scanner *vault.Scanner) error {
	current, err := t.scan(ctx, scanner)
	if err != nil {
		return err
	}

	data, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "tracker snapshot committed", "files", len(current), "path", t.path)
	return nil
}

// Reset removes the snapshot, forcing the next run onto the full-build path.
func (t *Tracker) Reset() error {
	err := os.Remove(t.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove snapshot: %w", err)
	}
	return nil
}

// load reads the snapshot; a missing file is an empty snapshot.
func (t *Tracker) load() (map[string]fileStamp, error) {
	data, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		return map[string]fileStamp{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", t.path, err)
	}

	snapshot := make(map[string]fileStamp)
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", t.path, err)
	}
	return snapshot, nil
}

// scan builds the current {path -> (size, mtime)} map from the vault.
func (t *Tracker) scan(ctx context.Context, scanner *vault.Scanner) (map[string]fileStamp, error) {
	files, err := scanner.List(ctx)
	if err != nil {
		return nil, err
	}

	current := make(map[string]fileStamp, len(files))
	for _, f := range files {
		current[f.RelPath] = fileStamp{Size: f.Size, ModTime: f.ModTime.UnixNano()}
	}
	return current, nil
}
