package tracker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cerebro/internal/vault"
)

func newTestVault(t *testing.T) (string, *vault.Scanner) {
	t.Helper()
	root := t.TempDir()
	scanner, err := vault.NewScanner(root)
	if err != nil {
		t.Fatalf("NewScanner() error = %v", err)
	}
	return root, scanner
}

func write(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func newTracker(t *testing.T) *Tracker {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "snapshot.json"), 0)
}

func TestDetectChanges_NoSnapshot(t *testing.T) {
	root, scanner := newTestVault(t)
	write(t, root, "a.md", "# a")
	write(t, root, "b.md", "# b")

	tr := newTracker(t)
	changes, err := tr.DetectChanges(context.Background(), scanner)
	if err != nil {
		t.Fatalf("DetectChanges() error = %v", err)
	}
	if len(changes.Added) != 2 || len(changes.Modified) != 0 || len(changes.Deleted) != 0 {
		t.Errorf("DetectChanges() = %+v, want 2 added only", changes)
	}
}

func TestDetectChanges_UnmodifiedTree(t *testing.T) {
	root, scanner := newTestVault(t)
	write(t, root, "a.md", "# a")
	write(t, root, "sub/b.md", "# b")

	tr := newTracker(t)
	ctx := context.Background()
	if err := tr.Commit(ctx, scanner); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	changes, err := tr.DetectChanges(ctx, scanner)
	if err != nil {
		t.Fatalf("DetectChanges() error = %v", err)
	}
	if !changes.Empty() {
		t.Errorf("DetectChanges() on unmodified tree = %+v, want empty", changes)
	}
}

func TestDetectChanges_AddAndDelete(t *testing.T) {
	root, scanner := newTestVault(t)
	write(t, root, "old.md", "# old")

	tr := newTracker(t)
	ctx := context.Background()
	if err := tr.Commit(ctx, scanner); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	write(t, root, "new.md", "# new")
	if err := os.Remove(filepath.Join(root, "old.md")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	changes, err := tr.DetectChanges(ctx, scanner)
	if err != nil {
		t.Fatalf("DetectChanges() error = %v", err)
	}

	if len(changes.Added) != 1 || changes.Added[0] != "new.md" {
		t.Errorf("Added = %v, want [new.md]", changes.Added)
	}
	if len(changes.Modified) != 0 {
		t.Errorf("Modified = %v, want empty", changes.Modified)
	}
	if len(changes.Deleted) != 1 || changes.Deleted[0] != "old.md" {
		t.Errorf("Deleted = %v, want [old.md]", changes.Deleted)
	}
}

func TestDetectChanges_Modified(t *testing.T) {
	root, scanner := newTestVault(t)
	write(t, root, "a.md", "# a")

	tr := newTracker(t)
	ctx := context.Background()
	if err := tr.Commit(ctx, scanner); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	// Backdate mtime so the rewrite is observable even on coarse clocks.
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(root, "a.md"), past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	changes, err := tr.DetectChanges(ctx, scanner)
	if err != nil {
		t.Fatalf("DetectChanges() error = %v", err)
	}
	if len(changes.Modified) != 1 || changes.Modified[0] != "a.md" {
		t.Errorf("Modified = %v, want [a.md]", changes.Modified)
	}
}

func TestShouldRebuild(t *testing.T) {
	root, scanner := newTestVault(t)
	for _, name := range []string{"a.md", "b.md", "c.md", "d.md"} {
		write(t, root, name, "# "+name)
	}

	tr := New(filepath.Join(t.TempDir(), "snap.json"), 0.5)
	ctx := context.Background()

	// No snapshot yet: always rebuild.
	rebuild, err := tr.ShouldRebuild(ctx, scanner)
	if err != nil {
		t.Fatalf("ShouldRebuild() error = %v", err)
	}
	if !rebuild {
		t.Error("ShouldRebuild() without snapshot = false, want true")
	}

	if err := tr.Commit(ctx, scanner); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	// One of four files changed: ratio 0.25, below threshold.
	write(t, root, "e.md", "# e")
	rebuild, err = tr.ShouldRebuild(ctx, scanner)
	if err != nil {
		t.Fatalf("ShouldRebuild() error = %v", err)
	}
	if rebuild {
		t.Error("ShouldRebuild() with small diff = true, want false")
	}

	// Delete three of four tracked files: ratio 1.0, above threshold.
	for _, name := range []string{"a.md", "b.md", "c.md"} {
		if err := os.Remove(filepath.Join(root, name)); err != nil {
			t.Fatalf("remove: %v", err)
		}
	}
	rebuild, err = tr.ShouldRebuild(ctx, scanner)
	if err != nil {
		t.Fatalf("ShouldRebuild() error = %v", err)
	}
	if !rebuild {
		t.Error("ShouldRebuild() with large diff = false, want true")
	}
}

func TestCommit_Idempotent(t *testing.T) {
	root, scanner := newTestVault(t)
	write(t, root, "a.md", "# a")

	tr := newTracker(t)
	ctx := context.Background()

	if err := tr.Commit(ctx, scanner); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if err := tr.Commit(ctx, scanner); err != nil {
		t.Fatalf("second Commit() error = %v", err)
	}

	changes, err := tr.DetectChanges(ctx, scanner)
	if err != nil {
		t.Fatalf("DetectChanges() error = %v", err)
	}
	if !changes.Empty() {
		t.Errorf("DetectChanges() after repeated commits = %+v, want empty", changes)
	}
}

func TestReset(t *testing.T) {
	root, scanner := newTestVault(t)
	write(t, root, "a.md", "# a")

	tr := newTracker(t)
	ctx := context.Background()
	if err := tr.Commit(ctx, scanner); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if !tr.HasSnapshot() {
		t.Fatal("HasSnapshot() = false after commit")
	}
	if err := tr.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if tr.HasSnapshot() {
		t.Error("HasSnapshot() = true after reset")
	}
	// Reset on a missing snapshot is not an error.
	if err := tr.Reset(); err != nil {
		t.Errorf("Reset() on missing snapshot error = %v", err)
	}
}
