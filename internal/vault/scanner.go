// Package vault provides read access to a root directory of markdown notes:
// scanning with exclusion rules, note loading with encoding fallback, and a
// filesystem watcher for incremental re-indexing.
package vault

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"cerebro/internal/contextutil"
	"cerebro/internal/links"
)

// excludedSuffixes lists file name suffixes that are never tracked nor
// indexed (binary-ish markdown artifacts).
var excludedSuffixes = []string{".excalidraw.md", ".canvas"}

// excludedNameParts lists lowercase substrings of file names that mark
// placeholder files.
var excludedNameParts = []string{"untitled"}

// FileInfo describes one eligible note file found during a scan.
type FileInfo struct {
	RelPath string    // Relative path from vault root, forward slashes
	AbsPath string    // Absolute file path
	Size    int64     // File size in bytes
	ModTime time.Time // Last modification time
}

// Note is a loaded source document.
type Note struct {
	Path    string // Relative path from vault root, forward slashes
	AbsPath string // Absolute file path
	Title   string // Extracted from the markdown (first H1, else H2, else filename)
	Content string // Full decoded text
	Size    int64  // File size in bytes
	ModTime time.Time
	Links   []string // Outbound wiki-link targets, first-seen order
}

// Scanner walks a single vault root and loads notes from it.
type Scanner struct {
	root string
}

// NewScanner creates a scanner for the given vault root.
// The root must exist and be a directory.
func NewScanner(root string) (*Scanner, error) {
	if root == "" {
		return nil, fmt.Errorf("vault root is required")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("vault root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault root %s is not a directory", root)
	}
	return &Scanner{root: root}, nil
}

// Root returns the vault root path.
func (s *Scanner) Root() string {
	return s.root
}

// Eligible reports whether a file name names an indexable note.
// Non-markdown files, drawing/canvas artifacts and placeholder names are
// skipped entirely: neither tracked nor indexed.
func Eligible(name string) bool {
	lower := strings.ToLower(name)
	if !strings.HasSuffix(lower, ".md") {
		return false
	}
	for _, suffix := range excludedSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return false
		}
	}
	for _, part := range excludedNameParts {
		if strings.Contains(lower, part) {
			return false
		}
	}
	return true
}

// List walks the vault root and returns every eligible note file with its
// current (size, mtime) pair. The .obsidian configuration directory is
// skipped. Unreadable entries are skipped rather than aborting the walk.
func (s *Scanner) List(ctx context.Context) ([]FileInfo, error) {
	logger := contextutil.LoggerFromContext(ctx)

	var files []FileInfo
	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			logger.WarnContext(ctx, "skipping unreadable path", "path", path, "error", err)
			return nil
		}

		if info.IsDir() {
			if info.Name() == ".obsidian" {
				return filepath.SkipDir
			}
			return nil
		}

		if !Eligible(info.Name()) {
			return nil
		}

		relPath, err := filepath.Rel(s.root, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
		}

		files = append(files, FileInfo{
			RelPath: filepath.ToSlash(relPath),
			AbsPath: path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan vault %s: %w", s.root, err)
	}

	return files, nil
}

// ReadNote loads and decodes a single note by its relative path, extracting
// title and outbound links.
func (s *Scanner) ReadNote(relPath string) (*Note, error) {
	absPath := filepath.Join(s.root, filepath.FromSlash(relPath))

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat note %s: %w", relPath, err)
	}

	content, err := ReadText(absPath)
	if err != nil {
		return nil, err
	}

	return &Note{
		Path:    relPath,
		AbsPath: absPath,
		Title:   ExtractTitle([]byte(content), relPath),
		Content: content,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Links:   links.Extract(content),
	}, nil
}

// ReadText reads a file as UTF-8 text, falling back to a Latin-1
// interpretation when the bytes are not valid UTF-8.
func ReadText(absPath string) (string, error) {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", absPath, err)
	}

	if utf8.Valid(data) {
		return string(data), nil
	}

	// Latin-1 fallback: every byte maps to the code point of the same value.
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes), nil
}
