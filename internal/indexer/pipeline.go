package indexer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"cerebro/internal/contextutil"
	"cerebro/internal/links"
	"cerebro/internal/storage"
	"cerebro/internal/tracker"
	"cerebro/internal/vault"
	"cerebro/internal/vectorstore"
)

// ErrNoNotes is returned when the vault contains no indexable notes.
var ErrNoNotes = errors.New("no notes found in vault")

const (
	embedBatchSize  = 16
	embedWorkers    = 4
	upsertBatchSize = 64
)

// Embedder turns chunk texts into vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Pipeline builds and maintains the chunk index across the SQLite
// catalog and the vector store. Full rebuilds land in a fresh shadow
// collection and become visible through a single alias swap, so
// queries see either the old index or the new one, never a mix.
type Pipeline struct {
	scanner     *vault.Scanner
	tracker     *tracker.Tracker
	db          *sql.DB
	noteRepo    storage.NoteStore
	chunkRepo   storage.ChunkStore
	embedder    Embedder
	vectorStore vectorstore.VectorStore
	alias       string
	vectorSize  int
	splitter    *Splitter

	mu    sync.Mutex // serializes rebuilds and incremental updates
	ready atomic.Bool
}

// NewPipeline creates an indexing pipeline. alias is the stable
// collection name queries go through; physical collections are created
// and dropped behind it during rebuilds.
func NewPipeline(
	scanner *vault.Scanner,
	track *tracker.Tracker,
	db *sql.DB,
	embedder Embedder,
	store vectorstore.VectorStore,
	alias string,
	vectorSize int,
	splitter *Splitter,
) *Pipeline {
	return &Pipeline{
		scanner:     scanner,
		tracker:     track,
		db:          db,
		noteRepo:    storage.NewNoteRepo(db),
		chunkRepo:   storage.NewChunkRepo(db),
		embedder:    embedder,
		vectorStore: store,
		alias:       alias,
		vectorSize:  vectorSize,
		splitter:    splitter,
	}
}

// Collection returns the alias name queries should search.
func (p *Pipeline) Collection() string {
	return p.alias
}

// Ready reports whether an index is loaded and queryable.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// LoadOrCreate brings the index up to date at startup. With force it
// always rebuilds from scratch. Otherwise it reuses the existing index,
// applying incremental updates for small change sets and rebuilding
// when too much of the vault changed or no usable index exists.
func (p *Pipeline) LoadOrCreate(ctx context.Context, force bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	logger := contextutil.LoggerFromContext(ctx)

	if force {
		return p.rebuildLocked(ctx)
	}

	// Resolve the alias rather than asking whether a collection named
	// like it exists. Qdrant resolves aliases for points operations but
	// not necessarily for collection management calls, and a false
	// negative here would force a full rebuild on every start.
	current, err := p.vectorStore.ResolveAlias(ctx, p.alias)
	if err != nil {
		return fmt.Errorf("failed to resolve collection alias: %w", err)
	}
	if current == "" || !p.tracker.HasSnapshot() {
		return p.rebuildLocked(ctx)
	}

	changes, err := p.tracker.DetectChanges(ctx, p.scanner)
	if err != nil {
		return fmt.Errorf("failed to detect changes: %w", err)
	}
	if changes.Empty() {
		p.ready.Store(true)
		logger.InfoContext(ctx, "index up to date")
		return nil
	}

	rebuild, err := p.tracker.ShouldRebuild(ctx, p.scanner)
	if err != nil {
		return fmt.Errorf("failed to evaluate rebuild threshold: %w", err)
	}
	if rebuild {
		logger.InfoContext(ctx, "change ratio above threshold, rebuilding",
			"added", len(changes.Added), "modified", len(changes.Modified), "deleted", len(changes.Deleted))
		return p.rebuildLocked(ctx)
	}

	return p.applyIncrementalLocked(ctx, changes)
}

// Rebuild discards the current index and builds a fresh one.
func (p *Pipeline) Rebuild(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rebuildLocked(ctx)
}

// Sync reconciles the index with the vault's current state. Called by
// the filesystem watcher and safe to call concurrently with queries.
func (p *Pipeline) Sync(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	changes, err := p.tracker.DetectChanges(ctx, p.scanner)
	if err != nil {
		return fmt.Errorf("failed to detect changes: %w", err)
	}
	if changes.Empty() {
		return nil
	}

	logger := contextutil.LoggerFromContext(ctx)
	logger.InfoContext(ctx, "vault changed",
		"added", len(changes.Added), "modified", len(changes.Modified), "deleted", len(changes.Deleted))

	rebuild, err := p.tracker.ShouldRebuild(ctx, p.scanner)
	if err != nil {
		return fmt.Errorf("failed to evaluate rebuild threshold: %w", err)
	}
	if rebuild {
		return p.rebuildLocked(ctx)
	}
	return p.applyIncrementalLocked(ctx, changes)
}

func (p *Pipeline) rebuildLocked(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)

	files, err := p.scanner.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan vault: %w", err)
	}
	if len(files) == 0 {
		return ErrNoNotes
	}

	logger.InfoContext(ctx, "building index", "files", len(files))

	noteRecords := make([]*storage.NoteRecord, 0, len(files))
	chunkRecords := make([]*storage.ChunkRecord, 0, len(files))

	for _, file := range files {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		note, err := p.scanner.ReadNote(file.RelPath)
		if err != nil {
			logger.WarnContext(ctx, "skipping unreadable note", "path", file.RelPath, "error", err)
			continue
		}

		noteRecords = append(noteRecords, noteToRecord(note))
		chunkRecords = append(chunkRecords, p.chunkNote(note)...)
	}

	if len(chunkRecords) == 0 {
		return ErrNoNotes
	}

	texts := make([]string, len(chunkRecords))
	for i, chunk := range chunkRecords {
		texts[i] = chunk.Text
	}

	vectors, err := p.embedAll(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}

	points := make([]vectorstore.Point, len(chunkRecords))
	for i, chunk := range chunkRecords {
		points[i] = vectorstore.Point{
			ID:   chunk.ID,
			Vec:  vectors[i],
			Meta: chunkMeta(chunk),
		}
	}

	// Build into a shadow collection, then swap the alias.
	shadow := fmt.Sprintf("%s_%s", p.alias, strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	if err := p.vectorStore.CreateCollection(ctx, shadow, p.vectorSize); err != nil {
		return fmt.Errorf("failed to create shadow collection: %w", err)
	}

	for start := 0; start < len(points); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(points))
		if err := p.vectorStore.Upsert(ctx, shadow, points[start:end]); err != nil {
			p.dropQuietly(ctx, shadow)
			return fmt.Errorf("failed to load shadow collection: %w", err)
		}
	}

	previous, err := p.vectorStore.ResolveAlias(ctx, p.alias)
	if err != nil {
		p.dropQuietly(ctx, shadow)
		return err
	}

	if err := p.vectorStore.SwapAlias(ctx, p.alias, shadow); err != nil {
		p.dropQuietly(ctx, shadow)
		return err
	}

	if err := storage.ReplaceAll(ctx, p.db, noteRecords, chunkRecords); err != nil {
		// Point the alias back at the old collection so the prior
		// index stays queryable, then discard the shadow.
		if previous != "" {
			if swapErr := p.vectorStore.SwapAlias(ctx, p.alias, previous); swapErr != nil {
				logger.ErrorContext(ctx, "failed to restore alias after catalog failure",
					"collection", previous, "error", swapErr)
			}
		}
		p.dropQuietly(ctx, shadow)
		return fmt.Errorf("failed to replace catalog: %w", err)
	}

	// Snapshot last so a failed build is retried in full.
	if err := p.tracker.Commit(ctx, p.scanner); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	// The old collection goes away only once the new index is fully
	// committed. A failure anywhere above leaves it in place.
	if previous != "" && previous != shadow {
		if err := p.vectorStore.DropCollection(ctx, previous); err != nil {
			logger.WarnContext(ctx, "failed to drop previous collection", "collection", previous, "error", err)
		}
	}

	p.ready.Store(true)
	logger.InfoContext(ctx, "index built", "notes", len(noteRecords), "chunks", len(chunkRecords))
	return nil
}

func (p *Pipeline) applyIncrementalLocked(ctx context.Context, changes tracker.Changes) error {
	logger := contextutil.LoggerFromContext(ctx)

	for _, relPath := range changes.Deleted {
		if err := p.removeNote(ctx, relPath); err != nil {
			return err
		}
	}

	upserts := make([]string, 0, len(changes.Added)+len(changes.Modified))
	upserts = append(upserts, changes.Added...)
	upserts = append(upserts, changes.Modified...)

	for _, relPath := range upserts {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := p.indexNote(ctx, relPath); err != nil {
			return err
		}
	}

	if err := p.tracker.Commit(ctx, p.scanner); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	p.ready.Store(true)
	logger.InfoContext(ctx, "incremental update applied",
		"upserted", len(upserts), "deleted", len(changes.Deleted))
	return nil
}

// indexNote replaces one note's chunks in the catalog and vector store.
// Old chunks are removed first so a retry never leaves duplicates.
func (p *Pipeline) indexNote(ctx context.Context, relPath string) error {
	note, err := p.scanner.ReadNote(relPath)
	if err != nil {
		return fmt.Errorf("failed to read note %s: %w", relPath, err)
	}

	chunks := p.chunkNote(note)

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	var vectors [][]float32
	if len(texts) > 0 {
		vectors, err = p.embedAll(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunks for %s: %w", relPath, err)
		}
	}

	if err := p.vectorStore.DeleteBySource(ctx, p.alias, relPath); err != nil {
		return err
	}
	if err := p.chunkRepo.DeleteBySource(ctx, relPath); err != nil {
		return fmt.Errorf("failed to delete old chunks for %s: %w", relPath, err)
	}

	if err := p.noteRepo.Upsert(ctx, noteToRecord(note)); err != nil {
		return fmt.Errorf("failed to upsert note %s: %w", relPath, err)
	}
	if len(chunks) == 0 {
		return nil
	}
	if err := p.chunkRepo.InsertBatch(ctx, chunks); err != nil {
		return fmt.Errorf("failed to insert chunks for %s: %w", relPath, err)
	}

	points := make([]vectorstore.Point, len(chunks))
	for i, chunk := range chunks {
		points[i] = vectorstore.Point{
			ID:   chunk.ID,
			Vec:  vectors[i],
			Meta: chunkMeta(chunk),
		}
	}
	return p.vectorStore.Upsert(ctx, p.alias, points)
}

func (p *Pipeline) removeNote(ctx context.Context, relPath string) error {
	if err := p.vectorStore.DeleteBySource(ctx, p.alias, relPath); err != nil {
		return err
	}
	if err := p.chunkRepo.DeleteBySource(ctx, relPath); err != nil {
		return fmt.Errorf("failed to delete chunks for %s: %w", relPath, err)
	}
	if err := p.noteRepo.Delete(ctx, relPath); err != nil {
		return fmt.Errorf("failed to delete note %s: %w", relPath, err)
	}
	return nil
}

// chunkNote splits a note and wraps the pieces as catalog records.
func (p *Pipeline) chunkNote(note *vault.Note) []*storage.ChunkRecord {
	pieces := p.splitter.Split(note.Content)
	linkCSV := links.Join(note.Links)

	chunks := make([]*storage.ChunkRecord, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, &storage.ChunkRecord{
			ID:         uuid.New().String(),
			Source:     note.Path,
			ChunkIndex: i,
			Text:       piece,
			Links:      linkCSV,
		})
	}
	return chunks
}

// embedAll embeds texts in parallel batches, preserving order.
func (p *Pipeline) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(embedWorkers)

	for start := 0; start < len(texts); start += embedBatchSize {
		start := start
		end := min(start+embedBatchSize, len(texts))
		g.Go(func() error {
			batch, err := p.embedder.EmbedTexts(ctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("batch at %d: %w", start, err)
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (p *Pipeline) dropQuietly(ctx context.Context, collection string) {
	if err := p.vectorStore.DropCollection(ctx, collection); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to drop collection", "collection", collection, "error", err)
	}
}

func noteToRecord(note *vault.Note) *storage.NoteRecord {
	return &storage.NoteRecord{
		Path:      note.Path,
		Title:     note.Title,
		Folder:    folderOf(note.Path),
		Size:      note.Size,
		ModTimeNS: note.ModTime.UnixNano(),
		Links:     links.Join(note.Links),
	}
}

// chunkMeta builds the vector payload. The chunk text rides along so
// retrieval does not need a catalog round trip per hit.
func chunkMeta(chunk *storage.ChunkRecord) map[string]any {
	return map[string]any{
		"source":      chunk.Source,
		"chunk_index": chunk.ChunkIndex,
		"links":       chunk.Links,
		"text":        chunk.Text,
	}
}

func folderOf(relPath string) string {
	dir := path.Dir(relPath)
	if dir == "." {
		return ""
	}
	return dir
}
