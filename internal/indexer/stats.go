package indexer

import (
	"context"
	"fmt"
	"strings"

	"cerebro/internal/links"
)

// Stats summarizes the current index contents.
type Stats struct {
	NoteCount   int `json:"note_count"`
	ChunkCount  int `json:"chunk_count"`
	FolderCount int `json:"folder_count"`
	LinkCount   int `json:"link_count"`
	TotalWords  int `json:"total_words"`
}

// Stats computes index statistics from the catalog. Word counts are
// taken over stored chunk texts, so overlapping chunk regions count
// once per chunk.
func (p *Pipeline) Stats(ctx context.Context) (*Stats, error) {
	noteCount, err := p.noteRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count notes: %w", err)
	}

	chunkCount, err := p.chunkRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}

	notes, err := p.noteRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}

	folders := make(map[string]struct{})
	linkCount := 0
	for _, note := range notes {
		if note.Folder != "" {
			folders[note.Folder] = struct{}{}
		}
		linkCount += len(links.Split(note.Links))
	}

	chunks, err := p.chunkRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}

	totalWords := 0
	for _, chunk := range chunks {
		totalWords += len(strings.Fields(chunk.Text))
	}

	return &Stats{
		NoteCount:   noteCount,
		ChunkCount:  chunkCount,
		FolderCount: len(folders),
		LinkCount:   linkCount,
		TotalWords:  totalWords,
	}, nil
}
