package rag

import (
	"context"
	"path"
	"sort"
	"strings"

	"cerebro/internal/contextutil"
	"cerebro/internal/links"
	"cerebro/internal/storage"
	"cerebro/internal/vault"
)

const (
	// DefaultMaxLinked caps how many linked documents expansion adds.
	DefaultMaxLinked = 5

	// linkBaseDiscount keeps linked documents below every retrieved
	// candidate; linkStepDiscount orders them among themselves.
	linkBaseDiscount = 0.9
	linkStepDiscount = 0.05
)

// Expander grows a candidate set along the vault's wiki-link graph.
// Fragmented notes, ones represented by several retrieved chunks, are
// collapsed to their full document first, then documents linked from
// the candidates are appended with discounted scores.
type Expander struct {
	noteRepo  storage.NoteStore
	chunkRepo storage.ChunkStore
	scanner   *vault.Scanner
	maxLinked int
}

// NewExpander creates a link-graph expander. maxLinked bounds how many
// linked documents are added; non-positive values use DefaultMaxLinked.
func NewExpander(noteRepo storage.NoteStore, chunkRepo storage.ChunkStore, scanner *vault.Scanner, maxLinked int) *Expander {
	if maxLinked <= 0 {
		maxLinked = DefaultMaxLinked
	}
	return &Expander{
		noteRepo:  noteRepo,
		chunkRepo: chunkRepo,
		scanner:   scanner,
		maxLinked: maxLinked,
	}
}

// Expand collapses fragmented sources and appends linked documents.
// Candidates must already carry normalized scores, best first.
func (x *Expander) Expand(ctx context.Context, candidates []Candidate) []Candidate {
	if len(candidates) == 0 {
		return candidates
	}

	logger := contextutil.LoggerFromContext(ctx)

	collapsed := x.collapseFragments(ctx, candidates)

	notes, err := x.noteRepo.ListAll(ctx)
	if err != nil {
		logger.WarnContext(ctx, "skipping link expansion, catalog unavailable", "error", err)
		return collapsed
	}

	present := make(map[string]struct{}, len(collapsed))
	lowest := collapsed[0].Score
	for _, candidate := range collapsed {
		present[candidate.Source] = struct{}{}
		if candidate.Score < lowest {
			lowest = candidate.Score
		}
	}

	// Walk candidates best-first so links from stronger matches win
	// the budget.
	var linked []Candidate
	for _, candidate := range collapsed {
		if len(linked) >= x.maxLinked {
			break
		}

		for _, target := range x.candidateLinks(candidate) {
			if len(linked) >= x.maxLinked {
				break
			}

			note := matchNote(notes, target)
			if note == nil {
				continue
			}
			if _, ok := present[note.Path]; ok {
				continue
			}

			content := x.fullText(ctx, note.Path)
			if content == "" {
				continue
			}

			score := lowest * linkBaseDiscount * (1 - linkStepDiscount*float64(len(linked)))
			linked = append(linked, Candidate{
				Source:     note.Path,
				Content:    content,
				Score:      score,
				Provenance: ProvenanceGraphLink,
				Links:      links.Split(note.Links),
			})
			present[note.Path] = struct{}{}
		}
	}

	if len(linked) > 0 {
		logger.DebugContext(ctx, "link expansion added documents", "count", len(linked))
	}
	return append(collapsed, linked...)
}

// collapseFragments replaces multiple chunks of the same note with one
// full-document candidate scored at the best fragment's score.
func (x *Expander) collapseFragments(ctx context.Context, candidates []Candidate) []Candidate {
	counts := make(map[string]int, len(candidates))
	for _, candidate := range candidates {
		counts[candidate.Source]++
	}

	logger := contextutil.LoggerFromContext(ctx)

	out := make([]Candidate, 0, len(candidates))
	done := make(map[string]struct{})
	for _, candidate := range candidates {
		if counts[candidate.Source] < 2 {
			out = append(out, candidate)
			continue
		}
		if _, ok := done[candidate.Source]; ok {
			continue
		}
		done[candidate.Source] = struct{}{}

		best := candidate.Score
		var mergedLinks []string
		for _, other := range candidates {
			if other.Source != candidate.Source {
				continue
			}
			if other.Score > best {
				best = other.Score
			}
			mergedLinks = append(mergedLinks, other.Links...)
		}

		content := x.fullText(ctx, candidate.Source)
		if content == "" {
			// Fall back to the best fragment alone.
			out = append(out, candidate)
			continue
		}

		logger.DebugContext(ctx, "collapsed fragmented note", "source", candidate.Source, "fragments", counts[candidate.Source])
		out = append(out, Candidate{
			Source:     candidate.Source,
			Content:    content,
			Score:      best,
			Provenance: ProvenanceRetrieved,
			Links:      dedupeStrings(mergedLinks),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// candidateLinks returns the candidate's outbound link targets, falling
// back to re-extracting them from the content when the index carries
// none.
func (x *Expander) candidateLinks(candidate Candidate) []string {
	if len(candidate.Links) > 0 {
		return candidate.Links
	}
	return links.Extract(candidate.Content)
}

// fullText loads the whole note, preferring the live file and falling
// back to the cataloged chunks when the file is gone.
func (x *Expander) fullText(ctx context.Context, relPath string) string {
	if note, err := x.scanner.ReadNote(relPath); err == nil {
		return note.Content
	}

	chunks, err := x.chunkRepo.ListBySource(ctx, relPath)
	if err != nil || len(chunks) == 0 {
		return ""
	}
	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		parts[i] = chunk.Text
	}
	return strings.Join(parts, "\n\n")
}

// matchNote resolves a wiki-link target against the catalog. Exact
// stem matches win over substring matches; ties go to the shortest
// path, then lexicographic order, so resolution is deterministic.
func matchNote(notes []*storage.NoteRecord, target string) *storage.NoteRecord {
	needle := strings.ToLower(strings.TrimSpace(target))
	if needle == "" {
		return nil
	}

	var stemMatches, substringMatches []*storage.NoteRecord
	for _, note := range notes {
		stem := strings.ToLower(strings.TrimSuffix(path.Base(note.Path), ".md"))
		if stem == needle {
			stemMatches = append(stemMatches, note)
			continue
		}
		if strings.Contains(strings.ToLower(note.Path), needle) {
			substringMatches = append(substringMatches, note)
		}
	}

	pool := stemMatches
	if len(pool) == 0 {
		pool = substringMatches
	}
	if len(pool) == 0 {
		return nil
	}

	sort.Slice(pool, func(i, j int) bool {
		if len(pool[i].Path) != len(pool[j].Path) {
			return len(pool[i].Path) < len(pool[j].Path)
		}
		return pool[i].Path < pool[j].Path
	})
	return pool[0]
}

func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
