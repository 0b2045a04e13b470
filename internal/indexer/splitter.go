package indexer

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultChunkSize is the target chunk length in runes.
	DefaultChunkSize = 1500
	// DefaultChunkOverlap is how many runes consecutive chunks share.
	DefaultChunkOverlap = 300
)

// defaultSeparators orders split points from strongest to weakest.
// Heading markers come first so chunks break at section boundaries
// before falling back to paragraphs, lines, words, and raw runes.
var defaultSeparators = []string{"\n# ", "\n## ", "\n### ", "\n#### ", "\n\n", "\n", " ", ""}

// Splitter cuts note text into overlapping chunks for embedding.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewSplitter creates a splitter with the given chunk size and overlap,
// both measured in runes. Non-positive or inconsistent values fall back
// to defaults.
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
		if chunkOverlap >= chunkSize {
			chunkOverlap = chunkSize / 5
		}
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
	}
}

// Split breaks text into chunks of at most chunkSize runes. It splits
// on the strongest separator present, recursing into weaker separators
// for pieces that are still too large, and merges small neighboring
// pieces back together with chunkOverlap runes of shared context.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	chunks := s.split(text, s.separators)

	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		chunk = strings.TrimSpace(chunk)
		if chunk != "" {
			out = append(out, chunk)
		}
	}
	return out
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := ""
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	if separator == "" {
		return s.hardSplit(text)
	}

	pieces := splitKeepSeparator(text, separator)

	var final []string
	var pending []string
	for _, piece := range pieces {
		if utf8.RuneCountInString(piece) < s.chunkSize {
			pending = append(pending, piece)
			continue
		}

		if len(pending) > 0 {
			final = append(final, s.merge(pending)...)
			pending = nil
		}

		if len(rest) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.split(piece, rest)...)
		}
	}
	if len(pending) > 0 {
		final = append(final, s.merge(pending)...)
	}
	return final
}

// splitKeepSeparator splits text on sep, keeping the separator attached
// to the start of the piece it introduced so headings stay with their
// section text.
func splitKeepSeparator(text, sep string) []string {
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, part := range parts {
		if i > 0 {
			part = sep + part
		}
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// merge recombines small pieces into chunks close to chunkSize, sliding
// a window so consecutive chunks overlap by up to chunkOverlap runes.
func (s *Splitter) merge(pieces []string) []string {
	var chunks []string
	var window []string
	total := 0

	for _, piece := range pieces {
		n := utf8.RuneCountInString(piece)

		if total+n > s.chunkSize && len(window) > 0 {
			chunks = append(chunks, strings.Join(window, ""))
			for len(window) > 0 && (total > s.chunkOverlap || total+n > s.chunkSize) {
				total -= utf8.RuneCountInString(window[0])
				window = window[1:]
			}
		}

		window = append(window, piece)
		total += n
	}

	if len(window) > 0 {
		chunks = append(chunks, strings.Join(window, ""))
	}
	return chunks
}

// hardSplit slices text into fixed rune windows. Last resort for runs
// with no usable separator, e.g. very long unbroken strings.
func (s *Splitter) hardSplit(text string) []string {
	runes := []rune(text)
	if len(runes) <= s.chunkSize {
		return []string{text}
	}

	stride := s.chunkSize - s.chunkOverlap
	if stride <= 0 {
		stride = s.chunkSize
	}

	var out []string
	for start := 0; start < len(runes); start += stride {
		end := start + s.chunkSize
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			break
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}
