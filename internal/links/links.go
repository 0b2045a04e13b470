// Package links extracts wiki-style cross-references from note text.
package links

import (
	"regexp"
	"strings"
)

var wikiLinkPattern = regexp.MustCompile(`\[\[(.*?)\]\]`)

// Extract returns the identifiers referenced by [[Target]] or [[Target|Alias]]
// syntax in text, in first-seen order with duplicates removed. The identifier
// is the Target portion with surrounding whitespace trimmed. Malformed or
// absent syntax yields an empty slice, never an error.
func Extract(text string) []string {
	matches := wikiLinkPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return []string{}
	}

	seen := make(map[string]struct{}, len(matches))
	unique := make([]string, 0, len(matches))
	for _, m := range matches {
		target := m[1]
		// [[Target|Alias]] -> Target
		if idx := strings.IndexByte(target, '|'); idx >= 0 {
			target = target[:idx]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		unique = append(unique, target)
	}
	return unique
}

// Join serializes a link list into the comma-separated form stored in chunk
// metadata. Split is its inverse.
func Join(targets []string) string {
	return strings.Join(targets, ",")
}

// Split parses a comma-separated link list from chunk metadata, dropping
// empty entries.
func Split(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
