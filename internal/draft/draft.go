// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package draft renders evidence for the writer and verifies that every
// citation in a generated draft points at evidence that was actually
// retrieved.
package draft

import (
	"strings"

	"github.com/pdiddy/grounded-copilot/pkg/types"
)

// evidenceSeparator joins rendered evidence blocks.
const evidenceSeparator = "\n\n---\n\n"

// RenderEvidence formats records as the writer sees them: each block is
// the bracketed citation tag on its own line followed by the passage text.
func RenderEvidence(records []types.EvidenceRecord) string {
	blocks := make([]string, len(records))
	for i, r := range records {
		blocks[i] = r.Citation() + "\n" + r.Text
	}
	return strings.Join(blocks, evidenceSeparator)
}

// ScanCitations returns the contents of every bracketed tag in text, in
// order, without brackets or trimming. A tag opens at '[' and closes at
// the next ']'. A '[' seen while a tag is open is part of its content,
// so "[a [b]" yields "a [b". An unterminated '[' and the empty tag "[]"
// yield nothing.
func ScanCitations(text string) []string {
	var tags []string
	start := -1
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '[':
			if start < 0 {
				start = i + 1
			}
		case ']':
			if start >= 0 && i > start {
				tags = append(tags, text[start:i])
			}
			start = -1
		}
	}
	return tags
}

// ValidTags returns the set of canonical tags rendered from records.
func ValidTags(records []types.EvidenceRecord) map[string]bool {
	valid := make(map[string]bool, len(records))
	for _, r := range records {
		valid[r.Tag()] = true
	}
	return valid
}

// UnknownCitations returns the trimmed tags in text that do not match any
// record, in order of appearance and without repeats.
func UnknownCitations(text string, records []types.EvidenceRecord) []string {
	valid := ValidTags(records)
	seen := make(map[string]bool)
	var unknown []string
	for _, raw := range ScanCitations(text) {
		tag := strings.TrimSpace(raw)
		if valid[tag] || seen[tag] {
			continue
		}
		seen[tag] = true
		unknown = append(unknown, tag)
	}
	return unknown
}
