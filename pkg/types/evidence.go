// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the grounded-copilot pipeline:
// evidence records and their citation tags, the run snapshot threaded
// through the orchestrator, and configuration.
package types

import "fmt"

// EvidenceRecord is one retrieved passage. Score is a distance: smaller
// means more relevant.
type EvidenceRecord struct {
	// Text is the passage content.
	Text string `json:"text" yaml:"text"`

	// Source is the document identifier, usually a filename (e.g. "A.pdf").
	Source string `json:"source" yaml:"source"`

	// Page is the zero-based page number within the source.
	Page int `json:"page" yaml:"page"`

	// ChunkID identifies the passage within its source (e.g. "chunk_12").
	ChunkID string `json:"chunk_id" yaml:"chunk_id"`

	// Score is a non-negative relevance distance.
	Score float64 `json:"score" yaml:"score"`
}

// EvidenceKey is the identity of an EvidenceRecord. It must be unique
// across the evidence set handed to the writer.
type EvidenceKey struct {
	Source  string
	Page    int
	ChunkID string
}

// Key returns the record's identity triple.
func (r EvidenceRecord) Key() EvidenceKey {
	return EvidenceKey{Source: r.Source, Page: r.Page, ChunkID: r.ChunkID}
}

// Tag renders the canonical citation text without brackets:
// "<source> p.<page> <chunk_id>". The verifier compares against this
// string byte for byte.
func (r EvidenceRecord) Tag() string {
	return fmt.Sprintf("%s p.%d %s", r.Source, r.Page, r.ChunkID)
}

// Citation renders the bracketed tag as it must appear in a draft.
func (r EvidenceRecord) Citation() string {
	return "[" + r.Tag() + "]"
}

// ChunkLabel formats a sequence number as a chunk identifier ("chunk_<n>").
func ChunkLabel(n int) string {
	return fmt.Sprintf("chunk_%d", n)
}
