// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ChunkManifest is the on-disk form of one segmented source document,
// stored as <name>-chunks.yaml under the index chunks/ directory.
// Segmentation happens upstream; the index only loads the result.
type ChunkManifest struct {
	// Source is the document identifier used in citation tags.
	Source string `json:"source" yaml:"source"`

	Chunks []ManifestChunk `json:"chunks" yaml:"chunks"`
}

// ManifestChunk is one passage of a ChunkManifest.
type ManifestChunk struct {
	// Page is the zero-based page the passage starts on.
	Page int `json:"page" yaml:"page"`

	// ChunkID is optional; when empty the chunk's position in the
	// manifest is used ("chunk_<index>").
	ChunkID string `json:"chunk_id,omitempty" yaml:"chunk_id,omitempty"`

	Text string `json:"text" yaml:"text"`
}
