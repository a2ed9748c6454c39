// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/grounded-copilot/pkg/types"
)

// ExportFormat selects the export encoding.
type ExportFormat string

const (
	FormatYAML ExportFormat = "yaml"
	FormatJSON ExportFormat = "json"
)

// ExportEntry is one chunk in an index export, carrying its citation tag
// so the export can be checked against drafts by hand.
type ExportEntry struct {
	Tag     string `json:"tag" yaml:"tag"`
	Source  string `json:"source" yaml:"source"`
	Page    int    `json:"page" yaml:"page"`
	ChunkID string `json:"chunk_id" yaml:"chunk_id"`
	Text    string `json:"text" yaml:"text"`
}

// Export writes every indexed chunk to baseDir/index/export.<format> and
// returns the path written.
func (s *Store) Export(ctx context.Context, format ExportFormat) (string, error) {
	entries, err := s.exportEntries(ctx)
	if err != nil {
		return "", err
	}

	var data []byte
	switch format {
	case FormatYAML:
		data, err = yaml.Marshal(entries)
	case FormatJSON:
		data, err = json.MarshalIndent(entries, "", "  ")
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return "", eris.Wrapf(err, "knowledge: marshal %s", format)
	}

	path := filepath.Join(s.baseDir, indexDir, "export."+string(format))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrap(err, "knowledge: write export")
	}
	return path, nil
}

func (s *Store) exportEntries(ctx context.Context) ([]ExportEntry, error) {
	records, err := s.All(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]ExportEntry, len(records))
	for i, r := range records {
		entries[i] = exportEntry(r)
	}
	return entries, nil
}

func exportEntry(r types.EvidenceRecord) ExportEntry {
	return ExportEntry{
		Tag:     r.Tag(),
		Source:  r.Source,
		Page:    r.Page,
		ChunkID: r.ChunkID,
		Text:    r.Text,
	}
}
