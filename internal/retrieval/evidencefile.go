// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieval

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/grounded-copilot/pkg/types"
)

// EvidenceFile is the on-disk form of one retrieval: the question, the
// width it ran with and the merged records. Saved files let a draft be
// checked against the exact evidence that produced it.
type EvidenceFile struct {
	Query   EvidenceQuery          `yaml:"query"`
	Records []types.EvidenceRecord `yaml:"records"`
	Summary EvidenceSummary        `yaml:"summary"`
}

// EvidenceQuery stores the retrieval inputs.
type EvidenceQuery struct {
	Question string   `yaml:"question"`
	K        int      `yaml:"k"`
	Variants []string `yaml:"variants,omitempty"`
}

// EvidenceSummary stores merge statistics and a timestamp.
type EvidenceSummary struct {
	Total             int       `yaml:"total"`
	DuplicatesRemoved int       `yaml:"duplicates_removed"`
	VariantErrors     []string  `yaml:"variant_errors,omitempty"`
	Timestamp         time.Time `yaml:"timestamp"`
}

// WriteEvidenceFile saves a retrieval to a YAML file.
func WriteEvidenceFile(path, question string, k int, queries []string, out Output) error {
	ef := EvidenceFile{
		Query: EvidenceQuery{
			Question: question,
			K:        k,
			Variants: queries,
		},
		Records: out.Records,
		Summary: EvidenceSummary{
			Total:             len(out.Records),
			DuplicatesRemoved: out.DupsRemoved,
			VariantErrors:     out.VariantErrors,
			Timestamp:         time.Now().UTC(),
		},
	}

	data, err := yaml.Marshal(&ef)
	if err != nil {
		return eris.Wrap(err, "retrieval: marshal evidence file")
	}
	return eris.Wrap(os.WriteFile(path, data, 0o644), "retrieval: write evidence file")
}

// ReadEvidenceFile loads a previously saved evidence file.
func ReadEvidenceFile(path string) (*EvidenceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "retrieval: read evidence file")
	}
	var ef EvidenceFile
	if err := yaml.Unmarshal(data, &ef); err != nil {
		return nil, eris.Wrap(err, "retrieval: parse evidence file")
	}
	return &ef, nil
}
