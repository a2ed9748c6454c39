// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieval fans a question out to the evidence store as several
// query variants and merges the results into one ranked, deduplicated
// evidence set.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/grounded-copilot/pkg/types"
)

// Searcher is the evidence store contract: up to width records for a
// query, best first, with distance scores.
type Searcher interface {
	Search(ctx context.Context, query string, width int) ([]types.EvidenceRecord, error)
}

// questionPlaceholder is replaced by the caller's question in variants.
const questionPlaceholder = "{question}"

// Output holds the merged records and merge statistics.
type Output struct {
	Records     []types.EvidenceRecord `json:"records"`
	DupsRemoved int                    `json:"dups_removed"`

	// VariantErrors lists variants that failed while others succeeded.
	VariantErrors []string `json:"variant_errors,omitempty"`
}

// VariantError is one failed adapter call.
type VariantError struct {
	Query string
	Err   error
}

func (e VariantError) Error() string {
	return fmt.Sprintf("variant %q: %v", e.Query, e.Err)
}

// AdapterError reports that every variant failed, so the evidence store
// itself is unusable. It is never folded into an empty result.
type AdapterError struct {
	Failures []VariantError
}

func (e *AdapterError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return "evidence store unavailable: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the underlying adapter errors to errors.Is and errors.As.
func (e *AdapterError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// Merger runs the variant fan-out against one Searcher. It holds no
// per-call state and is safe for concurrent use.
type Merger struct {
	searcher Searcher
	cfg      types.RetrievalConfig
	log      *zap.Logger
}

// NewMerger creates a merger. A nil logger uses zap.L().
func NewMerger(s Searcher, cfg types.RetrievalConfig, logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.L()
	}
	if cfg.MinResults <= 0 {
		cfg.MinResults = 10
	}
	if cfg.OverfetchFloor <= 0 {
		cfg.OverfetchFloor = 30
	}
	if cfg.OverfetchMultiplier <= 0 {
		cfg.OverfetchMultiplier = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Merger{searcher: s, cfg: cfg, log: logger.Named("retrieval")}
}

// Queries returns the queries issued for question: the question itself,
// then each configured variant with {question} substituted. Blank and
// repeated queries are dropped.
func (m *Merger) Queries(question string) []string {
	seen := make(map[string]bool)
	queries := []string{question}
	seen[question] = true
	for _, v := range m.cfg.Variants {
		q := strings.TrimSpace(strings.ReplaceAll(v, questionPlaceholder, question))
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		queries = append(queries, q)
	}
	return queries
}

// Width is the per-variant fetch width for a retrieval width k.
func (m *Merger) Width(k int) int {
	return max(m.cfg.OverfetchFloor, k*m.cfg.OverfetchMultiplier)
}

// Limit is the number of merged records kept for a retrieval width k.
func (m *Merger) Limit(k int) int {
	return max(m.cfg.MinResults, k)
}

// Search issues every query variant concurrently and merges the results.
// Failed variants are skipped with a warning as long as one succeeds;
// when all fail an *AdapterError is returned. No results from any
// variant is an empty Output, not an error.
func (m *Merger) Search(ctx context.Context, question string, k int) (Output, error) {
	if k < 1 {
		return Output{}, fmt.Errorf("retrieval width k must be at least 1, got %d", k)
	}

	queries := m.Queries(question)
	width := m.Width(k)

	batches := make([][]types.EvidenceRecord, len(queries))
	errs := make([]error, len(queries))

	var g errgroup.Group
	g.SetLimit(m.cfg.Concurrency)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			batches[i], errs[i] = m.searcher.Search(ctx, q, width)
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	var (
		ok       [][]types.EvidenceRecord
		failures []VariantError
	)
	for i, err := range errs {
		if err != nil {
			failures = append(failures, VariantError{Query: queries[i], Err: err})
			m.log.Warn("variant search failed", zap.String("query", queries[i]), zap.Error(err))
			continue
		}
		ok = append(ok, batches[i])
	}

	if len(ok) == 0 {
		return Output{}, &AdapterError{Failures: failures}
	}

	records, removed := Merge(ok, m.Limit(k))

	out := Output{Records: records, DupsRemoved: removed}
	for _, f := range failures {
		out.VariantErrors = append(out.VariantErrors, f.Error())
	}

	m.log.Debug("merged evidence",
		zap.Int("k", k),
		zap.Int("variants", len(queries)),
		zap.Int("width", width),
		zap.Int("records", len(records)),
		zap.Int("dups_removed", removed),
	)
	return out, nil
}

// Merge combines batches in order, keeps the lowest-scored record per
// identity key, sorts ascending by score with ties broken by (source,
// page, chunk id), and truncates to limit. On equal scores the record
// seen first wins. It returns the merged records and the number of
// duplicates removed.
func Merge(batches [][]types.EvidenceRecord, limit int) ([]types.EvidenceRecord, int) {
	seen := make(map[types.EvidenceKey]int) // key → index in merged
	var merged []types.EvidenceRecord
	removed := 0

	for _, batch := range batches {
		for _, r := range batch {
			key := r.Key()
			if idx, ok := seen[key]; ok {
				if r.Score < merged[idx].Score {
					merged[idx] = r
				}
				removed++
				continue
			}
			seen[key] = len(merged)
			merged = append(merged, r)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return less(merged[i], merged[j])
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, removed
}

func less(a, b types.EvidenceRecord) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	if a.Page != b.Page {
		return a.Page < b.Page
	}
	return a.ChunkID < b.ChunkID
}

// IsAdapterError reports whether err is or wraps an *AdapterError.
func IsAdapterError(err error) bool {
	var ae *AdapterError
	return errors.As(err, &ae)
}
