// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/grounded-copilot/pkg/types"
)

// Search returns up to width chunks matching query, best first. Score
// is a distance in (0, 1] derived from the BM25 rank, so smaller means
// more relevant. Ties are ordered by (source, page, chunk_id). A query
// with no searchable terms returns no records and no error.
func (s *Store) Search(ctx context.Context, query string, width int) ([]types.EvidenceRecord, error) {
	if width <= 0 || width > s.maxResults {
		width = s.maxResults
	}

	match := MatchQuery(query)
	if match == "" {
		s.log.Debug("query has no searchable terms", zap.String("query", query))
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.source, c.page, c.chunk_id, c.text, chunks_fts.rank
		FROM chunks_fts
		JOIN chunks c ON c.rowid = chunks_fts.rowid
		WHERE chunks_fts MATCH ?
		ORDER BY chunks_fts.rank, c.source, c.page, c.chunk_id
		LIMIT ?`, match, width)
	if err != nil {
		return nil, eris.Wrap(err, "knowledge: search")
	}
	defer rows.Close()

	var records []types.EvidenceRecord
	for rows.Next() {
		var (
			r    types.EvidenceRecord
			rank float64
		)
		if err := rows.Scan(&r.Source, &r.Page, &r.ChunkID, &r.Text, &rank); err != nil {
			return nil, eris.Wrap(err, "knowledge: scan row")
		}
		r.Score = rankDistance(rank)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "knowledge: iterate rows")
	}

	s.log.Debug("search",
		zap.String("match", match),
		zap.Int("width", width),
		zap.Int("results", len(records)),
	)
	return records, nil
}

// rankDistance maps an FTS5 bm25 rank (negative, more negative is
// better) to a distance in (0, 1].
func rankDistance(rank float64) float64 {
	return 1 / (1 + math.Max(0, -rank))
}

// All returns every indexed chunk ordered by (source, page, chunk_id),
// with a zero score.
func (s *Store) All(ctx context.Context) ([]types.EvidenceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, page, chunk_id, text FROM chunks ORDER BY source, page, chunk_id`)
	if err != nil {
		return nil, eris.Wrap(err, "knowledge: list chunks")
	}
	defer rows.Close()

	var records []types.EvidenceRecord
	for rows.Next() {
		var r types.EvidenceRecord
		if err := rows.Scan(&r.Source, &r.Page, &r.ChunkID, &r.Text); err != nil {
			return nil, eris.Wrap(err, "knowledge: scan row")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "knowledge: iterate rows")
}
