// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package knowledge holds the evidence index: segmented document chunks
// loaded into SQLite FTS5 and searched with BM25 ranking. It also
// provides a client for a remote vector search service with the same
// Search contract.
package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"
	_ "modernc.org/sqlite"

	"github.com/pdiddy/grounded-copilot/pkg/types"
)

const (
	chunksDir      = "chunks"
	indexDir       = "index"
	dbFile         = "evidence.db"
	manifestSuffix = "-chunks.yaml"
)

// Store manages the evidence index database.
type Store struct {
	db         *sql.DB
	baseDir    string
	maxResults int
	log        *zap.Logger
}

// NewStore opens or creates the evidence index at
// cfg.IndexDir/index/evidence.db and creates the schema if needed.
func NewStore(cfg types.EvidenceConfig) (*Store, error) {
	dbDir := filepath.Join(cfg.IndexDir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "knowledge: create index directory")
	}

	db, err := sql.Open("sqlite", filepath.Join(dbDir, dbFile))
	if err != nil {
		return nil, eris.Wrap(err, "knowledge: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "knowledge: exec %s", pragma)
		}
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 100
	}

	s := &Store{
		db:         db,
		baseDir:    cfg.IndexDir,
		maxResults: maxResults,
		log:        zap.L().Named("knowledge"),
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS chunks (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL,
			page INTEGER NOT NULL,
			chunk_id TEXT NOT NULL,
			text TEXT NOT NULL,
			UNIQUE(source, page, chunk_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source)`,
		`CREATE TABLE IF NOT EXISTS ingest_status (
			manifest TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			file_mod_time TEXT
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return eris.Wrap(err, "knowledge: create schema")
		}
	}

	// FTS5 virtual table kept in sync by triggers.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='chunks_fts'`,
	).Scan(&ftsExists); err != nil {
		return eris.Wrap(err, "knowledge: check FTS table")
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE chunks_fts USING fts5(text, content=chunks, content_rowid=rowid)`,
			`CREATE TRIGGER chunks_ai AFTER INSERT ON chunks BEGIN
				INSERT INTO chunks_fts(rowid, text) VALUES (new.rowid, new.text);
			END`,
			`CREATE TRIGGER chunks_ad AFTER DELETE ON chunks BEGIN
				INSERT INTO chunks_fts(chunks_fts, rowid, text) VALUES('delete', old.rowid, old.text);
			END`,
			`CREATE TRIGGER chunks_au AFTER UPDATE ON chunks BEGIN
				INSERT INTO chunks_fts(chunks_fts, rowid, text) VALUES('delete', old.rowid, old.text);
				INSERT INTO chunks_fts(rowid, text) VALUES (new.rowid, new.text);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return eris.Wrap(err, "knowledge: create FTS infrastructure")
			}
		}
	}

	return nil
}

// IngestSummary holds counts from an indexing run.
type IngestSummary struct {
	Indexed int
	Updated int
	Skipped int
	Failed  int
	Chunks  int
}

// Total returns the number of manifests processed.
func (s IngestSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// Ingest loads chunk manifests from baseDir/chunks/ into the index.
// Manifests whose modification time matches the last run are skipped;
// changed manifests replace every chunk of their source.
func (s *Store) Ingest(ctx context.Context, w io.Writer) (IngestSummary, error) {
	dir := filepath.Join(s.baseDir, chunksDir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return IngestSummary{}, eris.Wrapf(err, "knowledge: read chunks directory %s", dir)
	}

	var summary IngestSummary

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), manifestSuffix) {
			continue
		}

		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		name := strings.TrimSuffix(entry.Name(), manifestSuffix)

		info, err := entry.Info()
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}
		modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

		var storedModTime, storedSource string
		err = s.db.QueryRowContext(ctx,
			`SELECT file_mod_time, source FROM ingest_status WHERE manifest = ?`, name,
		).Scan(&storedModTime, &storedSource)

		if err == nil && storedModTime == modTime {
			fmt.Fprintf(w, "skipped %s\n", name)
			summary.Skipped++
			continue
		}

		isUpdate := err == nil

		m, err := readManifest(filepath.Join(dir, entry.Name()))
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}
		if m.Source == "" {
			m.Source = name
		}

		if err := s.ingestManifest(ctx, name, m, storedSource, modTime); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}

		summary.Chunks += len(m.Chunks)
		if isUpdate {
			fmt.Fprintf(w, "updated %s (%d chunks)\n", m.Source, len(m.Chunks))
			summary.Updated++
		} else {
			fmt.Fprintf(w, "indexing %s (%d chunks)\n", m.Source, len(m.Chunks))
			summary.Indexed++
		}
	}

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Failed)

	s.log.Info("ingest complete",
		zap.Int("indexed", summary.Indexed),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("chunks", summary.Chunks),
	)

	return summary, nil
}

func readManifest(path string) (*types.ChunkManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m types.ChunkManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return &m, nil
}

func (s *Store) ingestManifest(ctx context.Context, name string, m *types.ChunkManifest, previousSource, modTime string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "knowledge: begin transaction")
	}
	defer tx.Rollback()

	for _, src := range []string{previousSource, m.Source} {
		if src == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE source = ?`, src); err != nil {
			return eris.Wrap(err, "knowledge: delete old chunks")
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (source, page, chunk_id, text) VALUES (?, ?, ?, ?)
		 ON CONFLICT(source, page, chunk_id) DO UPDATE SET text=excluded.text`)
	if err != nil {
		return eris.Wrap(err, "knowledge: prepare insert")
	}
	defer stmt.Close()

	for i, c := range m.Chunks {
		if c.Page < 0 {
			return fmt.Errorf("chunk %d has negative page %d", i, c.Page)
		}
		chunkID := c.ChunkID
		if chunkID == "" {
			chunkID = types.ChunkLabel(i)
		}
		if _, err := stmt.ExecContext(ctx, m.Source, c.Page, chunkID, c.Text); err != nil {
			return eris.Wrapf(err, "knowledge: insert %s", chunkID)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ingest_status (manifest, source, file_mod_time) VALUES (?, ?, ?)
		 ON CONFLICT(manifest) DO UPDATE SET source=excluded.source, file_mod_time=excluded.file_mod_time`,
		name, m.Source, modTime,
	)
	if err != nil {
		return eris.Wrap(err, "knowledge: update ingest status")
	}

	return tx.Commit()
}

// Count returns the number of indexed chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM chunks`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "knowledge: count chunks")
	}
	return n, nil
}
