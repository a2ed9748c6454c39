// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger persists terminal pipeline snapshots so runs can be
// listed and inspected after the fact.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"

	"github.com/pdiddy/grounded-copilot/pkg/types"
)

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("run not found")

// Ledger stores runs in a SQLite database. It is safe for concurrent use.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Run is a stored snapshot plus what the ledger knows about it.
type Run struct {
	State     types.PipelineState `json:"state" yaml:"state"`
	Outcome   types.Outcome       `json:"outcome" yaml:"outcome"`
	Error     string              `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt time.Time           `json:"created_at" yaml:"created_at"`
}

// Summary is one row of List.
type Summary struct {
	RunID     string        `json:"run_id"`
	Question  string        `json:"question"`
	Outcome   types.Outcome `json:"outcome"`
	Attempts  int           `json:"attempts"`
	K         int           `json:"k"`
	Evidence  int           `json:"evidence"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Open opens or creates the ledger database at cfg.Path.
func Open(cfg types.LedgerConfig) (*Ledger, error) {
	if cfg.Path == "" {
		return nil, eris.New("ledger: path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrap(err, "ledger: create directory")
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, eris.Wrap(err, "ledger: open database")
	}

	l := &Ledger{db: db, now: time.Now}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "ledger: create schema")
	}
	return l, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createSchema() error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id         TEXT PRIMARY KEY,
			question       TEXT NOT NULL,
			k              INTEGER NOT NULL,
			plan           TEXT NOT NULL DEFAULT '',
			draft          TEXT NOT NULL DEFAULT '',
			verified       INTEGER NOT NULL DEFAULT 0,
			failure        TEXT NOT NULL DEFAULT '',
			attempts       INTEGER NOT NULL DEFAULT 0,
			final_answer   TEXT NOT NULL DEFAULT '',
			failure_reason TEXT NOT NULL DEFAULT '',
			blocked        INTEGER NOT NULL DEFAULT 0,
			block_reason   TEXT NOT NULL DEFAULT '',
			outcome        TEXT NOT NULL,
			trace          TEXT NOT NULL DEFAULT '[]',
			error          TEXT NOT NULL DEFAULT '',
			created_at     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at)`,
		`CREATE TABLE IF NOT EXISTS run_evidence (
			run_id   TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			rank     INTEGER NOT NULL,
			source   TEXT NOT NULL,
			page     INTEGER NOT NULL,
			chunk_id TEXT NOT NULL,
			score    REAL NOT NULL,
			text     TEXT NOT NULL,
			PRIMARY KEY (run_id, rank)
		)`,
	}
	for _, stmt := range ddl {
		if _, err := l.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Record stores a terminal snapshot and the evidence of its last
// attempt. Recording the same run id again replaces the earlier row.
func (l *Ledger) Record(ctx context.Context, state types.PipelineState, runErr error) error {
	if state.RunID == "" {
		return eris.New("ledger: run id is required")
	}
	trace, err := json.Marshal(state.Trace)
	if err != nil {
		return eris.Wrap(err, "ledger: marshal trace")
	}
	var errText string
	if runErr != nil {
		errText = runErr.Error()
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "ledger: begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, state.RunID); err != nil {
		return eris.Wrap(err, "ledger: clear previous run")
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(run_id, question, k, plan, draft, verified, failure, attempts, final_answer,
		 failure_reason, blocked, block_reason, outcome, trace, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		state.RunID, state.Question, state.K, state.Plan, state.Draft, boolInt(state.Verified),
		state.Failure, state.Attempts, state.FinalAnswer, state.FailureReason,
		boolInt(state.Blocked), state.BlockReason, string(outcome(state, runErr)), string(trace),
		errText, l.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return eris.Wrapf(err, "ledger: insert run %s", state.RunID)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_evidence
		(run_id, rank, source, page, chunk_id, score, text) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "ledger: prepare evidence insert")
	}
	defer stmt.Close()

	for i, r := range state.Research {
		if _, err := stmt.ExecContext(ctx, state.RunID, i+1, r.Source, r.Page, r.ChunkID, r.Score, r.Text); err != nil {
			return eris.Wrapf(err, "ledger: insert evidence %d", i+1)
		}
	}

	return eris.Wrap(tx.Commit(), "ledger: commit")
}

// List returns the most recent runs, newest first. limit <= 0 means 20.
func (l *Ledger) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT r.run_id, r.question, r.outcome, r.attempts, r.k, r.error, r.created_at,
		       (SELECT COUNT(*) FROM run_evidence e WHERE e.run_id = r.run_id)
		FROM runs r
		ORDER BY r.created_at DESC, r.run_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: list runs")
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		var outcome, created string
		if err := rows.Scan(&s.RunID, &s.Question, &outcome, &s.Attempts, &s.K, &s.Error, &created, &s.Evidence); err != nil {
			return nil, eris.Wrap(err, "ledger: scan run")
		}
		s.Outcome = types.Outcome(outcome)
		s.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, s)
	}
	return out, eris.Wrap(rows.Err(), "ledger: list runs")
}

// Get loads one run with its evidence in rank order.
func (l *Ledger) Get(ctx context.Context, runID string) (*Run, error) {
	var (
		run                     Run
		verified, blocked       int
		outcome, trace, created string
	)
	s := &run.State
	err := l.db.QueryRowContext(ctx, `
		SELECT run_id, question, k, plan, draft, verified, failure, attempts, final_answer,
		       failure_reason, blocked, block_reason, outcome, trace, error, created_at
		FROM runs WHERE run_id = ?`, runID).Scan(
		&s.RunID, &s.Question, &s.K, &s.Plan, &s.Draft, &verified, &s.Failure, &s.Attempts,
		&s.FinalAnswer, &s.FailureReason, &blocked, &s.BlockReason, &outcome, &trace,
		&run.Error, &created,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: load run %s", runID)
	}
	s.Verified = verified != 0
	s.Blocked = blocked != 0
	run.Outcome = types.Outcome(outcome)
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	if err := json.Unmarshal([]byte(trace), &s.Trace); err != nil {
		return nil, eris.Wrapf(err, "ledger: parse trace of run %s", runID)
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT source, page, chunk_id, score, text
		FROM run_evidence WHERE run_id = ? ORDER BY rank`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: load evidence of run %s", runID)
	}
	defer rows.Close()
	for rows.Next() {
		var r types.EvidenceRecord
		if err := rows.Scan(&r.Source, &r.Page, &r.ChunkID, &r.Score, &r.Text); err != nil {
			return nil, eris.Wrap(err, "ledger: scan evidence")
		}
		s.Research = append(s.Research, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "ledger: load evidence of run %s", runID)
	}
	return &run, nil
}

// outcome labels aborted runs "error" and terminal runs by their snapshot.
func outcome(s types.PipelineState, runErr error) types.Outcome {
	if runErr != nil {
		return OutcomeError
	}
	return s.Outcome()
}

// OutcomeError marks runs that ended on an adapter fault or cancellation.
const OutcomeError types.Outcome = "error"

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
