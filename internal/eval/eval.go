// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package eval runs a fixed list of questions through the pipeline and
// reports how each one ended.
package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/grounded-copilot/pkg/types"
)

// DefaultExcerpt is the number of characters of each answer printed.
const DefaultExcerpt = 1200

// Answerer runs one question. *pipeline.Orchestrator satisfies it.
type Answerer interface {
	Run(ctx context.Context, question string, k int) (types.PipelineState, error)
}

// queryFile is the mapping form of a query file. A bare list of
// strings is accepted as well.
type queryFile struct {
	K       int      `json:"k" yaml:"k"`
	Queries []string `json:"queries" yaml:"queries"`
}

// LoadQueries reads a query file. Files ending in .json are parsed as
// JSON, everything else as YAML. Either form may be a list of questions
// or a mapping with "queries" and an optional "k". Blank questions are
// dropped.
func LoadQueries(path string) ([]string, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "eval: read %s", path)
	}

	unmarshal := yaml.Unmarshal
	if strings.EqualFold(filepath.Ext(path), ".json") {
		unmarshal = json.Unmarshal
	}

	var qf queryFile
	var list []string
	if err := unmarshal(data, &list); err == nil {
		qf.Queries = list
	} else if err := unmarshal(data, &qf); err != nil {
		return nil, 0, eris.Wrapf(err, "eval: parse %s", path)
	}

	var queries []string
	for _, q := range qf.Queries {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		return nil, 0, eris.Errorf("eval: %s contains no queries", path)
	}
	return queries, qf.K, nil
}

// Result is the outcome of one query.
type Result struct {
	Query    string              `json:"query" yaml:"query"`
	Outcome  types.Outcome       `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	Error    string              `json:"error,omitempty" yaml:"error,omitempty"`
	State    types.PipelineState `json:"state" yaml:"state"`
	Duration time.Duration       `json:"duration" yaml:"duration"`
}

// Report collects the results of a batch.
type Report struct {
	Results  []Result `json:"results" yaml:"results"`
	Verified int      `json:"verified" yaml:"verified"`
	Fallback int      `json:"fallback" yaml:"fallback"`
	Blocked  int      `json:"blocked" yaml:"blocked"`
	Errors   int      `json:"errors" yaml:"errors"`
}

// Runner evaluates queries one at a time, in file order.
type Runner struct {
	answerer Answerer
	k        int
	excerpt  int
	log      *zap.Logger
}

// NewRunner creates a runner. k below 1 lets the pipeline pick its
// default; excerpt below 1 uses DefaultExcerpt.
func NewRunner(a Answerer, k, excerpt int) *Runner {
	if excerpt < 1 {
		excerpt = DefaultExcerpt
	}
	return &Runner{answerer: a, k: k, excerpt: excerpt, log: zap.L().Named("eval")}
}

// Run answers every query and prints each answer excerpt to w followed
// by a summary. A failed query is counted and the batch continues;
// cancellation stops it and returns the partial report.
func (r *Runner) Run(ctx context.Context, queries []string, w io.Writer) (Report, error) {
	var rep Report
	rule := strings.Repeat("=", 80)
	thin := strings.Repeat("-", 80)

	for i, q := range queries {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		start := time.Now()
		state, err := r.answerer.Run(ctx, q, r.k)
		res := Result{Query: q, State: state, Duration: time.Since(start)}

		fmt.Fprintf(w, "\n%s\nQUERY %d: %s\n%s\n", rule, i+1, q, thin)

		if err != nil {
			if ctx.Err() != nil {
				return rep, ctx.Err()
			}
			res.Error = err.Error()
			rep.Errors++
			r.log.Warn("query failed", zap.Int("query", i+1), zap.Error(err))
			fmt.Fprintf(w, "ERROR: %v\n\n", err)
			rep.Results = append(rep.Results, res)
			continue
		}

		res.Outcome = state.Outcome()
		switch res.Outcome {
		case types.OutcomeVerified:
			rep.Verified++
		case types.OutcomeBlocked:
			rep.Blocked++
		default:
			rep.Fallback++
		}
		rep.Results = append(rep.Results, res)

		fmt.Fprintf(w, "%s\n\n", Excerpt(state.FinalAnswer, r.excerpt))
		fmt.Fprintf(w, "[%s] attempts=%d k=%d evidence=%d (%s)\n",
			res.Outcome, state.Attempts, state.K, len(state.Research), res.Duration.Round(time.Millisecond))
	}

	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintf(w, "%d queries: %d verified, %d fallback, %d blocked, %d errors\n",
		len(queries), rep.Verified, rep.Fallback, rep.Blocked, rep.Errors)
	return rep, nil
}

// Excerpt returns the first n characters of s, never splitting a rune.
func Excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// WriteReport saves rep as YAML, or as JSON when path ends in .json.
func WriteReport(path string, rep Report) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(rep, "", "  ")
	} else {
		data, err = yaml.Marshal(rep)
	}
	if err != nil {
		return eris.Wrap(err, "eval: marshal report")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "eval: create report directory")
		}
	}
	return eris.Wrap(os.WriteFile(path, data, 0o644), "eval: write report")
}
