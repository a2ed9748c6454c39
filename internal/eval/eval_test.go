// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package eval

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/grounded-copilot/pkg/types"
)

// fakeAnswerer maps questions to canned snapshots or errors.
type fakeAnswerer struct {
	states map[string]types.PipelineState
	errs   map[string]error
	calls  []string
	ks     []int
	onRun  func()
}

func (f *fakeAnswerer) Run(_ context.Context, question string, k int) (types.PipelineState, error) {
	f.calls = append(f.calls, question)
	f.ks = append(f.ks, k)
	if f.onRun != nil {
		f.onRun()
	}
	if err, ok := f.errs[question]; ok {
		return types.PipelineState{Question: question}, err
	}
	return f.states[question], nil
}

func TestLoadQueries(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    []string
		wantK   int
		wantErr bool
	}{
		{
			name:    "json list",
			file:    "queries.json",
			content: `["What is alert fatigue?", "  ", "Who governs models?"]`,
			want:    []string{"What is alert fatigue?", "Who governs models?"},
		},
		{
			name:    "json mapping",
			file:    "queries.json",
			content: `{"k": 7, "queries": ["Q1"]}`,
			want:    []string{"Q1"},
			wantK:   7,
		},
		{
			name:    "yaml list",
			file:    "queries.yaml",
			content: "- Q1\n- Q2\n",
			want:    []string{"Q1", "Q2"},
		},
		{
			name:    "yaml mapping",
			file:    "queries.yml",
			content: "k: 3\nqueries:\n  - Q1\n",
			want:    []string{"Q1"},
			wantK:   3,
		},
		{
			name:    "empty list",
			file:    "queries.yaml",
			content: "[]\n",
			wantErr: true,
		},
		{
			name:    "malformed json",
			file:    "queries.json",
			content: `{"queries": [`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			got, k, err := LoadQueries(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantK, k)
		})
	}
}

func TestLoadQueriesMissingFile(t *testing.T) {
	_, _, err := LoadQueries(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestRunnerRun(t *testing.T) {
	fa := &fakeAnswerer{
		states: map[string]types.PipelineState{
			"good":    {Question: "good", Verified: true, Attempts: 1, K: 5, FinalAnswer: "Grounded [A.pdf p.1 chunk_0]."},
			"weak":    {Question: "weak", Attempts: 2, K: 7, FinalAnswer: "No grounded answer."},
			"jailbrk": {Question: "jailbrk", Blocked: true, FinalAnswer: "Refused."},
		},
		errs: map[string]error{"broken": errors.New("adapter fault: drafting: overloaded")},
	}

	var buf bytes.Buffer
	rep, err := NewRunner(fa, 5, 0).Run(context.Background(), []string{"good", "weak", "jailbrk", "broken"}, &buf)
	require.NoError(t, err)

	assert.Equal(t, []string{"good", "weak", "jailbrk", "broken"}, fa.calls)
	assert.Equal(t, []int{5, 5, 5, 5}, fa.ks)
	assert.Equal(t, 1, rep.Verified)
	assert.Equal(t, 1, rep.Fallback)
	assert.Equal(t, 1, rep.Blocked)
	assert.Equal(t, 1, rep.Errors)
	require.Len(t, rep.Results, 4)
	assert.Equal(t, types.OutcomeVerified, rep.Results[0].Outcome)
	assert.Equal(t, "adapter fault: drafting: overloaded", rep.Results[3].Error)

	out := buf.String()
	assert.Contains(t, out, "QUERY 1: good")
	assert.Contains(t, out, "Grounded [A.pdf p.1 chunk_0].")
	assert.Contains(t, out, "[fallback] attempts=2 k=7")
	assert.Contains(t, out, "ERROR: adapter fault")
	assert.Contains(t, out, "4 queries: 1 verified, 1 fallback, 1 blocked, 1 errors")
}

func TestRunnerTruncatesAnswers(t *testing.T) {
	long := strings.Repeat("é", 50)
	fa := &fakeAnswerer{states: map[string]types.PipelineState{"q": {FinalAnswer: long, Verified: true}}}

	var buf bytes.Buffer
	_, err := NewRunner(fa, 0, 10).Run(context.Background(), []string{"q"}, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), strings.Repeat("é", 10)+"\n")
	assert.NotContains(t, buf.String(), strings.Repeat("é", 11))
}

func TestRunnerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fa := &fakeAnswerer{
		states: map[string]types.PipelineState{"q1": {Verified: true}},
		onRun:  cancel,
	}

	rep, err := NewRunner(fa, 5, 0).Run(ctx, []string{"q1", "q2"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"q1"}, fa.calls)
	assert.Len(t, rep.Results, 1)
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "abc", Excerpt("abc", 5))
	assert.Equal(t, "ab", Excerpt("abc", 2))
	assert.Equal(t, "", Excerpt("", 3))
	assert.Equal(t, "日本", Excerpt("日本語", 2))
}

func TestWriteReport(t *testing.T) {
	rep := Report{
		Results:  []Result{{Query: "q", Outcome: types.OutcomeVerified}},
		Verified: 1,
	}

	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "out", "report.yaml")
	require.NoError(t, WriteReport(yamlPath, rep))

	data, err := os.ReadFile(yamlPath)
	require.NoError(t, err)
	var got Report
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, 1, got.Verified)
	assert.Equal(t, "q", got.Results[0].Query)

	jsonPath := filepath.Join(dir, "report.json")
	require.NoError(t, WriteReport(jsonPath, rep))
	data, err = os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"verified": 1`)
}
