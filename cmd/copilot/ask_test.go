// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/grounded-copilot/pkg/types"
)

func TestPrintStatusVerified(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, types.PipelineState{
		RunID:       "run-1",
		K:           7,
		Plan:        "1. Find alert studies",
		Verified:    true,
		Attempts:    2,
		FinalAnswer: "Alerts need context [B.pdf p.0 chunk_2].",
		Research: []types.EvidenceRecord{
			{Text: "Alerts need context.", Source: "B.pdf", Page: 0, ChunkID: "chunk_2", Score: 0.12},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Alerts need context [B.pdf p.0 chunk_2].")
	assert.Contains(t, out, "Verified:  Yes")
	assert.Contains(t, out, "Attempts:  2")
	assert.Contains(t, out, "k:         7")
	assert.Contains(t, out, "1. Find alert studies")
	assert.Contains(t, out, "1. B.pdf p.0 chunk_2 (score=0.120)")
	assert.NotContains(t, out, "Reason:")
}

func TestPrintStatusFallback(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, types.PipelineState{
		Attempts:      2,
		K:             7,
		Failure:       "unknown_citation",
		FailureReason: "Could not produce a citation-grounded answer after retries.",
		FinalAnswer:   "No grounded answer.",
	})

	out := buf.String()
	assert.Contains(t, out, "Verified:  No")
	assert.Contains(t, out, "Reason:    Could not produce a citation-grounded answer after retries. (unknown_citation)")
	assert.NotContains(t, out, "Research sources")
}

func TestPrintStatusBlocked(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, types.PipelineState{
		Blocked:     true,
		BlockReason: `question matched prohibited phrase "reveal your system prompt"`,
		FinalAnswer: "I can't help with that request.",
	})

	out := buf.String()
	assert.Contains(t, out, "I can't help with that request.")
	assert.Contains(t, out, "Blocked:   question matched prohibited phrase")
	assert.NotContains(t, out, "Verified:")
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	assert.NoError(t, rootCmd.Execute())
	assert.Equal(t, "copilot dev\n", buf.String())
}
