// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package generate produces plans and cited drafts by prompting a text
// generation service.
package generate

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/grounded-copilot/internal/draft"
	"github.com/pdiddy/grounded-copilot/pkg/types"
)

// TextGenerator turns a prompt into text. Implementations must honour
// context cancellation.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Planner writes a short plan for answering a question.
type Planner struct {
	gen TextGenerator
}

// NewPlanner creates a planner backed by gen.
func NewPlanner(gen TextGenerator) *Planner {
	return &Planner{gen: gen}
}

// Plan returns the generated plan, trimmed.
func (p *Planner) Plan(ctx context.Context, question string) (string, error) {
	prompt, err := render(planPromptTmpl, planPromptData{Question: question})
	if err != nil {
		return "", eris.Wrap(err, "generate: render plan prompt")
	}
	out, err := p.gen.Generate(ctx, prompt)
	if err != nil {
		return "", eris.Wrap(err, "generate: plan")
	}
	return strings.TrimSpace(out), nil
}

// Writer drafts cited answers from retrieved evidence.
type Writer struct {
	gen             TextGenerator
	summaryHeading  string
	maxSummaryWords int
}

// NewWriter creates a writer whose prompt asks for the summary section
// the verifier checks.
func NewWriter(gen TextGenerator, cfg types.VerificationConfig) *Writer {
	w := &Writer{
		gen:             gen,
		summaryHeading:  cfg.SummaryHeading,
		maxSummaryWords: cfg.MaxSummaryWords,
	}
	if w.summaryHeading == "" {
		w.summaryHeading = "Executive Summary"
	}
	if w.maxSummaryWords <= 0 {
		w.maxSummaryWords = 150
	}
	return w
}

// Prompt renders the writer prompt for question and evidence.
func (w *Writer) Prompt(question string, evidence []types.EvidenceRecord) (string, error) {
	return render(draftPromptTmpl, draftPromptData{
		Question:        question,
		Evidence:        draft.RenderEvidence(evidence),
		SummaryHeading:  w.summaryHeading,
		MaxSummaryWords: w.maxSummaryWords,
	})
}

// Draft returns a report answering question from evidence, with inline
// citation tags. It does not check the tags.
func (w *Writer) Draft(ctx context.Context, question string, evidence []types.EvidenceRecord) (string, error) {
	prompt, err := w.Prompt(question, evidence)
	if err != nil {
		return "", eris.Wrap(err, "generate: render draft prompt")
	}
	out, err := w.gen.Generate(ctx, prompt)
	if err != nil {
		return "", eris.Wrap(err, "generate: draft")
	}
	return out, nil
}
