// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// PipelineState is the run-scoped snapshot threaded through the
// orchestrator. A terminal snapshot is what callers receive from a run.
type PipelineState struct {
	// RunID identifies the run in logs and the run ledger.
	RunID string `json:"run_id" yaml:"run_id"`

	// Question is the caller's input. It never changes during a run.
	Question string `json:"question" yaml:"question"`

	// K is the current retrieval width. Retries widen it.
	K int `json:"k" yaml:"k"`

	// Plan is advisory text from the planner. It does not affect routing.
	Plan string `json:"plan" yaml:"plan"`

	// Research is the merged evidence for the current attempt.
	Research []EvidenceRecord `json:"research" yaml:"research"`

	// Draft is the last generated answer text.
	Draft string `json:"draft" yaml:"draft"`

	// Verified is the verdict of the last verification.
	Verified bool `json:"verified" yaml:"verified"`

	// Failure is the category of the last failed verification, if any.
	Failure string `json:"failure,omitempty" yaml:"failure,omitempty"`

	// Attempts counts completed verification cycles.
	Attempts int `json:"attempts" yaml:"attempts"`

	// FinalAnswer is the text delivered to the caller.
	FinalAnswer string `json:"final_answer" yaml:"final_answer"`

	// FailureReason is set when the retry budget ran out without a
	// grounded draft.
	FailureReason string `json:"failure_reason,omitempty" yaml:"failure_reason,omitempty"`

	// Blocked is set when the security gate rejected the question.
	Blocked bool `json:"blocked" yaml:"blocked"`

	// BlockReason names the pattern that triggered the gate.
	BlockReason string `json:"block_reason,omitempty" yaml:"block_reason,omitempty"`

	// Trace lists the stages visited, in order.
	Trace []string `json:"trace,omitempty" yaml:"trace,omitempty"`
}

// Clone returns a copy that shares no slices with s.
func (s PipelineState) Clone() PipelineState {
	c := s
	if s.Research != nil {
		c.Research = append([]EvidenceRecord(nil), s.Research...)
	}
	if s.Trace != nil {
		c.Trace = append([]string(nil), s.Trace...)
	}
	return c
}

// Outcome classifies a terminal snapshot.
type Outcome string

const (
	OutcomeBlocked  Outcome = "blocked"
	OutcomeVerified Outcome = "verified"
	OutcomeFallback Outcome = "fallback"
)

// Outcome reports how the run ended. A snapshot that is neither blocked
// nor verified ended on the fallback answer.
func (s PipelineState) Outcome() Outcome {
	switch {
	case s.Blocked:
		return OutcomeBlocked
	case s.Verified:
		return OutcomeVerified
	default:
		return OutcomeFallback
	}
}
