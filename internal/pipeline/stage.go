// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"

	"github.com/pdiddy/grounded-copilot/pkg/types"
)

// Stage is a step of the answer state machine.
type Stage int

const (
	StageStart Stage = iota
	StageBlocked
	StagePlanning
	StageResearching
	StageDrafting
	StageVerifying
	StageDelivered
)

var stageNames = [...]string{
	StageStart:       "start",
	StageBlocked:     "blocked",
	StagePlanning:    "planning",
	StageResearching: "researching",
	StageDrafting:    "drafting",
	StageVerifying:   "verifying",
	StageDelivered:   "delivered",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Terminal reports whether the run ends after this stage.
func (s Stage) Terminal() bool {
	return s == StageBlocked || s == StageDelivered
}

// next returns the stage that follows stage given the snapshot produced
// by it. Routing depends only on the snapshot and maxAttempts.
func next(stage Stage, s types.PipelineState, maxAttempts int) (Stage, error) {
	switch stage {
	case StageStart:
		if s.Blocked {
			return StageBlocked, nil
		}
		return StagePlanning, nil
	case StagePlanning:
		return StageResearching, nil
	case StageResearching:
		return StageDrafting, nil
	case StageDrafting:
		return StageVerifying, nil
	case StageVerifying:
		if s.Verified || s.Attempts >= maxAttempts {
			return StageDelivered, nil
		}
		return StageResearching, nil
	case StageBlocked, StageDelivered:
		return stage, fmt.Errorf("no transition out of terminal stage %s", stage)
	default:
		return stage, fmt.Errorf("unknown stage %s", stage)
	}
}

// patch is the set of fields a stage changes. Nil fields are left as
// they are.
type patch struct {
	plan          *string
	research      []types.EvidenceRecord
	setResearch   bool
	draft         *string
	verified      *bool
	failure       *string
	attempts      *int
	k             *int
	finalAnswer   *string
	failureReason *string
	blocked       *bool
	blockReason   *string
}

// apply returns a copy of s with p applied and stage appended to the
// trace. s is not modified.
func apply(s types.PipelineState, stage Stage, p patch) types.PipelineState {
	out := s.Clone()
	if p.plan != nil {
		out.Plan = *p.plan
	}
	if p.setResearch {
		out.Research = append([]types.EvidenceRecord(nil), p.research...)
	}
	if p.draft != nil {
		out.Draft = *p.draft
	}
	if p.verified != nil {
		out.Verified = *p.verified
	}
	if p.failure != nil {
		out.Failure = *p.failure
	}
	if p.attempts != nil {
		out.Attempts = *p.attempts
	}
	if p.k != nil {
		out.K = *p.k
	}
	if p.finalAnswer != nil {
		out.FinalAnswer = *p.finalAnswer
	}
	if p.failureReason != nil {
		out.FailureReason = *p.failureReason
	}
	if p.blocked != nil {
		out.Blocked = *p.blocked
	}
	if p.blockReason != nil {
		out.BlockReason = *p.blockReason
	}
	out.Trace = append(out.Trace, stage.String())
	return out
}

func ptr[T any](v T) *T { return &v }
