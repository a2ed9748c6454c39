// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs one question through the gate, planner,
// retrieval, drafting and verification stages with a bounded number of
// retrieve-draft-verify cycles.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/grounded-copilot/internal/draft"
	"github.com/pdiddy/grounded-copilot/internal/retrieval"
	"github.com/pdiddy/grounded-copilot/pkg/types"
)

// ErrAdapterFault marks a run aborted because the evidence store or the
// text generator failed outright. Test with errors.Is.
var ErrAdapterFault = errors.New("adapter fault")

// Gate screens questions before any other work.
type Gate interface {
	Match(question string) (string, bool)
}

// Planner writes the advisory plan.
type Planner interface {
	Plan(ctx context.Context, question string) (string, error)
}

// Retriever returns merged evidence for a question at width k.
type Retriever interface {
	Search(ctx context.Context, question string, k int) (retrieval.Output, error)
}

// Writer drafts a cited answer.
type Writer interface {
	Draft(ctx context.Context, question string, evidence []types.EvidenceRecord) (string, error)
}

// Verifier checks a draft's citations.
type Verifier interface {
	Verify(text string, evidence []types.EvidenceRecord) draft.Verdict
}

// Recorder persists finished runs. runErr is nil for runs that reached
// a terminal stage.
type Recorder interface {
	Record(ctx context.Context, state types.PipelineState, runErr error) error
}

// Deps are the collaborators of an Orchestrator. Recorder is optional.
type Deps struct {
	Gate      Gate
	Planner   Planner
	Retriever Retriever
	Writer    Writer
	Verifier  Verifier
	Recorder  Recorder
}

// Settings bound the retry loop and supply the canned answers.
type Settings struct {
	DefaultK    int
	KStep       int
	MaxK        int
	MaxAttempts int

	Refusal        string
	FallbackAnswer string
	FailureReason  string
}

// SettingsFromConfig extracts orchestrator settings from cfg.
func SettingsFromConfig(cfg *types.Config) Settings {
	return Settings{
		DefaultK:       cfg.Retrieval.DefaultK,
		KStep:          cfg.Retrieval.KStep,
		MaxK:           cfg.Retrieval.MaxK,
		MaxAttempts:    cfg.Pipeline.MaxAttempts,
		Refusal:        cfg.Security.Refusal,
		FallbackAnswer: cfg.Pipeline.FallbackAnswer,
		FailureReason:  cfg.Pipeline.FailureReason,
	}
}

// Orchestrator drives the stage machine. It keeps no per-run state, so
// concurrent Run calls are safe when the Deps are.
type Orchestrator struct {
	deps Deps
	cfg  Settings
	log  *zap.Logger
}

// New creates an orchestrator. A nil logger uses zap.L().
func New(deps Deps, cfg Settings, logger *zap.Logger) (*Orchestrator, error) {
	switch {
	case deps.Gate == nil:
		return nil, errors.New("pipeline: gate is required")
	case deps.Planner == nil:
		return nil, errors.New("pipeline: planner is required")
	case deps.Retriever == nil:
		return nil, errors.New("pipeline: retriever is required")
	case deps.Writer == nil:
		return nil, errors.New("pipeline: writer is required")
	case deps.Verifier == nil:
		return nil, errors.New("pipeline: verifier is required")
	case cfg.MaxAttempts < 1:
		return nil, fmt.Errorf("pipeline: max attempts must be at least 1, got %d", cfg.MaxAttempts)
	case cfg.DefaultK < 1:
		return nil, fmt.Errorf("pipeline: default k must be at least 1, got %d", cfg.DefaultK)
	}
	if cfg.MaxK < cfg.DefaultK {
		cfg.MaxK = cfg.DefaultK
	}
	if cfg.KStep < 0 {
		cfg.KStep = 0
	}
	if logger == nil {
		logger = zap.L()
	}
	return &Orchestrator{deps: deps, cfg: cfg, log: logger.Named("pipeline")}, nil
}

// Run answers question. k below 1 uses the configured default.
//
// Blocked questions, grounded answers and exhausted retries all return a
// terminal snapshot and a nil error. An adapter failure returns the
// snapshot reached so far and an error wrapping ErrAdapterFault;
// cancellation returns the context's error.
func (o *Orchestrator) Run(ctx context.Context, question string, k int) (types.PipelineState, error) {
	if k < 1 {
		k = o.cfg.DefaultK
	}
	state := types.PipelineState{
		RunID:    uuid.NewString(),
		Question: question,
		K:        k,
	}
	log := o.log.With(zap.String("run_id", state.RunID))

	stage := StageStart
	for {
		if err := ctx.Err(); err != nil {
			return o.finish(ctx, log, state, err)
		}

		p, err := o.step(ctx, stage, state)
		if err != nil {
			return o.finish(ctx, log, state, err)
		}
		state = apply(state, stage, p)

		log.Debug("stage complete",
			zap.Stringer("stage", stage),
			zap.Int("k", state.K),
			zap.Int("attempts", state.Attempts),
			zap.Int("evidence", len(state.Research)),
		)

		if stage.Terminal() {
			return o.finish(ctx, log, state, nil)
		}

		stage, err = next(stage, state, o.cfg.MaxAttempts)
		if err != nil {
			return o.finish(ctx, log, state, err)
		}
	}
}

func (o *Orchestrator) finish(ctx context.Context, log *zap.Logger, state types.PipelineState, runErr error) (types.PipelineState, error) {
	if runErr != nil {
		log.Error("run aborted", zap.Strings("trace", state.Trace), zap.Error(runErr))
	} else {
		log.Info("run complete",
			zap.String("outcome", string(state.Outcome())),
			zap.Int("attempts", state.Attempts),
			zap.Int("k", state.K),
			zap.String("failure", state.Failure),
		)
	}

	if o.deps.Recorder != nil {
		// Record even when ctx is done so aborted runs are still visible.
		if err := o.deps.Recorder.Record(context.WithoutCancel(ctx), state, runErr); err != nil {
			log.Warn("recording run failed", zap.Error(err))
		}
	}
	return state, runErr
}

// step executes one stage against an immutable snapshot and returns the
// changes it makes.
func (o *Orchestrator) step(ctx context.Context, stage Stage, s types.PipelineState) (patch, error) {
	switch stage {
	case StageStart:
		return o.start(s), nil
	case StageBlocked:
		return patch{
			finalAnswer: ptr(o.cfg.Refusal),
			attempts:    ptr(0),
			verified:    ptr(false),
		}, nil
	case StagePlanning:
		return o.plan(ctx, s)
	case StageResearching:
		return o.research(ctx, s)
	case StageDrafting:
		return o.draft(ctx, s)
	case StageVerifying:
		return o.verify(s), nil
	case StageDelivered:
		return o.deliver(s), nil
	default:
		return patch{}, fmt.Errorf("unknown stage %s", stage)
	}
}

func (o *Orchestrator) start(s types.PipelineState) patch {
	pattern, blocked := o.deps.Gate.Match(s.Question)
	if !blocked {
		return patch{blocked: ptr(false)}
	}
	return patch{
		blocked:     ptr(true),
		blockReason: ptr(fmt.Sprintf("question matched prohibited phrase %q", pattern)),
	}
}

func (o *Orchestrator) plan(ctx context.Context, s types.PipelineState) (patch, error) {
	plan, err := o.deps.Planner.Plan(ctx, s.Question)
	if err != nil {
		return patch{}, o.adapterFault(ctx, "planning", err)
	}
	return patch{plan: ptr(plan), attempts: ptr(0)}, nil
}

func (o *Orchestrator) research(ctx context.Context, s types.PipelineState) (patch, error) {
	out, err := o.deps.Retriever.Search(ctx, s.Question, s.K)
	if err != nil {
		if retrieval.IsAdapterError(err) {
			return patch{}, o.adapterFault(ctx, "researching", err)
		}
		if ctx.Err() != nil {
			return patch{}, ctx.Err()
		}
		return patch{}, fmt.Errorf("researching: %w", err)
	}
	for _, e := range out.VariantErrors {
		o.log.Warn("evidence partially unavailable", zap.String("detail", e))
	}
	return patch{research: out.Records, setResearch: true}, nil
}

func (o *Orchestrator) draft(ctx context.Context, s types.PipelineState) (patch, error) {
	if len(s.Research) == 0 {
		return patch{draft: ptr("")}, nil
	}
	text, err := o.deps.Writer.Draft(ctx, s.Question, s.Research)
	if err != nil {
		return patch{}, o.adapterFault(ctx, "drafting", err)
	}
	return patch{draft: ptr(text)}, nil
}

func (o *Orchestrator) verify(s types.PipelineState) patch {
	verdict := o.deps.Verifier.Verify(s.Draft, s.Research)
	attempts := s.Attempts + 1

	p := patch{
		verified: ptr(verdict.Grounded),
		failure:  ptr(string(verdict.Failure)),
		attempts: ptr(attempts),
	}
	if verdict.Grounded {
		return p
	}

	o.log.Info("draft not grounded",
		zap.String("failure", string(verdict.Failure)),
		zap.String("detail", verdict.Detail),
		zap.Int("attempt", attempts),
	)

	if attempts < o.cfg.MaxAttempts {
		p.k = ptr(o.widen(s.K))
	} else {
		p.failureReason = ptr(o.cfg.FailureReason)
	}
	return p
}

// widen grows k by KStep up to MaxK. It never shrinks k, even when the
// caller started above MaxK.
func (o *Orchestrator) widen(k int) int {
	return max(k, min(k+o.cfg.KStep, o.cfg.MaxK))
}

func (o *Orchestrator) deliver(s types.PipelineState) patch {
	if s.Verified {
		return patch{finalAnswer: ptr(s.Draft)}
	}
	return patch{finalAnswer: ptr(o.cfg.FallbackAnswer)}
}

func (o *Orchestrator) adapterFault(ctx context.Context, stage string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %s: %w", ErrAdapterFault, stage, err)
}
