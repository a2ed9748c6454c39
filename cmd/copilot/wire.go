// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/grounded-copilot/internal/draft"
	"github.com/pdiddy/grounded-copilot/internal/generate"
	"github.com/pdiddy/grounded-copilot/internal/knowledge"
	"github.com/pdiddy/grounded-copilot/internal/ledger"
	"github.com/pdiddy/grounded-copilot/internal/pipeline"
	"github.com/pdiddy/grounded-copilot/internal/retrieval"
	"github.com/pdiddy/grounded-copilot/internal/security"
	"github.com/pdiddy/grounded-copilot/pkg/types"
)

// env holds the adapters built for one command. Close releases them.
type env struct {
	store  *knowledge.Store
	merger *retrieval.Merger
	ledger *ledger.Ledger
	orch   *pipeline.Orchestrator
}

func (e *env) Close() error {
	var errs []error
	if e.ledger != nil {
		errs = append(errs, e.ledger.Close())
	}
	if e.store != nil {
		errs = append(errs, e.store.Close())
	}
	return errors.Join(errs...)
}

// newSearcher returns the evidence store adapter selected by
// evidence.backend. The store is non-nil only for the sqlite backend.
func newSearcher(cfg *types.Config) (retrieval.Searcher, *knowledge.Store, error) {
	switch cfg.Evidence.Backend {
	case types.BackendHTTP:
		return knowledge.NewRemoteSearcher(cfg.Evidence), nil, nil
	default:
		store, err := knowledge.NewStore(cfg.Evidence)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	}
}

// initRetrieval builds the evidence store and merger only.
func initRetrieval(cfg *types.Config) (*env, error) {
	searcher, store, err := newSearcher(cfg)
	if err != nil {
		return nil, err
	}
	return &env{
		store:  store,
		merger: retrieval.NewMerger(searcher, cfg.Retrieval, zap.L()),
	}, nil
}

// initPipeline builds every adapter and the orchestrator. The ledger is
// opened when ledger.path is set.
func initPipeline(cfg *types.Config) (*env, error) {
	if cfg.Generation.APIKey == "" {
		return nil, eris.New("generation.api_key is not set: add .secrets/anthropic-api-key or set COPILOT_GENERATION_API_KEY")
	}

	e, err := initRetrieval(cfg)
	if err != nil {
		return nil, err
	}

	gen := generate.NewClaudeGenerator(generate.NewMessageClient(cfg.Generation.APIKey), cfg.Generation, zap.L())
	deps := pipeline.Deps{
		Gate:      security.NewGate(cfg.Security.Patterns),
		Planner:   generate.NewPlanner(gen),
		Retriever: e.merger,
		Writer:    generate.NewWriter(gen, cfg.Verification),
		Verifier:  draft.NewVerifier(draft.PolicyFromConfig(cfg.Verification)),
	}

	if cfg.Ledger.Path != "" {
		l, err := ledger.Open(cfg.Ledger)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.ledger = l
		deps.Recorder = l
	}

	e.orch, err = pipeline.New(deps, pipeline.SettingsFromConfig(cfg), zap.L())
	if err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// openLedger opens the run ledger for read-only commands.
func openLedger(cfg *types.Config) (*ledger.Ledger, error) {
	if cfg.Ledger.Path == "" {
		return nil, eris.New("run ledger is disabled: set ledger.path")
	}
	return ledger.Open(cfg.Ledger)
}
