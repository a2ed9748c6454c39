// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/pdiddy/grounded-copilot/internal/retrieval"
	"github.com/pdiddy/grounded-copilot/pkg/types"
)

type mockPlanner struct {
	mock.Mock
}

func (m *mockPlanner) Plan(ctx context.Context, question string) (string, error) {
	args := m.Called(ctx, question)
	return args.String(0), args.Error(1)
}

type mockRetriever struct {
	mock.Mock
}

func (m *mockRetriever) Search(ctx context.Context, question string, k int) (retrieval.Output, error) {
	args := m.Called(ctx, question, k)
	return args.Get(0).(retrieval.Output), args.Error(1)
}

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) Draft(ctx context.Context, question string, evidence []types.EvidenceRecord) (string, error) {
	args := m.Called(ctx, question, evidence)
	return args.String(0), args.Error(1)
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) Record(ctx context.Context, state types.PipelineState, runErr error) error {
	args := m.Called(ctx, state, runErr)
	return args.Error(0)
}
