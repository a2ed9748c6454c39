// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieval

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/pdiddy/grounded-copilot/pkg/types"
)

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Search(ctx context.Context, query string, width int) ([]types.EvidenceRecord, error) {
	args := m.Called(ctx, query, width)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.EvidenceRecord), args.Error(1)
}
