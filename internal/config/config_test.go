// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdiddy/grounded-copilot/pkg/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "copilot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "log:\n  level: warn\n"))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, types.BackendSQLite, cfg.Evidence.Backend)
	assert.Equal(t, 30*time.Second, cfg.Evidence.Timeout)
	assert.Equal(t, 5, cfg.Retrieval.DefaultK)
	assert.Equal(t, 2, cfg.Retrieval.KStep)
	assert.Equal(t, 10, cfg.Retrieval.MaxK)
	assert.Equal(t, 10, cfg.Retrieval.MinResults)
	assert.Equal(t, 30, cfg.Retrieval.OverfetchFloor)
	assert.Equal(t, 10, cfg.Retrieval.OverfetchMultiplier)
	assert.Equal(t, DefaultVariants, cfg.Retrieval.Variants)
	assert.Equal(t, DefaultPatterns, cfg.Security.Patterns)
	assert.Equal(t, 2, cfg.Pipeline.MaxAttempts)
	assert.True(t, cfg.Verification.RequireSummary)
	assert.True(t, cfg.Verification.RejectPlaceholder)
	assert.Equal(t, 150, cfg.Verification.MaxSummaryWords)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Generation.Model)
	assert.Equal(t, DefaultFallbackAnswer, cfg.Pipeline.FallbackAnswer)
}

func TestLoad_FileOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
retrieval:
  default_k: 3
  max_k: 8
  variants:
    - "clinical governance {question}"
pipeline:
  max_attempts: 3
verification:
  require_summary: false
generation:
  model: claude-haiku-4-5-20251001
  api_key: sk-test
`))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Retrieval.DefaultK)
	assert.Equal(t, 8, cfg.Retrieval.MaxK)
	assert.Equal(t, []string{"clinical governance {question}"}, cfg.Retrieval.Variants)
	assert.Equal(t, 3, cfg.Pipeline.MaxAttempts)
	assert.False(t, cfg.Verification.RequireSummary)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Generation.Model)
	assert.Equal(t, "sk-test", cfg.Generation.APIKey)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("COPILOT_PIPELINE_MAX_ATTEMPTS", "4")
	t.Setenv("COPILOT_GENERATION_API_KEY", "sk-env")

	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Pipeline.MaxAttempts)
	assert.Equal(t, "sk-env", cfg.Generation.APIKey)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero attempts", "pipeline:\n  max_attempts: 0\n"},
		{"max k below default", "retrieval:\n  default_k: 6\n  max_k: 4\n"},
		{"unknown backend", "evidence:\n  backend: chroma\n"},
		{"http backend without url", "evidence:\n  backend: http\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	require.NoError(t, InitLogger(types.LogConfig{Level: "debug", Format: "json"}))
	assert.True(t, zap.L().Core().Enabled(zap.DebugLevel))

	assert.Error(t, InitLogger(types.LogConfig{Level: "loud", Format: "console"}))
}
