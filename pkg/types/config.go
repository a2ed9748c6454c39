package types

import (
	"fmt"
	"time"
)

// HTTPConfig holds shared HTTP settings used by adapters that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "grounded-copilot/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// EvidenceBackend selects the evidence store adapter.
type EvidenceBackend string

const (
	BackendSQLite EvidenceBackend = "sqlite"
	BackendHTTP   EvidenceBackend = "http"
)

// EvidenceConfig holds settings for the evidence store adapter.
type EvidenceConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Backend selects sqlite (local FTS index) or http (remote vector search).
	Backend EvidenceBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// IndexDir is the base directory for the local index (contains chunks/, index/).
	IndexDir string `json:"index_dir" yaml:"index_dir" mapstructure:"index_dir"`

	// URL is the search endpoint of the remote backend.
	URL string `json:"url,omitempty" yaml:"url,omitempty" mapstructure:"url"`

	// APIToken is sent as a bearer token to the remote backend.
	APIToken string `json:"api_token,omitempty" yaml:"api_token,omitempty" mapstructure:"api_token"`

	// MaxResults caps a single adapter call (default 100).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// RetrievalConfig holds settings for the retrieval merger.
type RetrievalConfig struct {
	// DefaultK is the retrieval width used when the caller supplies none (default 5).
	DefaultK int `json:"default_k" yaml:"default_k" mapstructure:"default_k"`

	// KStep is added to k before each retry (default 2).
	KStep int `json:"k_step" yaml:"k_step" mapstructure:"k_step"`

	// MaxK caps k growth across retries (default 10).
	MaxK int `json:"max_k" yaml:"max_k" mapstructure:"max_k"`

	// MinResults is the truncation floor: at least max(MinResults, k)
	// records are returned when available (default 10).
	MinResults int `json:"min_results" yaml:"min_results" mapstructure:"min_results"`

	// OverfetchFloor and OverfetchMultiplier give the per-variant fetch
	// width max(OverfetchFloor, k*OverfetchMultiplier) (defaults 30, 10).
	OverfetchFloor      int `json:"overfetch_floor" yaml:"overfetch_floor" mapstructure:"overfetch_floor"`
	OverfetchMultiplier int `json:"overfetch_multiplier" yaml:"overfetch_multiplier" mapstructure:"overfetch_multiplier"`

	// Variants are broadening queries issued alongside the question.
	// "{question}" is replaced with the caller's question.
	Variants []string `json:"variants" yaml:"variants" mapstructure:"variants"`

	// Concurrency bounds in-flight adapter calls per merge (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`
}

// VerificationConfig selects the optional verification policies.
type VerificationConfig struct {
	// RejectPlaceholder fails drafts that contain PlaceholderMarker.
	RejectPlaceholder bool `json:"reject_placeholder" yaml:"reject_placeholder" mapstructure:"reject_placeholder"`

	// PlaceholderMarker is matched case-insensitively (default "[source").
	PlaceholderMarker string `json:"placeholder_marker" yaml:"placeholder_marker" mapstructure:"placeholder_marker"`

	// RequireSummary fails drafts without a summary section of at most
	// MaxSummaryWords words.
	RequireSummary bool `json:"require_summary" yaml:"require_summary" mapstructure:"require_summary"`

	// SummaryHeading names the summary section (default "Executive Summary").
	SummaryHeading string `json:"summary_heading" yaml:"summary_heading" mapstructure:"summary_heading"`

	// MaxSummaryWords is the summary word budget (default 150).
	MaxSummaryWords int `json:"max_summary_words" yaml:"max_summary_words" mapstructure:"max_summary_words"`
}

// SecurityConfig holds the instruction-override phrases and refusal text.
type SecurityConfig struct {
	// Patterns are matched as case-insensitive substrings of the question.
	Patterns []string `json:"patterns" yaml:"patterns" mapstructure:"patterns"`

	// Refusal is delivered when a question is blocked. It must not contain citation tags.
	Refusal string `json:"refusal" yaml:"refusal" mapstructure:"refusal"`
}

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// GenerationConfig holds settings for the planner and writer.
type GenerationConfig struct {
	AIConfig `yaml:",inline" mapstructure:",squash"`

	// MaxTokens bounds a single completion (default 4096).
	MaxTokens int64 `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// Temperature is sent with every request (default 0).
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`

	// RequestsPerMinute throttles calls to the API. Zero disables throttling.
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// PipelineConfig holds orchestrator settings.
type PipelineConfig struct {
	// MaxAttempts caps retrieve/draft/verify cycles per question (default 2).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`

	// FallbackAnswer is delivered when the retry budget runs out.
	FallbackAnswer string `json:"fallback_answer" yaml:"fallback_answer" mapstructure:"fallback_answer"`

	// FailureReason is recorded alongside the fallback answer.
	FailureReason string `json:"failure_reason" yaml:"failure_reason" mapstructure:"failure_reason"`
}

// LedgerConfig holds run ledger settings.
type LedgerConfig struct {
	// Path is the SQLite database file. Empty disables the ledger.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port           int      `json:"port" yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is a zap level name (debug, info, warn, error).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is json or console.
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// Config groups all settings for the copilot.
type Config struct {
	Evidence     EvidenceConfig     `json:"evidence" yaml:"evidence" mapstructure:"evidence"`
	Retrieval    RetrievalConfig    `json:"retrieval" yaml:"retrieval" mapstructure:"retrieval"`
	Verification VerificationConfig `json:"verification" yaml:"verification" mapstructure:"verification"`
	Security     SecurityConfig     `json:"security" yaml:"security" mapstructure:"security"`
	Generation   GenerationConfig   `json:"generation" yaml:"generation" mapstructure:"generation"`
	Pipeline     PipelineConfig     `json:"pipeline" yaml:"pipeline" mapstructure:"pipeline"`
	Ledger       LedgerConfig       `json:"ledger" yaml:"ledger" mapstructure:"ledger"`
	Server       ServerConfig       `json:"server" yaml:"server" mapstructure:"server"`
	Log          LogConfig          `json:"log" yaml:"log" mapstructure:"log"`
}

// Validate reports the first setting that would make a run ill-defined.
func (c Config) Validate() error {
	switch {
	case c.Pipeline.MaxAttempts < 1:
		return fmt.Errorf("pipeline.max_attempts must be at least 1, got %d", c.Pipeline.MaxAttempts)
	case c.Retrieval.DefaultK < 1:
		return fmt.Errorf("retrieval.default_k must be at least 1, got %d", c.Retrieval.DefaultK)
	case c.Retrieval.MaxK < c.Retrieval.DefaultK:
		return fmt.Errorf("retrieval.max_k (%d) is below retrieval.default_k (%d)", c.Retrieval.MaxK, c.Retrieval.DefaultK)
	case c.Retrieval.KStep < 0:
		return fmt.Errorf("retrieval.k_step must not be negative, got %d", c.Retrieval.KStep)
	case c.Retrieval.MinResults < 1:
		return fmt.Errorf("retrieval.min_results must be at least 1, got %d", c.Retrieval.MinResults)
	case c.Verification.RequireSummary && c.Verification.MaxSummaryWords < 1:
		return fmt.Errorf("verification.max_summary_words must be at least 1 when require_summary is set")
	case c.Evidence.Backend != BackendSQLite && c.Evidence.Backend != BackendHTTP:
		return fmt.Errorf("evidence.backend must be %q or %q, got %q", BackendSQLite, BackendHTTP, c.Evidence.Backend)
	case c.Evidence.Backend == BackendHTTP && c.Evidence.URL == "":
		return fmt.Errorf("evidence.url is required for the http backend")
	}
	return nil
}
