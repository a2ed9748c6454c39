// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/grounded-copilot/pkg/types"
)

// MessageClient is the slice of the Anthropic Messages API the generator
// needs, so tests can supply a mock.
type MessageClient interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
}

// MessageRequest is a single-turn completion request.
type MessageRequest struct {
	Model       string
	MaxTokens   int64
	Prompt      string
	Temperature float64
}

// MessageResponse is the text and usage of one completion.
type MessageResponse struct {
	Text         string
	StopReason   string
	InputTokens  int64
	OutputTokens int64
}

// sdkClient implements MessageClient with anthropic-sdk-go.
type sdkClient struct {
	client sdk.Client
}

// NewMessageClient creates an SDK-backed client. SDK-level retries are
// disabled; ClaudeGenerator retries on its own schedule.
func NewMessageClient(apiKey string) MessageClient {
	return &sdkClient{
		client: sdk.NewClient(
			option.WithAPIKey(apiKey),
			option.WithMaxRetries(0),
		),
	}
}

func (c *sdkClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(req.Model),
		MaxTokens:   req.MaxTokens,
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt))},
		Temperature: sdk.Float(req.Temperature),
	})
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, b := range msg.Content {
		if b.Type == "text" {
			text.WriteString(b.Text)
		}
	}

	return &MessageResponse{
		Text:         text.String(),
		StopReason:   string(msg.StopReason),
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}, nil
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// ClaudeGenerator implements TextGenerator on the Anthropic Messages API
// with client-side rate limiting and retries on transient failures.
type ClaudeGenerator struct {
	client      MessageClient
	model       string
	maxTokens   int64
	temperature float64
	maxRetries  int
	limiter     *rate.Limiter
	log         *zap.Logger
}

// NewClaudeGenerator creates a generator from the generation settings.
// RequestsPerMinute of zero disables throttling.
func NewClaudeGenerator(client MessageClient, cfg types.GenerationConfig, logger *zap.Logger) *ClaudeGenerator {
	if logger == nil {
		logger = zap.L()
	}
	g := &ClaudeGenerator{
		client:      client,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		maxRetries:  cfg.MaxRetries,
		log:         logger.Named("generate"),
	}
	if g.maxTokens <= 0 {
		g.maxTokens = 4096
	}
	if g.maxRetries < 0 {
		g.maxRetries = 0
	}
	if cfg.RequestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return g
}

// Generate sends prompt as a single user message and returns the text
// of the reply. Transient failures (429, 5xx, network) are retried with
// exponential backoff; other API errors are returned at once.
func (g *ClaudeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	req := MessageRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Prompt:      prompt,
		Temperature: g.temperature,
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			g.log.Warn("retrying generation",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return "", eris.Wrap(err, "generate: rate limit wait")
			}
		}

		resp, err := g.client.CreateMessage(ctx, req)
		if err == nil {
			g.log.Debug("generation complete",
				zap.String("model", g.model),
				zap.String("stop_reason", resp.StopReason),
				zap.Int64("input_tokens", resp.InputTokens),
				zap.Int64("output_tokens", resp.OutputTokens),
			)
			return resp.Text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
		if !IsTransient(err) {
			return "", eris.Wrap(err, "generate: create message")
		}
	}
	return "", eris.Wrapf(lastErr, "generate: after %d retries", g.maxRetries)
}

// IsTransient reports whether a generation error is worth retrying: rate
// limiting, server-side failures and transport errors. Client errors
// such as bad requests or authentication failures are permanent.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return true
}
