// File: internal/llmclient/openai_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/engager-cli/internal/config"
)

// OpenAIClient implements Client on top of the OpenAI chat completions API.
type OpenAIClient struct {
	api     *openai.Client
	cfg     config.LLMConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient builds a rate-limited OpenAI client.
func NewOpenAIClient(cfg config.LLMConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	if cfg.RequestTimeout > 0 {
		apiCfg.HTTPClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 10
	}

	return &OpenAIClient{
		api:     openai.NewClientWithConfig(apiCfg),
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		logger:  logger.Named("llm_client.openai"),
	}, nil
}

// GenerateText runs the chat completion against the primary model, then
// once against the fallback model if the primary was rejected.
func (c *OpenAIClient) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	text, err := c.complete(ctx, c.cfg.Model, systemPrompt, userPrompt)
	if err == nil {
		return text, nil
	}

	if c.cfg.FallbackModel == "" || c.cfg.FallbackModel == c.cfg.Model || !c.rejectedModel(err) {
		return "", err
	}

	c.logger.Warn("Primary model rejected, retrying with fallback model.",
		zap.String("primary", c.cfg.Model),
		zap.String("fallback", c.cfg.FallbackModel),
		zap.Error(err))

	text, ferr := c.complete(ctx, c.cfg.FallbackModel, systemPrompt, userPrompt)
	if ferr != nil {
		return "", fmt.Errorf("%w: primary: %v; fallback: %v", ErrAllModelsFailed, err, ferr)
	}
	return text, nil
}

// complete performs one chat completion with retries on transient errors.
func (c *OpenAIClient) complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: float32(c.cfg.Temperature),
		MaxTokens:   c.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 15 * time.Second
	b.MaxElapsedTime = 90 * time.Second

	var content string
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		start := time.Now()
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			return c.classifyError(err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("openai API returned no choices"))
		}

		c.logger.Info("LLM generation complete (OpenAI)",
			zap.String("model", model),
			zap.Duration("duration", time.Since(start)),
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens))

		content = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return content, nil
}

// classifyError decides whether an API error is worth retrying.
func (c *OpenAIClient) classifyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return backoff.Permanent(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable:
			c.logger.Warn("Transient OpenAI API error, retrying...",
				zap.Int("status", apiErr.HTTPStatusCode), zap.Error(err))
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	// Network-level errors are retried.
	c.logger.Warn("Network error during LLM request, retrying...", zap.Error(err))
	return err
}

// rejectedModel reports whether the failure indicates the model itself
// was refused rather than the request or the network.
func (c *OpenAIClient) rejectedModel(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return isModelRejected(apiErr.HTTPStatusCode, apiErr.Message)
	}
	return isModelRejected(0, err.Error())
}
