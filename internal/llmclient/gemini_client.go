// File: internal/llmclient/gemini_client.go
package llmclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/engager-cli/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// GeminiClient implements Client for the Google Gemini generateContent API.
type GeminiClient struct {
	apiKey     string
	cfg        config.LLMConfig
	httpClient *http.Client
	logger     *zap.Logger
}

var _ Client = (*GeminiClient)(nil)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiSystemInstruction struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequestPayload struct {
	Contents          []geminiContent          `json:"contents"`
	SystemInstruction *geminiSystemInstruction `json:"system_instruction,omitempty"`
	GenerationConfig  geminiGenerationConfig   `json:"generationConfig"`
}

type geminiResponsePayload struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// NewGeminiClient builds a Gemini client from configuration.
func NewGeminiClient(cfg config.LLMConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &GeminiClient{
		apiKey:     cfg.APIKey,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("llm_client.gemini"),
	}, nil
}

func (c *GeminiClient) endpointFor(model string) string {
	if c.cfg.BaseURL != "" {
		return fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.cfg.BaseURL, model)
	}
	return fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", model)
}

// GenerateText runs generateContent against the primary model, then once
// against the fallback model if the primary was rejected.
func (c *GeminiClient) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	text, err := c.generate(ctx, c.cfg.Model, systemPrompt, userPrompt)
	if err == nil {
		return text, nil
	}
	rejected := false
	var sErr *geminiStatusError
	if errors.As(err, &sErr) {
		rejected = isModelRejected(sErr.status, sErr.body)
	} else {
		rejected = isModelRejected(0, err.Error())
	}
	if c.cfg.FallbackModel == "" || c.cfg.FallbackModel == c.cfg.Model || !rejected {
		return "", err
	}

	c.logger.Warn("Primary model rejected, retrying with fallback model.",
		zap.String("primary", c.cfg.Model),
		zap.String("fallback", c.cfg.FallbackModel),
		zap.Error(err))

	text, ferr := c.generate(ctx, c.cfg.FallbackModel, systemPrompt, userPrompt)
	if ferr != nil {
		return "", fmt.Errorf("%w: primary: %v; fallback: %v", ErrAllModelsFailed, err, ferr)
	}
	return text, nil
}

func (c *GeminiClient) generate(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	payload := geminiRequestPayload{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: userPrompt}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     c.cfg.Temperature,
			MaxOutputTokens: c.cfg.MaxTokens,
		},
	}
	if systemPrompt != "" {
		payload.SystemInstruction = &geminiSystemInstruction{Parts: []geminiPart{{Text: systemPrompt}}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	b.MaxInterval = 30 * time.Second

	var responseContent string
	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointFor(model), bytes.NewBuffer(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", c.apiKey)

		start := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			c.logger.Warn("Network error during LLM request, retrying...", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return c.handleAPIError(resp.StatusCode, respBody)
		}

		var responsePayload geminiResponsePayload
		if err := json.Unmarshal(respBody, &responsePayload); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}
		if len(responsePayload.Candidates) == 0 {
			return backoff.Permanent(fmt.Errorf("gemini API returned no candidates"))
		}

		candidate := responsePayload.Candidates[0]
		if len(candidate.Content.Parts) == 0 {
			if candidate.FinishReason == "SAFETY" || candidate.FinishReason == "BLOCKLIST" {
				return backoff.Permanent(fmt.Errorf("gemini API blocked the request (Reason: %s)", candidate.FinishReason))
			}
			return fmt.Errorf("gemini API returned empty content parts (Reason: %s)", candidate.FinishReason)
		}

		c.logger.Info("LLM generation complete (Gemini)",
			zap.String("model", model),
			zap.Duration("duration", time.Since(start)),
			zap.Int("prompt_tokens", responsePayload.UsageMetadata.PromptTokenCount),
			zap.Int("completion_tokens", responsePayload.UsageMetadata.CandidatesTokenCount))

		responseContent = candidate.Content.Parts[0].Text
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return responseContent, nil
}

// geminiStatusError preserves the HTTP status for fallback classification.
type geminiStatusError struct {
	status int
	body   string
}

func (e *geminiStatusError) Error() string {
	return fmt.Sprintf("gemini API error: status %d, body: %s", e.status, e.body)
}

func (c *GeminiClient) handleAPIError(statusCode int, body []byte) error {
	c.logger.Error("Gemini API returned error status",
		zap.Int("status", statusCode), zap.String("response", string(body)))
	err := &geminiStatusError{status: statusCode, body: string(body)}

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return err // Transient, retry.
	default:
		return backoff.Permanent(err)
	}
}
