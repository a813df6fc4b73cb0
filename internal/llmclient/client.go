// File: internal/llmclient/client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/xkilldash9x/engager-cli/internal/config"
)

// Client abstracts a text-generation provider.
type Client interface {
	// GenerateText sends a system and user prompt and returns the
	// generated text. Implementations retry transient failures and try
	// a configured fallback model once when the primary is rejected.
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ErrAllModelsFailed is returned when both the primary and the fallback
// model were rejected by the provider.
var ErrAllModelsFailed = errors.New("llmclient: all configured models failed")

// Provider name constants to avoid magic strings.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// NewClient is a factory that creates a Client based on the configuration.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(cfg, logger)
	case ProviderGemini:
		return NewGeminiClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s]",
			cfg.Provider, ProviderOpenAI, ProviderGemini)
	}
}

// modelRejectedPattern matches provider messages indicating the model
// itself was refused rather than the request content.
var modelRejectedPattern = regexp.MustCompile(`(?i)model|not found|unsupported|invalid`)

// isModelRejected classifies errors that warrant a one-shot retry on the
// fallback model: a 404/400 status, or a message naming the model.
func isModelRejected(statusCode int, message string) bool {
	if statusCode == 404 || statusCode == 400 {
		return true
	}
	return modelRejectedPattern.MatchString(message)
}
