package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider names accepted by LLM_PROVIDER
const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// Config holds connection and generation settings for the language model backend
type Config struct {
	Provider string

	OllamaBaseURL        string
	OllamaEmbeddingModel string
	OllamaLLMModel       string

	GeminiAPIKey         string
	GeminiEmbeddingModel string
	GeminiLLMModel       string

	Dimension       int
	EmbedTimeout    time.Duration
	GenerateTimeout time.Duration
	Temperature     float64
	MaxTokens       int
}

// Provider embeds text and generates completions
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Generate(ctx context.Context, prompt, system string) (string, error)
	Close() error
}

// NewProvider builds the backend selected by cfg.Provider
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Provider {
	case ProviderOllama, "":
		return NewOllamaClient(cfg), nil
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}

// ProviderError reports a failed call to the embedding or generation backend.
// Network failures, timeouts, non-2xx statuses, malformed bodies and vectors
// of the wrong dimension all surface as this type.
type ProviderError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm provider %s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llm provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsProviderError reports whether err came from the language model backend
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

func checkDimension(vec []float32, want int) error {
	if len(vec) == 0 {
		return errors.New("empty embedding in response")
	}
	if want > 0 && len(vec) != want {
		return fmt.Errorf("embedding has %d dimensions, expected %d", len(vec), want)
	}
	return nil
}
