package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient embeds and generates through the Gemini API
type GeminiClient struct {
	client         *genai.Client
	embeddingModel string
	llmModel       string
	cfg            Config
}

// NewGeminiClient creates a Gemini-backed provider
func NewGeminiClient(ctx context.Context, cfg Config) (*GeminiClient, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required for the gemini provider")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client:         client,
		embeddingModel: cfg.GeminiEmbeddingModel,
		llmModel:       cfg.GeminiLLMModel,
		cfg:            cfg,
	}, nil
}

// Embed returns the embedding vector for text
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ProviderError{Op: "embed", Err: errors.New("empty input text")}
	}

	if c.cfg.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.EmbedTimeout)
		defer cancel()
	}

	em := c.client.EmbeddingModel(c.embeddingModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, &ProviderError{Op: "embed", Err: err}
	}
	if res == nil || res.Embedding == nil {
		return nil, &ProviderError{Op: "embed", Err: errors.New("no embedding in response")}
	}
	if err := checkDimension(res.Embedding.Values, c.cfg.Dimension); err != nil {
		return nil, &ProviderError{Op: "embed", Err: err}
	}
	return res.Embedding.Values, nil
}

// Generate runs a completion and returns the text parts of the first candidate
func (c *GeminiClient) Generate(ctx context.Context, prompt, system string) (string, error) {
	if c.cfg.GenerateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.GenerateTimeout)
		defer cancel()
	}

	model := c.client.GenerativeModel(c.llmModel)
	model.SetTemperature(float32(c.cfg.Temperature))
	if c.cfg.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(c.cfg.MaxTokens))
	}
	if system != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", &ProviderError{Op: "generate", Err: err}
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &ProviderError{Op: "generate", Err: errors.New("no content in response")}
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out.WriteString(string(text))
		}
	}
	return out.String(), nil
}

// Close releases the underlying gRPC connection
func (c *GeminiClient) Close() error {
	return c.client.Close()
}
