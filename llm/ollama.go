package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 512

// OllamaClient talks to an Ollama server over its REST API
type OllamaClient struct {
	baseURL        string
	embeddingModel string
	llmModel       string
	dimension      int
	temperature    float64
	maxTokens      int

	embedClient    *http.Client
	generateClient *http.Client
}

// NewOllamaClient creates a client with separate timeouts for embedding and generation
func NewOllamaClient(cfg Config) *OllamaClient {
	return &OllamaClient{
		baseURL:        strings.TrimRight(cfg.OllamaBaseURL, "/"),
		embeddingModel: cfg.OllamaEmbeddingModel,
		llmModel:       cfg.OllamaLLMModel,
		dimension:      cfg.Dimension,
		temperature:    cfg.Temperature,
		maxTokens:      cfg.MaxTokens,
		embedClient:    &http.Client{Timeout: cfg.EmbedTimeout},
		generateClient: &http.Client{Timeout: cfg.GenerateTimeout},
	}
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Options generateOptions `json:"options"`
}

type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Embed returns the embedding vector for text
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ProviderError{Op: "embed", Err: errors.New("empty input text")}
	}

	body, err := c.post(ctx, c.embedClient, "embed", "/api/embeddings", embeddingRequest{
		Model:  c.embeddingModel,
		Prompt: text,
	})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp embeddingResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, &ProviderError{Op: "embed", Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if err := checkDimension(resp.Embedding, c.dimension); err != nil {
		return nil, &ProviderError{Op: "embed", Err: err}
	}
	return resp.Embedding, nil
}

// Generate runs a completion and returns the concatenated response text.
// Both the streamed (one JSON object per line) and the single object form are accepted.
func (c *OllamaClient) Generate(ctx context.Context, prompt, system string) (string, error) {
	body, err := c.post(ctx, c.generateClient, "generate", "/api/generate", generateRequest{
		Model:  c.llmModel,
		Prompt: prompt,
		System: system,
		Options: generateOptions{
			Temperature: c.temperature,
			NumPredict:  c.maxTokens,
		},
	})
	if err != nil {
		return "", err
	}
	defer body.Close()

	text, err := readGenerateStream(body)
	if err != nil {
		return "", &ProviderError{Op: "generate", Err: err}
	}
	return text, nil
}

// Close is a no-op; the HTTP clients hold no resources that need releasing
func (c *OllamaClient) Close() error {
	return nil
}

func (c *OllamaClient) post(ctx context.Context, client *http.Client, op, path string, payload interface{}) (io.ReadCloser, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &ProviderError{Op: op, Err: fmt.Errorf("failed to encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, &ProviderError{Op: op, Err: fmt.Errorf("failed to build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &ProviderError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ProviderError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(snippet))),
		}
	}

	return resp.Body, nil
}

// readGenerateStream concatenates a single response object or an NDJSON stream.
// Undecodable lines are skipped as long as the stream still reaches done:true.
func readGenerateStream(r io.Reader) (string, error) {
	var (
		out     strings.Builder
		chunks  int
		done    bool
		badLine error
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk generateChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			if badLine == nil {
				badLine = err
			}
			continue
		}
		chunks++
		out.WriteString(chunk.Response)
		if chunk.Done {
			done = true
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if badLine != nil && !done {
		return "", fmt.Errorf("failed to decode response chunk: %w", badLine)
	}
	if chunks == 0 {
		return "", errors.New("empty response body")
	}
	return out.String(), nil
}
