package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	// DefaultOllamaBaseURL is the default Ollama API base URL.
	DefaultOllamaBaseURL = "http://localhost:11434"

	// DefaultOllamaModel is the default local embedding model.
	DefaultOllamaModel = "nomic-embed-text"

	// DefaultOllamaDimension is the embedding dimension for nomic-embed-text.
	DefaultOllamaDimension = 768
)

// OllamaEmbedder implements Embedder using Ollama's embeddings API, for
// deployments that embed locally instead of through NIM.
type OllamaEmbedder struct {
	baseURL   string
	model     string
	dimension int
	client    *http.Client
}

// OllamaConfig holds configuration for the Ollama embedder.
type OllamaConfig struct {
	BaseURL   string
	Model     string
	Dimension int

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// NewOllamaEmbedder creates a new Ollama embedder.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOllamaModel
	}
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = DefaultOllamaDimension
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	return &OllamaEmbedder{
		baseURL:   baseURL,
		model:     model,
		dimension: dimension,
		client:    client,
	}
}

// Embed generates an embedding vector for a single text input.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := ollamaEmbedRequest{
		Model:  e.model,
		Prompt: text,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/embeddings", e.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var ollamaResp ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(ollamaResp.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned from Ollama")
	}

	embedding := make([]float32, len(ollamaResp.Embedding))
	for i, v := range ollamaResp.Embedding {
		embedding[i] = float32(v)
	}

	return embedding, nil
}

// Dimension returns the dimensionality of the embedding vectors.
func (e *OllamaEmbedder) Dimension() int {
	return e.dimension
}

// ModelName returns the name of the embedding model being used.
func (e *OllamaEmbedder) ModelName() string {
	return e.model
}

// Ensure OllamaEmbedder implements Embedder.
var _ Embedder = (*OllamaEmbedder)(nil)
