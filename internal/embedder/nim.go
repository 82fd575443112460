package embedder

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultNIMModel is the default NVIDIA NIM embedding model.
	DefaultNIMModel = "nvidia/nv-embed-v1"

	// DefaultNIMDimension is the embedding dimension for nv-embed-v1.
	DefaultNIMDimension = 1024
)

// NIMEmbedder implements Embedder against the NVIDIA NIM OpenAI-compatible
// embeddings API. When no API key is configured it returns a zero vector of
// the configured dimension instead of calling out, so local development
// works without credentials.
type NIMEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
}

// NIMConfig holds configuration for the NIM embedder.
type NIMConfig struct {
	// APIKey authenticates against NIM. Empty enables the zero-vector
	// fallback.
	APIKey string

	// BaseURL overrides the NIM endpoint (default: the public NIM API).
	BaseURL string

	// Model is the embedding model (default: nvidia/nv-embed-v1).
	Model string

	// Dimension is the embedding dimension (default: 1024).
	Dimension int
}

// NewNIMEmbedder creates a new NIM embedder.
func NewNIMEmbedder(cfg NIMConfig) *NIMEmbedder {
	model := cfg.Model
	if model == "" {
		model = DefaultNIMModel
	}
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = DefaultNIMDimension
	}

	var client *openai.Client
	if cfg.APIKey != "" {
		clientCfg := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
		client = openai.NewClientWithConfig(clientCfg)
	}

	return &NIMEmbedder{
		client:    client,
		model:     model,
		dimension: dimension,
	}
}

// Embed generates an embedding for the given text. Without an API key it
// returns a zero vector of the configured dimension.
func (e *NIMEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.client == nil {
		slog.Warn("embedding API key not set, returning zero vector", "model", e.model)
		return make([]float32, e.dimension), nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedding response contained no vector")
	}

	return resp.Data[0].Embedding, nil
}

// Dimension returns the dimensionality of the embedding vectors.
func (e *NIMEmbedder) Dimension() int {
	return e.dimension
}

// ModelName returns the name of the embedding model being used.
func (e *NIMEmbedder) ModelName() string {
	return e.model
}

// Ensure NIMEmbedder implements Embedder.
var _ Embedder = (*NIMEmbedder)(nil)
