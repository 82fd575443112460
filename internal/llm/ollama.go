package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultOllamaBaseURL is the default Ollama API endpoint.
	DefaultOllamaBaseURL = "http://localhost:11434"

	// DefaultOllamaModel is the default local generation model.
	DefaultOllamaModel = "llama3.2"
)

// OllamaClient implements Oracle using the Ollama generate API, for
// deployments that run the oracle locally instead of against NIM.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
	model      string
}

// OllamaOption is a functional option for configuring OllamaClient.
type OllamaOption func(*OllamaClient)

// WithOllamaBaseURL sets a custom base URL for the Ollama API.
func WithOllamaBaseURL(url string) OllamaOption {
	return func(c *OllamaClient) {
		c.baseURL = url
	}
}

// WithOllamaModel sets the default model for generation requests.
func WithOllamaModel(model string) OllamaOption {
	return func(c *OllamaClient) {
		c.model = model
	}
}

// NewOllamaClient creates a new Ollama-backed oracle.
func NewOllamaClient(opts ...OllamaOption) *OllamaClient {
	c := &OllamaClient{
		baseURL: DefaultOllamaBaseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // generation can be slow on local models
		},
		model: DefaultOllamaModel,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate sends a prompt to Ollama and returns the complete response.
func (c *OllamaClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}

	reqBody := ollamaGenerateRequest{
		Model:  model,
		Prompt: prompt,
		System: opts.SystemPrompt,
		Stream: false,
	}

	options := make(map[string]any)
	if opts.Temperature > 0 {
		options["temperature"] = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	if len(options) > 0 {
		reqBody.Options = options
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	return result.Response, nil
}

// Ensure OllamaClient implements Oracle.
var _ Oracle = (*OllamaClient)(nil)
