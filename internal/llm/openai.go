package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultNIMBaseURL is the NVIDIA NIM OpenAI-compatible endpoint.
const DefaultNIMBaseURL = "https://integrate.api.nvidia.com/v1"

// OpenAIClient implements Oracle against any OpenAI-compatible chat
// completion API. It is used for NVIDIA NIM in the default deployment but
// works with any provider exposing the same surface.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// OpenAIOption is a functional option for configuring OpenAIClient.
type OpenAIOption func(*openAIConfig)

type openAIConfig struct {
	baseURL string
	model   string
}

// WithOpenAIBaseURL points the client at a non-default API endpoint.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(c *openAIConfig) {
		c.baseURL = url
	}
}

// WithOpenAIModel sets the default model for generation requests.
func WithOpenAIModel(model string) OpenAIOption {
	return func(c *openAIConfig) {
		c.model = model
	}
}

// NewOpenAIClient creates an Oracle backed by an OpenAI-compatible API.
func NewOpenAIClient(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	cfg := openAIConfig{baseURL: DefaultNIMBaseURL}
	for _, opt := range opts {
		opt(&cfg)
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.baseURL != "" {
		clientCfg.BaseURL = cfg.baseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.model,
	}
}

// Generate sends a chat completion request and returns the response text.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if opts.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: opts.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// Ensure OpenAIClient implements Oracle.
var _ Oracle = (*OpenAIClient)(nil)
