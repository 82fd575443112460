// Package llm provides the generative oracle consumed by reranking and
// answer synthesis. The oracle is one interface with interchangeable
// implementations selected by configuration: prompt building stays with the
// callers, this package only carries the transport.
package llm

import (
	"context"
)

// GenerateOptions configures a single generation request.
type GenerateOptions struct {
	// Model overrides the client's default model when non-empty.
	Model string

	// SystemPrompt sets the system-level instructions for the model.
	SystemPrompt string

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float32

	// MaxTokens limits the response length (0 = provider default).
	MaxTokens int
}

// Oracle is a uniform chat/completion capability. Backing providers are
// swappable and must not leak provider-specific behavior to callers.
type Oracle interface {
	// Generate sends a prompt and blocks until the full response text is
	// available or an error occurs.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}
