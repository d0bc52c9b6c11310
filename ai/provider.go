// Package ai is the boundary to the language-model collaborator.
//
// Design decisions:
//   - Provider is an interface so backends (OpenAI, Anthropic, Gemini,
//     Ollama) can be swapped without touching the pipeline.
//   - All methods accept context for cancellation; a disconnected
//     caller abandons the in-flight completion.
//   - Everything a provider returns is untrusted text. ParseQueryResult
//     turns it into a typed AIQueryResult, and even that result's SQL
//     must pass the sandbox before anything executes it.
package ai

import (
	"context"
)

// Provider is the interface all AI backends must implement.
type Provider interface {
	// GenerateQuery sends the assembled prompt plus the user's question
	// and returns the model's raw reply text.
	GenerateQuery(ctx context.Context, prompt string, question string) (string, error)

	// Name returns the provider name for display and logging.
	Name() string
}
