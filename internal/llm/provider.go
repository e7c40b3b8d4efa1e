// Package llm holds the LLM provider boundary: an opaque prompt-in,
// completion-out call plus the retry policy wrapped around it.
package llm

import "context"

// Provider is any chat-completion backend. Implementations perform a
// single call; retries are the caller's concern.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
