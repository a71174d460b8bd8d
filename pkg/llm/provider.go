// Package llm implements the LLM Provider Router (C4): a uniform
// "give me a structured response" interface over heterogeneous LLM
// backends, with quota-exhaustion handling via a fallback chain.
package llm

import (
	"context"
	"encoding/json"
)

// Provider is the single operation every backend must expose. Errors
// returned from Generate are expected to already be normalized into the
// apierrors taxonomy (QuotaExhausted, NetworkTransient, SchemaInvalid,
// Terminal) by the provider implementation itself — the Router does not
// re-classify raw transport errors.
type Provider interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, schema json.RawMessage, temperature float64, maxTokens int) (string, error)
}

// Message is a single turn of prior conversation fed back to a provider as
// context (e.g. earlier thread messages ahead of a new prompt).
type Message struct {
	Role    string
	Content string
}
