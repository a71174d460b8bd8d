package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/codeready-toolchain/genforge/pkg/apierrors"
	"github.com/codeready-toolchain/genforge/pkg/models"
)

const maxAttemptsPerModel = 3

// Router walks a model's fallback chain on quota exhaustion, retrying
// transient network failures with exponential backoff within a single
// model before giving up on it (spec.md §4.4).
type Router struct {
	// providers maps a models.Info.Provider name (e.g. "google") to the
	// Provider implementation that serves it.
	providers map[string]Provider
	logger    *slog.Logger
}

// NewRouter builds a Router over the given provider-name → Provider map.
func NewRouter(providers map[string]Provider, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{providers: providers, logger: logger}
}

// CallResult carries the structured response alongside the model that
// ultimately produced it, so callers can record `model_used`.
type CallResult struct {
	Text    string
	ModelID string
}

// Call implements the fallback-chain-walk algorithm: for each model in
// the chain, retry up to maxAttemptsPerModel times on NetworkTransient
// with exponential backoff; break to the next model on QuotaExhausted;
// return immediately on success or on a Terminal/SchemaInvalid error.
func (r *Router) Call(ctx context.Context, startingModelID, systemPrompt, userPrompt string, schema json.RawMessage, temperature float64, maxTokens int) (CallResult, error) {
	chain := models.FallbackChain(startingModelID)
	if len(chain) == 0 {
		return CallResult{}, apierrors.New(apierrors.KindTerminal, "unknown starting model: "+startingModelID)
	}

	var lastErr error
	for _, modelID := range chain {
		info, ok := models.Get(modelID)
		if !ok {
			continue
		}
		provider, ok := r.providers[info.Provider]
		if !ok {
			lastErr = apierrors.New(apierrors.KindTerminal, "no provider registered for "+info.Provider)
			continue
		}

		text, err := r.callWithRetry(ctx, provider, systemPrompt, userPrompt, schema, temperature, maxTokens)
		if err == nil {
			return CallResult{Text: text, ModelID: modelID}, nil
		}

		lastErr = err
		r.logger.Warn("llm call failed", "model", modelID, "kind", apierrors.KindOf(err), "error", err)

		if apierrors.Is(err, apierrors.KindQuotaExhausted) {
			continue // advance to the next model in the chain
		}
		if apierrors.Is(err, apierrors.KindTerminal) || apierrors.Is(err, apierrors.KindSchemaInvalid) {
			return CallResult{}, lastErr
		}
		// network-transient exhausted its own retries — still advance the chain
	}

	return CallResult{}, apierrors.Wrap(apierrors.KindQuotaExhausted, "fallback chain exhausted", lastErr)
}

// callWithRetry retries a single model up to maxAttemptsPerModel times,
// applying exponential backoff only between NetworkTransient failures.
// A QuotaExhausted result breaks out immediately without retrying on the
// same model (spec.md §4.3 step 7 / §4.4 step 2).
func (r *Router) callWithRetry(ctx context.Context, provider Provider, systemPrompt, userPrompt string, schema json.RawMessage, temperature float64, maxTokens int) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	var lastErr error
	for attempt := 0; attempt < maxAttemptsPerModel; attempt++ {
		text, err := provider.Generate(ctx, systemPrompt, userPrompt, schema, temperature, maxTokens)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !apierrors.Is(err, apierrors.KindNetworkTransient) {
			return "", err
		}

		wait := b.NextBackOff()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	return "", lastErr
}
