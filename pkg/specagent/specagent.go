// Package specagent implements the Prompt→Spec Agent (C3): it turns a
// natural-language backend description into a validated spec.Spec,
// walking the LLM fallback chain on quota exhaustion and bounded-retrying
// on structurally invalid output within a single model.
package specagent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/genforge/pkg/apierrors"
	"github.com/codeready-toolchain/genforge/pkg/llm"
	"github.com/codeready-toolchain/genforge/pkg/models"
	"github.com/codeready-toolchain/genforge/pkg/spec"
)

const defaultMaxRetries = 2

const systemInstruction = `You are a backend specification generator.

Your ONLY job is to convert a user's natural language description of a backend
into a valid JSON object matching the schema below.

RULES:
1. Return ONLY valid JSON. No markdown, no explanation, no comments.
2. Every entity MUST have exactly one field with "primary_key": true, of type "uuid".
3. Entity names MUST be PascalCase (e.g. "Product", "OrderItem").
4. Table names MUST be snake_case and plural (e.g. "products", "order_items").
5. Field names MUST be snake_case (e.g. "created_at", "user_id").
6. Only these field types are allowed: string, integer, float, boolean, datetime, uuid, text.
7. project_name must be lowercase with hyphens (e.g. "my-api", "blog-backend").
8. Always include spec_version: "1.0".
9. Set auth.enabled to true unless the user explicitly says no authentication.
10. Generate sensible fields based on the user's description. Include common
    fields like created_at (datetime), updated_at (datetime) where appropriate.

Return ONLY the JSON object. Nothing else.`

// Request carries everything the agent needs to build the user turn.
type Request struct {
	Prompt          string
	DocumentContext string
	PriorMessages   []llm.Message
}

// Message is a thread turn fed back to the agent as conversational context.
type Message = llm.Message

// Result is a successful generation, tagged with the model that produced it.
type Result struct {
	Spec      spec.Spec
	ModelUsed string
}

// Agent converts prompts into validated specs via the LLM router.
type Agent struct {
	router      *llm.Router
	maxRetries  int
	temperature float64
}

// New builds an Agent over an already-configured Router.
func New(router *llm.Router) *Agent {
	return &Agent{router: router, maxRetries: defaultMaxRetries, temperature: 0.1}
}

// Generate produces a validated spec.Spec from req, starting at startModelID
// (models.DefaultModelID if empty). It reprompts up to maxRetries times on
// invalid-JSON or structural-validation failures, folding the error back
// into the next user turn the way a human would clarify a bad answer.
// Quota-exhaustion errors are not retried locally — the Router has already
// walked the fallback chain before returning one.
func (a *Agent) Generate(ctx context.Context, startModelID string, req Request) (Result, error) {
	if startModelID == "" {
		startModelID = models.DefaultModelID
	}

	var lastErr error
	currentModel := startModelID

	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		userMessage := a.buildUserMessage(req, attempt, lastErr)

		callResult, err := a.router.Call(ctx, currentModel, systemInstruction, userMessage, nil, a.temperature, 4096)
		if err != nil {
			return Result{}, apierrors.Wrap(apierrors.KindAllModelsExhausted, "prompt-to-spec generation failed", err)
		}
		currentModel = callResult.ModelID // keep reprompting the model that actually answered

		parsed, err := parseAndValidate(callResult.Text)
		if err == nil {
			return Result{Spec: parsed, ModelUsed: callResult.ModelID}, nil
		}
		lastErr = err
	}

	return Result{}, apierrors.Wrap(apierrors.KindSpecGenerationFailed,
		fmt.Sprintf("failed to generate a valid spec after %d attempts", a.maxRetries+1), lastErr)
}

func (a *Agent) buildUserMessage(req Request, attempt int, lastErr error) string {
	if attempt == 0 {
		var b strings.Builder
		if req.DocumentContext != "" {
			b.WriteString("CONTEXT FROM UPLOADED DOCUMENTS:\n")
			b.WriteString(req.DocumentContext)
			b.WriteString("\n\n")
		}
		if len(req.PriorMessages) > 0 {
			b.WriteString("PREVIOUS CONVERSATION HISTORY (FOR CONTEXT):\n")
			for _, m := range req.PriorMessages {
				fmt.Fprintf(&b, "[%s]: %s\n\n", strings.ToUpper(m.Role), m.Content)
			}
		}
		b.WriteString("USER REQUEST:\n")
		b.WriteString(req.Prompt)
		return b.String()
	}

	return fmt.Sprintf(
		"Your previous response was invalid JSON or did not match the schema.\nError: %v\n\nPlease try again. Original request: %s",
		lastErr, req.Prompt,
	)
}

// parseAndValidate strips markdown code fences if present, unmarshals the
// JSON, and runs structural validation.
func parseAndValidate(raw string) (spec.Spec, error) {
	clean := stripMarkdownFence(raw)

	var s spec.Spec
	if err := json.Unmarshal([]byte(clean), &s); err != nil {
		return spec.Spec{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := spec.Validate(s); err != nil {
		return spec.Spec{}, err
	}
	return s, nil
}

func stripMarkdownFence(text string) string {
	clean := strings.TrimSpace(text)
	if !strings.HasPrefix(clean, "```") {
		return clean
	}
	lines := strings.Split(clean, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
