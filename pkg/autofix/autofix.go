// Package autofix drives a bounded re-invocation of the sandbox repair
// loop (C7) against a failed project, the handler for spec.md §6's
// "Auto-fix request" contract. It supplies the LLM-backed Implementer
// and Reviewer the loop depends on, built the same way pkg/specagent
// turns a prompt into structured output: a system instruction, a single
// model.Router call, and JSON unmarshalling of the response.
package autofix

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/genforge/pkg/apierrors"
	"github.com/codeready-toolchain/genforge/pkg/llm"
	"github.com/codeready-toolchain/genforge/pkg/models"
	"github.com/codeready-toolchain/genforge/pkg/sandbox"
	"github.com/codeready-toolchain/genforge/pkg/spec"
)

const implementSystemInstruction = `You are a backend code repair agent.

You will be given a project's spec, its current rendered files, and a list
of patch requests naming which files need fixing and why. Return a JSON
object mapping every file path that needs to change to its complete new
content:

{"files": {"relative/path.py": "full new file content", ...}}

Only include files you changed. Return ONLY the JSON object.`

const reviewSystemInstruction = `You are a backend code reviewer.

You will be given a project's spec and its current rendered files. Judge
whether the implementation matches the spec faithfully. Return JSON:

{"approved": bool, "trust": 0-10, "requests": [{"file_path": "...", "reason": "...", "instructions": ["..."]}]}

"instructions" is a short bulleted list of concrete guidance for fixing
that file — what to change, not just what's wrong.

"trust" reflects how confident you are the implementation is correct and
complete. Return ONLY the JSON object.`

// LLMImplementer implements sandbox.Implementer over an llm.Router.
type LLMImplementer struct {
	Router  *llm.Router
	ModelID string
}

func (i *LLMImplementer) Implement(ctx context.Context, s spec.Spec, files map[string]string, requests []sandbox.PatchRequest) (map[string]string, int, error) {
	userPrompt := buildImplementPrompt(s, files, requests)

	result, err := i.Router.Call(ctx, i.modelID(), implementSystemInstruction, userPrompt, nil, 0.1, 8192)
	if err != nil {
		return nil, 0, apierrors.Wrap(apierrors.KindAllModelsExhausted, "repair implementation failed", err)
	}

	var parsed struct {
		Files map[string]string `json:"files"`
	}
	if err := json.Unmarshal([]byte(stripFence(result.Text)), &parsed); err != nil {
		return nil, 0, fmt.Errorf("invalid implementer response: %w", err)
	}

	newFiles := make(map[string]string, len(files)+len(parsed.Files))
	for path, content := range files {
		newFiles[path] = content
	}
	for path, content := range parsed.Files {
		newFiles[path] = content
	}
	return newFiles, len(parsed.Files), nil
}

func (i *LLMImplementer) modelID() string {
	if i.ModelID != "" {
		return i.ModelID
	}
	return models.DefaultModelID
}

// LLMReviewer implements sandbox.Reviewer over an llm.Router.
type LLMReviewer struct {
	Router  *llm.Router
	ModelID string
}

func (r *LLMReviewer) Review(ctx context.Context, s spec.Spec, files map[string]string) (sandbox.ReviewVerdict, error) {
	userPrompt := buildReviewPrompt(s, files)

	modelID := r.ModelID
	if modelID == "" {
		modelID = models.DefaultModelID
	}

	result, err := r.Router.Call(ctx, modelID, reviewSystemInstruction, userPrompt, nil, 0.1, 4096)
	if err != nil {
		return sandbox.ReviewVerdict{}, apierrors.Wrap(apierrors.KindAllModelsExhausted, "review failed", err)
	}

	var parsed struct {
		Approved bool   `json:"approved"`
		Trust    int    `json:"trust"`
		Requests []struct {
			FilePath     string   `json:"file_path"`
			Reason       string   `json:"reason"`
			Instructions []string `json:"instructions"`
		} `json:"requests"`
	}
	if err := json.Unmarshal([]byte(stripFence(result.Text)), &parsed); err != nil {
		return sandbox.ReviewVerdict{}, fmt.Errorf("invalid reviewer response: %w", err)
	}

	requests := make([]sandbox.PatchRequest, 0, len(parsed.Requests))
	for _, req := range parsed.Requests {
		requests = append(requests, sandbox.PatchRequest{FilePath: req.FilePath, Reason: req.Reason, Instructions: req.Instructions})
	}

	return sandbox.ReviewVerdict{Approved: parsed.Approved, Trust: parsed.Trust, Requests: requests}, nil
}

func buildImplementPrompt(s spec.Spec, files map[string]string, requests []sandbox.PatchRequest) string {
	var b strings.Builder
	specJSON, _ := json.Marshal(s)
	fmt.Fprintf(&b, "SPEC:\n%s\n\n", specJSON)
	b.WriteString("PATCH REQUESTS:\n")
	for _, req := range requests {
		fmt.Fprintf(&b, "- %s: %s\n", req.FilePath, req.Reason)
		for _, instr := range req.Instructions {
			fmt.Fprintf(&b, "  - %s\n", instr)
		}
	}
	b.WriteString("\nCURRENT FILES:\n")
	writeFileListing(&b, files)
	return b.String()
}

func buildReviewPrompt(s spec.Spec, files map[string]string) string {
	var b strings.Builder
	specJSON, _ := json.Marshal(s)
	fmt.Fprintf(&b, "SPEC:\n%s\n\nCURRENT FILES:\n", specJSON)
	writeFileListing(&b, files)
	return b.String()
}

func writeFileListing(b *strings.Builder, files map[string]string) {
	for path, content := range files {
		fmt.Fprintf(b, "--- %s ---\n%s\n\n", path, content)
	}
}

func stripFence(text string) string {
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
