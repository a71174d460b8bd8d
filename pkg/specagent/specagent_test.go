package specagent

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/genforge/pkg/apierrors"
	"github.com/codeready-toolchain/genforge/pkg/llm"
)

const validSpecJSON = `{
  "project_name": "blog-backend",
  "description": "A simple blog API",
  "spec_version": "1.0",
  "database": {"type": "postgres", "version": "15"},
  "auth": {"enabled": true, "kind": "jwt", "token_expiry_minutes": 30},
  "entities": [
    {
      "name": "Post",
      "table_name": "posts",
      "fields": [
        {"name": "id", "type": "uuid", "primary_key": true, "nullable": false, "unique": true},
        {"name": "title", "type": "string", "primary_key": false, "nullable": false, "unique": false}
      ],
      "crud": true
    }
  ]
}`

type scriptedProvider struct {
	responses []string
	errs      []error
	calls     int
}

func (p *scriptedProvider) Generate(ctx context.Context, systemPrompt, userPrompt string, schema json.RawMessage, temperature float64, maxTokens int) (string, error) {
	i := p.calls
	p.calls++
	var err error
	if i < len(p.errs) {
		err = p.errs[i]
	}
	var text string
	if i < len(p.responses) {
		text = p.responses[i]
	}
	return text, err
}

func newTestRouter(provider llm.Provider) *llm.Router {
	return llm.NewRouter(map[string]llm.Provider{"google": provider}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGenerate_SucceedsFirstTry(t *testing.T) {
	provider := &scriptedProvider{responses: []string{validSpecJSON}}
	agent := New(newTestRouter(provider))

	result, err := agent.Generate(context.Background(), "", Request{Prompt: "a blog api"})
	require.NoError(t, err)
	assert.Equal(t, "blog-backend", result.Spec.ProjectName)
	assert.Equal(t, "gemini-2.0-flash", result.ModelUsed)
	assert.Equal(t, 1, provider.calls)
}

func TestGenerate_StripsMarkdownFence(t *testing.T) {
	fenced := "```json\n" + validSpecJSON + "\n```"
	provider := &scriptedProvider{responses: []string{fenced}}
	agent := New(newTestRouter(provider))

	result, err := agent.Generate(context.Background(), "", Request{Prompt: "a blog api"})
	require.NoError(t, err)
	assert.Equal(t, "blog-backend", result.Spec.ProjectName)
}

func TestGenerate_RepromptsOnInvalidJSONThenSucceeds(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"not json", validSpecJSON}}
	agent := New(newTestRouter(provider))

	result, err := agent.Generate(context.Background(), "", Request{Prompt: "a blog api"})
	require.NoError(t, err)
	assert.Equal(t, "blog-backend", result.Spec.ProjectName)
	assert.Equal(t, 2, provider.calls)
}

func TestGenerate_ExhaustsRetriesOnPersistentInvalidOutput(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"bad", "still bad", "nope"}}
	agent := New(newTestRouter(provider))

	_, err := agent.Generate(context.Background(), "", Request{Prompt: "a blog api"})
	require.Error(t, err)
	assert.True(t, apierrors.Is(err, apierrors.KindSpecGenerationFailed))
	assert.Equal(t, 3, provider.calls) // 1 + defaultMaxRetries
}

func TestGenerate_QuotaExhaustionOnAllModelsSurfacesAllModelsExhausted(t *testing.T) {
	quotaErr := apierrors.New(apierrors.KindQuotaExhausted, "quota exhausted")
	provider := &scriptedProvider{errs: []error{quotaErr, quotaErr, quotaErr}}
	agent := New(newTestRouter(provider))

	_, err := agent.Generate(context.Background(), "", Request{Prompt: "a blog api"})
	require.Error(t, err)
	assert.True(t, apierrors.Is(err, apierrors.KindAllModelsExhausted))
}
