package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name          string
		prompt        string
		hasArtifact   bool
		priorMessages []Message
		want          Intent
	}{
		{
			name:        "no existing artifact always generates",
			prompt:      "where is my project?",
			hasArtifact: false,
			want:        Generate,
		},
		{
			name:        "retrieve pattern match",
			prompt:      "where is my project?",
			hasArtifact: true,
			priorMessages: []Message{
				{Role: "user", Content: "build a todo api"},
			},
			want: Retrieve,
		},
		{
			name:        "refine pattern with history",
			prompt:      "also add a priority integer field",
			hasArtifact: true,
			priorMessages: []Message{
				{Role: "user", Content: "build a todo api"},
			},
			want: Refine,
		},
		{
			name:        "generate pattern wins without history",
			prompt:      "build a todo api",
			hasArtifact: true,
			want:        Generate,
		},
		{
			name:        "default to refine when history exists and nothing matches",
			prompt:      "what does this field mean",
			hasArtifact: true,
			priorMessages: []Message{
				{Role: "user", Content: "build a todo api"},
			},
			want: Refine,
		},
		{
			name:        "default to generate with no history and nothing matches",
			prompt:      "what does this field mean",
			hasArtifact: true,
			want:        Generate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.prompt, tt.hasArtifact, tt.priorMessages)
			assert.Equal(t, tt.want, got)
		})
	}
}
