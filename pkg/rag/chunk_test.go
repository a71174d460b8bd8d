package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkText_SingleShortParagraph(t *testing.T) {
	chunks := ChunkText("hello world", 500, 50)
	assert.Equal(t, []string{"hello world"}, chunks)
}

func TestChunkText_RespectsSizeCeiling(t *testing.T) {
	text := strings.Repeat("word ", 200) // ~1000 chars, one giant paragraph
	chunks := ChunkText(text, 100, 10)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 100+10, "chunk exceeds size+overlap bound")
	}
	assert.Greater(t, len(chunks), 1)
}

func TestChunkText_GroupsShortParagraphsTogether(t *testing.T) {
	text := "one\n\ntwo\n\nthree"
	chunks := ChunkText(text, 500, 50)
	assert.Equal(t, []string{"one\n\ntwo\n\nthree"}, chunks)
}

func TestChunkText_SplitsOversizeParagraphByCharacterIndex(t *testing.T) {
	text := strings.Repeat("a", 250)
	chunks := ChunkText(text, 100, 20)
	assert.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 100+20)
	}
}

func TestChunkText_Empty(t *testing.T) {
	assert.Empty(t, ChunkText("", 500, 50))
	assert.Empty(t, ChunkText("   \n\n  ", 500, 50))
}
