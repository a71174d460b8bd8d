package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type fakeDocStore struct {
	saved        []Document
	existing     map[string]Document
	savedChunks  []Chunk
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{existing: make(map[string]Document)}
}

func (f *fakeDocStore) FindByHash(ctx context.Context, userID, hash string) (Document, bool, error) {
	doc, ok := f.existing[userID+":"+hash]
	return doc, ok, nil
}

func (f *fakeDocStore) Save(ctx context.Context, doc Document) error {
	f.saved = append(f.saved, doc)
	f.existing[doc.UserID+":"+doc.ContentHash] = doc
	return nil
}

func (f *fakeDocStore) SaveChunks(ctx context.Context, chunks []Chunk) error {
	f.savedChunks = append(f.savedChunks, chunks...)
	return nil
}

type fakeChunkStore struct {
	upserted []Chunk
	results  []SearchResult
}

func (f *fakeChunkStore) Upsert(ctx context.Context, chunks []Chunk) error {
	f.upserted = append(f.upserted, chunks...)
	return nil
}

func (f *fakeChunkStore) SearchByUser(ctx context.Context, userID string, embedding []float32, limit int) ([]SearchResult, error) {
	return f.results, nil
}

func TestRetriever_IngestIsIdempotentPerUserAndHash(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeChunkStore{}
	docs := newFakeDocStore()
	r := NewRetriever(embedder, store, docs)

	raw := []byte("hello world, this is a test document")
	first, err := r.Ingest(context.Background(), "user-1", "notes.txt", raw)
	require.NoError(t, err)
	assert.NotEmpty(t, store.upserted)

	second, err := r.Ingest(context.Background(), "user-1", "notes.txt", raw)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, embedder.calls, "second ingest of identical bytes should not re-embed")
}

func TestRetriever_RetrieveContextDiscardsBelowSimilarityFloor(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeChunkStore{results: []SearchResult{
		{Text: "relevant", Score: 0.8},
		{Text: "irrelevant", Score: 0.1},
	}}
	r := NewRetriever(embedder, store, newFakeDocStore())

	ctxText, err := r.RetrieveContext(context.Background(), "user-1", "query", 5)
	require.NoError(t, err)
	assert.Contains(t, ctxText, "relevant")
	assert.NotContains(t, ctxText, "irrelevant")
}

func TestRetriever_RetrieveContextEmptyWhenNothingSurvives(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeChunkStore{results: []SearchResult{{Text: "meh", Score: 0.2}}}
	r := NewRetriever(embedder, store, newFakeDocStore())

	ctxText, err := r.RetrieveContext(context.Background(), "user-1", "query", 5)
	require.NoError(t, err)
	assert.Empty(t, ctxText)
}

func TestExtractText_RejectsOversizeDocument(t *testing.T) {
	raw := make([]byte, MaxDocumentBytes+1)
	_, err := ExtractText("big.txt", raw)
	require.Error(t, err)
}

func TestExtractText_RejectsUnsupportedExtension(t *testing.T) {
	_, err := ExtractText("archive.zip", []byte("data"))
	require.Error(t, err)
}

func TestExtractText_PlainTextPassesThrough(t *testing.T) {
	text, err := ExtractText("notes.txt", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestExtractText_PrettyPrintsJSON(t *testing.T) {
	text, err := ExtractText("data.json", []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Contains(t, text, "\n")
}

func TestContentHash_Deterministic(t *testing.T) {
	a := ContentHash([]byte("same bytes"))
	b := ContentHash([]byte("same bytes"))
	assert.Equal(t, a, b)
}
