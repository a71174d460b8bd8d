package rag

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

const contextSeparator = "\n\n---\n\n"

// DocumentStore persists Document metadata for the idempotency check —
// ingestion is a no-op when a document with the same (UserID, ContentHash)
// already exists. Implemented against pkg/project's pgx-backed storage.
type DocumentStore interface {
	FindByHash(ctx context.Context, userID, hash string) (Document, bool, error)
	Save(ctx context.Context, doc Document) error
	SaveChunks(ctx context.Context, chunks []Chunk) error
}

// ChunkStore is the vector-storage surface the Retriever depends on.
// *VectorStore implements it against Qdrant; tests substitute a fake.
type ChunkStore interface {
	Upsert(ctx context.Context, chunks []Chunk) error
	SearchByUser(ctx context.Context, userID string, embedding []float32, limit int) ([]SearchResult, error)
}

// Retriever wires chunking, embedding, and vector storage into the
// ingestion and retrieval operations C2 exposes to the pipeline.
type Retriever struct {
	embedder Embedder
	store    ChunkStore
	docs     DocumentStore
}

func NewRetriever(embedder Embedder, store ChunkStore, docs DocumentStore) *Retriever {
	return &Retriever{embedder: embedder, store: store, docs: docs}
}

// Ingest extracts, dedups, chunks, embeds, and stores a document. It
// returns the existing Document unchanged if the same user already
// uploaded identical bytes.
func (r *Retriever) Ingest(ctx context.Context, userID, filename string, raw []byte) (Document, error) {
	text, err := ExtractText(filename, raw)
	if err != nil {
		return Document{}, err
	}

	hash := ContentHash(raw)
	if existing, found, err := r.docs.FindByHash(ctx, userID, hash); err != nil {
		return Document{}, err
	} else if found {
		return existing, nil
	}

	doc := Document{
		ID:          uuid.NewString(),
		UserID:      userID,
		Filename:    filename,
		ContentHash: hash,
		Text:        text,
	}

	chunkTexts := ChunkText(text, DefaultChunkSize, DefaultChunkOverlap)
	chunks, err := r.embedChunks(ctx, doc, chunkTexts)
	if err != nil {
		return Document{}, err
	}

	if err := r.store.Upsert(ctx, chunks); err != nil {
		return Document{}, err
	}
	if err := r.docs.Save(ctx, doc); err != nil {
		return Document{}, err
	}
	if err := r.docs.SaveChunks(ctx, chunks); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (r *Retriever) embedChunks(ctx context.Context, doc Document, texts []string) ([]Chunk, error) {
	var chunks []Chunk
	offset := 0
	for _, batch := range batchTexts(texts, EmbedBatchSize) {
		vectors, err := r.embedder.EmbedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		for i, text := range batch {
			idx := offset + i
			chunks = append(chunks, Chunk{
				ID:         uuid.NewString(),
				DocumentID: doc.ID,
				UserID:     doc.UserID,
				Index:      idx,
				Text:       text,
				Embedding:  vectors[i],
			})
		}
		offset += len(batch)
	}
	return chunks, nil
}

// RetrieveContext embeds the query, finds the K nearest chunks belonging
// to userID, discards anything at or below SimilarityFloor, and
// concatenates the survivors into a single context string (empty if none
// survive).
func (r *Retriever) RetrieveContext(ctx context.Context, userID, query string, k int) (string, error) {
	vectors, err := r.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return "", err
	}

	results, err := r.store.SearchByUser(ctx, userID, vectors[0], k)
	if err != nil {
		return "", err
	}

	var passing []string
	for _, res := range results {
		if res.Score <= SimilarityFloor {
			continue
		}
		passing = append(passing, res.Text)
	}
	if len(passing) == 0 {
		return "", nil
	}
	return strings.Join(passing, contextSeparator), nil
}
