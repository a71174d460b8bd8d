package project

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeready-toolchain/genforge/pkg/rag"
)

// DocumentRepository implements rag.DocumentStore against the documents
// and chunks tables, so the Context Retriever's idempotency check and
// chunk bookkeeping are durable across restarts.
type DocumentRepository struct {
	pool *pgxpool.Pool
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

func (r *DocumentRepository) FindByHash(ctx context.Context, userID, hash string) (rag.Document, bool, error) {
	var d rag.Document
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, filename, content_hash, text
		 FROM documents WHERE user_id = $1 AND content_hash = $2`,
		userID, hash,
	).Scan(&d.ID, &d.UserID, &d.Filename, &d.ContentHash, &d.Text)
	if err != nil {
		if err == pgx.ErrNoRows {
			return rag.Document{}, false, nil
		}
		return rag.Document{}, false, fmt.Errorf("find document by hash: %w", err)
	}
	return d, true, nil
}

func (r *DocumentRepository) Save(ctx context.Context, doc rag.Document) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO documents (id, user_id, filename, content_hash, text)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, content_hash) DO NOTHING`,
		doc.ID, doc.UserID, doc.Filename, doc.ContentHash, doc.Text,
	)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// SaveChunks persists chunk text relationally, alongside the embeddings
// pkg/rag.VectorStore keeps in Qdrant. Kept for idempotency checks and
// debugging; retrieval never reads chunk text back from Postgres.
func (r *DocumentRepository) SaveChunks(ctx context.Context, chunks []rag.Chunk) error {
	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(
			`INSERT INTO chunks (id, document_id, user_id, chunk_index, content)
			 VALUES ($1, $2, $3, $4, $5)`,
			c.ID, c.DocumentID, c.UserID, c.Index, c.Text,
		)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range chunks {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("save chunk: %w", err)
		}
	}
	return nil
}
