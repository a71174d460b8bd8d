package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// createGINIndexes creates full-text search indexes not expressed in the
// plain migration SQL, mirroring how the original schema separated
// structural DDL from search-specific indexing.
func createGINIndexes(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx,
		`CREATE INDEX IF NOT EXISTS idx_projects_prompt_gin
		ON projects USING gin(to_tsvector('english', prompt))`)
	if err != nil {
		return fmt.Errorf("failed to create projects.prompt GIN index: %w", err)
	}

	_, err = pool.Exec(ctx,
		`CREATE INDEX IF NOT EXISTS idx_messages_content_gin
		ON messages USING gin(to_tsvector('english', content))`)
	if err != nil {
		return fmt.Errorf("failed to create messages.content GIN index: %w", err)
	}

	return nil
}
