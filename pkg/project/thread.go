package project

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Thread is a conversation scoped to a Project — created on first prompt,
// reused across REFINE iterations.
type Thread struct {
	ID        string
	ProjectID string
	CreatedAt time.Time
}

// Message is a single turn in a Thread.
type Message struct {
	ID        string
	ThreadID  string
	Role      string
	Content   string
	CreatedAt time.Time
}

// ThreadRepository is the pgx-backed store for Thread/Message.
type ThreadRepository struct {
	pool *pgxpool.Pool
}

func NewThreadRepository(pool *pgxpool.Pool) *ThreadRepository {
	return &ThreadRepository{pool: pool}
}

func (r *ThreadRepository) Create(ctx context.Context, projectID string) (Thread, error) {
	var t Thread
	err := r.pool.QueryRow(ctx,
		`INSERT INTO threads (project_id) VALUES ($1) RETURNING id, project_id, created_at`,
		projectID,
	).Scan(&t.ID, &t.ProjectID, &t.CreatedAt)
	if err != nil {
		return Thread{}, fmt.Errorf("create thread: %w", err)
	}
	return t, nil
}

func (r *ThreadRepository) AppendMessage(ctx context.Context, threadID, role, content string) (Message, error) {
	var m Message
	err := r.pool.QueryRow(ctx,
		`INSERT INTO messages (thread_id, role, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, thread_id, role, content, created_at`,
		threadID, role, content,
	).Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &m.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("append message: %w", err)
	}
	return m, nil
}

// GetLatestByProject returns the most recently created Thread for a
// Project, or ok=false if the project has no thread yet.
func (r *ThreadRepository) GetLatestByProject(ctx context.Context, projectID string) (Thread, bool, error) {
	var t Thread
	err := r.pool.QueryRow(ctx,
		`SELECT id, project_id, created_at FROM threads
		 WHERE project_id = $1 ORDER BY created_at DESC LIMIT 1`, projectID,
	).Scan(&t.ID, &t.ProjectID, &t.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Thread{}, false, nil
		}
		return Thread{}, false, fmt.Errorf("get latest thread: %w", err)
	}
	return t, true, nil
}

// ListMessages returns a Thread's messages oldest-first, the order the
// Prompt→Spec Agent folds them into a model's conversation history.
func (r *ThreadRepository) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, thread_id, role, content, created_at
		 FROM messages WHERE thread_id = $1 ORDER BY created_at ASC`, threadID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
