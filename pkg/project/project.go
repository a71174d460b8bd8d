// Package project persists the Pipeline Orchestrator's durable state:
// Projects and their generation artifacts, conversation Threads/Messages,
// and the relational half of RAG Documents/Chunks (the embeddings
// themselves live in Qdrant via pkg/rag).
package project

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeready-toolchain/genforge/pkg/apierrors"
)

// Status is the Project state-machine value, durable in the status column.
type Status string

const (
	StatusPending              Status = "pending"
	StatusGenerating           Status = "generating"
	StatusAwaitingVerification Status = "awaiting_verification"
	StatusCompleted            Status = "completed"
	StatusFailed               Status = "failed"
)

// Project is the persistent record for a single generation attempt.
type Project struct {
	ID                string
	UserID            string
	ProjectName       string
	Prompt            string
	Status            Status
	ModelUsed         *string
	SpecJSON          json.RawMessage
	ValidationJSON    json.RawMessage
	VerificationJSON  json.RawMessage
	ZipPath           *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Repository is the pgx-backed store for Project.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new Project in StatusPending.
func (r *Repository) Create(ctx context.Context, userID, projectName, prompt string) (Project, error) {
	if prompt == "" {
		return Project{}, apierrors.NewValidationError("prompt", "prompt is required")
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO projects (user_id, project_name, prompt, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, user_id, project_name, prompt, status, model_used,
		           spec_json, validation_json, verification_json, zip_path,
		           created_at, updated_at`,
		userID, projectName, prompt, StatusPending,
	)
	return scanProject(row)
}

// Resume resets an existing Project to StatusPending with a new prompt,
// used by the REFINE flow (spec.md §4.6 step 1).
func (r *Repository) Resume(ctx context.Context, id, prompt string) (Project, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE projects SET prompt = $2, status = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING id, user_id, project_name, prompt, status, model_used,
		           spec_json, validation_json, verification_json, zip_path,
		           created_at, updated_at`,
		id, prompt, StatusPending,
	)
	return scanProject(row)
}

func (r *Repository) Get(ctx context.Context, id string) (Project, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, project_name, prompt, status, model_used,
		        spec_json, validation_json, verification_json, zip_path,
		        created_at, updated_at
		 FROM projects WHERE id = $1`, id)
	p, err := scanProject(row)
	if err != nil {
		return Project{}, err
	}
	return p, nil
}

// GetForUser scopes Get to rows owned by userID, enforcing spec.md §8's
// tenancy invariant at the read itself: a cross-user read surfaces the
// same NotFound a missing id would, never Forbidden.
func (r *Repository) GetForUser(ctx context.Context, userID, id string) (Project, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, project_name, prompt, status, model_used,
		        spec_json, validation_json, verification_json, zip_path,
		        created_at, updated_at
		 FROM projects WHERE id = $1 AND user_id = $2`, id, userID)
	return scanProject(row)
}

func (r *Repository) ListByUser(ctx context.Context, userID string) ([]Project, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, project_name, prompt, status, model_used,
		        spec_json, validation_json, verification_json, zip_path,
		        created_at, updated_at
		 FROM projects WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateStatus applies a state-machine transition (spec.md §4.6).
func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE projects SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update project status: %w", err)
	}
	return nil
}

// SetSpec records the C3 output and the model that produced it.
func (r *Repository) SetSpec(ctx context.Context, id string, specJSON json.RawMessage, modelUsed string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE projects SET spec_json = $2, model_used = $3, updated_at = now() WHERE id = $1`,
		id, specJSON, modelUsed)
	if err != nil {
		return fmt.Errorf("set project spec: %w", err)
	}
	return nil
}

func (r *Repository) SetValidation(ctx context.Context, id string, validationJSON json.RawMessage) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE projects SET validation_json = $2, updated_at = now() WHERE id = $1`, id, validationJSON)
	if err != nil {
		return fmt.Errorf("set project validation: %w", err)
	}
	return nil
}

func (r *Repository) SetVerification(ctx context.Context, id string, verificationJSON json.RawMessage) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE projects SET verification_json = $2, updated_at = now() WHERE id = $1`, id, verificationJSON)
	if err != nil {
		return fmt.Errorf("set project verification: %w", err)
	}
	return nil
}

func (r *Repository) SetZipPath(ctx context.Context, id, zipPath string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE projects SET zip_path = $2, updated_at = now() WHERE id = $1`, id, zipPath)
	if err != nil {
		return fmt.Errorf("set project zip path: %w", err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

// DeleteForUser scopes Delete to rows owned by userID; a cross-user or
// unknown id deletes nothing and reports NotFound rather than silently
// succeeding or leaking whether the row exists under another user.
func (r *Repository) DeleteForUser(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apierrors.New(apierrors.KindNotFound, "project not found")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (Project, error) {
	var p Project
	err := row.Scan(
		&p.ID, &p.UserID, &p.ProjectName, &p.Prompt, &p.Status, &p.ModelUsed,
		&p.SpecJSON, &p.ValidationJSON, &p.VerificationJSON, &p.ZipPath,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Project{}, apierrors.New(apierrors.KindNotFound, "project not found")
		}
		return Project{}, fmt.Errorf("scan project: %w", err)
	}
	return p, nil
}
