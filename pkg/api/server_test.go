package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/codeready-toolchain/genforge/pkg/database"
	"github.com/codeready-toolchain/genforge/pkg/events"
	"github.com/codeready-toolchain/genforge/pkg/project"
	"github.com/codeready-toolchain/genforge/pkg/sandbox"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts("../database/migrations/000001_init.up.sql"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

type fakeFixer struct {
	calls []sandbox.AutoFixRequest
}

func (f *fakeFixer) RequestFix(ctx context.Context, projectID string, req FixRequest) error {
	f.calls = append(f.calls, req)
	return nil
}

func newTestServer(t *testing.T) (*Server, *project.Repository, *fakeFixer) {
	pool := newTestPool(t)
	projects := project.NewRepository(pool)
	bus := events.NewBus()
	conns := events.NewConnectionManager(bus)
	fixer := &fakeFixer{}
	dbClient := &database.Client{Pool: pool}

	server := NewServer(projects, dbClient, bus, conns, fixer, []string{"http://localhost:5173"})
	return server, projects, fixer
}

func TestHandleHealth_ReportsHealthyWithLiveDatabase(t *testing.T) {
	server, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleVerifyReport_PassingReportCompletesProject(t *testing.T) {
	server, projects, _ := newTestServer(t)
	ctx := context.Background()

	p, err := projects.Create(ctx, "user-1", "todo-backend", "a todo API")
	require.NoError(t, err)
	require.NoError(t, projects.UpdateStatus(ctx, p.ID, project.StatusAwaitingVerification))

	report := sandbox.VerificationReport{Passed: true, TotalTests: 6, PassedTests: 6}
	body, _ := json.Marshal(report)

	req := httptest.NewRequest(http.MethodPost, "/projects/"+p.ID+"/verify-report", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	updated, err := projects.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, project.StatusCompleted, updated.Status)
}

func TestHandleVerifyReport_FailingReportMarksProjectFailed(t *testing.T) {
	server, projects, _ := newTestServer(t)
	ctx := context.Background()

	p, err := projects.Create(ctx, "user-1", "todo-backend", "a todo API")
	require.NoError(t, err)
	require.NoError(t, projects.UpdateStatus(ctx, p.ID, project.StatusAwaitingVerification))

	report := sandbox.VerificationReport{Passed: false, TotalTests: 6, FailedTests: 2}
	body, _ := json.Marshal(report)

	req := httptest.NewRequest(http.MethodPost, "/projects/"+p.ID+"/verify-report", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	updated, err := projects.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, project.StatusFailed, updated.Status)
}

func TestHandleVerifyReport_RejectsProjectNotAwaitingVerification(t *testing.T) {
	server, projects, _ := newTestServer(t)
	ctx := context.Background()

	p, err := projects.Create(ctx, "user-1", "todo-backend", "a todo API")
	require.NoError(t, err)

	body, _ := json.Marshal(sandbox.VerificationReport{Passed: true})
	req := httptest.NewRequest(http.MethodPost, "/projects/"+p.ID+"/verify-report", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleFix_OnlyValidWhenProjectFailed(t *testing.T) {
	server, projects, fixer := newTestServer(t)
	ctx := context.Background()

	p, err := projects.Create(ctx, "user-1", "todo-backend", "a todo API")
	require.NoError(t, err)
	require.NoError(t, projects.UpdateStatus(ctx, p.ID, project.StatusFailed))

	fixReq := sandbox.AutoFixRequest{AttemptNumber: 1, FailedTests: []sandbox.FailedTest{{Method: "POST", Endpoint: "/tasks/", ErrorMessage: "500"}}}
	body, _ := json.Marshal(fixReq)

	req := httptest.NewRequest(http.MethodPost, "/projects/"+p.ID+"/fix", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, fixer.calls, 1)
	assert.Equal(t, 1, fixer.calls[0].AttemptNumber)
}

func TestHandleFix_RejectsEmptyFailedTests(t *testing.T) {
	server, projects, _ := newTestServer(t)
	ctx := context.Background()

	p, err := projects.Create(ctx, "user-1", "todo-backend", "a todo API")
	require.NoError(t, err)
	require.NoError(t, projects.UpdateStatus(ctx, p.ID, project.StatusFailed))

	body, _ := json.Marshal(sandbox.AutoFixRequest{AttemptNumber: 1})
	req := httptest.NewRequest(http.MethodPost, "/projects/"+p.ID+"/fix", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
