package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/genforge/pkg/spec"
)

// fakeTransport routes requests by method+path prefix to a handler,
// standing in for the deployed generated backend.
type fakeTransport struct {
	handlers []fakeRoute
}

type fakeRoute struct {
	method string
	prefix string
	handle func(req *http.Request) (*http.Response, error)
}

func jsonResponse(status int, body any) *http.Response {
	data, _ := json.Marshal(body)
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(data))}
}

func (f *fakeTransport) Do(req *http.Request) (*http.Response, error) {
	for _, r := range f.handlers {
		if r.method == req.Method && strings.Contains(req.URL.Path, r.prefix) {
			return r.handle(req)
		}
	}
	return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(bytes.NewReader(nil))}, nil
}

func taskSpec() spec.Spec {
	return spec.Spec{
		ProjectName: "todo-backend",
		Entities: []spec.Entity{
			{
				Name:      "Task",
				TableName: "tasks",
				CRUD:      true,
				Fields: []spec.Field{
					{Name: "id", Type: spec.FieldUUID, PrimaryKey: true},
					{Name: "title", Type: spec.FieldString},
					{Name: "done", Type: spec.FieldBoolean},
				},
			},
		},
	}
}

func TestRunEndpointTests_FullCRUDSequencePasses(t *testing.T) {
	var nextID = 1
	records := map[string]map[string]any{}

	transport := &fakeTransport{}
	transport.handlers = []fakeRoute{
		{method: http.MethodPost, prefix: "/tasks/", handle: func(req *http.Request) (*http.Response, error) {
			var body map[string]any
			json.NewDecoder(req.Body).Decode(&body)
			id := fmt.Sprintf("task-%d", nextID)
			nextID++
			body["id"] = id
			records[id] = body
			return jsonResponse(http.StatusCreated, body), nil
		}},
		{method: http.MethodGet, prefix: "/tasks/", handle: func(req *http.Request) (*http.Response, error) {
			if strings.HasSuffix(req.URL.Path, "/tasks/") {
				var list []map[string]any
				for _, v := range records {
					list = append(list, v)
				}
				return jsonResponse(http.StatusOK, list), nil
			}
			id := lastSegment(req.URL.Path)
			rec, ok := records[id]
			if !ok {
				return jsonResponse(http.StatusNotFound, map[string]any{}), nil
			}
			return jsonResponse(http.StatusOK, rec), nil
		}},
		{method: http.MethodPut, prefix: "/tasks/", handle: func(req *http.Request) (*http.Response, error) {
			id := lastSegment(req.URL.Path)
			var body map[string]any
			json.NewDecoder(req.Body).Decode(&body)
			body["id"] = id
			records[id] = body
			return jsonResponse(http.StatusOK, body), nil
		}},
		{method: http.MethodDelete, prefix: "/tasks/", handle: func(req *http.Request) (*http.Response, error) {
			id := lastSegment(req.URL.Path)
			delete(records, id)
			return &http.Response{StatusCode: http.StatusNoContent, Body: io.NopCloser(bytes.NewReader(nil))}, nil
		}},
	}

	report := runEndpointTests(context.Background(), transport, "http://sandbox.local", taskSpec())

	require.True(t, report.Passed, "expected all endpoint checks to pass: %+v", report.Results)
	assert.Zero(t, report.FailedTests)
	assert.Greater(t, report.TotalTests, 0)
}

func TestRunEndpointTests_DataIntegrityMismatchIsRecordedAsFailure(t *testing.T) {
	transport := &fakeTransport{handlers: []fakeRoute{
		{method: http.MethodPost, prefix: "/tasks/", handle: func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusCreated, map[string]any{"id": "task-1", "title": "wrong-title", "done": false}), nil
		}},
		{method: http.MethodGet, prefix: "/tasks/", handle: func(req *http.Request) (*http.Response, error) {
			if strings.HasSuffix(req.URL.Path, "/tasks/") {
				return jsonResponse(http.StatusOK, []map[string]any{}), nil
			}
			return jsonResponse(http.StatusOK, map[string]any{"id": "task-1", "title": "wrong-title", "done": false}), nil
		}},
		{method: http.MethodPut, prefix: "/tasks/", handle: func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, map[string]any{"id": "task-1", "title": "still-wrong", "done": true}), nil
		}},
		{method: http.MethodDelete, prefix: "/tasks/", handle: func(req *http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusNoContent, Body: io.NopCloser(bytes.NewReader(nil))}, nil
		}},
	}}

	report := runEndpointTests(context.Background(), transport, "http://sandbox.local", taskSpec())

	assert.False(t, report.Passed)
	assert.Greater(t, report.FailedTests, 0)
}

func TestRunEndpointTests_AuthEnabledSkipsUserEntityAndThreadsToken(t *testing.T) {
	s := taskSpec()
	s.Auth = spec.AuthConfig{Enabled: true, Kind: "jwt"}
	s.Entities = append(s.Entities, spec.Entity{Name: "User", TableName: "users", CRUD: true, Fields: []spec.Field{{Name: "id", Type: spec.FieldUUID, PrimaryKey: true}}})

	var sawAuthHeaderOnTasks bool
	transport := &fakeTransport{handlers: []fakeRoute{
		{method: http.MethodPost, prefix: "/auth/register", handle: func(req *http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusCreated, Body: io.NopCloser(bytes.NewReader(nil))}, nil
		}},
		{method: http.MethodPost, prefix: "/auth/login", handle: func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, map[string]any{"access_token": "tok123"}), nil
		}},
		{method: http.MethodPost, prefix: "/tasks/", handle: func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("Authorization") == "Bearer tok123" {
				sawAuthHeaderOnTasks = true
			}
			return jsonResponse(http.StatusCreated, map[string]any{"id": "task-1", "title": "t", "done": false}), nil
		}},
		{method: http.MethodGet, prefix: "/tasks/", handle: func(req *http.Request) (*http.Response, error) {
			if strings.HasSuffix(req.URL.Path, "/tasks/") {
				return jsonResponse(http.StatusOK, []map[string]any{{"id": "task-1", "title": "t", "done": false}}), nil
			}
			return jsonResponse(http.StatusOK, map[string]any{"id": "task-1", "title": "t", "done": false}), nil
		}},
		{method: http.MethodPut, prefix: "/tasks/", handle: func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, map[string]any{"id": "task-1", "title": "t2", "done": true}), nil
		}},
		{method: http.MethodDelete, prefix: "/tasks/", handle: func(req *http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusNoContent, Body: io.NopCloser(bytes.NewReader(nil))}, nil
		}},
	}}

	report := runEndpointTests(context.Background(), transport, "http://sandbox.local", s)

	assert.True(t, sawAuthHeaderOnTasks)
	for _, r := range report.Results {
		assert.NotContains(t, r.Path, "/users/")
	}
}

func lastSegment(path string) string {
	parts := strings.Split(strings.TrimRight(path, "/"), "/")
	return parts[len(parts)-1]
}
