package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPatchRequests_TracebackFileWinsOverEverythingElse(t *testing.T) {
	extraction := FailureExtraction{
		ErrorFilePath:    "app/models.py",
		TracebackSummary: "NameError: name 'Field' is not defined",
		FailedTests:      []string{"tests/test_tasks.py::test_create_task"},
	}

	requests := BuildPatchRequests(extraction, "app/main.py", true, nil)

	require.Len(t, requests, 1)
	assert.Equal(t, "app/models.py", requests[0].FilePath)
	assert.Equal(t, "NameError: name 'Field' is not defined", requests[0].Reason)
	assert.NotEmpty(t, requests[0].Instructions)
}

func TestBuildPatchRequests_HealthCheckFailureTargetsEntryPoint(t *testing.T) {
	requests := BuildPatchRequests(FailureExtraction{}, "app/main.py", true, nil)

	require.Len(t, requests, 1)
	assert.Equal(t, "app/main.py", requests[0].FilePath)
	assert.Equal(t, "health check failed", requests[0].Reason)
}

func TestBuildPatchRequests_NamedFailingTestsMapToFiles(t *testing.T) {
	extraction := FailureExtraction{
		FailedTests: []string{
			"tests/test_tasks.py::test_create_task",
			"tests/test_tasks.py::test_list_tasks",
			"tests/test_users.py::test_register",
		},
	}
	lookup := func(testName string) (string, bool) {
		switch testName {
		case "tests/test_tasks.py::test_create_task", "tests/test_tasks.py::test_list_tasks":
			return "app/routes/tasks.py", true
		case "tests/test_users.py::test_register":
			return "app/routes/users.py", true
		default:
			return "", false
		}
	}

	requests := BuildPatchRequests(extraction, "app/main.py", false, lookup)

	require.Len(t, requests, 2)
	files := []string{requests[0].FilePath, requests[1].FilePath}
	assert.Contains(t, files, "app/routes/tasks.py")
	assert.Contains(t, files, "app/routes/users.py")
}

func TestBuildPatchRequests_FallsBackToCatchAllWhenNothingAttributable(t *testing.T) {
	requests := BuildPatchRequests(FailureExtraction{}, "app/main.py", false, nil)

	require.Len(t, requests, 1)
	assert.Equal(t, "app/main.py", requests[0].FilePath)
	assert.Equal(t, "deploy or tests failed with no attributable file", requests[0].Reason)
}

func TestBuildPatchRequests_UnattributableFailingTestsFallBackToCatchAll(t *testing.T) {
	extraction := FailureExtraction{FailedTests: []string{"tests/test_tasks.py::test_create_task"}}

	requests := BuildPatchRequests(extraction, "app/main.py", false, func(string) (string, bool) { return "", false })

	require.Len(t, requests, 1)
	assert.Equal(t, "app/main.py", requests[0].FilePath)
}
