package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFailures_TracebackPinpointsApplicationFile(t *testing.T) {
	logTail := `
Traceback (most recent call last):
  File "/usr/local/lib/python3.11/runpy.py", line 198, in _run_module_as_main
    return _run_code(code, main_globals, None,
  File "/app/app/models.py", line 4, in <module>
    id: Field(primary_key=True)
NameError: name 'Field' is not defined
`
	extraction := ExtractFailures(logTail)

	require.Equal(t, "app/models.py", extraction.ErrorFilePath)
	assert.Equal(t, 4, extraction.ErrorLine)
	assert.Equal(t, "NameError: name 'Field' is not defined", extraction.TracebackSummary)
	assert.Empty(t, extraction.FailedTests)
}

func TestExtractFailures_UsesLastTracebackFrameWhenMultiplePresent(t *testing.T) {
	logTail := `
  File "/app/app/models.py", line 4, in <module>
  File "/app/app/routes.py", line 19, in create_task
ValueError: invalid literal
`
	extraction := ExtractFailures(logTail)

	assert.Equal(t, "app/routes.py", extraction.ErrorFilePath)
	assert.Equal(t, 19, extraction.ErrorLine)
}

func TestExtractFailures_CollectsNamedPytestFailuresUpToCap(t *testing.T) {
	var logTail string
	for i := 0; i < maxExtractedFailures+5; i++ {
		logTail += "FAILED tests/test_tasks.py::test_create_task\n"
	}

	extraction := ExtractFailures(logTail)

	assert.Len(t, extraction.FailedTests, maxExtractedFailures)
	assert.Empty(t, extraction.ErrorFilePath)
}

func TestExtractFailures_NoMatchesReturnsZeroValue(t *testing.T) {
	extraction := ExtractFailures("container started, health check succeeded")

	assert.Empty(t, extraction.ErrorFilePath)
	assert.Empty(t, extraction.TracebackSummary)
	assert.Empty(t, extraction.FailedTests)
}
