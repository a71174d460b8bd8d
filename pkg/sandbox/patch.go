package sandbox

// BuildPatchRequests applies the four-step priority policy from spec.md
// §4.7 to turn one failed deploy's extraction (plus, for named test
// failures, a lookup from test name to the application file it
// implicates) into the patch requests fed to the implementer
// collaborator on the next repair-loop iteration.
func BuildPatchRequests(extraction FailureExtraction, entryPoint string, healthCheckFailed bool, testFileForFailure func(testName string) (file string, ok bool)) []PatchRequest {
	var requests []PatchRequest

	// 1. A traceback pinpointing a specific application file wins outright.
	if extraction.ErrorFilePath != "" {
		reason := extraction.TracebackSummary
		if reason == "" {
			reason = "traceback referenced this file but no exception header was recognized"
		}
		return []PatchRequest{{
			FilePath: extraction.ErrorFilePath,
			Reason:   reason,
			Instructions: []string{
				"Fix the runtime error in this file that prevents the API from starting.",
				"Error: " + reason,
				"Make sure all imports are correct — if you use Field, SQLModel, etc., import them explicitly.",
			},
		}}
	}

	// 2. Health check failed and the traceback didn't already name the
	// entry point: target the entry point with the log tail as context.
	if healthCheckFailed {
		reason := "health check failed"
		if extraction.TracebackSummary != "" {
			reason = extraction.TracebackSummary
		}
		return []PatchRequest{{
			FilePath: entryPoint,
			Reason:   reason,
			Instructions: []string{
				"Fix any import errors, syntax errors, or configuration issues that prevent the API from starting.",
				"Error: " + reason,
			},
		}}
	}

	// 3. Each named failing test that implicates an application file.
	seen := make(map[string]bool)
	for _, testName := range extraction.FailedTests {
		if testFileForFailure == nil {
			continue
		}
		file, ok := testFileForFailure(testName)
		if !ok || seen[file] {
			continue
		}
		seen[file] = true
		requests = append(requests, PatchRequest{
			FilePath: file,
			Reason:   "failing test: " + testName,
			Instructions: []string{
				"Fix the issue causing this test to fail.",
				"Failing test: " + testName,
			},
		})
	}
	if len(requests) > 0 {
		return requests
	}

	// 4. Nothing more specific produced a request: catch-all against the
	// entry point.
	return []PatchRequest{{
		FilePath: entryPoint,
		Reason:   "deploy or tests failed with no attributable file",
		Instructions: []string{
			"Review and fix the main application entry point.",
		},
	}}
}
