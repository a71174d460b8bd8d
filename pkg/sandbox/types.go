// Package sandbox implements the Sandbox & Repair Loop (C7): it deploys a
// generated project into an ephemeral container, smoke-tests every CRUD
// endpoint, extracts structured failure information from a failed deploy,
// and drives a bounded implementer/reviewer repair loop against it.
package sandbox

import "github.com/codeready-toolchain/genforge/pkg/spec"

// EndpointResult is the outcome of exercising a single HTTP call during
// verification.
type EndpointResult struct {
	Method         string `json:"method"`
	Path           string `json:"path"`
	ExpectedStatus int    `json:"expected_status"`
	ActualStatus   int    `json:"actual_status"`
	Passed         bool   `json:"passed"`
	Error          string `json:"error,omitempty"`
}

// VerificationReport aggregates every EndpointResult from one deploy
// attempt, matching the "Verification reporter" shape spec.md §6 expects
// an external client to POST back as a VerificationReport.
type VerificationReport struct {
	Passed      bool             `json:"passed"`
	Skipped     bool             `json:"skipped"`
	SkipReason  string           `json:"skip_reason,omitempty"`
	TotalTests  int              `json:"total_tests"`
	PassedTests int              `json:"passed_tests"`
	FailedTests int              `json:"failed_tests"`
	Results     []EndpointResult `json:"results"`
	Errors      []string         `json:"errors,omitempty"`
}

func (r *VerificationReport) record(res EndpointResult) {
	res.Passed = res.Error == "" && res.ActualStatus == res.ExpectedStatus
	r.Results = append(r.Results, res)
	r.TotalTests++
	if res.Passed {
		r.PassedTests++
	} else {
		r.FailedTests++
	}
}

func (r *VerificationReport) finalize() {
	r.Passed = r.FailedTests == 0 && r.TotalTests > 0 && len(r.Errors) == 0
}

// SandboxTestReport is the deploy-and-test report a single attempt
// produces, the shape named in spec.md §2: "(deployed, health_check_ok,
// tests_passed, tests_failed, tests_total, test_output, failures[],
// error_file_path?, error_line?, traceback_summary?)".
type SandboxTestReport struct {
	Deployed         bool
	HealthCheckOK    bool
	TestsPassed      int
	TestsFailed      int
	TestsTotal       int
	TestOutput       string
	Failures         []string
	ErrorFilePath    string
	ErrorLine        int
	TracebackSummary string
}

// FailureExtraction is the structured data pulled from a failed deploy's
// log tail, feeding patch-request construction (spec.md §4.7).
type FailureExtraction struct {
	ErrorFilePath    string
	ErrorLine        int
	TracebackSummary string
	FailedTests      []string
}

// PatchRequest targets one file for the implementer collaborator to fix,
// carrying the reason the repair loop is asking for a change there plus
// bulleted guidance narrowing what that change should be.
type PatchRequest struct {
	FilePath     string
	Reason       string
	Instructions []string
}

// AutoFixRequest is the HTTP request body spec.md §6 names for
// `POST /projects/{id}/fix`: only valid when the Project is in
// StatusFailed, driving a bounded re-invocation of C7.
type AutoFixRequest struct {
	AttemptNumber int          `json:"attempt_number"`
	FailedTests   []FailedTest `json:"failed_tests"`
}

// FailedTest is one entry in an AutoFixRequest's failed_tests list.
type FailedTest struct {
	Method       string `json:"method"`
	Endpoint     string `json:"endpoint"`
	ErrorMessage string `json:"error_message"`
}

// entityTestValue returns a type-appropriate synthetic value for
// exercising CREATE/UPDATE endpoints, mirroring the update/create value
// generators original_source/agents/deploy_verify.py uses per FieldType.
func entityTestValue(ft spec.FieldType, fieldName string, updated bool) any {
	suffix := "test_"
	if updated {
		suffix = "updated_"
	}
	switch ft {
	case spec.FieldString:
		return suffix + fieldName
	case spec.FieldText:
		if updated {
			return "Updated text content for " + fieldName
		}
		return "Test text content for " + fieldName
	case spec.FieldInteger:
		if updated {
			return 99
		}
		return 42
	case spec.FieldFloat:
		if updated {
			return 6.28
		}
		return 3.14
	case spec.FieldBoolean:
		return updated
	case spec.FieldDatetime:
		return nowRFC3339()
	case spec.FieldUUID:
		return newUUID()
	default:
		return suffix + "value"
	}
}
