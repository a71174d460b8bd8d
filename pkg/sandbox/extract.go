package sandbox

import (
	"regexp"
	"strconv"
	"strings"
)

// tracebackFileLine matches a traceback frame pointing into the
// generated application tree, e.g. `File "/app/app/models.py", line 4`.
var tracebackFileLine = regexp.MustCompile(`File "[^"]*/(app/\S+\.py)", line (\d+)`)

// exceptionHeader matches the known error-kind set spec.md §4.7 names:
// name-, import-, attribute-, type-, value-, syntax-, indentation-,
// key-, runtime-error.
var exceptionHeader = regexp.MustCompile(`(NameError|ImportError|ModuleNotFoundError|AttributeError|TypeError|ValueError|SyntaxError|IndentationError|KeyError|RuntimeError): (.+)`)

const maxExtractedFailures = 20

// ExtractFailures parses a failed deploy's log tail for a traceback frame,
// an exception header, and named pytest failures.
func ExtractFailures(logTail string) FailureExtraction {
	var extraction FailureExtraction

	if matches := tracebackFileLine.FindAllStringSubmatch(logTail, -1); len(matches) > 0 {
		last := matches[len(matches)-1]
		extraction.ErrorFilePath = last[1]
		if line, err := strconv.Atoi(last[2]); err == nil {
			extraction.ErrorLine = line
		}
	}

	if m := exceptionHeader.FindStringSubmatch(logTail); m != nil {
		extraction.TracebackSummary = m[1] + ": " + strings.TrimSpace(m[2])
	}

	extraction.FailedTests = extractFailedTests(logTail)
	return extraction
}

func extractFailedTests(output string) []string {
	var failures []string
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "FAILED") || (strings.Contains(line, " FAILED") && strings.Contains(line, "::")) {
			failures = append(failures, trimmed)
			if len(failures) == maxExtractedFailures {
				break
			}
		}
	}
	return failures
}
