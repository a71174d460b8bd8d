package sandbox

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/genforge/pkg/spec"
)

const (
	maxRepairAttempts = 3
	maxReviewRounds   = 5
	trustApproveFloor = 7
)

// Implementer applies a batch of patch requests against the current file
// set and returns the new file map, per spec.md §4.7's repair-loop
// contract: invoke with (current_spec, current_files, patch_requests[]);
// it returns a new file map. changedCount lets the loop detect
// non-progress: zero applied changes stops the loop even with attempts
// remaining.
type Implementer interface {
	Implement(ctx context.Context, s spec.Spec, files map[string]string, requests []PatchRequest) (newFiles map[string]string, changedCount int, err error)
}

// ReviewVerdict is one Reviewer pass's outcome.
type ReviewVerdict struct {
	Approved bool
	Trust    int
	Requests []PatchRequest
}

// Reviewer runs an independent static-analysis + LLM-judged pass over the
// current file set, interleaved with the implementer/sandbox cycle.
type Reviewer interface {
	Review(ctx context.Context, s spec.Spec, files map[string]string) (ReviewVerdict, error)
}

// Attempt records one pass through Deploy → (endpoint tests | review).
type Attempt struct {
	Number      int
	Deployed    bool
	Healthy     bool
	Report      VerificationReport
	Extraction  FailureExtraction
	ReviewScore int
	Approved    bool
	Applied     int
}

// Outcome is the repair loop's final result.
type Outcome struct {
	Healthy      bool
	Approved     bool
	FinalFiles   map[string]string
	FinalReport  VerificationReport
	Attempts     []Attempt
	StoppedEarly bool
	StopReason   string
}

// Loop drives the bounded implementer/reviewer repair cycle of spec.md
// §4.7 against one deployed project: build → deploy → test, patch on
// failure, review interleaved, until success, attempts exhaust, or a
// repair step makes zero changes.
type Loop struct {
	Deployer    *Deployer
	Implementer Implementer
	Reviewer    Reviewer
	Archiver    interface {
		Assemble(ctx context.Context, projectName string, files map[string]string) (string, error)
	}
	EntryPoint      string
	TestFileForName func(testName string) (file string, ok bool)
}

// Run executes the loop against an initial file set already rendered
// from s, returning once it converges, exhausts attempts, or stalls.
func (l *Loop) Run(ctx context.Context, projectName string, s spec.Spec, initialFiles map[string]string) (Outcome, error) {
	files := initialFiles
	bestTrust := 0
	var outcome Outcome

	for attemptNum := 1; attemptNum <= maxRepairAttempts; attemptNum++ {
		attempt := Attempt{Number: attemptNum}

		archivePath, err := l.Archiver.Assemble(ctx, projectName, files)
		if err != nil {
			return outcome, fmt.Errorf("assemble repair attempt %d: %w", attemptNum, err)
		}

		deployment, err := l.Deployer.Deploy(ctx, archivePath)
		if err != nil {
			return outcome, fmt.Errorf("deploy repair attempt %d: %w", attemptNum, err)
		}
		attempt.Deployed = true

		healthy := deployment.WaitHealthy(ctx)
		attempt.Healthy = healthy

		var report VerificationReport
		var extraction FailureExtraction
		if healthy {
			report = RunEndpointTests(ctx, deployment.BaseURL, s)
			attempt.Report = report
		} else {
			logs, _ := deployment.Logs(ctx)
			extraction = ExtractFailures(logs)
			attempt.Extraction = extraction
		}

		if teardownErr := deployment.Teardown(ctx); teardownErr != nil {
			outcome.StopReason = fmt.Sprintf("teardown attempt %d: %v", attemptNum, teardownErr)
		}

		if healthy && report.Passed {
			reviewOutcome, applied, reviewFiles, err := l.runReviewRounds(ctx, s, files, &bestTrust)
			if err != nil {
				return outcome, err
			}
			attempt.ReviewScore = reviewOutcome.Trust
			attempt.Approved = reviewOutcome.Approved
			attempt.Applied = applied
			files = reviewFiles
			outcome.Attempts = append(outcome.Attempts, attempt)

			if reviewOutcome.Approved {
				outcome.Healthy = true
				outcome.Approved = true
				outcome.FinalFiles = files
				outcome.FinalReport = report
				return outcome, nil
			}

			if applied == 0 {
				outcome.Healthy = true
				outcome.Approved = false
				outcome.FinalFiles = files
				outcome.FinalReport = report
				outcome.StoppedEarly = true
				outcome.StopReason = "reviewer flagged issues but a repair step made no progress"
				return outcome, nil
			}
			continue
		}

		outcome.Attempts = append(outcome.Attempts, attempt)

		if !healthy {
			extraction = attempt.Extraction
		} else {
			extraction = ExtractFailures(failedTestLines(report))
		}

		requests := BuildPatchRequests(extraction, l.EntryPoint, !healthy, l.TestFileForName)
		newFiles, applied, err := l.Implementer.Implement(ctx, s, files, requests)
		if err != nil {
			return outcome, fmt.Errorf("implement repair attempt %d: %w", attemptNum, err)
		}
		if applied == 0 {
			outcome.StoppedEarly = true
			outcome.StopReason = "repair step applied zero changes"
			outcome.FinalFiles = files
			outcome.FinalReport = report
			return outcome, nil
		}
		files = newFiles
	}

	outcome.StoppedEarly = true
	outcome.StopReason = "repair attempts exhausted"
	outcome.FinalFiles = files
	return outcome, nil
}

// runReviewRounds interleaves the reviewer with the implementer once the
// sandbox reports healthy, enforcing the trust-score floor so a re-review
// can never report a lower score than a prior round (spec.md §4.7
// monotonicity invariant).
func (l *Loop) runReviewRounds(ctx context.Context, s spec.Spec, files map[string]string, bestTrust *int) (ReviewVerdict, int, map[string]string, error) {
	totalApplied := 0
	for round := 1; round <= maxReviewRounds; round++ {
		verdict, err := l.Reviewer.Review(ctx, s, files)
		if err != nil {
			return ReviewVerdict{}, totalApplied, files, fmt.Errorf("review round %d: %w", round, err)
		}
		if verdict.Trust < *bestTrust {
			verdict.Trust = *bestTrust
		}
		*bestTrust = verdict.Trust

		if verdict.Approved && verdict.Trust >= trustApproveFloor {
			return verdict, totalApplied, files, nil
		}
		if len(verdict.Requests) == 0 {
			return verdict, totalApplied, files, nil
		}

		newFiles, applied, err := l.Implementer.Implement(ctx, s, files, verdict.Requests)
		if err != nil {
			return verdict, totalApplied, files, fmt.Errorf("implement reviewer requests round %d: %w", round, err)
		}
		totalApplied += applied
		if applied == 0 {
			return verdict, totalApplied, files, nil
		}
		files = newFiles
	}

	finalVerdict, err := l.Reviewer.Review(ctx, s, files)
	if err != nil {
		return ReviewVerdict{}, totalApplied, files, fmt.Errorf("final review: %w", err)
	}
	if finalVerdict.Trust < *bestTrust {
		finalVerdict.Trust = *bestTrust
	}
	return finalVerdict, totalApplied, files, nil
}

func failedTestLines(report VerificationReport) string {
	out := ""
	for _, r := range report.Results {
		if !r.Passed {
			out += fmt.Sprintf("FAILED %s %s: %s\n", r.Method, r.Path, r.Error)
		}
	}
	return out
}
