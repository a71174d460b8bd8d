// Package report renders the human-readable PROJECT_REPORT.md summary
// that rides alongside the generated backend in its archive: the prompt,
// a spec summary, the review outcome, and — once available — the
// sandbox verification outcome.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/codeready-toolchain/genforge/pkg/review"
	"github.com/codeready-toolchain/genforge/pkg/sandbox"
	"github.com/codeready-toolchain/genforge/pkg/spec"
)

// FileName is the archive-relative path the report is written to.
const FileName = "PROJECT_REPORT.md"

// Input gathers everything Generate needs. Verification is the zero
// value before the sandbox/repair loop has run.
type Input struct {
	Prompt       string
	Spec         spec.Spec
	ModelUsed    string
	Validation   review.Report
	Verification sandbox.VerificationReport
	Verified     bool
	GeneratedAt  time.Time
}

// Generate renders Markdown describing in, in the order the original
// platform's report generator produces it: header, prompt, description,
// configuration, entities, validation, verification, quick start.
func Generate(in Input) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Project Report: %s\n\n", in.Spec.ProjectName)
	meta := "Generated: " + in.GeneratedAt.UTC().Format("2006-01-02 15:04 UTC")
	if in.ModelUsed != "" {
		meta += " | Model: " + in.ModelUsed
	}
	b.WriteString(meta + "\n\n")

	if in.Prompt != "" {
		b.WriteString("## Prompt\n\n> " + in.Prompt + "\n\n")
	}

	if in.Spec.Description != "" {
		b.WriteString("## Description\n\n" + in.Spec.Description + "\n\n")
	}

	writeConfiguration(&b, in.Spec)
	writeEntities(&b, in.Spec)
	writeValidation(&b, in.Validation)
	if in.Verified {
		writeVerification(&b, in.Verification)
	}
	writeQuickStart(&b)

	return b.String()
}

func writeConfiguration(b *strings.Builder, s spec.Spec) {
	b.WriteString("## Configuration\n\n")
	fmt.Fprintf(b, "- **Database**: PostgreSQL %s\n", s.Database.Version)
	if s.Auth.Enabled {
		fmt.Fprintf(b, "- **Authentication**: Enabled (%s)\n", strings.ToUpper(s.Auth.Kind))
		fmt.Fprintf(b, "- **Token Expiry**: %d minutes\n", s.Auth.TokenExpiryMinutes)
	} else {
		b.WriteString("- **Authentication**: Disabled\n")
	}
	b.WriteString("\n")
}

func writeEntities(b *strings.Builder, s spec.Spec) {
	b.WriteString("## Entities\n\n")
	for _, e := range s.Entities {
		fmt.Fprintf(b, "### %s (`%s`)\n\n", e.Name, e.TableName)
		b.WriteString("| Field | Type | PK | Nullable | Unique |\n")
		b.WriteString("|-------|------|----|----------|--------|\n")
		for _, f := range e.Fields {
			fmt.Fprintf(b, "| `%s` | %s | %s | %s | %s |\n",
				f.Name, f.Type, checkmark(f.PrimaryKey), checkmark(f.Nullable), checkmark(f.Unique))
		}
		b.WriteString("\n")
		if e.CRUD {
			fmt.Fprintf(b, "CRUD endpoints: `/%s/`\n\n", e.TableName)
		}
	}
}

func checkmark(v bool) string {
	if v {
		return "✓"
	}
	return ""
}

func writeValidation(b *strings.Builder, v review.Report) {
	b.WriteString("## Validation\n\n")
	if v.Valid {
		fmt.Fprintf(b, "Passed with %d warning(s)\n", len(v.Warnings))
	} else {
		b.WriteString("Failed\n")
	}
	for _, w := range v.Warnings {
		fmt.Fprintf(b, "- warning: %s\n", w)
	}
	for _, e := range v.Errors {
		fmt.Fprintf(b, "- error: %s\n", e)
	}
	b.WriteString("\n")
}

func writeVerification(b *strings.Builder, v sandbox.VerificationReport) {
	b.WriteString("## Verification\n\n")
	if v.Skipped {
		fmt.Fprintf(b, "Skipped: %s\n\n", v.SkipReason)
		return
	}
	if v.Passed {
		fmt.Fprintf(b, "**All %d tests passed**\n\n", v.TotalTests)
	} else {
		fmt.Fprintf(b, "**%d/%d tests passed**\n\n", v.PassedTests, v.TotalTests)
	}
	b.WriteString("| Endpoint | Result |\n")
	b.WriteString("|----------|--------|\n")
	for _, r := range v.Results {
		status := "ok"
		if !r.Passed {
			status = "failed"
		}
		detail := fmt.Sprintf("%s (%d)", status, r.ActualStatus)
		if r.Error != "" {
			detail += " — " + r.Error
		}
		fmt.Fprintf(b, "| `%s %s` | %s |\n", r.Method, r.Path, detail)
	}
	b.WriteString("\n")
}

func writeQuickStart(b *strings.Builder) {
	b.WriteString("## Quick Start\n\n")
	b.WriteString("```bash\n")
	b.WriteString("# Start the backend\n")
	b.WriteString("docker compose up --build\n\n")
	b.WriteString("# Open Swagger docs\n")
	b.WriteString("open http://localhost:8000/docs\n")
	b.WriteString("```\n")
}
