// Package review implements the Spec Reviewer (C5): deterministic,
// pure-function checks over a validated spec.Spec that structural
// validation alone cannot express, because they span multiple fields
// or carry domain knowledge (reserved words, the auth subsystem's
// built-in table).
package review

import (
	"fmt"
	"strings"

	"github.com/codeready-toolchain/genforge/pkg/spec"
)

// reservedIdentifiers blocks field names that collide with generated
// code's own vocabulary. "id" is explicitly exempted — it is the
// conventional primary-key name.
var reservedIdentifiers = map[string]bool{
	"type": true, "class": true, "import": true, "from": true,
	"return": true, "pass": true,
}

var genericProjectNames = map[string]bool{
	"app": true, "test": true, "tests": true, "src": true, "lib": true,
}

const authUsersTable = "users"

// Report is the outcome of reviewing a Spec: Valid is false whenever
// Errors is non-empty. Warnings never block the pipeline.
type Report struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// Review runs every check against s and aggregates the result. Checks
// run in a fixed order so Errors/Warnings are reproducible across runs
// of the same spec, matching pkg/config.Validator's ordered-checks idiom.
func Review(s spec.Spec) Report {
	r := Report{Valid: true}

	checkDuplicateFieldNames(s, &r)
	checkReservedIdentifiers(s, &r)
	checkNullablePrimaryKeys(s, &r)
	checkAuthTableCollision(s, &r)
	checkGenericProjectName(s, &r)

	r.Valid = len(r.Errors) == 0
	return r
}

func checkDuplicateFieldNames(s spec.Spec, r *Report) {
	for _, e := range s.Entities {
		seen := make(map[string]bool, len(e.Fields))
		for _, f := range e.Fields {
			if seen[f.Name] {
				r.Errors = append(r.Errors, fmt.Sprintf("entity %q: duplicate field name %q", e.Name, f.Name))
				continue
			}
			seen[f.Name] = true
		}
	}
}

func checkReservedIdentifiers(s spec.Spec, r *Report) {
	for _, e := range s.Entities {
		for _, f := range e.Fields {
			if f.Name == "id" {
				continue
			}
			if reservedIdentifiers[f.Name] {
				r.Warnings = append(r.Warnings, fmt.Sprintf("entity %q: field %q is a reserved identifier", e.Name, f.Name))
			}
		}
	}
}

func checkNullablePrimaryKeys(s spec.Spec, r *Report) {
	for _, e := range s.Entities {
		for _, f := range e.Fields {
			if f.PrimaryKey && f.Nullable {
				r.Errors = append(r.Errors, fmt.Sprintf("entity %q: primary key field %q must not be nullable", e.Name, f.Name))
			}
		}
	}
}

func checkAuthTableCollision(s spec.Spec, r *Report) {
	if !s.Auth.Enabled {
		return
	}
	for _, e := range s.Entities {
		if e.TableName == authUsersTable {
			r.Errors = append(r.Errors, fmt.Sprintf("entity %q: table name %q collides with the built-in auth users table", e.Name, e.TableName))
		}
	}
}

func checkGenericProjectName(s spec.Spec, r *Report) {
	if genericProjectNames[strings.ToLower(s.ProjectName)] {
		r.Warnings = append(r.Warnings, fmt.Sprintf("project name %q is generic", s.ProjectName))
	}
}
