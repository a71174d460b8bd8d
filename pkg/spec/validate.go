package spec

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	projectNameRe = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
	entityNameRe  = regexp.MustCompile(`^[A-Z][a-zA-Z0-9]*$`)
	snakeCaseRe   = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

const maxProjectNameLen = 64

// Validate performs structural validation: shape, type enumeration, and
// the per-entity/field grammar rules from §3. Cross-field and semantic
// invariants that require looking across the whole spec belong to the
// Spec Reviewer (pkg/review), not here — this stage only rejects specs
// that could never be rendered at all.
func Validate(s Spec) error {
	name := strings.ToLower(strings.TrimSpace(s.ProjectName))
	if name == "" || len(name) > maxProjectNameLen || !projectNameRe.MatchString(name) {
		return fmt.Errorf("project_name %q must be lowercase, start with a letter, contain only letters/digits/hyphens, and be at most %d characters", s.ProjectName, maxProjectNameLen)
	}

	if len(s.Entities) == 0 {
		return fmt.Errorf("spec must declare at least one entity")
	}

	seenNames := make(map[string]bool, len(s.Entities))
	seenTables := make(map[string]bool, len(s.Entities))
	for _, e := range s.Entities {
		if err := validateEntity(e); err != nil {
			return err
		}
		lower := strings.ToLower(e.Name)
		if seenNames[lower] {
			return fmt.Errorf("duplicate entity name: %q", e.Name)
		}
		seenNames[lower] = true

		if seenTables[e.TableName] {
			return fmt.Errorf("duplicate table name: %q", e.TableName)
		}
		seenTables[e.TableName] = true
	}

	return nil
}

func validateEntity(e Entity) error {
	if !entityNameRe.MatchString(e.Name) {
		return fmt.Errorf("entity name %q must be PascalCase (start with an uppercase letter, only letters/digits)", e.Name)
	}
	if !snakeCaseRe.MatchString(e.TableName) {
		return fmt.Errorf("table name %q must be snake_case", e.TableName)
	}
	if len(e.Fields) == 0 {
		return fmt.Errorf("entity %q must declare at least one field", e.Name)
	}

	pkCount := 0
	for _, f := range e.Fields {
		if err := validateField(f); err != nil {
			return fmt.Errorf("entity %q: %w", e.Name, err)
		}
		if f.PrimaryKey {
			pkCount++
			if f.Nullable {
				return fmt.Errorf("entity %q: primary key field %q must not be nullable", e.Name, f.Name)
			}
		}
	}
	if pkCount == 0 {
		return fmt.Errorf("entity %q must have exactly one primary key field", e.Name)
	}
	if pkCount > 1 {
		return fmt.Errorf("entity %q has %d primary key fields; only one is allowed", e.Name, pkCount)
	}
	return nil
}

func validateField(f Field) error {
	if !snakeCaseRe.MatchString(f.Name) {
		return fmt.Errorf("field name %q must be snake_case (lowercase, start with a letter, only letters/digits/underscores)", f.Name)
	}
	if !validFieldTypes[f.Type] {
		return fmt.Errorf("field %q has unsupported type %q", f.Name, f.Type)
	}
	return nil
}
