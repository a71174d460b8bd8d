// Package apierrors defines the structured error-kind taxonomy shared by
// every stage of the generation pipeline. Stages never propagate raw
// messages upward: they wrap failures in a *Error carrying one of the
// Kind values below, and callers pattern-match on Kind to decide what
// to do next (retry, fall back, transition state, surface to the user).
package apierrors

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a pipeline failure.
type Kind string

const (
	// C3 — Prompt→Spec Agent
	KindSpecGenerationFailed Kind = "spec_generation_failed"
	KindValidationExhausted  Kind = "validation_exhausted"
	KindAllModelsExhausted   Kind = "all_models_exhausted"

	// C5 — Spec Reviewer
	KindSpecInvalid Kind = "spec_invalid"

	// External templating/archive collaborators
	KindRenderFailed Kind = "render_failed"

	// C7 — Sandbox & Repair Loop
	KindSandboxDeployFailed  Kind = "sandbox_deploy_failed"
	KindSandboxHealthTimeout Kind = "sandbox_health_timeout"
	KindEndpointTestFailure  Kind = "endpoint_test_failure"

	// C4 — LLM Provider Router
	KindQuotaExhausted  Kind = "quota_exhausted"
	KindNetworkTransient Kind = "network_transient"
	KindSchemaInvalid   Kind = "schema_invalid"
	KindTerminal        Kind = "terminal"

	// C2 — Context Retriever ingestion
	KindUnsupportedDocument Kind = "unsupported_document"
	KindDocumentTooLarge    Kind = "document_too_large"

	// tenancy / API-level
	KindNotFound  Kind = "not_found"
	KindForbidden Kind = "forbidden"
)

// Error is a structured, kind-tagged failure. It wraps an optional
// underlying cause so callers can still errors.Is/errors.As through it.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a kind-tagged error with no underlying cause.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Wrap tags an existing error with a kind, preserving it as the cause.
func Wrap(kind Kind, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf extracts the Kind of err, or "" if err is not a tagged *Error.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}

// ValidationError wraps field-specific structural/review validation
// failures, distinct from the pipeline-level Kind taxonomy above.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %q: %s", e.Field, e.Message)
}

// NewValidationError constructs a field-scoped validation error.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err is a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
