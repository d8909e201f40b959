package engine

import (
	"fmt"

	"EmeraldAgent/internal/domain/service"
)

// InvokeError describes a failed process invocation.
type InvokeError struct {
	Strategy string
	Kind     service.FailureKind
	ExitCode int
	Stderr   string
	Err      error
}

func (e *InvokeError) Error() string {
	switch e.Kind {
	case service.FailureNonZeroExit:
		if e.Stderr != "" {
			return fmt.Sprintf("%s engine exited with code %d: %s", e.Strategy, e.ExitCode, e.Stderr)
		}
		return fmt.Sprintf("%s engine exited with code %d", e.Strategy, e.ExitCode)
	case service.FailureTimeout:
		return fmt.Sprintf("%s engine timed out: %v", e.Strategy, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s engine %s: %v", e.Strategy, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s engine %s", e.Strategy, e.Kind)
}

func (e *InvokeError) Unwrap() error { return e.Err }

func (e *InvokeError) FailureKind() service.FailureKind { return e.Kind }

// ExitStatus is the child's exit code, or 0 when it never exited on its own.
func (e *InvokeError) ExitStatus() int { return e.ExitCode }

// DecodeError reports engine output that is not valid JSON (Malformed) or does
// not satisfy the response contract (SchemaViolation).
type DecodeError struct {
	Kind   service.FailureKind
	Field  string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "decode engine response: " + string(e.Kind)
	if e.Field != "" {
		msg += " at " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) FailureKind() service.FailureKind { return e.Kind }

func malformed(err error) *DecodeError {
	return &DecodeError{Kind: service.FailureMalformed, Err: err}
}

func schemaViolation(field, reason string) *DecodeError {
	return &DecodeError{Kind: service.FailureSchemaViolation, Field: field, Reason: reason}
}
