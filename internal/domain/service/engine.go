package service

import (
	"context"
	"errors"

	"EmeraldAgent/internal/domain/models"
)

// DecisionEngine invokes one execution strategy of the external decision engine.
type DecisionEngine interface {
	// Strategy names the execution path, e.g. "compiled" or "interpreted".
	Strategy() string
	// Decide sends an encoded request and returns the validated response.
	Decide(ctx context.Context, payload []byte) (*models.DecisionResponse, error)
}

// EngineResolver lists the engines available for a request, in priority order.
type EngineResolver interface {
	Engines() []DecisionEngine
}

// FailureKind classifies why one engine attempt failed.
type FailureKind string

const (
	FailureLaunch          FailureKind = "launch_failed"
	FailureNonZeroExit     FailureKind = "non_zero_exit"
	FailureTimeout         FailureKind = "timeout"
	FailureCanceled        FailureKind = "canceled"
	FailureMalformed       FailureKind = "malformed"
	FailureSchemaViolation FailureKind = "schema_violation"
	FailureUnknown         FailureKind = "unknown"
)

// KindedError is implemented by engine errors that carry a FailureKind.
type KindedError interface {
	error
	FailureKind() FailureKind
}

// ExitStatuser is implemented by errors of engines that ran as a process.
type ExitStatuser interface {
	ExitStatus() int
}

// ExitStatusOf returns the process exit code carried by err, or 0.
func ExitStatusOf(err error) int {
	var es ExitStatuser
	if errors.As(err, &es) {
		return es.ExitStatus()
	}
	return 0
}

// KindOf extracts the FailureKind from err, or FailureUnknown.
func KindOf(err error) FailureKind {
	var ke KindedError
	if errors.As(err, &ke) {
		return ke.FailureKind()
	}
	return FailureUnknown
}

// IsOutputFailure reports whether the engine ran but its output broke the contract.
func (k FailureKind) IsOutputFailure() bool {
	return k == FailureMalformed || k == FailureSchemaViolation
}
