package models

import "time"

// AttemptRecord is the telemetry of one strategy attempt. It never holds the decision itself.
type AttemptRecord struct {
	RequestID string
	Symbol    string
	Strategy  string
	Outcome   string // "ok" or a failure kind
	ExitCode  int
	StartedAt time.Time
	Duration  time.Duration
}

// ResultError is the classified failure carried by an asynchronous reply.
type ResultError struct {
	Code           string `json:"code"`
	Classification string `json:"classification,omitempty"`
	Message        string `json:"message"`
}

// DecisionResult is the reply envelope published for queued decision requests.
type DecisionResult struct {
	RequestID string            `json:"request_id"`
	Response  *DecisionResponse `json:"response,omitempty"`
	Error     *ResultError      `json:"error,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
