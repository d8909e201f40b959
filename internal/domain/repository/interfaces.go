package repository

import (
	"context"

	"EmeraldAgent/internal/domain/models"
)

// AttemptStore persists engine attempt telemetry.
type AttemptStore interface {
	RecordAttempts(ctx context.Context, recs []models.AttemptRecord) error
	Health(ctx context.Context) error
	Close() error
}

// ResultPublisher delivers replies for queued decision requests.
type ResultPublisher interface {
	PublishResult(ctx context.Context, res *models.DecisionResult) error
	Close() error
}

type Metrics interface {
	RecordAttempt(strategy, outcome string, seconds float64)
	RecordFallback(from, to string)
	RecordDecision(result string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
