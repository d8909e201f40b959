package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"EmeraldAgent/internal/domain/models"
	drepo "EmeraldAgent/internal/domain/repository"
	"EmeraldAgent/internal/domain/service"
	"EmeraldAgent/pkg/logger"
)

// Classification is the caller-facing category of a failed decision.
type Classification string

const (
	ClassInfrastructure Classification = "infrastructure_unavailable"
	ClassInvalidOutput  Classification = "invalid_engine_output"
	ClassDeadline       Classification = "deadline_exceeded"
)

// Code returns the stable machine-readable error code.
func (c Classification) Code() string {
	switch c {
	case ClassInvalidOutput:
		return "ERR_ENGINE_INVALID_OUTPUT"
	case ClassDeadline:
		return "ERR_ENGINE_DEADLINE"
	default:
		return "ERR_ENGINE_UNAVAILABLE"
	}
}

// Message is safe to show to callers; it never carries paths or engine stderr.
func (c Classification) Message() string {
	switch c {
	case ClassInvalidOutput:
		return "decision engine returned an invalid response"
	case ClassDeadline:
		return "decision engine did not respond in time"
	default:
		return "decision engine is unavailable"
	}
}

// AttemptFailure is one failed strategy attempt.
type AttemptFailure struct {
	Strategy string
	Kind     service.FailureKind
	Err      error
}

// ExhaustedError is returned when no strategy produced a valid response.
type ExhaustedError struct {
	Class    Classification
	Failures []AttemptFailure
	// BudgetSpent is set when the controller stopped because the overall budget
	// elapsed or the caller went away.
	BudgetSpent bool
}

func (e *ExhaustedError) Error() string {
	if len(e.Failures) == 0 {
		if e.BudgetSpent {
			return fmt.Sprintf("engine budget spent before any attempt (%s)", e.Class)
		}
		return fmt.Sprintf("no engine strategy available (%s)", e.Class)
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Strategy, f.Err))
	}
	return fmt.Sprintf("all engine strategies failed (%s): %s", e.Class, strings.Join(parts, "; "))
}

// FallbackController tries engine strategies in priority order until one succeeds.
type FallbackController struct {
	resolver service.EngineResolver
	budget   time.Duration
	log      *logger.Logger
	metrics  drepo.Metrics
}

// NewFallbackController creates a controller. A zero budget leaves only the
// per-attempt deadlines and the caller's context in effect.
func NewFallbackController(resolver service.EngineResolver, budget time.Duration, log *logger.Logger, metrics drepo.Metrics) *FallbackController {
	if log == nil {
		log = logger.NewNop()
	}
	return &FallbackController{resolver: resolver, budget: budget, log: log, metrics: metrics}
}

// Run sends payload to each strategy in turn. Strategies are never run
// concurrently and each is attempted at most once. The returned records cover
// every attempt that was made, successful or not.
func (c *FallbackController) Run(ctx context.Context, payload []byte) (*models.DecisionResponse, []models.AttemptRecord, error) {
	if c.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.budget)
		defer cancel()
	}

	log := c.log
	if id := RequestIDFrom(ctx); id != "" {
		log = log.With(logger.String("request_id", id))
	}

	engines := c.resolver.Engines()
	if len(engines) > 0 {
		names := make([]string, 0, len(engines))
		for _, e := range engines {
			names = append(names, e.Strategy())
		}
		log.Debug("engine strategies resolved", logger.Strings("strategies", names))
	}
	records := make([]models.AttemptRecord, 0, len(engines))
	failures := make([]AttemptFailure, 0, len(engines))
	budgetSpent := false

	for i, eng := range engines {
		if ctx.Err() != nil {
			budgetSpent = true
			break
		}

		strategy := eng.Strategy()
		start := time.Now()
		resp, err := eng.Decide(ctx, payload)
		elapsed := time.Since(start)

		rec := models.AttemptRecord{Strategy: strategy, StartedAt: start, Duration: elapsed}
		if err == nil && resp == nil {
			err = errors.New("engine returned no response")
		}
		if err == nil {
			rec.Outcome = "ok"
			records = append(records, rec)
			c.observe(strategy, rec.Outcome, elapsed)
			log.Debug("engine attempt succeeded",
				logger.String("strategy", strategy),
				logger.Duration("elapsed_ms", elapsed),
			)
			return resp, records, nil
		}

		kind := service.KindOf(err)
		rec.Outcome = string(kind)
		rec.ExitCode = service.ExitStatusOf(err)
		records = append(records, rec)
		failures = append(failures, AttemptFailure{Strategy: strategy, Kind: kind, Err: err})
		c.observe(strategy, rec.Outcome, elapsed)

		last := i == len(engines)-1
		fields := []logger.Field{
			logger.String("strategy", strategy),
			logger.String("kind", string(kind)),
			logger.Duration("elapsed_ms", elapsed),
			logger.Error(err),
		}
		switch {
		case last:
			log.Warn("engine attempt failed", fields...)
		case kind == service.FailureLaunch:
			// An absent or unlaunchable early strategy is routine; the next one covers it.
			log.Debug("engine strategy not launchable, falling back", fields...)
		default:
			log.Warn("engine attempt failed, falling back", fields...)
		}

		if ctx.Err() != nil {
			budgetSpent = !last
			break
		}
		if !last && c.metrics != nil {
			c.metrics.RecordFallback(strategy, engines[i+1].Strategy())
		}
	}

	exhausted := &ExhaustedError{Failures: failures, BudgetSpent: budgetSpent}
	exhausted.Class = classify(exhausted)
	log.Error("all engine strategies failed",
		logger.String("class", string(exhausted.Class)),
		logger.Int("attempts", len(failures)),
		logger.Error(exhausted),
	)
	return nil, records, exhausted
}

func (c *FallbackController) observe(strategy, outcome string, elapsed time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordAttempt(strategy, outcome, elapsed.Seconds())
	}
}

// classify folds attempt failures into one classification. A deadline anywhere
// wins over bad output, which wins over infrastructure problems.
func classify(e *ExhaustedError) Classification {
	if e.BudgetSpent {
		return ClassDeadline
	}
	for _, f := range e.Failures {
		if f.Kind == service.FailureTimeout || f.Kind == service.FailureCanceled {
			return ClassDeadline
		}
	}
	for _, f := range e.Failures {
		if f.Kind.IsOutputFailure() {
			return ClassInvalidOutput
		}
	}
	return ClassInfrastructure
}
